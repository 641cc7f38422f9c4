package bootstrap

import (
	"voicetriage/internal/domain"
	"voicetriage/pkg/logger"
)

// LogEventSink reports capture events through the logger. Headless callers use
// it in place of a UI.
type LogEventSink struct {
	logger *logger.Logger
}

func NewLogEventSink(log *logger.Logger) *LogEventSink {
	return &LogEventSink{logger: log.Named("events")}
}

func (s *LogEventSink) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	s.logger.Info("session state",
		logger.String("state", string(state)),
		logger.String("reason", string(reason)),
	)
}

func (s *LogEventSink) SessionError(code domain.ErrorCode, detail string) {
	s.logger.Warn("session error",
		logger.String("code", string(code)),
		logger.String("detail", detail),
	)
}
