package ports

import (
	"context"
	"io"

	"voicetriage/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is an exclusive handle on a live input device. Reads yield raw
// PCM until the device is stopped; Stop releases the device and is idempotent.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture grants exclusive access to the input device.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// VoicemailLister fetches the full voicemail collection.
type VoicemailLister interface {
	List(ctx context.Context) ([]domain.Voicemail, error)
}

// VoicemailAPI is the backend contract consumed by the core.
type VoicemailAPI interface {
	VoicemailLister
	Upload(ctx context.Context, artifact domain.Artifact) error
}

// Invalidator requests an out-of-band refresh of the voicemail collection.
type Invalidator interface {
	Invalidate()
}

// ArtifactSubmitter accepts finished recordings.
type ArtifactSubmitter interface {
	Submit(ctx context.Context, artifact domain.Artifact) error
}

// EventSink emits capture state and errors to the UI.
type EventSink interface {
	SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason)
	SessionError(code domain.ErrorCode, detail string)
}
