package usecase

import (
	"context"
	"errors"
	"sync"

	"voicetriage/internal/domain"
	"voicetriage/internal/ports"
	"voicetriage/pkg/logger"
)

var (
	ErrNoActiveSession     = errors.New("no active recording session")
	ErrRecordingInProgress = errors.New("recording already in progress")
)

// Config controls recording behavior.
type Config struct {
	Audio     ports.AudioConfig
	ChunkSize int
}

// CaptureController drives the IDLE -> RECORDING -> STOPPING -> IDLE cycle and
// hands each finished recording to the upload pipeline. At most one recording
// session is live at a time.
type CaptureController struct {
	audio     ports.AudioCapture
	uploader  ports.ArtifactSubmitter
	events    ports.EventSink
	finalizer artifactFinalizer
	cfg       Config
	logger    *logger.Logger

	mu       sync.Mutex
	state    domain.SessionState
	starting bool
	current  *recordingSession
}

func NewCaptureController(
	audio ports.AudioCapture,
	uploader ports.ArtifactSubmitter,
	events ports.EventSink,
	cfg Config,
	log *logger.Logger,
) *CaptureController {
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &CaptureController{
		audio:     audio,
		uploader:  uploader,
		events:    events,
		finalizer: newArtifactFinalizer(cfg),
		cfg:       cfg,
		logger:    log.Named("capture"),
		state:     domain.SessionStateIdle,
	}
}

// Start acquires the input device and begins recording. It is rejected unless
// the controller is idle; a refused device leaves the controller idle.
func (c *CaptureController) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != domain.SessionStateIdle || c.starting {
		c.mu.Unlock()
		return domain.NewError(domain.KindCapture, "start recording", ErrRecordingInProgress)
	}
	c.starting = true
	c.mu.Unlock()

	sessionCtx, cancel := context.WithCancel(ctx)
	audioSession, err := c.audio.Start(sessionCtx, c.cfg.Audio)
	if err != nil {
		cancel()
		c.mu.Lock()
		c.starting = false
		c.mu.Unlock()

		c.logger.Warn("Microphone unavailable", logger.Error(err))
		c.events.SessionError(domain.ErrorCodeCapture, err.Error())
		c.events.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonCaptureFailed)
		return domain.NewError(domain.KindCapture, "open microphone", err)
	}

	session := newRecordingSession(audioSession, cancel)

	c.mu.Lock()
	c.starting = false
	c.state = domain.SessionStateRecording
	c.current = session
	c.mu.Unlock()

	go pumpAudioChunks(audioSession, session, c.cfg.ChunkSize, c.events, session.pumpDone)

	c.logger.Info("Recording started")
	c.events.SessionStateChanged(domain.SessionStateRecording, domain.SessionReasonRecordingStarted)
	return nil
}

// Stop finalizes the live recording and submits it. Outside RECORDING it is a
// no-op. The controller is idle again before the upload is awaited.
func (c *CaptureController) Stop(ctx context.Context) (domain.StopResult, error) {
	session := c.beginStopping()
	if session == nil {
		c.logger.Debug("Stop ignored; not recording")
		return domain.StopResult{}, nil
	}

	c.events.SessionStateChanged(domain.SessionStateStopping, domain.SessionReasonUploading)
	chunks := c.release(session)

	artifact, err := c.finalizer.Finalize(chunks)
	c.finish(session)
	if err != nil {
		reason, code := domain.SessionReasonCaptureFailed, domain.ErrorCodeCapture
		if errors.Is(err, ErrEmptyRecording) {
			reason, code = domain.SessionReasonNoAudio, domain.ErrorCodeNoAudio
		}
		c.events.SessionError(code, err.Error())
		c.events.SessionStateChanged(domain.SessionStateIdle, reason)
		return domain.StopResult{}, domain.NewError(domain.KindCapture, "finalize recording", err)
	}

	result := domain.StopResult{Bytes: artifact.Size(), MIMEType: artifact.MIMEType}
	if err := c.uploader.Submit(ctx, artifact); err != nil {
		c.events.SessionError(domain.ErrorCodeUpload, err.Error())
		c.events.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonUploadFailed)
		return result, err
	}

	result.Submitted = true
	c.events.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonUploaded)
	return result, nil
}

// Abort discards the live recording without uploading it.
func (c *CaptureController) Abort() error {
	session := c.beginStopping()
	if session == nil {
		return ErrNoActiveSession
	}

	_ = c.release(session)
	c.finish(session)
	c.logger.Info("Recording discarded")
	c.events.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonRecordingDiscarded)
	return nil
}

// Status returns the current capture status.
func (c *CaptureController) Status() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.Status{State: c.state, Active: c.state != domain.SessionStateIdle}
}

func (c *CaptureController) beginStopping() *recordingSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != domain.SessionStateRecording || c.current == nil {
		return nil
	}
	c.state = domain.SessionStateStopping
	c.current.setState(domain.SessionStateStopping)
	return c.current
}

// release stops the device, waits for the pump to drain and takes the chunks.
func (c *CaptureController) release(session *recordingSession) [][]byte {
	if err := session.audio.Stop(); err != nil {
		c.logger.Warn("Microphone did not stop cleanly", logger.Error(err))
		c.events.SessionError(domain.ErrorCodeAudioStop, "failed to stop audio capture cleanly")
	}
	<-session.pumpDone
	session.cancel()
	c.logger.Debug("Microphone released", logger.Int("bytes", session.bytes()))
	return session.seal()
}

// finish destroys the session and returns the controller to idle.
func (c *CaptureController) finish(session *recordingSession) {
	session.setState(domain.SessionStateIdle)

	c.mu.Lock()
	if c.current == session {
		c.current = nil
		c.state = domain.SessionStateIdle
	}
	c.mu.Unlock()
}
