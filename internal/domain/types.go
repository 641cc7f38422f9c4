package domain

// SessionState models the recording lifecycle.
type SessionState string

const (
	SessionStateIdle      SessionState = "idle"
	SessionStateRecording SessionState = "recording"
	SessionStateStopping  SessionState = "stopping"
)

// SessionStateReason provides a structured reason for state transitions.
type SessionStateReason string

const (
	SessionReasonMicCold            SessionStateReason = "mic_cold"
	SessionReasonRecordingStarted   SessionStateReason = "recording_started"
	SessionReasonUploading          SessionStateReason = "uploading"
	SessionReasonUploaded           SessionStateReason = "uploaded"
	SessionReasonUploadFailed       SessionStateReason = "upload_failed"
	SessionReasonRecordingDiscarded SessionStateReason = "recording_discarded"
	SessionReasonNoAudio            SessionStateReason = "no_audio"
	SessionReasonCaptureFailed      SessionStateReason = "capture_failed"
)

// ErrorCode identifies errors pushed to the UI.
type ErrorCode string

const (
	ErrorCodeStartup     ErrorCode = "startup"
	ErrorCodeCapture     ErrorCode = "capture"
	ErrorCodeNoAudio     ErrorCode = "no_audio"
	ErrorCodeAudioStop   ErrorCode = "audio_stop"
	ErrorCodeAudioStream ErrorCode = "audio_stream"
	ErrorCodeUpload      ErrorCode = "upload"
	ErrorCodeFetch       ErrorCode = "fetch"
	ErrorCodeClipboard   ErrorCode = "clipboard"
)

// Artifact is a finished recording ready for upload.
type Artifact struct {
	Data     []byte `json:"-"`
	MIMEType string `json:"mimeType"`
	Filename string `json:"filename"`
}

// Size returns the payload length in bytes.
func (a Artifact) Size() int {
	return len(a.Data)
}

// StopResult is returned once a recording is stopped and handed off.
type StopResult struct {
	Submitted bool   `json:"submitted"`
	Bytes     int    `json:"bytes"`
	MIMEType  string `json:"mimeType,omitempty"`
}

// Status summarizes the current capture status.
type Status struct {
	State   SessionState `json:"state"`
	Active  bool         `json:"active"`
	Message string       `json:"message,omitempty"`
}
