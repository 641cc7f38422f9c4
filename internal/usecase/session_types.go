package usecase

import (
	"sync"

	"voicetriage/internal/domain"
	"voicetriage/internal/ports"
)

// recordingSession owns the device handle and the captured chunks of one
// recording. It is discarded once the artifact is handed off or on error.
type recordingSession struct {
	cancel   func()
	audio    ports.AudioSession
	pumpDone chan struct{}

	mu     sync.Mutex
	state  domain.SessionState
	chunks [][]byte
	size   int
	sealed bool
}

func newRecordingSession(audio ports.AudioSession, cancel func()) *recordingSession {
	return &recordingSession{
		cancel:   cancel,
		audio:    audio,
		pumpDone: make(chan struct{}),
		state:    domain.SessionStateRecording,
	}
}

// append stores a copy of chunk. Chunks arriving after the session is sealed
// are dropped.
func (s *recordingSession) append(chunk []byte) bool {
	if len(chunk) == 0 {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return false
	}
	s.chunks = append(s.chunks, append([]byte(nil), chunk...))
	s.size += len(chunk)
	return true
}

// seal closes the chunk sequence and hands ownership of it to the caller.
func (s *recordingSession) seal() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sealed = true
	chunks := s.chunks
	s.chunks = nil
	s.size = 0
	return chunks
}

func (s *recordingSession) setState(state domain.SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func (s *recordingSession) getState() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *recordingSession) bytes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}
