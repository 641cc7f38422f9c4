package usecase

import (
	"errors"
	"fmt"
	"io"
	"os"

	"voicetriage/internal/domain"
	"voicetriage/internal/ports"
)

// pumpAudioChunks turns blocking device reads into chunk events on the session.
func pumpAudioChunks(
	audio ports.AudioSession,
	session *recordingSession,
	chunkSize int,
	events ports.EventSink,
	done chan struct{},
) {
	defer close(done)

	if chunkSize < 256 {
		chunkSize = 4096
	}

	buf := make([]byte, chunkSize)
	for {
		n, err := audio.Read(buf)
		if n > 0 {
			session.append(buf[:n])
		}
		if err != nil {
			if !isEndOfStream(err) && session.getState() == domain.SessionStateRecording {
				events.SessionError(domain.ErrorCodeAudioStream, fmt.Sprintf("audio capture error: %v", err))
			}
			return
		}
	}
}

func isEndOfStream(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) || errors.Is(err, io.ErrClosedPipe)
}
