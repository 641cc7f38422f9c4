package usecase

import (
	"errors"
	"fmt"

	"voicetriage/internal/audio"
	"voicetriage/internal/domain"
)

// ArtifactFilename is the synthetic filename every upload carries.
const ArtifactFilename = "voicemail.wav"

// ErrEmptyRecording is returned when a recording captured no audio.
var ErrEmptyRecording = errors.New("recording captured no audio")

type artifactFinalizer struct {
	sampleRate int
	channels   int
}

func newArtifactFinalizer(cfg Config) artifactFinalizer {
	return artifactFinalizer{sampleRate: cfg.Audio.SampleRate, channels: cfg.Audio.Channels}
}

// Finalize concatenates the chunk sequence into one WAV artifact.
func (f artifactFinalizer) Finalize(chunks [][]byte) (domain.Artifact, error) {
	total := 0
	for _, chunk := range chunks {
		total += len(chunk)
	}
	if total == 0 {
		return domain.Artifact{}, ErrEmptyRecording
	}

	pcm := make([]byte, 0, total)
	for _, chunk := range chunks {
		pcm = append(pcm, chunk...)
	}

	data, err := audio.EncodeWAV(pcm, f.sampleRate, f.channels)
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("encode recording: %w", err)
	}

	return domain.Artifact{
		Data:     data,
		MIMEType: audio.MIMETypeWAV,
		Filename: ArtifactFilename,
	}, nil
}
