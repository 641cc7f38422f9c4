package usecase

import (
	"bytes"
	"errors"
	"testing"

	"voicetriage/internal/audio"
	"voicetriage/internal/ports"
)

func TestArtifactFinalizerConcatenatesChunks(t *testing.T) {
	t.Parallel()

	f := newArtifactFinalizer(Config{Audio: ports.AudioConfig{SampleRate: 8000, Channels: 1}})
	artifact, err := f.Finalize([][]byte{{1, 2}, {3, 4, 5, 6}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if artifact.MIMEType != audio.MIMETypeWAV || artifact.Filename != ArtifactFilename {
		t.Fatalf("unexpected artifact metadata: %+v", artifact)
	}
	if artifact.Size() != 44+6 {
		t.Fatalf("unexpected size %d", artifact.Size())
	}
	if !bytes.Equal(artifact.Data[44:], []byte{1, 2, 3, 4, 5, 6}) {
		t.Fatalf("unexpected payload %v", artifact.Data[44:])
	}

	header, err := audio.ParseWAVHeader(artifact.Data)
	if err != nil {
		t.Fatalf("unexpected header error: %v", err)
	}
	if header.SampleRate != 8000 || header.DataSize != 6 {
		t.Fatalf("unexpected header: %+v", header)
	}
}

func TestArtifactFinalizerRejectsEmptyRecording(t *testing.T) {
	t.Parallel()

	f := newArtifactFinalizer(Config{})
	for _, chunks := range [][][]byte{nil, {}, {{}, {}}} {
		if _, err := f.Finalize(chunks); !errors.Is(err, ErrEmptyRecording) {
			t.Fatalf("expected empty recording error for %v, got %v", chunks, err)
		}
	}
}

func TestArtifactFinalizerSingleByteIsUnencodable(t *testing.T) {
	t.Parallel()

	f := newArtifactFinalizer(Config{})
	if _, err := f.Finalize([][]byte{{7}}); !errors.Is(err, audio.ErrOddPCM) {
		t.Fatalf("expected odd pcm error, got %v", err)
	}
}
