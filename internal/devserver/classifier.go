package devserver

import (
	"context"
	"fmt"

	"voicetriage/internal/audio"
	"voicetriage/internal/domain"
)

// Result is the outcome of processing one recording.
type Result struct {
	Status     domain.VoicemailStatus
	Urgency    domain.Urgency
	Category   string
	Transcript string
	Analysis   *domain.Analysis
}

// Classifier turns uploaded audio into a triage result.
type Classifier interface {
	Classify(ctx context.Context, audio []byte) (Result, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, audio []byte) (Result, error)

func (f ClassifierFunc) Classify(ctx context.Context, audio []byte) (Result, error) {
	return f(ctx, audio)
}

// DurationClassifier marks every recording for validation and describes its
// length. It stands in for the transcription pipeline during local runs.
type DurationClassifier struct{}

func (DurationClassifier) Classify(_ context.Context, data []byte) (Result, error) {
	header, err := audio.ParseWAVHeader(data)
	if err != nil {
		return Result{Status: domain.StatusFailed}, err
	}
	seconds := header.Duration().Seconds()
	return Result{
		Status:     domain.StatusCompleted,
		Urgency:    domain.UrgencyNeedValidation,
		Category:   "Unreviewed",
		Transcript: fmt.Sprintf("[%.1f seconds of audio, no transcription available]", seconds),
		Analysis: &domain.Analysis{
			Summary:     fmt.Sprintf("%.1fs recording awaiting review", seconds),
			Intent:      "Review voicemail",
			MissingInfo: []string{"patient_name", "symptoms"},
		},
	}, nil
}
