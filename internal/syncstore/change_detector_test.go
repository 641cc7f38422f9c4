package syncstore

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"voicetriage/internal/domain"
)

func TestChangeDetectorIgnoresIdenticalRecords(t *testing.T) {
	detector := newChangeDetector()
	records := []domain.Voicemail{record("a", domain.StatusCompleted)}
	records[0].Analysis = &domain.Analysis{Summary: "Cough", MissingInfo: []string{"dob"}}

	assert.Len(t, detector.detect(records), 1)

	again := []domain.Voicemail{record("a", domain.StatusCompleted)}
	again[0].Analysis = &domain.Analysis{Summary: "Cough", MissingInfo: []string{"dob"}}
	assert.Empty(t, detector.detect(again))
}

func TestChangeDetectorSeesAnalysisChanges(t *testing.T) {
	detector := newChangeDetector()
	first := record("a", domain.StatusCompleted)
	detector.detect([]domain.Voicemail{first})

	second := first
	second.Analysis = &domain.Analysis{BookingURL: "https://cal.example/x"}
	changes := detector.detect([]domain.Voicemail{second})
	if assert.Len(t, changes, 1) {
		assert.Equal(t, ChangeUpdated, changes[0].Type)
		assert.Equal(t, "https://cal.example/x", changes[0].Record.Analysis.BookingURL)
	}
}

func TestChangeDetectorReportsRemovalsInPreviousOrder(t *testing.T) {
	detector := newChangeDetector()
	detector.detect([]domain.Voicemail{
		record("a", domain.StatusCompleted),
		record("b", domain.StatusCompleted),
		record("c", domain.StatusCompleted),
	})

	changes := detector.detect([]domain.Voicemail{record("b", domain.StatusCompleted)})
	assert.Equal(t, []Change{
		{Type: ChangeRemoved, ID: "a"},
		{Type: ChangeRemoved, ID: "c"},
	}, changes)
}
