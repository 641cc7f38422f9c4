package view

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicetriage/internal/domain"
)

var base = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func completed(id string, minutes int, urgency domain.Urgency) domain.Voicemail {
	return domain.Voicemail{
		ID:        id,
		Status:    domain.StatusCompleted,
		Urgency:   urgency,
		CreatedAt: domain.NewTimestamp(base.Add(time.Duration(minutes) * time.Minute)),
	}
}

func ids(records []domain.Voicemail) []string {
	out := make([]string, 0, len(records))
	for _, record := range records {
		out = append(out, record.ID)
	}
	return out
}

func TestSortByTimeAndPriority(t *testing.T) {
	records := []domain.Voicemail{
		completed("t1", 1, domain.UrgencyYellow),
		completed("t2", 2, domain.UrgencyRed),
		completed("t3", 3, domain.UrgencyGreen),
	}

	assert.Equal(t, []string{"t3", "t2", "t1"}, ids(Sort(records, SortTimeDesc)))
	assert.Equal(t, []string{"t1", "t2", "t3"}, ids(Sort(records, SortTimeAsc)))
	assert.Equal(t, []string{"t2", "t1", "t3"}, ids(Sort(records, SortPriorityDesc)))
	assert.Equal(t, []string{"t3", "t1", "t2"}, ids(Sort(records, SortPriorityAsc)))
}

func TestSortDoesNotMutateInput(t *testing.T) {
	records := []domain.Voicemail{
		completed("t1", 1, domain.UrgencyGreen),
		completed("t2", 2, domain.UrgencyRed),
	}
	_ = Sort(records, SortTimeDesc)
	assert.Equal(t, []string{"t1", "t2"}, ids(records))
}

func TestSortIsStableOnTies(t *testing.T) {
	records := []domain.Voicemail{
		completed("a", 5, domain.UrgencyRed),
		completed("b", 1, domain.UrgencyRed),
		completed("c", 3, domain.UrgencyRed),
		completed("d", 5, domain.UrgencyGreen),
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(Sort(records, SortPriorityDesc)))
	assert.Equal(t, []string{"a", "d", "c", "b"}, ids(Sort(records, SortTimeDesc)))
}

func TestPriorityRanksAbsentAndProcessingLast(t *testing.T) {
	processing := completed("p", 0, domain.UrgencyRed)
	processing.Status = domain.StatusProcessing
	records := []domain.Voicemail{
		completed("none", 0, ""),
		processing,
		completed("validate", 0, domain.UrgencyNeedValidation),
		completed("yellow", 0, domain.UrgencyYellow),
		completed("red", 0, domain.UrgencyRed),
	}
	assert.Equal(t, []string{"red", "validate", "yellow", "none", "p"}, ids(Sort(records, SortPriorityDesc)))
}

func TestUnparseableTimestampsSortAsOldest(t *testing.T) {
	broken := completed("broken", 0, "")
	broken.CreatedAt = domain.ParseTimestamp("not a date")
	records := []domain.Voicemail{broken, completed("ok", 0, "")}
	assert.Equal(t, []string{"ok", "broken"}, ids(Sort(records, SortTimeDesc)))
}

func TestParseSortKey(t *testing.T) {
	key, err := ParseSortKey("")
	require.NoError(t, err)
	assert.Equal(t, SortTimeDesc, key)

	key, err = ParseSortKey(" PRIORITY_ASC ")
	require.NoError(t, err)
	assert.Equal(t, SortPriorityAsc, key)

	_, err = ParseSortKey("alphabetical")
	assert.Error(t, err)
}
