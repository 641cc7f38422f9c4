package view

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicetriage/internal/domain"
	"voicetriage/pkg/logger"
)

func TestReconcileAutoSelectsFirstRow(t *testing.T) {
	state := NewState(logger.NewNop())
	records := []domain.Voicemail{
		completed("old", 1, domain.UrgencyRed),
		completed("new", 2, domain.UrgencyGreen),
	}

	assert.Equal(t, "new", state.Reconcile(records))

	state.Clear()
	require.NoError(t, state.SetSort(SortPriorityDesc))
	assert.Equal(t, "old", state.Reconcile(records))
}

func TestReconcileEmptyCollection(t *testing.T) {
	state := NewState(nil)
	assert.Equal(t, "", state.Reconcile(nil))
}

func TestSelectionSurvivesRefresh(t *testing.T) {
	state := NewState(logger.NewNop())
	x := completed("x", 1, domain.UrgencyYellow)
	records := []domain.Voicemail{completed("y", 2, domain.UrgencyRed), x}

	state.Select("x")
	assert.Equal(t, "x", state.Reconcile(records))

	refreshed := []domain.Voicemail{completed("z", 3, domain.UrgencyGreen), completed("y", 2, domain.UrgencyRed), x}
	assert.Equal(t, "x", state.Reconcile(refreshed))

	withoutX := []domain.Voicemail{completed("z", 3, domain.UrgencyGreen), completed("y", 2, domain.UrgencyRed)}
	assert.Equal(t, "z", state.Reconcile(withoutX))
}

func TestRenderTreatsMissingSelectionAsUnset(t *testing.T) {
	state := NewState(logger.NewNop())
	state.Select("gone")

	rendered := state.Render([]domain.Voicemail{completed("a", 1, "")})
	assert.Empty(t, rendered.SelectedID)
	assert.Nil(t, rendered.Selected)
	assert.Equal(t, "gone", state.SelectedID())
}

func TestRenderAppliesFilterAndSort(t *testing.T) {
	state := NewState(logger.NewNop())
	records := []domain.Voicemail{
		completed("a", 1, domain.UrgencyRed),
		completed("b", 2, domain.UrgencyGreen),
		completed("c", 3, domain.UrgencyRed),
	}
	records[0].Transcript = "Chest pain since last night"
	records[2].Analysis = &domain.Analysis{Summary: "Chest tightness"}

	state.SetFilter(Filter{Text: "CHEST"})
	state.Select("b")
	rendered := state.Render(records)

	assert.Equal(t, []string{"c", "a"}, ids(rendered.Rows))
	assert.Equal(t, 3, rendered.Total)
	assert.Equal(t, "b", rendered.SelectedID)
	require.NotNil(t, rendered.Selected)
	assert.Equal(t, domain.UrgencyGreen, rendered.Selected.Urgency)
	assert.Equal(t, []string{"a", "b", "c"}, ids(records))
}

func TestSetSortRejectsUnknownKey(t *testing.T) {
	state := NewState(logger.NewNop())
	assert.Error(t, state.SetSort("random"))
	assert.Equal(t, SortTimeDesc, state.SortKey())
}
