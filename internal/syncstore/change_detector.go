package syncstore

import (
	"reflect"

	"voicetriage/internal/domain"
)

// ChangeType names how a record moved between two fetches.
type ChangeType string

const (
	ChangeAdded   ChangeType = "added"
	ChangeUpdated ChangeType = "updated"
	ChangeRemoved ChangeType = "removed"
)

// Change describes one record that differs from the previous fetch. Record is
// nil for removals.
type Change struct {
	Type   ChangeType
	ID     string
	Record *domain.Voicemail
}

// changeDetector tracks records between fetch cycles.
type changeDetector struct {
	previous map[string]domain.Voicemail
	order    []string
}

func newChangeDetector() *changeDetector {
	return &changeDetector{previous: make(map[string]domain.Voicemail)}
}

// detect compares current with the previous collection and remembers current.
// Added and updated changes follow the order of current; removals follow the
// order in which the removed records were last seen.
func (cd *changeDetector) detect(current []domain.Voicemail) []Change {
	changes := []Change{}
	currentMap := make(map[string]domain.Voicemail, len(current))

	for i := range current {
		record := current[i]
		currentMap[record.ID] = record
		previous, exists := cd.previous[record.ID]
		switch {
		case !exists:
			changes = append(changes, Change{Type: ChangeAdded, ID: record.ID, Record: &record})
		case hasChanges(previous, record):
			changes = append(changes, Change{Type: ChangeUpdated, ID: record.ID, Record: &record})
		}
	}

	for _, id := range cd.order {
		if _, exists := currentMap[id]; !exists {
			changes = append(changes, Change{Type: ChangeRemoved, ID: id})
		}
	}

	cd.previous = currentMap
	cd.order = cd.order[:0]
	for _, record := range current {
		cd.order = append(cd.order, record.ID)
	}
	return changes
}

func hasChanges(previous, current domain.Voicemail) bool {
	if previous.Status != current.Status {
		return true
	}
	if previous.Urgency != current.Urgency || previous.Category != current.Category {
		return true
	}
	if previous.Transcript != current.Transcript || previous.FilePath != current.FilePath {
		return true
	}
	if previous.CreatedAt.Raw != current.CreatedAt.Raw || !previous.CreatedAt.Equal(current.CreatedAt.Time) {
		return true
	}
	return !reflect.DeepEqual(previous.Analysis, current.Analysis)
}
