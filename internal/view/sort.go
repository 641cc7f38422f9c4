package view

import (
	"fmt"
	"sort"
	"strings"

	"voicetriage/internal/domain"
)

// SortKey selects the ordering of the derived view.
type SortKey string

const (
	SortTimeDesc     SortKey = "time_desc"
	SortTimeAsc      SortKey = "time_asc"
	SortPriorityDesc SortKey = "priority_desc"
	SortPriorityAsc  SortKey = "priority_asc"
)

// DefaultSortKey shows the newest records first.
const DefaultSortKey = SortTimeDesc

// SortKeys lists every supported key in menu order.
var SortKeys = []SortKey{SortTimeDesc, SortTimeAsc, SortPriorityDesc, SortPriorityAsc}

// ParseSortKey validates raw. An empty value yields DefaultSortKey.
func ParseSortKey(raw string) (SortKey, error) {
	key := SortKey(strings.ToLower(strings.TrimSpace(raw)))
	if key == "" {
		return DefaultSortKey, nil
	}
	for _, known := range SortKeys {
		if key == known {
			return key, nil
		}
	}
	return "", fmt.Errorf("unknown sort key %q", raw)
}

// Sort returns a sorted copy of records. Ties keep their fetch order.
func Sort(records []domain.Voicemail, key SortKey) []domain.Voicemail {
	sorted := make([]domain.Voicemail, len(records))
	copy(sorted, records)

	var less func(a, b domain.Voicemail) bool
	switch key {
	case SortTimeAsc:
		less = func(a, b domain.Voicemail) bool { return a.CreatedAt.Before(b.CreatedAt.Time) }
	case SortPriorityDesc:
		less = func(a, b domain.Voicemail) bool { return priority(a) < priority(b) }
	case SortPriorityAsc:
		less = func(a, b domain.Voicemail) bool { return priority(a) > priority(b) }
	default:
		less = func(a, b domain.Voicemail) bool { return a.CreatedAt.After(b.CreatedAt.Time) }
	}

	sort.SliceStable(sorted, func(i, j int) bool { return less(sorted[i], sorted[j]) })
	return sorted
}

// priority ranks a record by urgency. Urgency reported while processing is not
// trusted and ranks as absent.
func priority(record domain.Voicemail) int {
	if !record.Trusted() {
		return domain.Urgency("").Rank()
	}
	return record.Urgency.Rank()
}
