package view

import (
	"sync"

	"voicetriage/internal/domain"
	"voicetriage/pkg/logger"
)

// State owns the sort key, the filter and the selected record id. It never
// holds records; every derived view is computed from the collection passed in.
type State struct {
	logger *logger.Logger

	mu         sync.Mutex
	sortKey    SortKey
	filter     Filter
	selectedID string
}

// Rendered is the derived view of one collection.
type Rendered struct {
	SortKey    SortKey            `json:"sortKey"`
	Filter     Filter             `json:"filter"`
	Rows       []domain.Voicemail `json:"rows"`
	Total      int                `json:"total"`
	SelectedID string             `json:"selectedId,omitempty"`
	Selected   *domain.Voicemail  `json:"selected,omitempty"`
}

func NewState(log *logger.Logger) *State {
	if log == nil {
		log = logger.NewNop()
	}
	return &State{
		logger:  log.Named("view"),
		sortKey: DefaultSortKey,
	}
}

func (s *State) SortKey() SortKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortKey
}

// SetSort changes the view order. The selection is left untouched.
func (s *State) SetSort(key SortKey) error {
	key, err := ParseSortKey(string(key))
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.sortKey = key
	s.mu.Unlock()
	return nil
}

func (s *State) Filter() Filter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

func (s *State) SetFilter(filter Filter) {
	s.mu.Lock()
	s.filter = filter
	s.mu.Unlock()
}

// Select marks id as the open record.
func (s *State) Select(id string) {
	s.mu.Lock()
	s.selectedID = id
	s.mu.Unlock()
}

// Clear removes the selection.
func (s *State) Clear() {
	s.mu.Lock()
	s.selectedID = ""
	s.mu.Unlock()
}

func (s *State) SelectedID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedID
}

// Reconcile runs after every collection refresh. A selection that no longer
// exists is dropped; with nothing selected the first row of the current view
// is selected. It returns the resulting selection.
func (s *State) Reconcile(records []domain.Voicemail) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selectedID != "" && indexOf(records, s.selectedID) < 0 {
		s.logger.Debug("selected record vanished", logger.String("id", s.selectedID))
		s.selectedID = ""
	}
	if s.selectedID == "" {
		rows := s.rowsLocked(records)
		if len(rows) > 0 {
			s.selectedID = rows[0].ID
		}
	}
	return s.selectedID
}

// Render derives the ordered, filtered rows and resolves the selection. A
// selection missing from records renders as no selection.
func (s *State) Render(records []domain.Voicemail) Rendered {
	s.mu.Lock()
	defer s.mu.Unlock()

	rendered := Rendered{
		SortKey: s.sortKey,
		Filter:  s.filter,
		Rows:    s.rowsLocked(records),
		Total:   len(records),
	}
	if i := indexOf(records, s.selectedID); i >= 0 {
		selected := records[i]
		rendered.SelectedID = selected.ID
		rendered.Selected = &selected
	}
	return rendered
}

func (s *State) rowsLocked(records []domain.Voicemail) []domain.Voicemail {
	return Sort(s.filter.Apply(records), s.sortKey)
}

func indexOf(records []domain.Voicemail, id string) int {
	if id == "" {
		return -1
	}
	for i := range records {
		if records[i].ID == id {
			return i
		}
	}
	return -1
}
