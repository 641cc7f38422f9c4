package view

import (
	"strings"

	"voicetriage/internal/domain"
)

// Filter narrows the view. The zero value matches everything.
type Filter struct {
	Text    string         `json:"text"`
	Urgency domain.Urgency `json:"urgency,omitempty"`
}

// IsZero reports whether the filter matches every record.
func (f Filter) IsZero() bool {
	return strings.TrimSpace(f.Text) == "" && f.Urgency == ""
}

// Match reports whether record passes the filter. Text matches
// case-insensitively against the id and, once processing has finished, the
// transcript, urgency, category and analysis fields.
func (f Filter) Match(record domain.Voicemail) bool {
	if f.Urgency != "" {
		if !record.Trusted() || record.Urgency != f.Urgency {
			return false
		}
	}

	needle := strings.ToLower(strings.TrimSpace(f.Text))
	if needle == "" {
		return true
	}
	for _, field := range searchable(record) {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

// Apply returns the records that pass the filter, preserving order.
func (f Filter) Apply(records []domain.Voicemail) []domain.Voicemail {
	matched := make([]domain.Voicemail, 0, len(records))
	for _, record := range records {
		if f.Match(record) {
			matched = append(matched, record)
		}
	}
	return matched
}

func searchable(record domain.Voicemail) []string {
	fields := []string{record.ID}
	if !record.Trusted() {
		return fields
	}
	fields = append(fields, record.Transcript, string(record.Urgency), record.Category)
	if analysis := record.Analysis; analysis != nil {
		fields = append(fields,
			analysis.Summary,
			analysis.Intent,
			analysis.PatientName,
			analysis.Symptoms,
		)
	}
	return fields
}
