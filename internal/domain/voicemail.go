package domain

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// VoicemailStatus is the server-side processing state of a record.
type VoicemailStatus string

const (
	StatusProcessing VoicemailStatus = "PROCESSING"
	StatusCompleted  VoicemailStatus = "COMPLETED"
	StatusFailed     VoicemailStatus = "FAILED"
)

// IsTerminal reports whether processing has finished. Unknown values are
// treated as terminal so they never keep polling alive.
func (s VoicemailStatus) IsTerminal() bool {
	return s != StatusProcessing
}

// Urgency is the triage level assigned by the backend.
type Urgency string

const (
	UrgencyRed            Urgency = "RED"
	UrgencyYellow         Urgency = "YELLOW"
	UrgencyGreen          Urgency = "GREEN"
	UrgencyNeedValidation Urgency = "NEED_VALIDATION"
)

// Rank orders urgencies from most to least urgent. Absent or unknown urgency
// ranks last.
func (u Urgency) Rank() int {
	switch u {
	case UrgencyRed:
		return 0
	case UrgencyNeedValidation:
		return 1
	case UrgencyYellow:
		return 2
	case UrgencyGreen:
		return 3
	default:
		return 4
	}
}

// Voicemail is one record as returned by GET /api/voicemails.
type Voicemail struct {
	ID         string          `json:"id"`
	Status     VoicemailStatus `json:"status"`
	Urgency    Urgency         `json:"urgency,omitempty"`
	Category   string          `json:"category,omitempty"`
	Transcript string          `json:"transcript,omitempty"`
	Analysis   *Analysis       `json:"analysis,omitempty"`
	FilePath   string          `json:"file_path"`
	CreatedAt  Timestamp       `json:"created_at"`
}

// Processing reports whether the backend is still working on the record.
func (v Voicemail) Processing() bool {
	return v.Status == StatusProcessing
}

// Trusted reports whether urgency, category, transcript and analysis may be
// used. They are ignored while the record is processing.
func (v Voicemail) Trusted() bool {
	return !v.Processing()
}

// Analysis is the structured extraction attached once processing completes.
// Any field may be empty.
type Analysis struct {
	Summary         string   `json:"summary,omitempty"`
	Symptoms        string   `json:"symptoms,omitempty"`
	AppointmentTime string   `json:"appointment_time,omitempty"`
	PatientName     string   `json:"patient_name,omitempty"`
	Intent          string   `json:"intent,omitempty"`
	TreatmentMode   string   `json:"treatment_mode,omitempty"`
	VisitType       string   `json:"visit_type,omitempty"`
	ReferralPlan    Flag     `json:"referral_plan,omitempty"`
	MissingInfo     []string `json:"missing_info,omitempty"`
	BookingURL      string   `json:"booking_url,omitempty"`
}

// AnyProcessing reports whether at least one record is still processing.
func AnyProcessing(records []Voicemail) bool {
	for _, record := range records {
		if record.Processing() {
			return true
		}
	}
	return false
}

// Flag decodes loosely typed booleans: true/false, non-empty strings, or null.
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case bytes.Equal(trimmed, []byte("null")):
		*f = false
		return nil
	case bytes.Equal(trimmed, []byte("true")):
		*f = true
		return nil
	case bytes.Equal(trimmed, []byte("false")):
		*f = false
		return nil
	}

	var text string
	if err := json.Unmarshal(trimmed, &text); err != nil {
		*f = false
		return nil
	}
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "", "false", "no", "none", "0":
		*f = false
	default:
		*f = true
	}
	return nil
}

// timestampLayouts covers RFC3339 and the backend's str(datetime) format.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02",
}

// Timestamp keeps the raw created_at text alongside its parsed value.
// Unparseable input yields the zero time instead of failing the decode.
type Timestamp struct {
	time.Time
	Raw string
}

// NewTimestamp wraps t using RFC3339 as the raw form.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t, Raw: t.Format(time.RFC3339Nano)}
}

// ParseTimestamp parses any supported layout.
func ParseTimestamp(raw string) Timestamp {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return Timestamp{Time: parsed, Raw: raw}
		}
	}
	return Timestamp{Raw: raw}
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		*t = Timestamp{}
		return nil
	}
	*t = ParseTimestamp(raw)
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.Raw != "" {
		return json.Marshal(t.Raw)
	}
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}
