package detail

import (
	"time"

	"voicetriage/internal/domain"
)

const (
	// DefaultBookingURL is used when neither the record nor the configuration
	// names a scheduling page.
	DefaultBookingURL = "https://calendly.com"

	UnknownIntent    = "Unknown Intent"
	ExtractionFailed = "Extraction Failed"
	ProcessingLabel  = "Processing..."

	placeholderNA           = "N/A"
	placeholderNotMentioned = "Not mentioned"
	referralMentioned       = "Yes, mentioned"
	referralAbsent          = "No"
)

// Options carries the configuration the renderer needs.
type Options struct {
	BookingURL   string
	PrefillEmail string
	AudioURL     func(filePath string) string
}

// Field is one labelled extracted value. Missing fields carry a placeholder.
type Field struct {
	Label   string `json:"label"`
	Value   string `json:"value"`
	Missing bool   `json:"missing,omitempty"`
}

// Prefill seeds the scheduling widget.
type Prefill struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Booking is the input of the scheduling widget.
type Booking struct {
	URL     string  `json:"url"`
	Prefill Prefill `json:"prefill"`
}

// Detail is the presentation model of one record.
type Detail struct {
	ID          string                 `json:"id"`
	ShortID     string                 `json:"shortId"`
	Title       string                 `json:"title"`
	Status      domain.VoicemailStatus `json:"status"`
	Processing  bool                   `json:"processing"`
	Priority    domain.Urgency         `json:"priority,omitempty"`
	Category    string                 `json:"category,omitempty"`
	Summary     string                 `json:"summary"`
	MissingInfo []string               `json:"missingInfo,omitempty"`
	Fields      []Field                `json:"fields,omitempty"`
	Referral    bool                   `json:"referral"`
	AudioURL    string                 `json:"audioUrl,omitempty"`
	Transcript  []Segment              `json:"transcript,omitempty"`
	Booking     *Booking               `json:"booking,omitempty"`
	CreatedAt   time.Time              `json:"createdAt"`
}

// Build renders record. Analysis-derived values are left out while the record
// is processing.
func Build(record domain.Voicemail, opts Options) Detail {
	d := Detail{
		ID:         record.ID,
		ShortID:    ShortID(record.ID),
		Title:      UnknownIntent,
		Status:     record.Status,
		Processing: record.Processing(),
		Summary:    RowSummary(record),
		CreatedAt:  record.CreatedAt.Time,
	}
	if opts.AudioURL != nil && record.FilePath != "" {
		d.AudioURL = opts.AudioURL(record.FilePath)
	}
	if !record.Trusted() {
		return d
	}

	analysis := domain.Analysis{}
	if record.Analysis != nil {
		analysis = *record.Analysis
	}

	if analysis.Intent != "" {
		d.Title = analysis.Intent
	}
	d.Priority = record.Urgency
	d.Category = record.Category
	d.MissingInfo = append([]string(nil), analysis.MissingInfo...)
	d.Referral = bool(analysis.ReferralPlan)
	d.Fields = []Field{
		field("Time", analysis.AppointmentTime, placeholderNA),
		field("Symptoms", analysis.Symptoms, placeholderNA),
		field("Patient", analysis.PatientName, placeholderNotMentioned),
		field("Mode", analysis.TreatmentMode, placeholderNA),
		field("Type", analysis.VisitType, placeholderNA),
		referralField(d.Referral),
	}
	d.Transcript = Highlight(record.Transcript, highlightTerms(analysis))
	d.Booking = &Booking{
		URL: bookingURL(analysis.BookingURL, opts.BookingURL),
		Prefill: Prefill{
			Name:  analysis.PatientName,
			Email: opts.PrefillEmail,
		},
	}
	return d
}

// RowSummary is the one-line summary shown in the collection view.
func RowSummary(record domain.Voicemail) string {
	if record.Status == domain.StatusFailed || (record.Status == domain.StatusCompleted && record.Transcript == "") {
		return ExtractionFailed
	}
	if record.Trusted() && record.Analysis != nil && record.Analysis.Summary != "" {
		return record.Analysis.Summary
	}
	return ProcessingLabel
}

// ShortID is the first eight characters of id.
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func field(label, value, placeholder string) Field {
	if value == "" {
		return Field{Label: label, Value: placeholder, Missing: true}
	}
	return Field{Label: label, Value: value}
}

func referralField(mentioned bool) Field {
	if mentioned {
		return Field{Label: "Referral", Value: referralMentioned}
	}
	return Field{Label: "Referral", Value: referralAbsent, Missing: true}
}

func bookingURL(recordURL, configured string) string {
	switch {
	case recordURL != "":
		return recordURL
	case configured != "":
		return configured
	default:
		return DefaultBookingURL
	}
}

func highlightTerms(analysis domain.Analysis) []string {
	terms := []string{
		analysis.Symptoms,
		analysis.AppointmentTime,
		analysis.PatientName,
		analysis.Intent,
		analysis.TreatmentMode,
		analysis.VisitType,
	}
	if analysis.ReferralPlan {
		terms = append(terms, "referral")
	}
	return terms
}
