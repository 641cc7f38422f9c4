package main

import (
	"time"

	"voicetriage/internal/detail"
	"voicetriage/internal/domain"
	"voicetriage/internal/syncstore"
	"voicetriage/internal/view"
)

// Row is one line of the voicemail list.
type Row struct {
	ID         string                 `json:"id"`
	ShortID    string                 `json:"shortId"`
	Status     domain.VoicemailStatus `json:"status"`
	Urgency    domain.Urgency         `json:"urgency,omitempty"`
	Summary    string                 `json:"summary"`
	Processing bool                   `json:"processing"`
	Selected   bool                   `json:"selected"`
	CreatedAt  time.Time              `json:"createdAt"`
}

// CollectionView is the list panel payload pushed on every fetch.
type CollectionView struct {
	State      syncstore.LoadState `json:"state"`
	Error      string              `json:"error,omitempty"`
	Fetching   bool                `json:"fetching"`
	Polling    bool                `json:"polling"`
	FetchedAt  time.Time           `json:"fetchedAt"`
	SortKey    view.SortKey        `json:"sortKey"`
	Filter     view.Filter         `json:"filter"`
	Rows       []Row               `json:"rows"`
	Total      int                 `json:"total"`
	SelectedID string              `json:"selectedId,omitempty"`
	Detail     *detail.Detail      `json:"detail,omitempty"`
}

func (a *App) collectionView(snapshot syncstore.Snapshot) CollectionView {
	rendered := a.services.View.Render(snapshot.Records)
	out := CollectionView{
		State:      snapshot.State,
		Fetching:   snapshot.Fetching,
		Polling:    snapshot.Polling,
		FetchedAt:  snapshot.FetchedAt,
		SortKey:    rendered.SortKey,
		Filter:     rendered.Filter,
		Rows:       make([]Row, 0, len(rendered.Rows)),
		Total:      rendered.Total,
		SelectedID: rendered.SelectedID,
	}
	if snapshot.Err != nil {
		out.Error = snapshot.Err.Error()
	}
	for _, record := range rendered.Rows {
		row := Row{
			ID:         record.ID,
			ShortID:    detail.ShortID(record.ID),
			Status:     record.Status,
			Summary:    detail.RowSummary(record),
			Processing: record.Processing(),
			Selected:   record.ID == rendered.SelectedID,
			CreatedAt:  record.CreatedAt.Time,
		}
		if record.Trusted() {
			row.Urgency = record.Urgency
		}
		out.Rows = append(out.Rows, row)
	}
	if rendered.Selected != nil {
		d := detail.Build(*rendered.Selected, a.services.DetailOptions())
		out.Detail = &d
	}
	return out
}
