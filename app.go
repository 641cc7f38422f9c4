package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"voicetriage/internal/bootstrap"
	"voicetriage/internal/detail"
	"voicetriage/internal/domain"
	"voicetriage/internal/ports"
	"voicetriage/internal/syncstore"
	"voicetriage/internal/usecase"
	"voicetriage/internal/view"
	"voicetriage/pkg/logger"
)

const (
	eventSession    = "voicetriage:session"
	eventCollection = "voicetriage:collection"
	eventError      = "voicetriage:error"
)

// App is the Wails application root.
type App struct {
	ctx   context.Context
	ui    uiRuntime
	build func(ports.EventSink) (bootstrap.Services, error)

	services bootstrap.Services
	ready    bool
	bootErr  error

	mu        sync.Mutex
	lastState syncstore.LoadState
}

func NewApp() *App {
	return &App{ui: wailsRuntime{}, build: bootstrap.Build}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := a.build(a)
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.services = services
	a.ready = true
	services.Store.OnChange(a.collectionChanged)
	services.Store.Start(ctx)
	services.StartChangeFeed(ctx)
	a.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonMicCold)
}

func (a *App) shutdown(_ context.Context) {
	if !a.ready {
		return
	}
	if err := a.services.Controller.Abort(); err != nil && !errors.Is(err, usecase.ErrNoActiveSession) {
		a.services.Logger.Warn("abort on shutdown failed", logger.Error(err))
	}
	a.services.Store.Stop()
	_ = a.services.Logger.Sync()
}

// StartRecording opens the microphone.
func (a *App) StartRecording() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.services.Controller.Start(a.ctx); err != nil {
		if errors.Is(err, usecase.ErrRecordingInProgress) {
			a.SessionError(domain.ErrorCodeCapture, err.Error())
		}
		return a.services.Controller.Status(), err
	}
	return a.services.Controller.Status(), nil
}

// StopRecording finalizes the recording and uploads it.
func (a *App) StopRecording() (domain.StopResult, error) {
	if err := a.requireReady(); err != nil {
		return domain.StopResult{}, err
	}
	return a.services.Controller.Stop(a.ctx)
}

// AbortRecording discards an in-progress recording.
func (a *App) AbortRecording() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if err := a.services.Controller.Abort(); err != nil {
		if errors.Is(err, usecase.ErrNoActiveSession) {
			return nil
		}
		return err
	}
	return nil
}

// GetStatus returns the current recording status.
func (a *App) GetStatus() domain.Status {
	if !a.ready {
		if a.bootErr != nil {
			return domain.Status{State: domain.SessionStateIdle, Active: false, Message: a.bootErr.Error()}
		}
		return domain.Status{State: domain.SessionStateIdle, Active: false}
	}
	return a.services.Controller.Status()
}

// Refresh fetches the collection now and returns the resulting view.
func (a *App) Refresh() (CollectionView, error) {
	if err := a.requireReady(); err != nil {
		return CollectionView{}, err
	}
	err := a.services.Store.Fetch(a.ctx)
	return a.GetCollection(), err
}

// GetCollection returns the current sorted and filtered view.
func (a *App) GetCollection() CollectionView {
	if !a.ready {
		return CollectionView{State: syncstore.StateLoading, Rows: []Row{}}
	}
	return a.collectionView(a.services.Store.Snapshot())
}

// SetSort changes the view order.
func (a *App) SetSort(key string) (CollectionView, error) {
	if err := a.requireReady(); err != nil {
		return CollectionView{}, err
	}
	sortKey, err := view.ParseSortKey(key)
	if err != nil {
		return a.GetCollection(), err
	}
	if err := a.services.View.SetSort(sortKey); err != nil {
		return a.GetCollection(), err
	}
	return a.GetCollection(), nil
}

// SetFilter narrows the view by text and urgency. Empty values match all.
func (a *App) SetFilter(text string, urgency string) (CollectionView, error) {
	if err := a.requireReady(); err != nil {
		return CollectionView{}, err
	}
	a.services.View.SetFilter(view.Filter{Text: text, Urgency: domain.Urgency(urgency)})
	return a.GetCollection(), nil
}

// Select opens a record and returns its detail.
func (a *App) Select(id string) (detail.Detail, error) {
	if err := a.requireReady(); err != nil {
		return detail.Detail{}, err
	}
	record, ok := a.findRecord(id)
	if !ok {
		return detail.Detail{}, fmt.Errorf("voicemail %s not found", id)
	}
	a.services.View.Select(id)
	return detail.Build(record, a.services.DetailOptions()), nil
}

// ClearSelection closes the detail panel.
func (a *App) ClearSelection() {
	if !a.ready {
		return
	}
	a.services.View.Clear()
}

// GetDetail returns the selected record's detail, or nil when nothing is
// selected.
func (a *App) GetDetail() *detail.Detail {
	if !a.ready {
		return nil
	}
	record, ok := a.selectedRecord()
	if !ok {
		return nil
	}
	d := detail.Build(record, a.services.DetailOptions())
	return &d
}

// OpenBooking opens the selected record's scheduling page in the browser.
func (a *App) OpenBooking() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	d := a.GetDetail()
	if d == nil {
		return errors.New("no voicemail selected")
	}
	if d.Booking == nil {
		return errors.New("voicemail is still processing")
	}
	a.ui.OpenURL(a.ctx, d.Booking.URL)
	return nil
}

// CopyTranscript copies the selected record's transcript to the clipboard.
func (a *App) CopyTranscript() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	record, ok := a.selectedRecord()
	if !ok {
		return errors.New("no voicemail selected")
	}
	if !record.Trusted() || record.Transcript == "" {
		return errors.New("no transcript available")
	}
	if err := a.ui.SetClipboard(a.ctx, record.Transcript); err != nil {
		a.SessionError(domain.ErrorCodeClipboard, err.Error())
		return err
	}
	return nil
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}
	if !a.ready {
		return map[string]string{}
	}

	cfg := a.services.Config
	return map[string]string{
		"apiUrl":           cfg.API.URL,
		"bookingUrl":       cfg.Scheduling.BookingURL,
		"audioInput":       cfg.Audio.InputDevice,
		"audioInputFormat": cfg.Audio.InputFormat,
		"pollInterval":     syncstore.DefaultPollInterval.String(),
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if !a.ready {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

func (a *App) findRecord(id string) (domain.Voicemail, bool) {
	for _, record := range a.services.Store.Snapshot().Records {
		if record.ID == id {
			return record, true
		}
	}
	return domain.Voicemail{}, false
}

func (a *App) selectedRecord() (domain.Voicemail, bool) {
	rendered := a.services.View.Render(a.services.Store.Snapshot().Records)
	if rendered.Selected == nil {
		return domain.Voicemail{}, false
	}
	return *rendered.Selected, true
}

// collectionChanged pushes every fetch outcome to the frontend. A fetch error
// is reported once when the store enters the error state.
func (a *App) collectionChanged(snapshot syncstore.Snapshot, _ []syncstore.Change) {
	a.mu.Lock()
	entered := snapshot.State == syncstore.StateError && a.lastState != syncstore.StateError
	a.lastState = snapshot.State
	a.mu.Unlock()

	if entered && snapshot.Err != nil {
		a.SessionError(domain.ErrorCodeFetch, snapshot.Err.Error())
	}
	if a.ctx == nil {
		return
	}
	a.ui.Emit(a.ctx, eventCollection, a.collectionView(snapshot))
}

// SessionStateChanged emits session lifecycle updates to the frontend.
func (a *App) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	if a.ctx == nil {
		return
	}
	a.ui.Emit(a.ctx, eventSession, map[string]string{
		"state":   string(state),
		"reason":  string(reason),
		"message": sessionReasonMessage(reason),
	})
}

// SessionError emits errors to the UI. Capture and upload failures also raise
// a dialog.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	message := errorMessage(code, detail)
	a.ui.Emit(a.ctx, eventError, map[string]string{
		"code":    string(code),
		"message": message,
		"detail":  detail,
	})
	switch code {
	case domain.ErrorCodeCapture, domain.ErrorCodeUpload, domain.ErrorCodeStartup:
		go a.ui.Alert(a.ctx, message, detail)
	}
}

func sessionReasonMessage(reason domain.SessionStateReason) string {
	switch reason {
	case domain.SessionReasonMicCold:
		return "Mic cold"
	case domain.SessionReasonRecordingStarted:
		return "Recording started"
	case domain.SessionReasonUploading:
		return "Recording stopped. Uploading..."
	case domain.SessionReasonUploaded:
		return "Voicemail uploaded; processing"
	case domain.SessionReasonUploadFailed:
		return "Upload failed"
	case domain.SessionReasonRecordingDiscarded:
		return "Recording discarded"
	case domain.SessionReasonNoAudio:
		return "No audio captured"
	case domain.SessionReasonCaptureFailed:
		return "Microphone unavailable"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeCapture:
		return "Could not access microphone"
	case domain.ErrorCodeNoAudio:
		return "No audio captured"
	case domain.ErrorCodeAudioStop:
		return "Audio stop issue"
	case domain.ErrorCodeAudioStream:
		return "Audio streaming issue"
	case domain.ErrorCodeUpload:
		return "Error uploading voicemail"
	case domain.ErrorCodeFetch:
		return "Could not reach the voicemail server"
	case domain.ErrorCodeClipboard:
		return "Clipboard write failed"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
