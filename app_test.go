package main

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"voicetriage/internal/bootstrap"
	"voicetriage/internal/config"
	"voicetriage/internal/devserver"
	"voicetriage/internal/domain"
	"voicetriage/internal/ports"
	"voicetriage/internal/syncstore"
	"voicetriage/pkg/logger"
)

type fakeUI struct {
	mu        sync.Mutex
	events    map[string][]interface{}
	alerts    []string
	opened    []string
	clipboard string
}

func newFakeUI() *fakeUI {
	return &fakeUI{events: make(map[string][]interface{})}
}

func (f *fakeUI) Emit(_ context.Context, event string, data interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[event] = append(f.events[event], data)
}

func (f *fakeUI) Alert(_ context.Context, title, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, title)
}

func (f *fakeUI) OpenURL(_ context.Context, url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, url)
}

func (f *fakeUI) SetClipboard(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clipboard = text
	return nil
}

func (f *fakeUI) count(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events[event])
}

func (f *fakeUI) alertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.alerts)
}

func TestSessionReasonMessage(t *testing.T) {
	t.Parallel()

	cases := map[domain.SessionStateReason]string{
		domain.SessionReasonMicCold:            "Mic cold",
		domain.SessionReasonRecordingStarted:   "Recording started",
		domain.SessionReasonUploading:          "Recording stopped. Uploading...",
		domain.SessionReasonUploaded:           "Voicemail uploaded; processing",
		domain.SessionReasonUploadFailed:       "Upload failed",
		domain.SessionReasonRecordingDiscarded: "Recording discarded",
		domain.SessionReasonNoAudio:            "No audio captured",
		domain.SessionReasonCaptureFailed:      "Microphone unavailable",
	}

	for reason, want := range cases {
		reason := reason
		want := want
		t.Run(string(reason), func(t *testing.T) {
			t.Parallel()
			if got := sessionReasonMessage(reason); got != want {
				t.Fatalf("unexpected message: %q", got)
			}
		})
	}

	if got := sessionReasonMessage("unknown"); got != "" {
		t.Fatalf("expected empty unknown reason message, got %q", got)
	}
}

func TestErrorMessage(t *testing.T) {
	t.Parallel()

	cases := map[domain.ErrorCode]string{
		domain.ErrorCodeStartup:     "Startup failed",
		domain.ErrorCodeCapture:     "Could not access microphone",
		domain.ErrorCodeNoAudio:     "No audio captured",
		domain.ErrorCodeAudioStop:   "Audio stop issue",
		domain.ErrorCodeAudioStream: "Audio streaming issue",
		domain.ErrorCodeUpload:      "Error uploading voicemail",
		domain.ErrorCodeFetch:       "Could not reach the voicemail server",
		domain.ErrorCodeClipboard:   "Clipboard write failed",
	}
	for code, want := range cases {
		code := code
		want := want
		t.Run(string(code), func(t *testing.T) {
			t.Parallel()
			if got := errorMessage(code, "ignored"); got != want {
				t.Fatalf("unexpected message: %q", got)
			}
		})
	}

	if got := errorMessage("unknown", "detail"); got != "detail" {
		t.Fatalf("expected detail fallback, got %q", got)
	}
	if got := errorMessage("unknown", ""); got != "Unknown error" {
		t.Fatalf("expected unknown fallback, got %q", got)
	}
}

func TestRequireReady(t *testing.T) {
	t.Parallel()

	app := &App{}
	if err := app.requireReady(); err == nil {
		t.Fatalf("expected uninitialized error")
	}

	bootErr := errors.New("boot")
	app.bootErr = bootErr
	if err := app.requireReady(); !errors.Is(err, bootErr) {
		t.Fatalf("expected boot error, got %v", err)
	}
}

func TestGetStatusWhenNotInitialized(t *testing.T) {
	t.Parallel()

	app := &App{}
	status := app.GetStatus()
	if status.State != domain.SessionStateIdle || status.Active {
		t.Fatalf("unexpected status: %+v", status)
	}

	app.bootErr = errors.New("boot")
	status = app.GetStatus()
	if status.State != domain.SessionStateIdle || status.Active || status.Message != "boot" {
		t.Fatalf("unexpected boot status: %+v", status)
	}
	if got := app.GetCollection(); got.State != syncstore.StateLoading || len(got.Rows) != 0 {
		t.Fatalf("unexpected collection before startup: %+v", got)
	}
	if app.GetDetail() != nil {
		t.Fatalf("expected no detail before startup")
	}
}

func TestStartupFailureRaisesAlert(t *testing.T) {
	t.Parallel()

	ui := newFakeUI()
	app := &App{ui: ui, build: func(ports.EventSink) (bootstrap.Services, error) {
		return bootstrap.Services{}, errors.New("bad config")
	}}
	app.startup(context.Background())

	if ui.count(eventError) != 1 {
		t.Fatalf("expected one error event, got %d", ui.count(eventError))
	}
	if _, err := app.StartRecording(); err == nil || err.Error() != "bad config" {
		t.Fatalf("expected boot error, got %v", err)
	}
	if info := app.GetRuntimeInfo(); info["error"] != "bad config" {
		t.Fatalf("unexpected runtime info: %+v", info)
	}

	deadline := time.Now().Add(2 * time.Second)
	for ui.alertCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected startup alert")
		}
		time.Sleep(5 * time.Millisecond)
	}
	app.shutdown(context.Background())
}

func TestSessionErrorAlertsOnlyForBlockingCodes(t *testing.T) {
	t.Parallel()

	ui := newFakeUI()
	app := &App{ctx: context.Background(), ui: ui}

	app.SessionError(domain.ErrorCodeNoAudio, "recording contained no audio")
	app.SessionError(domain.ErrorCodeFetch, "connection refused")
	app.SessionError(domain.ErrorCodeCapture, "device busy")

	if ui.count(eventError) != 3 {
		t.Fatalf("expected three error events, got %d", ui.count(eventError))
	}
	deadline := time.Now().Add(2 * time.Second)
	for ui.alertCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected capture alert")
		}
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	if ui.alertCount() != 1 {
		t.Fatalf("expected only the capture alert, got %d", ui.alertCount())
	}
}

func TestCollectionSelectionAndActions(t *testing.T) {
	ctx := context.Background()

	storage, err := devserver.OpenStorage(ctx, filepath.Join(t.TempDir(), "app.db"), logger.NewNop())
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	defer storage.Close()
	if _, err := storage.Insert(ctx, "4f3c2a1b-0000-4000-8000-000000000001", "a.wav", []byte("RIFF"), time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := storage.Resolve(ctx, "4f3c2a1b-0000-4000-8000-000000000001", devserver.Result{
		Status:     domain.StatusCompleted,
		Urgency:    domain.UrgencyYellow,
		Transcript: "My knee hurts when I run",
		Analysis:   &domain.Analysis{Summary: "Knee pain", Symptoms: "knee", PatientName: "Dana"},
	}); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, err := storage.Insert(ctx, "9a8b7c6d-0000-4000-8000-000000000002", "b.wav", []byte("RIFF"), time.Now()); err != nil {
		t.Fatalf("insert: %v", err)
	}

	server := devserver.NewServer(storage, devserver.Options{Manual: true}, logger.NewNop())
	defer server.Close()
	httpServer := httptest.NewServer(server.Routes())
	defer httpServer.Close()

	cfg := config.Default()
	cfg.API.URL = httpServer.URL

	ui := newFakeUI()
	app := &App{ui: ui, build: func(sink ports.EventSink) (bootstrap.Services, error) {
		return bootstrap.BuildWith(cfg, sink, bootstrap.Options{
			PollInterval: time.Hour,
			LogOutput:    io.Discard,
		})
	}}
	app.startup(ctx)
	defer app.shutdown(ctx)

	view, err := app.Refresh()
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if view.State != syncstore.StateReady || view.Total != 2 || len(view.Rows) != 2 {
		t.Fatalf("unexpected collection: %+v", view)
	}
	if !view.Polling {
		t.Fatalf("expected polling while a record is processing")
	}
	// newest first, so the processing record is auto-selected
	if view.SelectedID != "9a8b7c6d-0000-4000-8000-000000000002" || view.Detail == nil || !view.Detail.Processing {
		t.Fatalf("unexpected selection: %q %+v", view.SelectedID, view.Detail)
	}
	if view.Rows[0].Urgency != "" {
		t.Fatalf("processing row must not show urgency: %+v", view.Rows[0])
	}
	if err := app.OpenBooking(); err == nil {
		t.Fatalf("expected booking to be refused while processing")
	}
	if ui.count(eventCollection) == 0 {
		t.Fatalf("expected collection events")
	}

	if _, err := app.Select("missing"); err == nil {
		t.Fatalf("expected unknown id to be rejected")
	}
	d, err := app.Select("4f3c2a1b-0000-4000-8000-000000000001")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if d.Priority != domain.UrgencyYellow || d.Booking == nil {
		t.Fatalf("unexpected detail: %+v", d)
	}

	if err := app.OpenBooking(); err != nil {
		t.Fatalf("open booking: %v", err)
	}
	if len(ui.opened) != 1 || !strings.HasPrefix(ui.opened[0], cfg.Scheduling.BookingURL) {
		t.Fatalf("unexpected opened urls: %v", ui.opened)
	}
	if err := app.CopyTranscript(); err != nil {
		t.Fatalf("copy transcript: %v", err)
	}
	if ui.clipboard != "My knee hurts when I run" {
		t.Fatalf("unexpected clipboard: %q", ui.clipboard)
	}

	filtered, err := app.SetFilter("knee", "")
	if err != nil {
		t.Fatalf("set filter: %v", err)
	}
	if filtered.Total != 1 || filtered.SelectedID != "4f3c2a1b-0000-4000-8000-000000000001" {
		t.Fatalf("unexpected filtered view: %+v", filtered)
	}

	if _, err := app.SetSort("sideways"); err == nil {
		t.Fatalf("expected unknown sort key to be rejected")
	}
	sorted, err := app.SetSort("time_asc")
	if err != nil || sorted.SortKey != "time_asc" {
		t.Fatalf("unexpected sort result: %+v %v", sorted, err)
	}

	app.ClearSelection()
	if app.GetDetail() != nil {
		t.Fatalf("expected no detail after clearing selection")
	}
}
