package bootstrap

import (
	"context"
	"fmt"
	"io"
	"time"

	"voicetriage/internal/audio"
	"voicetriage/internal/backend"
	"voicetriage/internal/config"
	"voicetriage/internal/detail"
	"voicetriage/internal/ports"
	"voicetriage/internal/syncstore"
	"voicetriage/internal/usecase"
	"voicetriage/internal/view"
	"voicetriage/pkg/logger"
)

// Services is the assembled runtime graph.
type Services struct {
	Config     config.Config
	Logger     *logger.Logger
	Backend    *backend.Client
	Store      *syncstore.Store
	Uploader   *usecase.Uploader
	Controller *usecase.CaptureController
	View       *view.State
}

// Options replaces parts of the graph, mainly for tests.
type Options struct {
	Audio        ports.AudioCapture
	PollInterval time.Duration
	LogOutput    io.Writer
}

// Build wires all dependencies from the loaded configuration.
func Build(eventSink ports.EventSink) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}
	return BuildWith(cfg, eventSink, Options{})
}

// BuildWith wires all dependencies for cfg. The view state is reconciled after
// every fetch.
func BuildWith(cfg config.Config, eventSink ports.EventSink, opts Options) (Services, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: opts.LogOutput,
	})
	if err != nil {
		return Services{}, fmt.Errorf("init logger: %w", err)
	}
	if eventSink == nil {
		eventSink = NewLogEventSink(log)
	}

	client := backend.NewClient(cfg.API.URL, cfg.API.Timeout(), log)
	store := syncstore.New(client, syncstore.Config{PollInterval: opts.PollInterval}, log)
	viewState := view.NewState(log)
	store.OnChange(func(snapshot syncstore.Snapshot, _ []syncstore.Change) {
		viewState.Reconcile(snapshot.Records)
	})

	capture := opts.Audio
	if capture == nil {
		capture = audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand, log)
	}

	uploader := usecase.NewUploader(client, store, log)
	controller := usecase.NewCaptureController(
		capture,
		uploader,
		eventSink,
		usecase.Config{
			Audio: ports.AudioConfig{
				SampleRate:  cfg.Audio.SampleRate,
				Channels:    cfg.Audio.Channels,
				InputFormat: cfg.Audio.InputFormat,
				InputDevice: cfg.Audio.InputDevice,
			},
			ChunkSize: cfg.Session.ChunkSize,
		},
		log,
	)

	return Services{
		Config:     cfg,
		Logger:     log,
		Backend:    client,
		Store:      store,
		Uploader:   uploader,
		Controller: controller,
		View:       viewState,
	}, nil
}

// StartChangeFeed follows the backend's change notices until ctx ends when the
// feed is enabled. Polling runs either way.
func (s Services) StartChangeFeed(ctx context.Context) bool {
	if !s.Config.API.ChangeFeed {
		return false
	}
	go s.Backend.WatchChanges(ctx, s.Store, backend.DefaultRedialDelay)
	return true
}

// DetailOptions configures the detail renderer for this graph.
func (s Services) DetailOptions() detail.Options {
	return detail.Options{
		BookingURL:   s.Config.Scheduling.BookingURL,
		PrefillEmail: s.Config.Scheduling.PrefillEmail,
		AudioURL:     s.Backend.AudioURL,
	}
}
