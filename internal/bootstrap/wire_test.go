package bootstrap

import (
	"context"
	"io"
	"testing"

	"voicetriage/internal/config"
	"voicetriage/internal/domain"
)

func TestBuildSuccess(t *testing.T) {
	t.Setenv(config.FileEnv, "")
	t.Setenv("VOICETRIAGE_API_URL", "http://127.0.0.1:1/")

	services, err := Build(noopEventSink{})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if services.Controller == nil || services.Store == nil || services.View == nil {
		t.Fatalf("expected full graph: %+v", services)
	}
	if services.Backend.BaseURL() != "http://127.0.0.1:1" {
		t.Fatalf("unexpected base url %q", services.Backend.BaseURL())
	}

	opts := services.DetailOptions()
	if opts.BookingURL != config.DefaultBookingURL {
		t.Fatalf("unexpected booking url %q", opts.BookingURL)
	}
	if got := opts.AudioURL("a.wav"); got != "http://127.0.0.1:1/api/voicemails/audio/a.wav" {
		t.Fatalf("unexpected audio url %q", got)
	}
}

func TestBuildFailsOnInvalidLogLevel(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Level = "chatty"

	if _, err := BuildWith(cfg, noopEventSink{}, Options{LogOutput: io.Discard}); err == nil {
		t.Fatalf("expected build error due to invalid log level")
	}
}

func TestBuildFailsOnBadConfigFile(t *testing.T) {
	t.Setenv(config.FileEnv, "/nonexistent/voicetriage.toml")

	if _, err := Build(noopEventSink{}); err == nil {
		t.Fatalf("expected build error due to missing config file")
	}
}

func TestBuildWithoutEventSinkUsesLogger(t *testing.T) {
	services, err := BuildWith(config.Default(), nil, Options{LogOutput: io.Discard})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if services.Controller == nil {
		t.Fatalf("expected controller")
	}
}

type noopEventSink struct{}

func (noopEventSink) SessionStateChanged(_ domain.SessionState, _ domain.SessionStateReason) {}
func (noopEventSink) SessionError(_ domain.ErrorCode, _ string)                              {}

func TestStartChangeFeedDisabledByDefault(t *testing.T) {
	services, err := BuildWith(config.Default(), noopEventSink{}, Options{LogOutput: io.Discard})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if services.StartChangeFeed(context.Background()) {
		t.Fatalf("expected change feed to stay off")
	}
}
