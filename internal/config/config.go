package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const (
	// FileEnv names an optional TOML or YAML configuration file.
	FileEnv = "VOICETRIAGE_CONFIG"

	DefaultAPIURL     = "http://localhost:8000"
	DefaultBookingURL = "https://calendly.com"
)

// Config stores runtime configuration for the client, the CLI and the dev
// server.
type Config struct {
	API        APIConfig        `toml:"api" yaml:"api"`
	Audio      AudioConfig      `toml:"audio" yaml:"audio"`
	Session    SessionConfig    `toml:"session" yaml:"session"`
	Scheduling SchedulingConfig `toml:"scheduling" yaml:"scheduling"`
	Log        LogConfig        `toml:"log" yaml:"log"`
	DevServer  DevServerConfig  `toml:"devserver" yaml:"devserver"`
}

type APIConfig struct {
	URL       string `toml:"url" yaml:"url"`
	TimeoutMS int    `toml:"timeout_ms" yaml:"timeout_ms"`
	// ChangeFeed subscribes to the backend's websocket change notices in
	// addition to polling.
	ChangeFeed bool `toml:"change_feed" yaml:"change_feed"`
}

func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

type AudioConfig struct {
	RecorderCommand string `toml:"ffmpeg_command" yaml:"ffmpeg_command"`
	InputFormat     string `toml:"input_format" yaml:"input_format"`
	InputDevice     string `toml:"input_device" yaml:"input_device"`
	SampleRate      int    `toml:"sample_rate" yaml:"sample_rate"`
	Channels        int    `toml:"channels" yaml:"channels"`
}

type SessionConfig struct {
	ChunkSize int `toml:"chunk_size" yaml:"chunk_size"`
}

type SchedulingConfig struct {
	BookingURL   string `toml:"booking_url" yaml:"booking_url"`
	PrefillEmail string `toml:"prefill_email" yaml:"prefill_email"`
}

type LogConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

type DevServerConfig struct {
	Addr              string   `toml:"addr" yaml:"addr"`
	DatabasePath      string   `toml:"database" yaml:"database"`
	ProcessingDelayMS int      `toml:"processing_delay_ms" yaml:"processing_delay_ms"`
	AllowedOrigins    []string `toml:"allowed_origins" yaml:"allowed_origins"`
}

func (c DevServerConfig) ProcessingDelay() time.Duration {
	return time.Duration(c.ProcessingDelayMS) * time.Millisecond
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		API: APIConfig{
			URL:       DefaultAPIURL,
			TimeoutMS: 15000,
		},
		Audio: AudioConfig{
			RecorderCommand: "ffmpeg",
			InputFormat:     "pulse",
			InputDevice:     "default",
			SampleRate:      16000,
			Channels:        1,
		},
		Session: SessionConfig{
			ChunkSize: 4096,
		},
		Scheduling: SchedulingConfig{
			BookingURL:   DefaultBookingURL,
			PrefillEmail: "patient@example.com",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		DevServer: DevServerConfig{
			Addr:              "127.0.0.1:8000",
			DatabasePath:      "voicetriage-dev.db",
			ProcessingDelayMS: 3000,
		},
	}
}

// Load resolves configuration from defaults, the optional file named by
// VOICETRIAGE_CONFIG and then environment variables.
func Load() (Config, error) {
	cfg := Default()

	if path := strings.TrimSpace(os.Getenv(FileEnv)); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	cfg.API.URL = envOrDefault("VOICETRIAGE_API_URL", cfg.API.URL)
	cfg.API.TimeoutMS = envOrDefaultInt("VOICETRIAGE_API_TIMEOUT_MS", cfg.API.TimeoutMS)
	cfg.API.ChangeFeed = envOrDefaultBool("VOICETRIAGE_API_CHANGE_FEED", cfg.API.ChangeFeed)

	cfg.Audio.RecorderCommand = envOrDefault("VOICETRIAGE_FFMPEG_COMMAND", cfg.Audio.RecorderCommand)
	cfg.Audio.InputFormat = envOrDefault("VOICETRIAGE_AUDIO_INPUT_FORMAT", cfg.Audio.InputFormat)
	cfg.Audio.InputDevice = firstNonEmpty(
		os.Getenv("VOICETRIAGE_AUDIO_INPUT_DEVICE"),
		os.Getenv("PULSE_SOURCE"),
		cfg.Audio.InputDevice,
	)
	cfg.Audio.SampleRate = envOrDefaultInt("VOICETRIAGE_SAMPLE_RATE", cfg.Audio.SampleRate)
	cfg.Audio.Channels = envOrDefaultInt("VOICETRIAGE_CHANNELS", cfg.Audio.Channels)
	cfg.Session.ChunkSize = envOrDefaultInt("VOICETRIAGE_AUDIO_CHUNK_SIZE", cfg.Session.ChunkSize)

	cfg.Scheduling.BookingURL = envOrDefault("VOICETRIAGE_BOOKING_URL", cfg.Scheduling.BookingURL)
	cfg.Scheduling.PrefillEmail = envOrDefault("VOICETRIAGE_PREFILL_EMAIL", cfg.Scheduling.PrefillEmail)

	cfg.Log.Level = envOrDefault("VOICETRIAGE_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = envOrDefault("VOICETRIAGE_LOG_FORMAT", cfg.Log.Format)

	cfg.DevServer.Addr = envOrDefault("VOICETRIAGE_DEVSERVER_ADDR", cfg.DevServer.Addr)
	cfg.DevServer.DatabasePath = envOrDefault("VOICETRIAGE_DEVSERVER_DB", cfg.DevServer.DatabasePath)
	cfg.DevServer.ProcessingDelayMS = envOrDefaultInt("VOICETRIAGE_DEVSERVER_PROCESSING_DELAY_MS", cfg.DevServer.ProcessingDelayMS)
	if origins := strings.TrimSpace(os.Getenv("VOICETRIAGE_DEVSERVER_ALLOWED_ORIGINS")); origins != "" {
		cfg.DevServer.AllowedOrigins = splitList(origins)
	}

	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	defaults := Default()

	c.API.URL = strings.TrimRight(strings.TrimSpace(c.API.URL), "/")
	if c.API.URL == "" {
		c.API.URL = defaults.API.URL
	}
	if c.API.TimeoutMS <= 0 {
		c.API.TimeoutMS = defaults.API.TimeoutMS
	}
	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = defaults.Audio.SampleRate
	}
	if c.Audio.Channels <= 0 {
		c.Audio.Channels = defaults.Audio.Channels
	}
	if c.Session.ChunkSize < 256 {
		c.Session.ChunkSize = defaults.Session.ChunkSize
	}
	if strings.TrimSpace(c.Scheduling.BookingURL) == "" {
		c.Scheduling.BookingURL = defaults.Scheduling.BookingURL
	}
	if c.DevServer.ProcessingDelayMS <= 0 {
		c.DevServer.ProcessingDelayMS = defaults.DevServer.ProcessingDelayMS
	}
}

func loadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(raw), cfg); err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
