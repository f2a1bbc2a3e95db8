// Package config centralizes all application configuration into typed structs.
//
// Go Learning Note — Configuration Management:
// Go projects typically manage configuration in one of these ways:
//  1. Struct literals with defaults (the baseline here)
//  2. Environment variables, optionally loaded from a .env file via
//     "github.com/joho/godotenv" (layered on top for deployment overrides)
//  3. Config files (YAML/TOML) via "github.com/spf13/viper"
//  4. Command-line flags via the standard "flag" package
//
// Using typed structs (not raw strings/maps) gives you compile-time safety
// and IDE autocompletion. This is strongly preferred in Go over untyped config.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the top-level configuration container. Grouping related settings
// into sub-structs keeps the config organized as the application grows.
type Config struct {
	Server     ServerConfig
	Marker     MarkerConfig
	Visibility VisibilityConfig
	Reveal     RevealConfig
	Mount      MountConfig
	Label      LabelConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// MarkerConfig describes the rendered marker sprite. The overscan margins of
// the visibility polygon are derived from these dimensions, so they must match
// what the client actually draws.
type MarkerConfig struct {
	Width  float64
	Height float64
	// TopOverscan is the fixed top margin in pixels (markers are anchored
	// above their coordinate, so the top needs far less slack than the
	// bottom).
	TopOverscan float64
}

// VisibilityConfig controls the refresh scheduler's debouncing.
//
// Go Learning Note — time.Duration:
// Go uses time.Duration (an int64 of nanoseconds) instead of raw integers for
// timeouts and intervals. This prevents unit confusion — you write
// "80 * time.Millisecond" which is self-documenting, rather than guessing
// whether "80" means seconds, milliseconds, or something else.
type VisibilityConfig struct {
	MovingDebounce time.Duration // refresh delay while the camera is moving
	IdleDebounce   time.Duration // refresh delay once the camera settles
}

// RevealConfig controls marker fade-in behavior.
type RevealConfig struct {
	ChunkSize           int           // markers per stagger chunk in a reveal wave
	Stagger             time.Duration // per-position delay step within a chunk
	Duration            time.Duration // opacity fade duration
	ReentryHold         time.Duration // reveal delay while the map is moving
	RecentlyMovedWindow time.Duration // trailing window after the last movement
}

// MountConfig controls the marker mount batcher.
type MountConfig struct {
	InitialBatch      int
	BatchIncrement    int
	FrameInterval     time.Duration
	DeferPollInterval time.Duration
}

// LabelConfig controls the discretized label fade.
type LabelConfig struct {
	Steps        int
	StepInterval time.Duration
	SourceID     string
}

// NewDefaultConfig returns a Config populated with the tuned defaults.
//
// Go Learning Note — Constructor Functions:
// Go has no constructors. By convention, New<Type>() functions serve the same
// purpose. They return a pointer (*Config) so the caller gets a reference to
// shared state rather than a copy.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Marker: MarkerConfig{
			Width:       24,
			Height:      32,
			TopOverscan: 8,
		},
		Visibility: VisibilityConfig{
			MovingDebounce: 80 * time.Millisecond,
			IdleDebounce:   120 * time.Millisecond,
		},
		Reveal: RevealConfig{
			ChunkSize:           4,
			Stagger:             12 * time.Millisecond,
			Duration:            180 * time.Millisecond,
			ReentryHold:         48 * time.Millisecond,
			RecentlyMovedWindow: 250 * time.Millisecond,
		},
		Mount: MountConfig{
			InitialBatch:      4,
			BatchIncrement:    2,
			FrameInterval:     16 * time.Millisecond,
			DeferPollInterval: 100 * time.Millisecond,
		},
		Label: LabelConfig{
			Steps:        5,
			StepInterval: 30 * time.Millisecond,
			SourceID:     "result-labels",
		},
	}
}

// Load returns the defaults with environment overrides applied. A .env file
// in the working directory is loaded first if present; a missing file is not
// an error.
func Load() *Config {
	_ = godotenv.Load()

	cfg := NewDefaultConfig()
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Port = ":" + port
	}
	overrideFloat("MARKER_WIDTH", &cfg.Marker.Width)
	overrideFloat("MARKER_HEIGHT", &cfg.Marker.Height)
	overrideFloat("MARKER_TOP_OVERSCAN", &cfg.Marker.TopOverscan)
	overrideDuration("MOVING_DEBOUNCE", &cfg.Visibility.MovingDebounce)
	overrideDuration("IDLE_DEBOUNCE", &cfg.Visibility.IdleDebounce)
	overrideInt("REVEAL_CHUNK_SIZE", &cfg.Reveal.ChunkSize)
	overrideDuration("REVEAL_STAGGER", &cfg.Reveal.Stagger)
	overrideDuration("REVEAL_DURATION", &cfg.Reveal.Duration)
	overrideInt("MOUNT_INITIAL_BATCH", &cfg.Mount.InitialBatch)
	overrideInt("MOUNT_BATCH_INCREMENT", &cfg.Mount.BatchIncrement)
	overrideInt("LABEL_STEPS", &cfg.Label.Steps)
	return cfg
}

func overrideInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func overrideFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func overrideDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
