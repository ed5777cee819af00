// Package config provides application configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (LOOM_ prefix, plus GEMINI_API_KEY as a fallback)
//  2. Config file (~/.loom/config.yaml)
//  3. Default values
//
// Validation uses sentinel errors so callers can test failures with
// errors.Is(). Sensitive values (the API key) are never logged.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrMissingAPIKey indicates no Gemini API key was configured.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates an empty or malformed model identifier.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidHistoryWindow indicates the history window is out of range.
	ErrInvalidHistoryWindow = errors.New("invalid history window")

	// ErrInvalidPollInterval indicates the video poll interval is out of range.
	ErrInvalidPollInterval = errors.New("invalid video poll interval")

	// ErrInvalidPollAttempts indicates the video poll attempt ceiling is out of range.
	ErrInvalidPollAttempts = errors.New("invalid video poll attempts")

	// ErrInvalidGeoTimeout indicates the geolocation timeout is out of range.
	ErrInvalidGeoTimeout = errors.New("invalid geolocation timeout")

	// ErrInvalidThinkingBudget indicates the thinking budget is out of range.
	ErrInvalidThinkingBudget = errors.New("invalid thinking budget")
)

// Default model identifiers. The flash model is the fastest variant and the
// default for ordinary turns; the pro model is the highest-capability variant
// used by research mode and for turns carrying video input.
const (
	DefaultFlashModel = "gemini-2.5-flash"
	DefaultProModel   = "gemini-2.5-pro"
	DefaultImageModel = "imagen-4.0-generate-001"
	DefaultVideoModel = "veo-2.0-generate-001"
)

const (
	// DefaultHistoryWindow is how many trailing messages a turn sends to the model.
	DefaultHistoryWindow = 15

	// DefaultVideoPollInterval is the wait between video operation status polls.
	DefaultVideoPollInterval = 4 * time.Second

	// DefaultVideoPollAttempts bounds the video poll loop (~4 minutes wall-clock).
	DefaultVideoPollAttempts = 60

	// DefaultGeoTimeout bounds the geolocation lookup for maps routing bias.
	DefaultGeoTimeout = 5 * time.Second

	// DefaultThinkingBudget is the extended-reasoning token budget applied
	// when the user selects the thinking variant.
	DefaultThinkingBudget = 8192

	// MaxHistoryWindow is the absolute ceiling for the history window.
	MaxHistoryWindow = 1000
)

// Config stores application configuration.
type Config struct {
	// Gemini API access
	GeminiAPIKey string `mapstructure:"gemini_api_key"` // SENSITIVE: never logged

	// Model variants
	FlashModel string `mapstructure:"flash_model"`
	ProModel   string `mapstructure:"pro_model"`
	ImageModel string `mapstructure:"image_model"`
	VideoModel string `mapstructure:"video_model"`

	// Turn execution
	HistoryWindow  int   `mapstructure:"history_window"`
	ThinkingBudget int32 `mapstructure:"thinking_budget"`

	// Video generation poll loop
	VideoPollInterval time.Duration `mapstructure:"video_poll_interval"`
	VideoPollAttempts int           `mapstructure:"video_poll_attempts"`

	// Maps routing bias
	GeoTimeout  time.Duration `mapstructure:"geo_timeout"`
	GeoEndpoint string        `mapstructure:"geo_endpoint"`

	// Storage
	DataDir string `mapstructure:"data_dir"`

	// Logging
	LogLevel string `mapstructure:"log_level"`
	LogJSON  bool   `mapstructure:"log_json"`
}

// Load loads configuration from environment, config file, and defaults.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".loom")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v, configDir)

	v.SetEnvPrefix("LOOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// GEMINI_API_KEY works as a fallback so the key can be shared with
	// other Gemini tooling without duplicating it under LOOM_.
	if cfg.GeminiAPIKey == "" {
		cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	}

	return &cfg, nil
}

// setDefaults registers default values on the viper instance.
func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("flash_model", DefaultFlashModel)
	v.SetDefault("pro_model", DefaultProModel)
	v.SetDefault("image_model", DefaultImageModel)
	v.SetDefault("video_model", DefaultVideoModel)
	v.SetDefault("history_window", DefaultHistoryWindow)
	v.SetDefault("thinking_budget", DefaultThinkingBudget)
	v.SetDefault("video_poll_interval", DefaultVideoPollInterval)
	v.SetDefault("video_poll_attempts", DefaultVideoPollAttempts)
	v.SetDefault("geo_timeout", DefaultGeoTimeout)
	v.SetDefault("geo_endpoint", "http://ip-api.com/json")
	v.SetDefault("data_dir", configDir)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
}

// Validate checks configuration invariants. It does not verify the API key
// against the service, only that one is present.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("configuration is nil")
	}
	if strings.TrimSpace(c.GeminiAPIKey) == "" {
		return fmt.Errorf("%w: set LOOM_GEMINI_API_KEY or GEMINI_API_KEY", ErrMissingAPIKey)
	}
	for _, m := range []string{c.FlashModel, c.ProModel, c.ImageModel, c.VideoModel} {
		if strings.TrimSpace(m) == "" {
			return fmt.Errorf("%w: model identifiers must be non-empty", ErrInvalidModelName)
		}
	}
	if c.HistoryWindow < 1 || c.HistoryWindow > MaxHistoryWindow {
		return fmt.Errorf("%w: %d (must be 1-%d)", ErrInvalidHistoryWindow, c.HistoryWindow, MaxHistoryWindow)
	}
	if c.VideoPollInterval < 100*time.Millisecond || c.VideoPollInterval > 5*time.Minute {
		return fmt.Errorf("%w: %s (must be 100ms-5m)", ErrInvalidPollInterval, c.VideoPollInterval)
	}
	if c.VideoPollAttempts < 1 || c.VideoPollAttempts > 1000 {
		return fmt.Errorf("%w: %d (must be 1-1000)", ErrInvalidPollAttempts, c.VideoPollAttempts)
	}
	if c.GeoTimeout < time.Second || c.GeoTimeout > time.Minute {
		return fmt.Errorf("%w: %s (must be 1s-1m)", ErrInvalidGeoTimeout, c.GeoTimeout)
	}
	if c.ThinkingBudget < 0 || c.ThinkingBudget > 32768 {
		return fmt.Errorf("%w: %d (must be 0-32768)", ErrInvalidThinkingBudget, c.ThinkingBudget)
	}
	return nil
}
