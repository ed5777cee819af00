package config

import (
	"errors"
	"testing"
	"time"
)

// validConfig returns a Config that passes Validate.
func validConfig() *Config {
	return &Config{
		GeminiAPIKey:      "test-key",
		FlashModel:        DefaultFlashModel,
		ProModel:          DefaultProModel,
		ImageModel:        DefaultImageModel,
		VideoModel:        DefaultVideoModel,
		HistoryWindow:     DefaultHistoryWindow,
		ThinkingBudget:    DefaultThinkingBudget,
		VideoPollInterval: DefaultVideoPollInterval,
		VideoPollAttempts: DefaultVideoPollAttempts,
		GeoTimeout:        DefaultGeoTimeout,
	}
}

func TestValidate(t *testing.T) {
	t.Run("valid config passes", func(t *testing.T) {
		if err := validConfig().Validate(); err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
	})

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "missing API key",
			mutate:  func(c *Config) { c.GeminiAPIKey = "  " },
			wantErr: ErrMissingAPIKey,
		},
		{
			name:    "empty model name",
			mutate:  func(c *Config) { c.VideoModel = "" },
			wantErr: ErrInvalidModelName,
		},
		{
			name:    "history window too small",
			mutate:  func(c *Config) { c.HistoryWindow = 0 },
			wantErr: ErrInvalidHistoryWindow,
		},
		{
			name:    "history window too large",
			mutate:  func(c *Config) { c.HistoryWindow = MaxHistoryWindow + 1 },
			wantErr: ErrInvalidHistoryWindow,
		},
		{
			name:    "poll interval too short",
			mutate:  func(c *Config) { c.VideoPollInterval = time.Millisecond },
			wantErr: ErrInvalidPollInterval,
		},
		{
			name:    "poll attempts zero",
			mutate:  func(c *Config) { c.VideoPollAttempts = 0 },
			wantErr: ErrInvalidPollAttempts,
		},
		{
			name:    "geo timeout too long",
			mutate:  func(c *Config) { c.GeoTimeout = 2 * time.Minute },
			wantErr: ErrInvalidGeoTimeout,
		},
		{
			name:    "negative thinking budget",
			mutate:  func(c *Config) { c.ThinkingBudget = -1 },
			wantErr: ErrInvalidThinkingBudget,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	// Load reads the real home directory but must at least produce the
	// documented defaults when nothing overrides them.
	t.Setenv("LOOM_GEMINI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.FlashModel != DefaultFlashModel {
		t.Errorf("FlashModel = %q, want %q", cfg.FlashModel, DefaultFlashModel)
	}
	if cfg.HistoryWindow != DefaultHistoryWindow {
		t.Errorf("HistoryWindow = %d, want %d", cfg.HistoryWindow, DefaultHistoryWindow)
	}
	if cfg.VideoPollInterval != DefaultVideoPollInterval {
		t.Errorf("VideoPollInterval = %s, want %s", cfg.VideoPollInterval, DefaultVideoPollInterval)
	}
	if cfg.VideoPollAttempts != DefaultVideoPollAttempts {
		t.Errorf("VideoPollAttempts = %d, want %d", cfg.VideoPollAttempts, DefaultVideoPollAttempts)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("LOOM_FLASH_MODEL", "gemini-override")
	t.Setenv("GEMINI_API_KEY", "env-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.FlashModel != "gemini-override" {
		t.Errorf("FlashModel = %q, want env override", cfg.FlashModel)
	}
	if cfg.GeminiAPIKey != "env-key" {
		t.Errorf("GeminiAPIKey = %q, want fallback from GEMINI_API_KEY", cfg.GeminiAPIKey)
	}
}
