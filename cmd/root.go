// Package cmd provides the Loom CLI commands.
//
// Commands:
//   - chat (default): interactive terminal conversation with the Bubble Tea TUI
//   - sessions: list, show, and delete stored conversations
//   - library: list, export, and delete generated media
//   - version: build information
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/loomchat/loom/internal/chat"
	"github.com/loomchat/loom/internal/config"
	"github.com/loomchat/loom/internal/executor"
	"github.com/loomchat/loom/internal/gemini"
	"github.com/loomchat/loom/internal/geo"
	"github.com/loomchat/loom/internal/library"
	"github.com/loomchat/loom/internal/log"
	"github.com/loomchat/loom/internal/planner"
	"github.com/loomchat/loom/internal/session"
)

// Model calls are paced to stay under free-tier request quotas: sustained
// one call per two seconds with a small burst for tool-heavy turns.
const (
	requestInterval = 2 * time.Second
	requestBurst    = 4
)

var rootCmd = &cobra.Command{
	Use:           "loom",
	Short:         "Loom — a tool-augmented Gemini assistant for your terminal",
	Long:          "Loom is a terminal conversation assistant over the Gemini API with\nimage and video generation, web-search and maps grounding, and a\npersistent session and media library.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runChat, // bare `loom` starts a chat
}

// Execute is the entry point for the Loom CLI.
func Execute() error {
	return rootCmd.Execute()
}

// app bundles the wired dependency graph behind the commands.
type app struct {
	cfg      *config.Config
	logger   log.Logger
	sessions *session.Store
	library  *library.Store
	flow     *chat.Orchestrator
}

// newApp loads configuration and wires the full dependency graph. Commands
// that only touch storage use newStorageApp instead to avoid requiring an
// API key.
func newApp(ctx context.Context) (*app, error) {
	base, err := newStorageApp()
	if err != nil {
		return nil, err
	}
	cfg, logger := base.cfg, base.logger

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := gemini.New(ctx, gemini.Config{
		APIKey:     cfg.GeminiAPIKey,
		ImageModel: cfg.ImageModel,
		VideoModel: cfg.VideoModel,
		Logger:     logger.With("component", "gemini"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating model client: %w", err)
	}

	locator := geo.NewResolver(cfg.GeoEndpoint, cfg.GeoTimeout, logger.With("component", "geo"))

	turnPlanner := planner.New(planner.Config{
		Models:         planner.Models{Flash: cfg.FlashModel, Pro: cfg.ProModel},
		Locator:        locator,
		GeoTimeout:     cfg.GeoTimeout,
		ThinkingBudget: cfg.ThinkingBudget,
		Logger:         logger.With("component", "planner"),
	})

	imageExec := executor.NewImage(executor.ImageConfig{
		Client:  client,
		Library: base.library,
		Logger:  logger.With("component", "executor.image"),
	})
	videoExec := executor.NewVideo(executor.VideoConfig{
		Client:       client,
		Library:      base.library,
		PollInterval: cfg.VideoPollInterval,
		PollAttempts: cfg.VideoPollAttempts,
		Logger:       logger.With("component", "executor.video"),
	})

	flow, err := chat.New(chat.Config{
		Generator:     client,
		Planner:       turnPlanner,
		Sessions:      base.sessions,
		ImageExecutor: imageExec,
		VideoExecutor: videoExec,
		HistoryWindow: cfg.HistoryWindow,
		Limiter:       rate.NewLimiter(rate.Every(requestInterval), requestBurst),
		Logger:        logger.With("component", "chat"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating orchestrator: %w", err)
	}

	base.flow = flow
	return base, nil
}

// newStorageApp wires configuration, logging, and the two stores only.
func newStorageApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	logger := log.New(log.Config{
		Level: log.ParseLevel(cfg.LogLevel),
		JSON:  cfg.LogJSON,
	})

	sessions, err := session.NewStore(cfg.DataDir, logger.With("component", "sessions"))
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}

	lib, err := library.NewStore(cfg.DataDir, logger.With("component", "library"))
	if err != nil {
		return nil, fmt.Errorf("opening media library: %w", err)
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		sessions: sessions,
		library:  lib,
	}, nil
}

// formatTime renders a timestamp relative to now for listings.
func formatTime(t time.Time) string {
	diff := time.Since(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%d minutes ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%d days ago", int(diff.Hours()/24))
	default:
		return t.Format("2006-01-02 15:04")
	}
}
