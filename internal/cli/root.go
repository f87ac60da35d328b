// Copyright (c) 2025 K. Morrow
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli wires the command line surface. The bare command launches
// the chat TUI; subcommands manage stored sessions, exports, models, and
// configuration without entering the interface.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kmorrow/chatloom/internal/config"
	"github.com/kmorrow/chatloom/internal/logging"
	"github.com/kmorrow/chatloom/internal/ollama"
	"github.com/kmorrow/chatloom/internal/session"
	"github.com/kmorrow/chatloom/internal/storage"
	"github.com/kmorrow/chatloom/internal/ui/chat"
)

// Version is set at build time.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:     "chatloom",
	Short:   "Chat with a locally hosted LLM",
	Long:    "chatloom is a terminal chat client for a local Ollama server,\nwith persistent sessions, streaming replies, and configurable models.",
	Version: Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI()
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI. Returns a process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

func init() {
	rootCmd.AddCommand(sessionsCmd, exportCmd, importCmd, pullCmd, configCmd)
}

// =============================================================================
// SHARED SETUP
// =============================================================================

// openEnvironment loads .env overrides, the settings file, and the
// session store. Callers own closing the store.
func openEnvironment() (string, config.Settings, *storage.Store, error) {
	// Missing .env is the normal case.
	_ = godotenv.Load()

	dir, err := config.Dir()
	if err != nil {
		return "", config.Default(), nil, err
	}

	settings, loadErr := config.Load(dir)
	if loadErr != nil {
		// Informational: defaults are already in effect.
		slog.Warn("settings unreadable, using defaults", "error", loadErr)
	}

	store, err := storage.Open(filepath.Join(dir, "chats.db"))
	if err != nil {
		return dir, settings, nil, fmt.Errorf("open session store: %w", err)
	}
	return dir, settings, store, nil
}

// runTUI starts the full-screen chat interface.
func runTUI() error {
	dir, err := config.Dir()
	if err != nil {
		return err
	}

	logger, logCloser, err := logging.Setup(dir, logging.ParseLevel(os.Getenv("CHATLOOM_LOG_LEVEL")))
	if err != nil {
		return fmt.Errorf("set up logging: %w", err)
	}
	defer logCloser.Close()

	_, settings, store, err := openEnvironment()
	if err != nil {
		return err
	}
	defer store.Close()

	client := ollama.New(settings)
	if err := client.EnsureRunning(context.Background()); err != nil {
		// The TUI surfaces reachability errors on first send.
		logger.Warn("engine not reachable", "engine", settings.EngineURL, "error", err)
	}
	controller := session.New(client, store, settings, logger)
	model := chat.New(controller, client, settings)

	program := tea.NewProgram(model, tea.WithAltScreen())
	model.SetSend(program.Send)

	// Watch the settings file so external edits apply without a restart.
	cfgStore := config.NewStore(dir, settings)
	cfgStore.Subscribe(func(next config.Settings) {
		program.Send(chat.SettingsReloaded(next))
	})
	if watcher, werr := config.NewWatcher(cfgStore); werr == nil {
		if werr := watcher.Watch(); werr == nil {
			defer watcher.Close()
		} else {
			logger.Warn("settings watcher disabled", "error", werr)
		}
	} else {
		logger.Warn("settings watcher disabled", "error", werr)
	}

	logger.Info("starting", "version", Version, "model", settings.Model, "engine", settings.EngineURL)
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("run interface: %w", err)
	}
	return nil
}
