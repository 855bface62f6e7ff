// murmur is a terminal Mastodon client built around a single-writer
// synchronization loop: stream workers and a fetch pool feed a state
// store owned by the engine, and the Bubble Tea UI renders from it.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mkordell/murmur/internal/cache"
	"github.com/mkordell/murmur/internal/config"
	"github.com/mkordell/murmur/internal/engine"
	"github.com/mkordell/murmur/internal/logging"
	"github.com/mkordell/murmur/internal/ui"
)

func main() {
	if err := logging.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
	}
	defer logging.Close()

	logging.Info("murmur starting")

	cfg, err := config.Load()
	if err != nil {
		fatal("Failed to load config: %v", err)
	}
	if cfg.Active() == nil {
		fmt.Fprintln(os.Stderr, "No account configured.")
		fmt.Fprintln(os.Stderr, "Add one to "+config.ConfigPath()+":")
		fmt.Fprintln(os.Stderr, `  {"accounts": [{"instance": "https://your.instance", "access_token": "..."}]}`)
		os.Exit(1)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fatal("Failed to get home directory: %v", err)
	}
	dataDir := filepath.Join(homeDir, ".murmur")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		fatal("Failed to create data directory: %v", err)
	}

	dbPath := filepath.Join(dataDir, "timelines.db")
	store, err := cache.Open(dbPath)
	if err != nil {
		fatal("Failed to open timeline cache: %v", err)
	}
	logging.Info("Timeline cache opened", "path", dbPath)

	eng := engine.New(cfg, store, engine.Options{})
	if _, err := eng.Start(); err != nil {
		fatal("Failed to start engine: %v", err)
	}
	defer eng.Shutdown()
	logging.Info("Engine started", "account", eng.ActiveAccount().Acct)

	app := ui.NewApp(eng)
	program := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		fatal("UI error: %v", err)
	}

	logging.Info("murmur exiting")
}

func fatal(format string, args ...any) {
	logging.Error(fmt.Sprintf(format, args...))
	logging.Close()
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
