// Package cli implements the command surface over the registries.
//
// Information Hiding:
// - Registry wiring order and vault backend selection
// - Log output configuration
// - Provider config persistence under config/providers.json

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/cortexnotes/cortex/agent"
	"github.com/cortexnotes/cortex/config"
	"github.com/cortexnotes/cortex/llm"
	"github.com/cortexnotes/cortex/session"
	"github.com/cortexnotes/cortex/vault"
)

// providerConnectTimeout bounds each startup handshake so one dead
// endpoint cannot stall every command.
const providerConnectTimeout = 10 * time.Second

// Options holds global CLI options resolved from flags. Empty fields
// fall back to the environment-driven settings.
type Options struct {
	VaultDir string
	Backend  string
	LogLevel string
	Verbose  bool
}

// App bundles the wired registries behind one handle.
type App struct {
	Settings  config.Settings
	Store     vault.Store
	Providers *llm.Registry
	Agents    *agent.Registry
	Sessions  *session.Registry

	unbind  func()
	logFile io.Closer
}

// NewApp loads settings, opens the vault, configures logging, and
// wires the registries: providers reconnect from their persisted
// configs, agents and sessions reload from the vault, and agent
// deletions cascade into session cleanup.
func NewApp(ctx context.Context, opts Options) (*App, error) {
	settings, err := config.New()
	if err != nil {
		return nil, err
	}
	if opts.VaultDir != "" {
		settings.Vault.Dir = opts.VaultDir
		// Keep the default log file inside the chosen vault unless the
		// environment pinned one explicitly.
		if os.Getenv("CORTEX_LOG_FILE") == "" {
			settings.Log.File = filepath.Join(opts.VaultDir, "logs", "cortex.log")
		}
	}
	if opts.Backend != "" {
		if opts.Backend != "dir" && opts.Backend != "sqlite" {
			return nil, fmt.Errorf("invalid vault backend %q (want dir or sqlite)", opts.Backend)
		}
		settings.Vault.Backend = opts.Backend
	}
	if opts.LogLevel != "" {
		if _, err := zerolog.ParseLevel(opts.LogLevel); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.LogLevel, err)
		}
		settings.Log.Level = opts.LogLevel
	}

	store, err := openStore(settings)
	if err != nil {
		return nil, err
	}
	if err := store.Initialize(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize vault: %w", err)
	}

	logFile := setupLogging(settings.Log, opts.Verbose)

	app := &App{
		Settings:  settings,
		Store:     store,
		Providers: llm.NewRegistry(),
		logFile:   logFile,
	}

	configs, err := app.loadProviderConfigs(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to load provider configs")
	}
	for _, cfg := range configs {
		probeCtx, cancel := context.WithTimeout(ctx, providerConnectTimeout)
		err := app.Providers.Add(probeCtx, cfg)
		cancel()
		if err != nil {
			log.Warn().Str("provider", cfg.Key()).Err(err).Msg("provider unavailable at startup")
		}
	}

	app.Agents = agent.NewRegistry(store)
	if err := app.Agents.LoadAll(ctx); err != nil {
		app.Close()
		return nil, err
	}
	app.Agents.SetProviderManager(app.Providers)

	app.Sessions = session.NewRegistry(store, app.Agents)
	if err := app.Sessions.LoadAll(ctx); err != nil {
		app.Close()
		return nil, err
	}
	app.unbind = app.Sessions.BindAgentEvents(app.Agents)

	return app, nil
}

// Close releases provider connections, the vault, and the log file.
func (a *App) Close() error {
	if a.unbind != nil {
		a.unbind()
	}
	if a.Providers != nil {
		a.Providers.Close()
	}
	var err error
	if a.Store != nil {
		err = a.Store.Close()
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return err
}

func openStore(settings config.Settings) (vault.Store, error) {
	switch settings.Vault.Backend {
	case "sqlite":
		return vault.OpenSqlite(settings.Vault.DatabasePath())
	default:
		return vault.NewDirStore(settings.Vault.Dir)
	}
}

// setupLogging routes structured logs to a rotated file inside the
// vault, echoing to stderr only in verbose mode so interactive output
// stays clean.
func setupLogging(cfg config.LogConfig, verbose bool) io.Closer {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	fileWriter := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
	}
	writers := []io.Writer{fileWriter}
	if verbose {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()
	return fileWriter
}

// formatTime renders a Unix-ms timestamp for listings.
func formatTime(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Format("2006-01-02 15:04")
}
