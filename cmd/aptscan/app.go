package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/aptscan/aptscan/internal/batch"
	"github.com/aptscan/aptscan/internal/config"
	"github.com/aptscan/aptscan/internal/gate"
	"github.com/aptscan/aptscan/internal/runner"
	"github.com/aptscan/aptscan/internal/scraper"
	"github.com/aptscan/aptscan/internal/sheets"
	"github.com/aptscan/aptscan/internal/store"
)

// app is the wired object graph shared by all subcommands.
type app struct {
	cfg    *config.EnvConfig
	store  *store.Store
	runner *runner.Runner
	sheets *sheets.Client // nil when the spreadsheet is not configured
}

// appOptions control wiring per entry point.
type appOptions struct {
	needSheet bool // fail fast when the spreadsheet env is missing
	dryRun    bool
}

// newApp loads config, opens the database, and wires the registry, gate,
// runner and (when configured) the spreadsheet client.
func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := config.LoadEnvConfig()
	if err != nil {
		return nil, err
	}

	tuning, err := config.LoadPlatformTuning(cfg.PlatformsFile)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	registry := scraper.NewRegistry(scraper.Config{
		HTTPClient:  &http.Client{Timeout: 30 * time.Second},
		GenAIAPIKey: cfg.GenAIAPIKey,
	})

	a := &app{
		cfg:   cfg,
		store: st,
		runner: runner.New(runner.Config{
			Store:           st,
			Registry:        registry,
			Gate:            gate.New(registry.Tags(), scraper.DefaultPermits, tuning.Permits),
			PacingOverrides: tuning.Pacing,
			DryRun:          opts.dryRun,
		}),
	}

	if opts.needSheet {
		if err := cfg.RequireSheet(); err != nil {
			st.Close()
			return nil, err
		}
	}
	if cfg.SheetKey != "" && cfg.CredentialsFile != "" {
		a.sheets, err = sheets.NewClient(ctx, sheets.Config{
			Store:           st,
			SpreadsheetID:   cfg.SheetKey,
			CredentialsFile: cfg.CredentialsFile,
			RegistryTab:     cfg.SheetTab,
		})
		if err != nil {
			st.Close()
			return nil, err
		}
	}
	return a, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		log.Printf("[main] close store: %v", err)
	}
}

// orchestrator builds the batch orchestrator for this app. The sheet
// collaborators are nil-safe: an unconfigured spreadsheet just skips sync
// and publishing.
func (a *app) orchestrator(skipSync, dryRun bool) *batch.Orchestrator {
	cfg := batch.Config{
		Store:    a.store,
		Runner:   a.runner,
		Workers:  a.cfg.Workers,
		SkipSync: skipSync,
		DryRun:   dryRun,
	}
	if a.sheets != nil {
		cfg.Syncer = a.sheets
		cfg.Status = a.sheets
		cfg.Availability = a.sheets
	}
	return batch.New(cfg)
}

// routeLogToFile switches the default logger to a rotating file for daemon
// mode. Returns an error rather than silently logging to a bad path.
func routeLogToFile(cfg *config.EnvConfig) error {
	if cfg.LogDir == "" {
		return fmt.Errorf("daemon mode requires APTSCAN_LOG_DIR")
	}
	log.SetOutput(&lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, "aptscan.log"),
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})
	return nil
}
