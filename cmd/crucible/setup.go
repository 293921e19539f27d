package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/michaelbrown/crucible/internal/config"
	"github.com/michaelbrown/crucible/internal/history"
	"github.com/michaelbrown/crucible/internal/history/sqlite"
	"github.com/michaelbrown/crucible/internal/interp"
	"github.com/michaelbrown/crucible/internal/llm"
)

// buildEngine wires config, flags, profile, history store, and the optional
// interpreter-service client into a ready Interpreter. The returned store may
// be nil; callers that get a non-nil store own closing it.
func buildEngine() (*interp.Interpreter, history.Store, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}

	opts := interp.Options{
		Workspace:       cfg.Interpreter.Workspace,
		Python:          cfg.Interpreter.Python,
		Timeout:         time.Duration(cfg.Interpreter.TimeoutSeconds) * time.Second,
		FigureDPI:       cfg.Interpreter.FigureDPI,
		AutoSaveFigures: true,
	}
	if workspaceFlag != "" {
		opts.Workspace = workspaceFlag
	}

	if profileFlag != "" {
		profilePath := filepath.Join(cfg.Interpreter.ProfilesDir, profileFlag+".yaml")
		profile, err := interp.LoadProfile(profilePath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("loading profile: %w", err)
		}
		profile.Apply(&opts)
	}

	var store history.Store
	if cfg.Storage.Enabled {
		s, err := sqlite.Open(cfg.Storage.DBPath)
		if err != nil {
			// History is a convenience; the interpreter works without it.
			slog.Warn("opening history store", "path", cfg.Storage.DBPath, "error", err)
		} else {
			store = s
		}
	}

	var client llm.Client
	if cfg.Backend.BaseURL != "" {
		client = llm.NewClient(cfg.Backend.BaseURL, cfg.Backend.APIKey, cfg.Backend.Model)
	}

	engine, err := interp.New(opts, client, store)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, nil, nil, err
	}

	return engine, store, cfg, nil
}
