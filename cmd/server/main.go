// Package main is the entry point for the FoodBridge API server.
//
// main stays small: load configuration, build the logger, make sure the
// database directory exists, then hand everything to internal/server.
// Start blocks until SIGINT or SIGTERM.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/foodbridge/internal/config"
	"github.com/sakif/foodbridge/internal/logger"
	"github.com/sakif/foodbridge/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real environment variables always win.
	cfg, err := config.Load(".env")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log, closer, err := logger.New(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer closer.Close()

	if cfg.SecretGenerated {
		log.Warn("JWT_SECRET not set, using a random secret; sessions will not survive a restart")
	}

	if cfg.DBPath != ":memory:" {
		dir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating database directory %s: %w", dir, err)
		}
	}

	srv, err := server.New(*cfg, log)
	if err != nil {
		log.Error("failed to create server", slog.String("error", err.Error()))
		return err
	}

	if err := srv.Start(); err != nil {
		log.Error("server error", slog.String("error", err.Error()))
		return err
	}
	return nil
}
