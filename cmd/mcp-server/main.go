// Package main provides the standalone MCP entry point for the IMWG risk calculator.
// It requires no external services: assessments and their history live in SQLite
// files under the data directory.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/imwg-risk-calculator/internal/config"
	"github.com/imwg-risk-calculator/internal/history"
	"github.com/imwg-risk-calculator/internal/logging"
	"github.com/imwg-risk-calculator/internal/mcp"
	"github.com/imwg-risk-calculator/internal/setup"
)

func main() {
	// Load lightweight configuration
	cfg := config.LoadLiteConfig()
	logger := logging.NewLogger(cfg.Logging())

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "export-history":
			path, err := exportHistory(cfg, os.Args[2:], logger)
			if err != nil {
				logger.WithError(err).Fatal("History export failed")
			}
			fmt.Fprintln(os.Stderr, path)
			return
		case "setup":
			opts := setup.Options{DataDir: cfg.DataDir}
			if len(os.Args) > 2 {
				opts.BinaryPath = os.Args[2]
			}
			path, err := setup.Register(opts)
			if err != nil {
				logger.WithError(err).Fatal("Setup failed")
			}
			fmt.Fprintf(os.Stderr, "Registered %s in %s\n", setup.ServerName, path)
			return
		}
	}

	logger.WithField("data_dir", cfg.DataDir).Info("Starting IMWG Risk Calculator MCP server")

	server, err := mcp.NewLiteServer(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create MCP server")
	}
	defer server.Close()

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Error("MCP server failed")
		return
	}

	logger.Info("IMWG Risk Calculator MCP server stopped")
}

// exportHistory writes the audit trail to the given file, or to a timestamped file
// in the export directory, and returns the path written.
func exportHistory(cfg *config.LiteConfig, args []string, logger *logrus.Logger) (string, error) {
	if err := cfg.EnsureDataDir(); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	path := filepath.Join(cfg.ExportDir(),
		fmt.Sprintf("history-%s.json", time.Now().UTC().Format("20060102-150405")))
	if len(args) > 0 && args[0] != "" {
		path = args[0]
	}

	store, err := history.NewSQLiteStore(cfg.HistoryDBPath())
	if err != nil {
		return "", err
	}
	defer store.Close()

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	if err := store.ExportJSON(context.Background(), f); err != nil {
		return "", err
	}

	logger.WithField("path", path).Info("History exported")
	return path, f.Sync()
}
