package mcp

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/imwg-risk-calculator/internal/cache"
	"github.com/imwg-risk-calculator/internal/config"
	"github.com/imwg-risk-calculator/internal/history"
	"github.com/imwg-risk-calculator/internal/repository"
	"github.com/imwg-risk-calculator/internal/service"
)

// NewLiteServer creates a server backed by SQLite stores under the configured data
// directory and an in-memory cache. It requires no external services.
func NewLiteServer(cfg *config.LiteConfig, logger *logrus.Logger) (*Server, error) {
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	var closers []io.Closer
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i].Close()
		}
	}

	repo, err := repository.NewSQLiteAssessmentRepository(cfg.AssessmentsDBPath(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open assessment store: %w", err)
	}
	closers = append(closers, repo)

	historyStore, err := history.NewSQLiteStore(cfg.HistoryDBPath())
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}
	closers = append(closers, historyStore)

	memCache := cache.NewMemoryCache(cfg.CacheMaxItems, cfg.CacheTTL)
	svc := service.NewAssessmentService(logger, repo, historyStore, service.WithCache(memCache))

	server, err := NewServer(DefaultServerInfo, svc, logger)
	if err != nil {
		closeAll()
		return nil, err
	}
	server.closers = closers

	logger.WithField("data_dir", cfg.DataDir).Info("Lite server initialized")
	return server, nil
}
