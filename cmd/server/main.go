package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/imwg-risk-calculator/internal/api"
	"github.com/imwg-risk-calculator/internal/cache"
	"github.com/imwg-risk-calculator/internal/config"
	"github.com/imwg-risk-calculator/internal/database"
	"github.com/imwg-risk-calculator/internal/domain"
	"github.com/imwg-risk-calculator/internal/history"
	"github.com/imwg-risk-calculator/internal/logging"
	"github.com/imwg-risk-calculator/internal/repository"
	"github.com/imwg-risk-calculator/internal/service"
)

// stores bundles the persistence backends selected by configuration.
type stores struct {
	repo    domain.AssessmentRepository
	history history.Store
	closers []func()
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := logging.NewLogger(cfg.Logging)
	logger.WithFields(logrus.Fields{
		"environment": cfg.Environment,
		"storage":     cfg.Storage.Driver,
		"cache":       cfg.Cache.Driver,
	}).Info("Starting IMWG Risk Calculator API")

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStores(ctx, configManager, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open storage")
	}
	defer st.close()

	assessmentCache, err := cache.New(cfg.Cache, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create cache")
	}
	if closer, ok := assessmentCache.(io.Closer); ok {
		defer closer.Close()
	}

	svc := service.NewAssessmentService(logger, st.repo, st.history, service.WithCache(assessmentCache))

	server, err := api.NewServer(*cfg, svc, logger, api.WithHistoryExporter(st.history))
	if err != nil {
		logger.WithError(err).Fatal("Failed to create server")
	}

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	// Start server
	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}

// openStores connects the assessment repository and the history store for the
// configured storage driver.
func openStores(ctx context.Context, manager domain.ConfigManager, logger *logrus.Logger) (*stores, error) {
	cfg := manager.GetConfig()
	st := &stores{}

	switch cfg.Storage.Driver {
	case domain.StorageDriverSQLite:
		repo, err := repository.NewSQLiteAssessmentRepository(cfg.SQLite.Path, logger)
		if err != nil {
			return nil, err
		}
		st.repo = repo
		st.closers = append(st.closers, func() { repo.Close() })

		historyStore, err := history.NewSQLiteStore(cfg.SQLite.HistoryPath)
		if err != nil {
			st.close()
			return nil, err
		}
		st.history = historyStore
		st.closers = append(st.closers, func() { historyStore.Close() })

	case domain.StorageDriverPostgres:
		if cfg.Database.AutoMigrate {
			if err := database.Migrate(ctx, manager.GetDatabaseURL(), cfg.Database.MigrationsPath, logger); err != nil {
				return nil, fmt.Errorf("running migrations: %w", err)
			}
		}

		db, err := database.NewConnection(ctx, database.ConfigFrom(cfg.Database), logger)
		if err != nil {
			return nil, err
		}
		st.repo = repository.NewAssessmentRepository(db.Pool, logger)
		st.closers = append(st.closers, db.Close)

		historyStore, err := history.NewPostgresStoreFromURL(manager.GetDatabaseURL())
		if err != nil {
			st.close()
			return nil, err
		}
		st.history = historyStore
		st.closers = append(st.closers, func() { historyStore.Close() })

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}

	return st, nil
}
