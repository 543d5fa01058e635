package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/imwg-risk-calculator/internal/domain"
	"github.com/imwg-risk-calculator/internal/middleware"
)

// APIVersion is reported by the root endpoint.
const APIVersion = "1.0.0"

// AssessmentService is the application layer the HTTP handlers drive.
type AssessmentService interface {
	Create(ctx context.Context, req *domain.AssessmentCreate, performedBy string) (*domain.Assessment, error)
	Get(ctx context.Context, id string) (*domain.Assessment, error)
	Update(ctx context.Context, id string, upd *domain.AssessmentUpdate, performedBy string) (*domain.Assessment, error)
	Calculate(ctx context.Context, id string, performedBy string) (*domain.RiskCalculationResult, error)
	List(ctx context.Context, filter domain.AssessmentFilter) ([]*domain.Assessment, error)
	Delete(ctx context.Context, id string, performedBy string) error
	History(ctx context.Context, id string) ([]*domain.HistoryEntry, error)
	Calculations(ctx context.Context, id string) ([]*domain.RiskCalculationResult, error)
	Ping(ctx context.Context) error
}

// HistoryExporter writes the full audit trail as JSON.
type HistoryExporter interface {
	ExportJSON(ctx context.Context, writer io.Writer) error
}

// Server represents the HTTP server
type Server struct {
	config   domain.Config
	service  AssessmentService
	exporter HistoryExporter
	logger   *logrus.Logger
	router   *gin.Engine
	server   *http.Server
	now      func() time.Time
}

// Option configures optional Server collaborators.
type Option func(*Server)

// WithHistoryExporter enables the audit trail export endpoint.
func WithHistoryExporter(exporter HistoryExporter) Option {
	return func(s *Server) {
		s.exporter = exporter
	}
}

// NewServer creates a new HTTP server instance
func NewServer(config domain.Config, service AssessmentService, logger *logrus.Logger, opts ...Option) (*Server, error) {
	if config.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config:  config,
		service: service,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	rateLimit, err := middleware.RateLimit(config.RateLimit, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limiter: %w", err)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.AccessLog(logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(corsMiddleware(config.Server.AllowedOrigins))
	router.Use(rateLimit)

	s.router = router
	s.setupRoutes()

	return s, nil
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.config.Server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	{
		api.GET("/", s.handleRoot)
		api.GET("/health", s.handleHealth)

		assessments := api.Group("/assessments")
		assessments.POST("/", s.handleCreateAssessment)
		assessments.GET("/", s.handleListAssessments)
		assessments.GET("/:id", s.handleGetAssessment)
		assessments.PUT("/:id", s.handleUpdateAssessment)
		assessments.DELETE("/:id", s.handleDeleteAssessment)
		assessments.POST("/:id/calculate", s.handleCalculateRisk)
		assessments.GET("/:id/calculations", s.handleListCalculations)
		assessments.GET("/:id/history", s.handleAssessmentHistory)

		api.POST("/riss/calculate", s.handleCalculateRISS)

		if s.exporter != nil {
			api.GET("/history/export", s.handleExportHistory)
		}
	}
}

// corsMiddleware allows the configured origins; an empty list or "*" allows any.
func corsMiddleware(origins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Correlation-ID", "X-Performed-By"},
		ExposeHeaders: []string{"Content-Length", "X-Correlation-ID"},
		MaxAge:        12 * time.Hour,
	}

	allowAll := len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
	}
	if allowAll {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
	}

	return cors.New(config)
}
