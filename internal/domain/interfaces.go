package domain

import (
	"context"
	"time"
)

// AssessmentRepository persists assessments and their calculation records.
type AssessmentRepository interface {
	Create(ctx context.Context, assessment *Assessment) error
	GetByID(ctx context.Context, id string) (*Assessment, error)
	Update(ctx context.Context, assessment *Assessment) error
	List(ctx context.Context, filter AssessmentFilter) ([]*Assessment, error)
	// SaveCalculation writes the derived fields and COMPLETED status onto the
	// assessment and stores the calculation record in a single transaction.
	SaveCalculation(ctx context.Context, result *RiskCalculationResult) error
	ListCalculations(ctx context.Context, assessmentID string) ([]*RiskCalculationResult, error)
	// Delete removes the assessment together with its calculation records.
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
	Close() error
}

// HistoryStore is the append-only audit trail of assessment actions.
type HistoryStore interface {
	Append(ctx context.Context, entry *HistoryEntry) error
	ListByAssessment(ctx context.Context, assessmentID string) ([]*HistoryEntry, error)
	Count(ctx context.Context) (int64, error)
	Close() error
}

// AssessmentCache is a read-through cache of assessment snapshots keyed by id.
// Implementations treat backend failures as cache misses.
type AssessmentCache interface {
	Get(ctx context.Context, id string) (*Assessment, bool)
	Set(ctx context.Context, assessment *Assessment)
	Invalidate(ctx context.Context, id string)
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetDatabaseConfig() *DatabaseConfig
	GetServerConfig() *ServerConfig
	GetCacheConfig() *CacheConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
	GetDatabaseURL() string
	IsProduction() bool
	IsDevelopment() bool
}

// Clock returns the current time. Injected so calculations are reproducible in tests.
type Clock func() time.Time
