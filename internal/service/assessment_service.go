package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/imwg-risk-calculator/internal/domain"
)

const unknownActor = "Unknown"

// AssessmentService orchestrates validation, calculation, persistence and the audit
// trail for assessments.
type AssessmentService struct {
	logger     *logrus.Logger
	repo       domain.AssessmentRepository
	history    domain.HistoryStore
	cache      domain.AssessmentCache
	calculator *Calculator
	writes     *writeTracker
	clock      domain.Clock
	newID      func() string
}

// Option configures an AssessmentService.
type Option func(*AssessmentService)

// WithCache enables a read-through cache for Get.
func WithCache(cache domain.AssessmentCache) Option {
	return func(s *AssessmentService) {
		if cache != nil {
			s.cache = cache
		}
	}
}

// WithClock overrides the time source used for timestamps and calculations.
func WithClock(clock domain.Clock) Option {
	return func(s *AssessmentService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithIDGenerator overrides uuid generation for new records.
func WithIDGenerator(gen func() string) Option {
	return func(s *AssessmentService) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// NewAssessmentService creates a new assessment service
func NewAssessmentService(
	logger *logrus.Logger,
	repo domain.AssessmentRepository,
	history domain.HistoryStore,
	opts ...Option,
) *AssessmentService {
	s := &AssessmentService{
		logger:  logger,
		repo:    repo,
		history: history,
		cache:   noopCache{},
		clock:   time.Now,
		newID:   uuid.NewString,
		writes:  newWriteTracker(trackedWrites),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.calculator = NewCalculator(logger, s.clock)
	return s
}

// Create validates and stores a new DRAFT assessment.
func (s *AssessmentService) Create(ctx context.Context, req *domain.AssessmentCreate, performedBy string) (*domain.Assessment, error) {
	assessment := req.NewAssessment(s.newID(), s.now())

	if ok, errs := ValidateAssessment(assessment); !ok {
		s.logger.WithField("errors", errs).Debug("Rejected invalid assessment")
		return nil, ValidationError(errs)
	}

	if err := s.repo.Create(ctx, assessment); err != nil {
		return nil, fmt.Errorf("failed to create assessment: %w", err)
	}

	if err := s.appendHistory(ctx, assessment, domain.ActionCreated, map[string]interface{}{
		"created_by": orUnknown(req.PhysicianName),
	}, performedBy); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"assessment_id": assessment.ID,
		"patient_id":    assessment.PatientID,
	}).Info("Assessment created")

	return assessment, nil
}

// Get returns an assessment by id, consulting the cache first. A snapshot loaded
// while a write of the same id completed is returned but not cached.
func (s *AssessmentService) Get(ctx context.Context, id string) (*domain.Assessment, error) {
	if cached, ok := s.cache.Get(ctx, id); ok {
		return cached, nil
	}

	since := s.writes.mark()
	assessment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.writes.fill(id, since, func() { s.cache.Set(ctx, assessment) }) {
		s.logger.WithField("assessment_id", id).Debug("Skipped caching snapshot superseded by a write")
	}
	return assessment, nil
}

// Update applies a partial update. The merged record must still pass validation.
func (s *AssessmentService) Update(ctx context.Context, id string, upd *domain.AssessmentUpdate, performedBy string) (*domain.Assessment, error) {
	if upd == nil {
		upd = &domain.AssessmentUpdate{}
	}
	assessment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	applied := upd.Apply(assessment)
	now := s.now()
	assessment.UpdatedAt = now
	applied["updated_at"] = now.Format(time.RFC3339Nano)

	if ok, errs := ValidateAssessment(assessment); !ok {
		return nil, ValidationError(errs)
	}

	if err := s.repo.Update(ctx, assessment); err != nil {
		return nil, fmt.Errorf("failed to update assessment %s: %w", id, err)
	}
	s.writes.record(id, func() { s.cache.Invalidate(ctx, id) })

	updatedBy := ""
	if upd.PhysicianName != nil {
		updatedBy = *upd.PhysicianName
	}
	if err := s.appendHistory(ctx, assessment, domain.ActionUpdated, map[string]interface{}{
		"changes":    applied,
		"updated_by": orUnknown(updatedBy),
	}, performedBy); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"assessment_id":  id,
		"changed_fields": len(applied) - 1,
	}).Info("Assessment updated")

	return assessment, nil
}

// Calculate runs the IMWG classification on the stored snapshot and persists the
// derived fields together with a new calculation record.
func (s *AssessmentService) Calculate(ctx context.Context, id string, performedBy string) (*domain.RiskCalculationResult, error) {
	assessment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	result, err := s.calculator.Calculate(assessment)
	if err != nil {
		s.logger.WithError(err).WithField("assessment_id", id).Error("Risk computation failed")
		return nil, err
	}
	result.ID = s.newID()

	if err := s.repo.SaveCalculation(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to save calculation for assessment %s: %w", id, err)
	}
	result.ApplyTo(assessment, result.CalculatedAt)
	s.writes.record(id, func() { s.cache.Set(ctx, assessment) })

	if err := s.appendHistory(ctx, assessment, domain.ActionCalculated, map[string]interface{}{
		"risk_result":        string(result.RiskResult),
		"total_risk_factors": result.TotalRiskFactors,
	}, performedBy); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"assessment_id":      id,
		"calculation_id":     result.ID,
		"risk_result":        result.RiskResult,
		"total_risk_factors": result.TotalRiskFactors,
	}).Info("Risk calculation completed")

	return result, nil
}

// List returns assessments matching the filter, newest first.
func (s *AssessmentService) List(ctx context.Context, filter domain.AssessmentFilter) ([]*domain.Assessment, error) {
	if err := filter.Normalize(); err != nil {
		return nil, err
	}
	if filter.RiskResult != "" {
		if err := domain.RiskResult(filter.RiskResult).Validate(); err != nil {
			return nil, domain.NewValidationErrors("risk_result must be 'HIGH_RISK' or 'STANDARD_RISK'")
		}
	}
	if filter.Status != "" {
		if err := domain.AssessmentStatus(filter.Status).Validate(); err != nil {
			return nil, domain.NewValidationErrors("status must be 'DRAFT' or 'COMPLETED'")
		}
	}

	assessments, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}
	return assessments, nil
}

// Delete removes an assessment and its calculations. History is kept.
func (s *AssessmentService) Delete(ctx context.Context, id string, performedBy string) error {
	assessment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete assessment %s: %w", id, err)
	}
	s.writes.record(id, func() { s.cache.Invalidate(ctx, id) })

	if err := s.appendHistory(ctx, assessment, domain.ActionDeleted, map[string]interface{}{
		"patient_name": orUnknown(assessment.PatientName),
	}, performedBy); err != nil {
		return err
	}

	s.logger.WithField("assessment_id", id).Info("Assessment deleted")
	return nil
}

// History returns the audit trail of an assessment, newest first. The trail of a
// deleted assessment is still returned.
func (s *AssessmentService) History(ctx context.Context, id string) ([]*domain.HistoryEntry, error) {
	entries, err := s.history.ListByAssessment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load history for assessment %s: %w", id, err)
	}
	if len(entries) > 0 {
		return entries, nil
	}

	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return entries, nil
}

// Calculations returns the stored calculation records of an assessment, newest first.
func (s *AssessmentService) Calculations(ctx context.Context, id string) ([]*domain.RiskCalculationResult, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	results, err := s.repo.ListCalculations(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list calculations for assessment %s: %w", id, err)
	}
	return results, nil
}

// Ping checks the storage backend.
func (s *AssessmentService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func (s *AssessmentService) appendHistory(ctx context.Context, a *domain.Assessment, action domain.HistoryAction, changes map[string]interface{}, performedBy string) error {
	entry := &domain.HistoryEntry{
		ID:           s.newID(),
		AssessmentID: a.ID,
		PatientID:    a.PatientID,
		Action:       action,
		Changes:      changes,
		PerformedBy:  performedBy,
		Timestamp:    s.now(),
	}
	if err := s.history.Append(ctx, entry); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"assessment_id": a.ID,
			"action":        action,
		}).Error("Failed to append assessment history")
		return fmt.Errorf("failed to record %s history for assessment %s: %w", action, a.ID, err)
	}
	return nil
}

func (s *AssessmentService) now() time.Time {
	return s.clock().UTC()
}

func orUnknown(v string) string {
	if v == "" {
		return unknownActor
	}
	return v
}

// IsNotFound reports whether err means the assessment does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}

type noopCache struct{}

func (noopCache) Get(context.Context, string) (*domain.Assessment, bool) { return nil, false }
func (noopCache) Set(context.Context, *domain.Assessment)               {}
func (noopCache) Invalidate(context.Context, string)                    {}
