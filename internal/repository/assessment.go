package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/imwg-risk-calculator/internal/domain"
)

const assessmentColumns = `id, patient_id, patient_name, del17p_tp53, translocation_combo, del1p32_1q,
	b2m_value, creatinine_value, clinical_notes, physician_name, institution,
	risk_result, risk_factors, total_risk_factors, status, version, created_at, updated_at`

// AssessmentRepository handles assessment persistence in PostgreSQL
type AssessmentRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewAssessmentRepository creates a new assessment repository
func NewAssessmentRepository(db *pgxpool.Pool, logger *logrus.Logger) *AssessmentRepository {
	return &AssessmentRepository{
		db:  db,
		log: logger,
	}
}

// Create inserts a new assessment into the database
func (r *AssessmentRepository) Create(ctx context.Context, a *domain.Assessment) error {
	query := `
		INSERT INTO assessments (` + assessmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err := r.db.Exec(ctx, query,
		a.ID,
		a.PatientID,
		a.PatientName,
		a.Del17pTP53,
		a.TranslocationCombo,
		a.Del1p32_1q,
		a.B2MValue,
		a.CreatinineValue,
		a.ClinicalNotes,
		a.PhysicianName,
		a.Institution,
		riskResultParam(a.RiskResult),
		nonNilFactors(a.RiskFactors),
		a.TotalRiskFactors,
		string(a.Status),
		a.Version,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"assessment_id": a.ID,
			"error":         err,
		}).Error("Failed to create assessment")
		return fmt.Errorf("creating assessment: %w", err)
	}

	r.log.WithField("assessment_id", a.ID).Debug("Assessment created")
	return nil
}

// GetByID retrieves an assessment by its ID
func (r *AssessmentRepository) GetByID(ctx context.Context, id string) (*domain.Assessment, error) {
	query := `SELECT ` + assessmentColumns + ` FROM assessments WHERE id = $1`

	a, err := scanAssessment(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("assessment %s: %w", id, domain.ErrNotFound)
		}
		r.log.WithFields(logrus.Fields{
			"assessment_id": id,
			"error":         err,
		}).Error("Failed to get assessment by ID")
		return nil, fmt.Errorf("getting assessment by ID: %w", err)
	}
	return a, nil
}

// Update writes the input and metadata fields of an existing assessment
func (r *AssessmentRepository) Update(ctx context.Context, a *domain.Assessment) error {
	query := `
		UPDATE assessments SET
			patient_id = $2, patient_name = $3, del17p_tp53 = $4, translocation_combo = $5,
			del1p32_1q = $6, b2m_value = $7, creatinine_value = $8, clinical_notes = $9,
			physician_name = $10, institution = $11, updated_at = $12
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		a.ID,
		a.PatientID,
		a.PatientName,
		a.Del17pTP53,
		a.TranslocationCombo,
		a.Del1p32_1q,
		a.B2MValue,
		a.CreatinineValue,
		a.ClinicalNotes,
		a.PhysicianName,
		a.Institution,
		a.UpdatedAt,
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"assessment_id": a.ID,
			"error":         err,
		}).Error("Failed to update assessment")
		return fmt.Errorf("updating assessment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("assessment %s: %w", a.ID, domain.ErrNotFound)
	}
	return nil
}

// List returns assessments matching the filter, newest first
func (r *AssessmentRepository) List(ctx context.Context, filter domain.AssessmentFilter) ([]*domain.Assessment, error) {
	tail, args := buildListQuery(filter, postgresDialect)
	query := `SELECT ` + assessmentColumns + ` FROM assessments` + tail

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.WithError(err).Error("Failed to list assessments")
		return nil, fmt.Errorf("listing assessments: %w", err)
	}
	defer rows.Close()

	assessments := make([]*domain.Assessment, 0)
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning assessment row: %w", err)
		}
		assessments = append(assessments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating assessment rows: %w", err)
	}
	return assessments, nil
}

// SaveCalculation stores the derived fields and the calculation record in one transaction
func (r *AssessmentRepository) SaveCalculation(ctx context.Context, result *domain.RiskCalculationResult) error {
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE assessments SET
				risk_result = $2, risk_factors = $3, total_risk_factors = $4,
				status = $5, updated_at = $6
			WHERE id = $1`,
			result.AssessmentID,
			string(result.RiskResult),
			nonNilFactors(result.RiskFactors),
			result.TotalRiskFactors,
			string(domain.COMPLETED),
			result.CalculatedAt,
		)
		if err != nil {
			return fmt.Errorf("updating derived fields: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("assessment %s: %w", result.AssessmentID, domain.ErrNotFound)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO calculations (
				id, assessment_id, risk_result, risk_factors, total_risk_factors,
				clinical_interpretation, recommendations, calculated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			result.ID,
			result.AssessmentID,
			string(result.RiskResult),
			nonNilFactors(result.RiskFactors),
			result.TotalRiskFactors,
			result.ClinicalInterpretation,
			nonNilStrings(result.Recommendations),
			result.CalculatedAt,
		)
		if err != nil {
			return fmt.Errorf("inserting calculation: %w", err)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			r.log.WithFields(logrus.Fields{
				"assessment_id": result.AssessmentID,
				"error":         err,
			}).Error("Failed to save calculation")
		}
		return fmt.Errorf("saving calculation: %w", err)
	}
	return nil
}

// ListCalculations returns the calculation records of an assessment, newest first
func (r *AssessmentRepository) ListCalculations(ctx context.Context, assessmentID string) ([]*domain.RiskCalculationResult, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, assessment_id, risk_result, risk_factors, total_risk_factors,
			   clinical_interpretation, recommendations, calculated_at
		FROM calculations
		WHERE assessment_id = $1
		ORDER BY calculated_at DESC, id DESC`, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("listing calculations: %w", err)
	}
	defer rows.Close()

	results := make([]*domain.RiskCalculationResult, 0)
	for rows.Next() {
		var (
			res        domain.RiskCalculationResult
			riskResult string
		)
		if err := rows.Scan(
			&res.ID,
			&res.AssessmentID,
			&riskResult,
			&res.RiskFactors,
			&res.TotalRiskFactors,
			&res.ClinicalInterpretation,
			&res.Recommendations,
			&res.CalculatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning calculation row: %w", err)
		}
		res.RiskResult = domain.RiskResult(riskResult)
		res.CalculatedAt = res.CalculatedAt.UTC()
		results = append(results, &res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating calculation rows: %w", err)
	}
	return results, nil
}

// Delete removes an assessment and its calculation records
func (r *AssessmentRepository) Delete(ctx context.Context, id string) error {
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM calculations WHERE assessment_id = $1`, id); err != nil {
			return fmt.Errorf("deleting calculations: %w", err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM assessments WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("deleting assessment: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("assessment %s: %w", id, domain.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			r.log.WithFields(logrus.Fields{
				"assessment_id": id,
				"error":         err,
			}).Error("Failed to delete assessment")
		}
		return err
	}

	r.log.WithField("assessment_id", id).Debug("Assessment deleted")
	return nil
}

// Ping checks the connection pool
func (r *AssessmentRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

// Close is a no-op; the pool is owned by database.DB
func (r *AssessmentRepository) Close() error {
	return nil
}

func scanAssessment(row pgx.Row) (*domain.Assessment, error) {
	var (
		a          domain.Assessment
		riskResult *string
		status     string
	)
	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.PatientName,
		&a.Del17pTP53,
		&a.TranslocationCombo,
		&a.Del1p32_1q,
		&a.B2MValue,
		&a.CreatinineValue,
		&a.ClinicalNotes,
		&a.PhysicianName,
		&a.Institution,
		&riskResult,
		&a.RiskFactors,
		&a.TotalRiskFactors,
		&status,
		&a.Version,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if riskResult != nil {
		rr := domain.RiskResult(*riskResult)
		a.RiskResult = &rr
	}
	a.RiskFactors = nonNilFactors(a.RiskFactors)
	a.Status = domain.AssessmentStatus(status)
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return &a, nil
}

func riskResultParam(r *domain.RiskResult) *string {
	if r == nil {
		return nil
	}
	s := string(*r)
	return &s
}

