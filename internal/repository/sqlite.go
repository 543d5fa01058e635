package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/imwg-risk-calculator/internal/database"
	"github.com/imwg-risk-calculator/internal/domain"
)

// SQLiteAssessmentRepository implements domain.AssessmentRepository on an embedded
// SQLite database. It backs development setups and the MCP server.
type SQLiteAssessmentRepository struct {
	db     *sql.DB
	dbPath string
	log    *logrus.Logger
}

// NewSQLiteAssessmentRepository opens the database at dbPath and creates the schema
// if it does not exist.
func NewSQLiteAssessmentRepository(dbPath string, logger *logrus.Logger) (*SQLiteAssessmentRepository, error) {
	db, err := database.OpenSQLite(dbPath)
	if err != nil {
		return nil, err
	}

	if err := createAssessmentSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteAssessmentRepository{
		db:     db,
		dbPath: dbPath,
		log:    logger,
	}, nil
}

func createAssessmentSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS assessments (
		id TEXT PRIMARY KEY,
		patient_id TEXT NOT NULL DEFAULT '',
		patient_name TEXT NOT NULL DEFAULT '',
		del17p_tp53 TEXT NOT NULL,
		translocation_combo TEXT NOT NULL,
		del1p32_1q TEXT NOT NULL,
		b2m_value REAL,
		creatinine_value REAL,
		clinical_notes TEXT NOT NULL DEFAULT '',
		physician_name TEXT NOT NULL DEFAULT '',
		institution TEXT NOT NULL DEFAULT '',
		risk_result TEXT,
		risk_factors TEXT NOT NULL DEFAULT '[]',
		total_risk_factors INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'DRAFT',
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_assessments_patient_id ON assessments(patient_id);
	CREATE INDEX IF NOT EXISTS idx_assessments_created_at ON assessments(created_at);

	CREATE TABLE IF NOT EXISTS calculations (
		id TEXT PRIMARY KEY,
		assessment_id TEXT NOT NULL,
		risk_result TEXT NOT NULL,
		risk_factors TEXT NOT NULL DEFAULT '[]',
		total_risk_factors INTEGER NOT NULL,
		clinical_interpretation TEXT NOT NULL,
		recommendations TEXT NOT NULL DEFAULT '[]',
		calculated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_calculations_assessment_id ON calculations(assessment_id);
	`

	_, err := db.Exec(schema)
	return err
}

// withTx runs fn inside a transaction, committing on success and rolling back on
// error or panic.
func (r *SQLiteAssessmentRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w; rollback error: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Create inserts a new assessment.
func (r *SQLiteAssessmentRepository) Create(ctx context.Context, a *domain.Assessment) error {
	factors, err := json.Marshal(nonNilFactors(a.RiskFactors))
	if err != nil {
		return fmt.Errorf("encoding risk factors: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO assessments (`+assessmentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		a.ID,
		a.PatientID,
		a.PatientName,
		a.Del17pTP53,
		a.TranslocationCombo,
		a.Del1p32_1q,
		nullFloat(a.B2MValue),
		nullFloat(a.CreatinineValue),
		a.ClinicalNotes,
		a.PhysicianName,
		a.Institution,
		riskResultParam(a.RiskResult),
		string(factors),
		a.TotalRiskFactors,
		string(a.Status),
		a.Version,
		database.FormatSQLiteTime(a.CreatedAt),
		database.FormatSQLiteTime(a.UpdatedAt),
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"assessment_id": a.ID,
			"error":         err,
		}).Error("Failed to create assessment")
		return fmt.Errorf("failed to insert assessment: %w", err)
	}
	return nil
}

// GetByID retrieves an assessment by its ID.
func (r *SQLiteAssessmentRepository) GetByID(ctx context.Context, id string) (*domain.Assessment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+assessmentColumns+` FROM assessments WHERE id = ?`, id)

	a, err := scanSQLiteAssessment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("assessment %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan assessment: %w", err)
	}
	return a, nil
}

// Update writes the input and metadata fields of an existing assessment.
func (r *SQLiteAssessmentRepository) Update(ctx context.Context, a *domain.Assessment) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE assessments SET
			patient_id = ?,
			patient_name = ?,
			del17p_tp53 = ?,
			translocation_combo = ?,
			del1p32_1q = ?,
			b2m_value = ?,
			creatinine_value = ?,
			clinical_notes = ?,
			physician_name = ?,
			institution = ?,
			updated_at = ?
		WHERE id = ?
	`,
		a.PatientID,
		a.PatientName,
		a.Del17pTP53,
		a.TranslocationCombo,
		a.Del1p32_1q,
		nullFloat(a.B2MValue),
		nullFloat(a.CreatinineValue),
		a.ClinicalNotes,
		a.PhysicianName,
		a.Institution,
		database.FormatSQLiteTime(a.UpdatedAt),
		a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update assessment: %w", err)
	}
	return requireRow(res, a.ID)
}

// List returns assessments matching the filter, newest first.
func (r *SQLiteAssessmentRepository) List(ctx context.Context, filter domain.AssessmentFilter) ([]*domain.Assessment, error) {
	tail, args := buildListQuery(filter, sqliteDialect)

	rows, err := r.db.QueryContext(ctx, `SELECT `+assessmentColumns+` FROM assessments`+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query assessments: %w", err)
	}
	defer rows.Close()

	result := make([]*domain.Assessment, 0)
	for rows.Next() {
		a, err := scanSQLiteAssessment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// SaveCalculation stores the derived fields and the calculation record atomically.
func (r *SQLiteAssessmentRepository) SaveCalculation(ctx context.Context, result *domain.RiskCalculationResult) error {
	factors, err := json.Marshal(nonNilFactors(result.RiskFactors))
	if err != nil {
		return fmt.Errorf("encoding risk factors: %w", err)
	}
	recommendations, err := json.Marshal(nonNilStrings(result.Recommendations))
	if err != nil {
		return fmt.Errorf("encoding recommendations: %w", err)
	}
	calculatedAt := database.FormatSQLiteTime(result.CalculatedAt)

	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE assessments SET
				risk_result = ?,
				risk_factors = ?,
				total_risk_factors = ?,
				status = ?,
				updated_at = ?
			WHERE id = ?
		`,
			string(result.RiskResult),
			string(factors),
			result.TotalRiskFactors,
			string(domain.COMPLETED),
			calculatedAt,
			result.AssessmentID,
		)
		if err != nil {
			return fmt.Errorf("failed to update derived fields: %w", err)
		}
		if err := requireRow(res, result.AssessmentID); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO calculations (
				id, assessment_id, risk_result, risk_factors, total_risk_factors,
				clinical_interpretation, recommendations, calculated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			result.ID,
			result.AssessmentID,
			string(result.RiskResult),
			string(factors),
			result.TotalRiskFactors,
			result.ClinicalInterpretation,
			string(recommendations),
			calculatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert calculation: %w", err)
		}
		return nil
	})
}

// ListCalculations returns the calculation records of an assessment, newest first.
func (r *SQLiteAssessmentRepository) ListCalculations(ctx context.Context, assessmentID string) ([]*domain.RiskCalculationResult, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, assessment_id, risk_result, risk_factors, total_risk_factors,
			clinical_interpretation, recommendations, calculated_at
		FROM calculations
		WHERE assessment_id = ?
		ORDER BY calculated_at DESC, id DESC
	`, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query calculations: %w", err)
	}
	defer rows.Close()

	results := make([]*domain.RiskCalculationResult, 0)
	for rows.Next() {
		var (
			res                      domain.RiskCalculationResult
			riskResult, calculatedAt string
			factors, recommendations string
		)
		if err := rows.Scan(
			&res.ID, &res.AssessmentID, &riskResult, &factors, &res.TotalRiskFactors,
			&res.ClinicalInterpretation, &recommendations, &calculatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		res.RiskResult = domain.RiskResult(riskResult)
		if err := json.Unmarshal([]byte(factors), &res.RiskFactors); err != nil {
			return nil, fmt.Errorf("decoding risk factors: %w", err)
		}
		if err := json.Unmarshal([]byte(recommendations), &res.Recommendations); err != nil {
			return nil, fmt.Errorf("decoding recommendations: %w", err)
		}
		if res.CalculatedAt, err = database.ParseSQLiteTime(calculatedAt); err != nil {
			return nil, err
		}
		results = append(results, &res)
	}
	return results, rows.Err()
}

// Delete removes an assessment and its calculation records.
func (r *SQLiteAssessmentRepository) Delete(ctx context.Context, id string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM calculations WHERE assessment_id = ?", id); err != nil {
			return fmt.Errorf("failed to delete calculations: %w", err)
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM assessments WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("failed to delete assessment: %w", err)
		}
		return requireRow(res, id)
	})
}

// Ping checks the database handle.
func (r *SQLiteAssessmentRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the store and releases resources.
func (r *SQLiteAssessmentRepository) Close() error {
	return r.db.Close()
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSQLiteAssessment(s scanner) (*domain.Assessment, error) {
	var (
		a                    domain.Assessment
		b2m, creatinine      sql.NullFloat64
		riskResult           sql.NullString
		factors, status      string
		createdAt, updatedAt string
	)
	err := s.Scan(
		&a.ID, &a.PatientID, &a.PatientName,
		&a.Del17pTP53, &a.TranslocationCombo, &a.Del1p32_1q,
		&b2m, &creatinine,
		&a.ClinicalNotes, &a.PhysicianName, &a.Institution,
		&riskResult, &factors, &a.TotalRiskFactors,
		&status, &a.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if b2m.Valid {
		a.B2MValue = &b2m.Float64
	}
	if creatinine.Valid {
		a.CreatinineValue = &creatinine.Float64
	}
	if riskResult.Valid {
		rr := domain.RiskResult(riskResult.String)
		a.RiskResult = &rr
	}
	if err := json.Unmarshal([]byte(factors), &a.RiskFactors); err != nil {
		return nil, fmt.Errorf("decoding risk factors: %w", err)
	}
	a.RiskFactors = nonNilFactors(a.RiskFactors)
	a.Status = domain.AssessmentStatus(status)
	if a.CreatedAt, err = database.ParseSQLiteTime(createdAt); err != nil {
		return nil, err
	}
	if a.UpdatedAt, err = database.ParseSQLiteTime(updatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("assessment %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
