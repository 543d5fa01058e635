package history

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	_ "github.com/lib/pq"

	"github.com/imwg-risk-calculator/internal/domain"
)

const selectEntries = `
	SELECT id, assessment_id, patient_id, action, changes, performed_by, notes, timestamp
	FROM assessment_history`

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL history store.
// It expects the schema to already exist (created via migrations).
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL history store from a connection URL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Append stores a new history entry.
func (s *PostgresStore) Append(ctx context.Context, entry *domain.HistoryEntry) error {
	if err := checkEntry(entry); err != nil {
		return err
	}
	changes, err := encodeChanges(entry.Changes)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO assessment_history (
			id, assessment_id, patient_id, action, changes, performed_by, notes, timestamp
		) VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8)
	`,
		entry.ID,
		entry.AssessmentID,
		entry.PatientID,
		string(entry.Action),
		changes,
		entry.PerformedBy,
		entry.Notes,
		entry.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}
	return nil
}

// ListByAssessment returns the entries of one assessment, newest first.
func (s *PostgresStore) ListByAssessment(ctx context.Context, assessmentID string) ([]*domain.HistoryEntry, error) {
	return s.query(ctx, selectEntries+`
		WHERE assessment_id = $1
		ORDER BY timestamp DESC, seq DESC`, assessmentID)
}

// Count returns the total number of history entries.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM assessment_history").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count history: %w", err)
	}
	return count, nil
}

// ExportJSON exports the whole audit trail to a JSON writer.
func (s *PostgresStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	all, err := s.query(ctx, selectEntries+`
		ORDER BY timestamp DESC, seq DESC
		LIMIT $1`, maxExportLimit)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}
	return writeExport(writer, all, time.Now().UTC())
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...interface{}) ([]*domain.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	result := make([]*domain.HistoryEntry, 0)
	for rows.Next() {
		var (
			entry   domain.HistoryEntry
			action  string
			changes []byte
		)
		if err := rows.Scan(
			&entry.ID, &entry.AssessmentID, &entry.PatientID, &action,
			&changes, &entry.PerformedBy, &entry.Notes, &entry.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		entry.Action = domain.HistoryAction(action)
		entry.Timestamp = entry.Timestamp.UTC()
		if entry.Changes, err = decodeChanges(changes); err != nil {
			return nil, err
		}
		result = append(result, &entry)
	}
	return result, rows.Err()
}
