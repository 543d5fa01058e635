package history

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/imwg-risk-calculator/internal/database"
	"github.com/imwg-risk-calculator/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite history store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := database.OpenSQLite(dbPath)
	if err != nil {
		return nil, err
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// createSchema creates the history table, its index and the append-only triggers.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS assessment_history (
		id TEXT PRIMARY KEY,
		assessment_id TEXT NOT NULL,
		patient_id TEXT NOT NULL DEFAULT '',
		action TEXT NOT NULL,
		changes TEXT NOT NULL DEFAULT '{}',
		performed_by TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		timestamp TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_history_assessment ON assessment_history(assessment_id, timestamp);

	CREATE TRIGGER IF NOT EXISTS assessment_history_no_update
	BEFORE UPDATE ON assessment_history
	BEGIN
		SELECT RAISE(ABORT, 'assessment_history is append-only');
	END;

	CREATE TRIGGER IF NOT EXISTS assessment_history_no_delete
	BEFORE DELETE ON assessment_history
	BEGIN
		SELECT RAISE(ABORT, 'assessment_history is append-only');
	END;
	`

	_, err := db.Exec(schema)
	return err
}

// Append stores a new history entry.
func (s *SQLiteStore) Append(ctx context.Context, entry *domain.HistoryEntry) error {
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
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.ID,
		entry.AssessmentID,
		entry.PatientID,
		string(entry.Action),
		changes,
		entry.PerformedBy,
		entry.Notes,
		database.FormatSQLiteTime(entry.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}
	return nil
}

// ListByAssessment returns the entries of one assessment, newest first.
func (s *SQLiteStore) ListByAssessment(ctx context.Context, assessmentID string) ([]*domain.HistoryEntry, error) {
	return s.query(ctx, `
		SELECT id, assessment_id, patient_id, action, changes, performed_by, notes, timestamp
		FROM assessment_history
		WHERE assessment_id = ?
		ORDER BY timestamp DESC, rowid DESC
	`, assessmentID)
}

// Count returns the total number of history entries.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM assessment_history").Scan(&count)
	return count, err
}

// ExportJSON exports the whole audit trail to a JSON writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	all, err := s.query(ctx, `
		SELECT id, assessment_id, patient_id, action, changes, performed_by, notes, timestamp
		FROM assessment_history
		ORDER BY timestamp DESC, rowid DESC
		LIMIT ?
	`, maxExportLimit)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}
	return writeExport(writer, all, time.Now().UTC())
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) query(ctx context.Context, query string, args ...interface{}) ([]*domain.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	result := make([]*domain.HistoryEntry, 0)
	for rows.Next() {
		var (
			entry             domain.HistoryEntry
			action, timestamp string
			changes           string
		)
		if err := rows.Scan(
			&entry.ID, &entry.AssessmentID, &entry.PatientID, &action,
			&changes, &entry.PerformedBy, &entry.Notes, &timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		entry.Action = domain.HistoryAction(action)
		if entry.Changes, err = decodeChanges([]byte(changes)); err != nil {
			return nil, err
		}
		if entry.Timestamp, err = database.ParseSQLiteTime(timestamp); err != nil {
			return nil, err
		}
		result = append(result, &entry)
	}
	return result, rows.Err()
}
