package history

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imwg-risk-calculator/internal/domain"
)

var historyColumns = []string{
	"id", "assessment_id", "patient_id", "action", "changes", "performed_by", "notes", "timestamp",
}

func setupMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewPostgresStore(db)
	require.NoError(t, err)
	return store, mock
}

func TestNewPostgresStore_NilDB(t *testing.T) {
	store, err := NewPostgresStore(nil)
	assert.Nil(t, store)
	assert.Error(t, err)
}

func TestPostgresStore_Append(t *testing.T) {
	store, mock := setupMockStore(t)

	entry := newEntry("h-1", "a-1", domain.ActionCreated, baseTime)
	mock.ExpectExec("INSERT INTO assessment_history").
		WithArgs("h-1", "a-1", "P-001", "created", `{"created_by":"Dr. Smith"}`, "dr.smith", "", baseTime).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Append(context.Background(), entry)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AppendNilChanges(t *testing.T) {
	store, mock := setupMockStore(t)

	entry := newEntry("h-1", "a-1", domain.ActionDeleted, baseTime)
	entry.Changes = nil
	mock.ExpectExec("INSERT INTO assessment_history").
		WithArgs("h-1", "a-1", "P-001", "deleted", "{}", "dr.smith", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Append(context.Background(), entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AppendError(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectExec("INSERT INTO assessment_history").
		WillReturnError(errors.New("append-only"))

	err := store.Append(context.Background(), newEntry("h-1", "a-1", domain.ActionCreated, baseTime))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to append history")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AppendInvalidAction(t *testing.T) {
	store, mock := setupMockStore(t)

	err := store.Append(context.Background(), newEntry("h-1", "a-1", domain.HistoryAction("archived"), baseTime))

	assert.ErrorIs(t, err, domain.ErrInvalidAction)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListByAssessment(t *testing.T) {
	store, mock := setupMockStore(t)

	rows := sqlmock.NewRows(historyColumns).
		AddRow("h-2", "a-1", "P-001", "calculated", []byte(`{"risk_result":"STANDARD_RISK","total_risk_factors":0}`), "", "", baseTime.Add(time.Minute)).
		AddRow("h-1", "a-1", "P-001", "created", []byte(`{"created_by":"Unknown"}`), "", "", baseTime)
	mock.ExpectQuery("SELECT (.+) FROM assessment_history\\s+WHERE assessment_id = \\$1\\s+ORDER BY timestamp DESC, seq DESC").
		WithArgs("a-1").
		WillReturnRows(rows)

	entries, err := store.ListByAssessment(context.Background(), "a-1")

	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.ActionCalculated, entries[0].Action)
	assert.Equal(t, "STANDARD_RISK", entries[0].Changes["risk_result"])
	assert.Equal(t, "Unknown", entries[1].Changes["created_by"])
	assert.Equal(t, baseTime, entries[1].Timestamp)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListByAssessmentEmpty(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM assessment_history").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(historyColumns))

	entries, err := store.ListByAssessment(context.Background(), "missing")

	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListQueryError(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM assessment_history").
		WillReturnError(sql.ErrConnDone)

	_, err := store.ListByAssessment(context.Background(), "a-1")

	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Count(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM assessment_history").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := store.Count(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(7), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
