package history

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imwg-risk-calculator/internal/domain"
)

var baseTime = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func createTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	return store
}

func newEntry(id, assessmentID string, action domain.HistoryAction, at time.Time) *domain.HistoryEntry {
	return &domain.HistoryEntry{
		ID:           id,
		AssessmentID: assessmentID,
		PatientID:    "P-001",
		Action:       action,
		Changes:      map[string]interface{}{"created_by": "Dr. Smith"},
		PerformedBy:  "dr.smith",
		Timestamp:    at,
	}
}

func TestNewSQLiteStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "data", "history.db")

	store, err := NewSQLiteStore(dbPath)

	require.NoError(t, err)
	require.NotNil(t, store)
	defer store.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "Database file should exist")
}

func TestSQLiteStore_AppendAndList(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	created := newEntry("h-1", "a-1", domain.ActionCreated, baseTime)
	calculated := newEntry("h-2", "a-1", domain.ActionCalculated, baseTime.Add(time.Minute))
	calculated.Changes = map[string]interface{}{"risk_result": "HIGH_RISK", "total_risk_factors": 2}
	other := newEntry("h-3", "a-2", domain.ActionCreated, baseTime.Add(2*time.Minute))

	for _, e := range []*domain.HistoryEntry{created, calculated, other} {
		require.NoError(t, store.Append(ctx, e))
	}

	entries, err := store.ListByAssessment(ctx, "a-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "h-2", entries[0].ID, "newest first")
	assert.Equal(t, domain.ActionCalculated, entries[0].Action)
	assert.Equal(t, "HIGH_RISK", entries[0].Changes["risk_result"])
	assert.Equal(t, float64(2), entries[0].Changes["total_risk_factors"])
	assert.Equal(t, baseTime.Add(time.Minute), entries[0].Timestamp)

	assert.Equal(t, created, entries[1])

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestSQLiteStore_ListUnknownAssessment(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	entries, err := store.ListByAssessment(context.Background(), "missing")
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestSQLiteStore_AppendRejectsInvalidEntries(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	tests := []struct {
		name  string
		entry *domain.HistoryEntry
	}{
		{name: "nil entry", entry: nil},
		{name: "missing id", entry: newEntry("", "a-1", domain.ActionCreated, baseTime)},
		{name: "missing assessment", entry: newEntry("h-1", "", domain.ActionCreated, baseTime)},
		{name: "unknown action", entry: newEntry("h-1", "a-1", domain.HistoryAction("archived"), baseTime)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, store.Append(ctx, tt.entry))
		})
	}

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSQLiteStore_IsAppendOnly(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, newEntry("h-1", "a-1", domain.ActionCreated, baseTime)))

	_, err := store.db.ExecContext(ctx, "UPDATE assessment_history SET performed_by = 'someone'")
	assert.Error(t, err)
	_, err = store.db.ExecContext(ctx, "DELETE FROM assessment_history")
	assert.Error(t, err)

	// Duplicate ids are rejected rather than overwriting.
	assert.Error(t, store.Append(ctx, newEntry("h-1", "a-1", domain.ActionDeleted, baseTime)))

	entries, err := store.ListByAssessment(ctx, "a-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "dr.smith", entries[0].PerformedBy)
}

func TestSQLiteStore_ExportJSON(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, newEntry("h-1", "a-1", domain.ActionCreated, baseTime)))
	require.NoError(t, store.Append(ctx, newEntry("h-2", "a-2", domain.ActionDeleted, baseTime.Add(time.Hour))))

	var buf bytes.Buffer
	require.NoError(t, store.ExportJSON(ctx, &buf))

	var export Export
	require.NoError(t, json.Unmarshal(buf.Bytes(), &export))
	assert.Equal(t, "1.0", export.Version)
	assert.Equal(t, 2, export.Count)
	require.Len(t, export.Entries, 2)
	assert.Equal(t, "h-2", export.Entries[0].ID)
	assert.False(t, export.ExportedAt.IsZero())
}
