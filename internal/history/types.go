// Package history provides the append-only audit trail of assessment actions.
// Stores expose no update or delete operation; entries outlive the assessments
// they describe.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/imwg-risk-calculator/internal/domain"
)

// Store is a domain.HistoryStore that can also export its contents.
type Store interface {
	domain.HistoryStore

	// ExportJSON writes every entry, newest first, to writer.
	ExportJSON(ctx context.Context, writer io.Writer) error
}

// Export represents the JSON export format.
type Export struct {
	Version    string                 `json:"version"`
	ExportedAt time.Time              `json:"exported_at"`
	Count      int                    `json:"count"`
	Entries    []*domain.HistoryEntry `json:"entries"`
}

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 1000000

func checkEntry(entry *domain.HistoryEntry) error {
	if entry == nil {
		return fmt.Errorf("history entry is nil")
	}
	if entry.ID == "" || entry.AssessmentID == "" {
		return fmt.Errorf("history entry requires id and assessment_id")
	}
	return entry.Action.Validate()
}

func encodeChanges(changes map[string]interface{}) (string, error) {
	if changes == nil {
		return "{}", nil
	}
	b, err := json.Marshal(changes)
	if err != nil {
		return "", fmt.Errorf("encoding changes: %w", err)
	}
	return string(b), nil
}

func decodeChanges(raw []byte) (map[string]interface{}, error) {
	changes := make(map[string]interface{})
	if len(raw) == 0 {
		return changes, nil
	}
	if err := json.Unmarshal(raw, &changes); err != nil {
		return nil, fmt.Errorf("decoding changes: %w", err)
	}
	return changes, nil
}

func writeExport(writer io.Writer, entries []*domain.HistoryEntry, now time.Time) error {
	export := &Export{
		Version:    "1.0",
		ExportedAt: now,
		Count:      len(entries),
		Entries:    entries,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}
