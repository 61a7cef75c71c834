package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/Arrogantx/slapper/internal/models"
)

// EventArchive appends realtime change events to ClickHouse
type EventArchive struct {
	db *ClickHouseDB
}

// NewEventArchive creates a new event archive
func NewEventArchive(db *ClickHouseDB) *EventArchive {
	return &EventArchive{db: db}
}

// AppendBatch writes events in one batch. Re-sending a batch is safe: the
// table deduplicates on event id at merge time.
func (a *EventArchive) AppendBatch(ctx context.Context, events []*models.ChangeEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := a.db.Conn().PrepareBatch(ctx, `
		INSERT INTO change_events (event_id, table_name, op, row_id, wallet, payload, occurred_at)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, e := range events {
		if err := batch.Append(e.ID, e.Table, string(e.Op), e.RowID, e.Wallet, string(e.Payload), e.OccurredAt.UTC()); err != nil {
			return fmt.Errorf("failed to append to batch: %w", err)
		}
	}

	return batch.Send()
}

// CountSince returns per-table event counts since a point in time
func (a *EventArchive) CountSince(ctx context.Context, since time.Time) (map[string]uint64, error) {
	query := `
		SELECT table_name, count() AS events
		FROM change_events FINAL
		WHERE occurred_at >= ?
		GROUP BY table_name
	`

	rows, err := a.db.Conn().Query(ctx, query, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]uint64)
	for rows.Next() {
		var table string
		var n uint64
		if err := rows.Scan(&table, &n); err != nil {
			return nil, fmt.Errorf("failed to scan event count: %w", err)
		}
		counts[table] = n
	}

	return counts, rows.Err()
}
