package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"nutrichat/internal/domain"
)

// insertEvents writes pending domain events into the outbox inside the same
// transaction as the state change. A separate worker drains published rows.
func insertEvents(ctx context.Context, tx pgx.Tx, events []domain.Event) error {
	const query = `
		INSERT INTO outbox_events (id, event_type, payload, occurred_at)
		VALUES ($1, $2, $3, $4)
	`
	for _, e := range events {
		payload, err := json.Marshal(e.Payload)
		if err != nil {
			return fmt.Errorf("marshal event payload: %w", err)
		}
		if _, err := tx.Exec(ctx, query, e.ID, e.Type, payload, e.OccurredAt); err != nil {
			return fmt.Errorf("insert outbox event: %w", err)
		}
	}
	return nil
}
