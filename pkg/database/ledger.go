package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/golf-outing/backend/pkg/apperr"
)

// RecordEvent inserts a webhook event into processed_events inside tx. A
// replayed event id fails with apperr.ErrEventAlreadyProcessed, which rolls
// back whatever the transaction already wrote. An empty id records nothing.
func RecordEvent(ctx context.Context, tx pgx.Tx, eventID, sessionID, kind string, userID uuid.UUID, amountCents int64) error {
	if eventID == "" {
		return nil
	}
	const q = `INSERT INTO processed_events (event_id, session_id, kind, user_id, amount_cents) VALUES ($1, $2, $3, $4, $5)`
	if _, err := tx.Exec(ctx, q, eventID, sessionID, kind, userID, amountCents); err != nil {
		if _, ok := UniqueViolation(err); ok {
			return apperr.ErrEventAlreadyProcessed
		}
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// EventProcessed reports whether eventID is already in the ledger.
func EventProcessed(ctx context.Context, pool *pgxpool.Pool, eventID string) (bool, error) {
	var one int
	err := pool.QueryRow(ctx, `SELECT 1 FROM processed_events WHERE event_id = $1`, eventID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check event: %w", err)
	}
	return true, nil
}
