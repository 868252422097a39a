// internal/outbox/store.go
package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"internship-portal/internal/common/database"
	apperrors "internship-portal/internal/common/errors"
	"internship-portal/internal/models"

	"github.com/google/uuid"
)

// NewEvent builds an outbox row for payload.
func NewEvent(aggregateType, aggregateID string, eventType models.EventType, payload interface{}, at time.Time) (*models.OutboxEvent, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &models.OutboxEvent{
		ID:            uuid.NewString(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       body,
		NextAttemptAt: at,
		CreatedAt:     at,
	}, nil
}

// Store reads and writes outbox_events through a *sql.DB or *sql.Tx.
type Store struct {
	q database.Querier
}

func NewStore(q database.Querier) *Store {
	return &Store{q: q}
}

// Enqueue must run in the same transaction as the state change it announces.
func (s *Store) Enqueue(ctx context.Context, e *models.OutboxEvent) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO outbox_events (id, aggregate_type, aggregate_id, event_type, payload, next_attempt_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.AggregateType, e.AggregateID, string(e.EventType), []byte(e.Payload), e.NextAttemptAt, e.CreatedAt,
	)
	if err != nil {
		return apperrors.NewDatabaseInsertFailedError(err)
	}
	return nil
}

// FetchDue locks up to limit due events. SKIP LOCKED lets several relays
// share the table without handing the same row to two of them.
func (s *Store) FetchDue(ctx context.Context, now time.Time, limit int) ([]models.OutboxEvent, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, attempts, next_attempt_at, last_error, created_at
		FROM outbox_events
		WHERE published_at IS NULL AND NOT dead AND next_attempt_at <= $1
		ORDER BY created_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED`, now, limit)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("fetch_outbox", err)
	}
	defer rows.Close()

	var out []models.OutboxEvent
	for rows.Next() {
		var (
			e         models.OutboxEvent
			eventType string
			payload   []byte
			lastErr   sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &eventType, &payload, &e.Attempts,
			&e.NextAttemptAt, &lastErr, &e.CreatedAt); err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("fetch_outbox", err)
		}
		e.EventType = models.EventType(eventType)
		e.Payload = payload
		if lastErr.Valid {
			msg := lastErr.String
			e.LastError = &msg
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("fetch_outbox", err)
	}
	return out, nil
}

func (s *Store) MarkPublished(ctx context.Context, id string, at time.Time) error {
	if _, err := s.q.ExecContext(ctx,
		`UPDATE outbox_events SET published_at = $2, attempts = attempts + 1, last_error = NULL WHERE id = $1`,
		id, at); err != nil {
		return apperrors.NewQueryExecutionFailedError("mark_outbox_published", err)
	}
	return nil
}

// MarkFailed records a failed attempt and schedules the next one. dead stops
// further attempts; the row stays for inspection.
func (s *Store) MarkFailed(ctx context.Context, id string, cause string, next time.Time, dead bool) error {
	if _, err := s.q.ExecContext(ctx, `
		UPDATE outbox_events SET attempts = attempts + 1, last_error = $2, next_attempt_at = $3, dead = $4
		WHERE id = $1`, id, cause, next, dead); err != nil {
		return apperrors.NewQueryExecutionFailedError("mark_outbox_failed", err)
	}
	return nil
}
