package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/famalink/telemed-api/internal/model"
	"github.com/famalink/telemed-api/internal/repository"
)

// claimLease is how long a claimed event stays invisible to other processors.
const claimLease = time.Minute

type outboxRepository struct {
	BaseRepository
}

func NewOutboxRepository(base BaseRepository) repository.OutboxRepository {
	return &outboxRepository{base}
}

// insertOutboxEvent writes event inside the caller's transaction.
func insertOutboxEvent(ctx context.Context, tx *sqlx.Tx, event *model.OutboxEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.Status = model.OutboxStatusPending
	event.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO outbox_events (id, event_type, aggregate_id, payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := tx.ExecContext(ctx, query,
		event.ID,
		event.EventType,
		event.AggregateID,
		[]byte(event.Payload),
		event.Status,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

func (r *outboxRepository) ClaimPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	query := `
		UPDATE outbox_events
		SET claimed_at = now(), retry_count = retry_count + 1
		WHERE id IN (
			SELECT id FROM outbox_events
			WHERE status = $1
			  AND (claimed_at IS NULL OR claimed_at < now() - $2 * interval '1 second')
			ORDER BY created_at ASC
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, event_type, aggregate_id, payload, status, error_message,
		          retry_count, created_at, processed_at
	`
	events := []*model.OutboxEvent{}
	err := r.write(ctx, func(ctx context.Context) error {
		return r.db.SelectContext(ctx, &events, query,
			model.OutboxStatusPending, claimLease.Seconds(), limit)
	})
	if err != nil {
		return nil, translate(err, "claim outbox events")
	}
	return events, nil
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE outbox_events
		SET status = $1, processed_at = now(), error_message = NULL
		WHERE id = $2
	`
	return r.write(ctx, func(ctx context.Context) error {
		result, err := r.db.ExecContext(ctx, query, model.OutboxStatusProcessed, id)
		if err != nil {
			return translate(err, "mark outbox event processed")
		}
		return checkAffected(result, "mark outbox event processed")
	})
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string, final bool) error {
	status := model.OutboxStatusPending
	if final {
		status = model.OutboxStatusFailed
	}
	// Releasing the claim lets the next poll retry a non-final failure.
	query := `
		UPDATE outbox_events
		SET status = $1, error_message = $2, claimed_at = NULL
		WHERE id = $3
	`
	return r.write(ctx, func(ctx context.Context) error {
		result, err := r.db.ExecContext(ctx, query, status, reason, id)
		if err != nil {
			return translate(err, "mark outbox event failed")
		}
		return checkAffected(result, "mark outbox event failed")
	})
}

func (r *outboxRepository) CountPending(ctx context.Context) (int, error) {
	var count int
	err := r.read(ctx, func(ctx context.Context) error {
		return r.db.GetContext(ctx, &count,
			`SELECT COUNT(*) FROM outbox_events WHERE status = $1`, model.OutboxStatusPending)
	})
	if err != nil {
		return 0, translate(err, "count outbox events")
	}
	return count, nil
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := r.write(ctx, func(ctx context.Context) error {
		result, err := r.db.ExecContext(ctx,
			`DELETE FROM outbox_events WHERE status = $1 AND processed_at < $2`,
			model.OutboxStatusProcessed, cutoff)
		if err != nil {
			return err
		}
		deleted, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, translate(err, "delete processed outbox events")
	}
	return deleted, nil
}
