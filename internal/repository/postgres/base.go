package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/famalink/telemed-api/internal/repository"
	"github.com/famalink/telemed-api/pkg/retry"
)

const (
	pqUniqueViolation    = "23505"
	pqExclusionViolation = "23P01"
)

// BaseRepository carries the connection and the per-call policies shared by
// all repositories: a deadline on every call and retries for reads only.
type BaseRepository struct {
	db           *sqlx.DB
	queryTimeout time.Duration
	readRetry    retry.Config
}

func NewBaseRepository(db *sqlx.DB, queryTimeout time.Duration, readRetry retry.Config) BaseRepository {
	if queryTimeout <= 0 {
		queryTimeout = 5 * time.Second
	}
	return BaseRepository{db: db, queryTimeout: queryTimeout, readRetry: readRetry}
}

func (r *BaseRepository) GetDB() *sqlx.DB {
	return r.db
}

func (r *BaseRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.queryTimeout)
}

// read runs an idempotent query, retrying transient failures. Each attempt
// gets its own deadline.
func (r *BaseRepository) read(ctx context.Context, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, r.readRetry, func() error {
		attemptCtx, cancel := r.withTimeout(ctx)
		defer cancel()

		err := fn(attemptCtx)
		if err == nil || isTransient(err) {
			return err
		}
		return retry.Permanent(err)
	})
}

// write runs fn once under the query deadline.
func (r *BaseRepository) write(ctx context.Context, fn func(ctx context.Context) error) error {
	writeCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	return fn(writeCtx)
}

// WithTx executes fn within a transaction under the query deadline.
func (r *BaseRepository) WithTx(ctx context.Context, fn func(ctx context.Context, tx *sqlx.Tx) error) error {
	return r.write(ctx, func(ctx context.Context) error {
		tx, err := r.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		defer func() {
			if p := recover(); p != nil {
				_ = tx.Rollback()
				panic(p)
			}
		}()

		if err := fn(ctx, tx); err != nil {
			_ = tx.Rollback()
			return err
		}

		return tx.Commit()
	})
}

func isTransient(err error) bool {
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "40", "53", "57":
			// connection, transaction rollback, resources, operator intervention
			return true
		}
	}
	return false
}

// translate maps driver errors onto repository sentinels, keeping the cause.
func translate(err error, action string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqExclusionViolation:
			return fmt.Errorf("failed to %s: %w", action, repository.ErrOverlap)
		case pqUniqueViolation:
			return fmt.Errorf("failed to %s: %w (%s)", action, repository.ErrDuplicate, pqErr.Constraint)
		}
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}

func checkAffected(result sql.Result, action string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to %s: %w", action, err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
