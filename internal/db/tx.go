package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hackgods/telehealth-scheduling/internal/apperr"
)

// ErrStoreUnavailable is returned when a transaction keeps failing for
// retryable reasons (serialization, deadlock, lock or statement timeout).
var ErrStoreUnavailable = apperr.New(apperr.KindUpstreamUnavailable, "store temporarily unavailable, please retry")

// DBTX is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock, so repositories can
// run either standalone or inside a caller's transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type TxBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// TxRunner runs fn inside one store transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context, q DBTX) error) error
}

type Runner struct {
	db       TxBeginner
	timeout  time.Duration
	opts     pgx.TxOptions
	maxTries uint
	onRetry  func()
}

func NewRunner(db TxBeginner, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Runner{
		db:       db,
		timeout:  timeout,
		opts:     pgx.TxOptions{IsoLevel: pgx.ReadCommitted},
		maxTries: 2,
	}
}

// OnRetry registers a hook called before each retried attempt.
func (r *Runner) OnRetry(fn func()) *Runner {
	r.onRetry = fn
	return r
}

// InTx runs fn in a transaction bounded by the runner timeout. A retryable
// failure is retried once with backoff before surfacing ErrStoreUnavailable.
// Errors returned by fn that are not retryable are passed through unchanged.
func (r *Runner) InTx(ctx context.Context, fn func(ctx context.Context, q DBTX) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		if attempt > 1 && r.onRetry != nil {
			r.onRetry()
		}
		err := r.once(ctx, fn)
		if err == nil {
			return struct{}{}, nil
		}
		if ctx.Err() == nil && IsRetryable(err) {
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(r.maxTries))
	if err == nil {
		return nil
	}
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Err
	}
	if ctx.Err() == nil && IsRetryable(err) {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return err
}

func (r *Runner) once(ctx context.Context, fn func(ctx context.Context, q DBTX) error) error {
	txCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTx(txCtx, r.opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	if err := fn(txCtx, tx); err != nil {
		return err
	}
	if err := tx.Commit(txCtx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// LockKey takes a transaction-scoped advisory lock on namespace:id. It is
// released automatically at commit or rollback.
func LockKey(ctx context.Context, q DBTX, namespace string, id uuid.UUID) error {
	_, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, namespace+":"+id.String())
	if err != nil {
		return fmt.Errorf("advisory lock %s: %w", namespace, err)
	}
	return nil
}

// IsRetryable reports failures worth one more attempt.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", // serialization_failure
			"40P01", // deadlock_detected
			"55P03", // lock_not_available
			"57014": // query_canceled (statement_timeout)
			return true
		}
		return false
	}
	return errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err)
}

// IsExclusionViolation reports an exclusion constraint conflict (23P01).
func IsExclusionViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
