package payout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hackgods/telehealth-scheduling/internal/apperr"
	"github.com/hackgods/telehealth-scheduling/internal/db"
	"github.com/hackgods/telehealth-scheduling/internal/eventlog"
)

var (
	ErrPayoutNotFound = apperr.New(apperr.KindNotFound, "payout not found")
	ErrPayoutPending  = apperr.New(apperr.KindInvalidState, "a payout is already being processed for this doctor")
)

type Repository interface {
	// LockDoctor serializes payout requests of one doctor until the
	// transaction ends.
	LockDoctor(ctx context.Context, q db.DBTX, doctorID uuid.UUID) error
	HasProcessing(ctx context.Context, q db.DBTX, doctorID uuid.UUID) (bool, error)
	Insert(ctx context.Context, q db.DBTX, p *Payout) error
	GetForUpdate(ctx context.Context, q db.DBTX, id uuid.UUID) (*Payout, error)
	MarkProcessed(ctx context.Context, q db.DBTX, id, adminID uuid.UUID, at time.Time) (*Payout, error)
	ListByStatus(ctx context.Context, q db.DBTX, status Status, limit int) ([]Payout, error)
	InsertEvent(ctx context.Context, q db.DBTX, ev eventlog.Event) error
}

type PgRepository struct{}

func NewPgRepository() *PgRepository {
	return &PgRepository{}
}

const payoutColumns = `id, doctor_id, credits, amount_cents, platform_fee_cents, net_amount_cents,
	paypal_email, status, created_at, processed_at, processed_by`

func scanPayout(row pgx.Row) (*Payout, error) {
	var p Payout

	err := row.Scan(
		&p.ID,
		&p.DoctorID,
		&p.Credits,
		&p.AmountCents,
		&p.PlatformFeeCents,
		&p.NetAmountCents,
		&p.PayPalEmail,
		&p.Status,
		&p.CreatedAt,
		&p.ProcessedAt,
		&p.ProcessedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPayoutNotFound
		}
		return nil, err
	}

	return &p, nil
}

func (r *PgRepository) LockDoctor(ctx context.Context, q db.DBTX, doctorID uuid.UUID) error {
	return db.LockKey(ctx, q, "payout", doctorID)
}

func (r *PgRepository) HasProcessing(ctx context.Context, q db.DBTX, doctorID uuid.UUID) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM payouts WHERE doctor_id = $1 AND status = 'PROCESSING'
		)
	`, doctorID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check processing payout: %w", err)
	}
	return exists, nil
}

func (r *PgRepository) Insert(ctx context.Context, q db.DBTX, p *Payout) error {
	err := q.QueryRow(ctx, `
		INSERT INTO payouts (id, doctor_id, credits, amount_cents, platform_fee_cents, net_amount_cents,
		                     paypal_email, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		RETURNING created_at
	`, p.ID, p.DoctorID, p.Credits, p.AmountCents, p.PlatformFeeCents, p.NetAmountCents,
		p.PayPalEmail, string(p.Status)).Scan(&p.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrPayoutPending
		}
		return fmt.Errorf("insert payout: %w", err)
	}
	return nil
}

func (r *PgRepository) GetForUpdate(ctx context.Context, q db.DBTX, id uuid.UUID) (*Payout, error) {
	row := q.QueryRow(ctx, `
		SELECT `+payoutColumns+`
		FROM payouts
		WHERE id = $1
		FOR UPDATE
	`, id)
	return scanPayout(row)
}

func (r *PgRepository) MarkProcessed(ctx context.Context, q db.DBTX, id, adminID uuid.UUID, at time.Time) (*Payout, error) {
	row := q.QueryRow(ctx, `
		UPDATE payouts
		SET status = 'PROCESSED',
		    processed_at = $3,
		    processed_by = $2
		WHERE id = $1
		  AND status = 'PROCESSING'
		RETURNING `+payoutColumns, id, adminID, at)
	return scanPayout(row)
}

func (r *PgRepository) ListByStatus(ctx context.Context, q db.DBTX, status Status, limit int) ([]Payout, error) {
	rows, err := q.Query(ctx, `
		SELECT `+payoutColumns+`
		FROM payouts
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("list payouts: %w", err)
	}
	defer rows.Close()

	var result []Payout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, q db.DBTX, ev eventlog.Event) error {
	return eventlog.Insert(ctx, q, ev)
}
