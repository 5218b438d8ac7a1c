package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/telehealth-scheduling/internal/db"
)

// Store is the persistence side of the ledger. Every method runs on the
// handle it is given so balance changes and their rows share a transaction.
type Store interface {
	// Lock holds the account row until the transaction ends.
	Lock(ctx context.Context, q db.DBTX, accountID uuid.UUID) error
	// Debit subtracts amount only if the balance covers it and returns the
	// new balance.
	Debit(ctx context.Context, q db.DBTX, accountID uuid.UUID, amount int64) (int64, error)
	Credit(ctx context.Context, q db.DBTX, accountID uuid.UUID, amount int64) (int64, error)
	Append(ctx context.Context, q db.DBTX, t Transaction) error
	Balance(ctx context.Context, q db.DBTX, accountID uuid.UUID) (int64, error)
	Sum(ctx context.Context, q db.DBTX, accountID uuid.UUID) (int64, error)
	List(ctx context.Context, q db.DBTX, accountID uuid.UUID, limit int) ([]Transaction, error)
}

type PgStore struct{}

func NewPgStore() *PgStore {
	return &PgStore{}
}

func (PgStore) Lock(ctx context.Context, q db.DBTX, accountID uuid.UUID) error {
	var id uuid.UUID
	err := q.QueryRow(ctx, `SELECT id FROM accounts WHERE id = $1 FOR UPDATE`, accountID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("lock account: %w", err)
	}
	return nil
}

func (PgStore) Debit(ctx context.Context, q db.DBTX, accountID uuid.UUID, amount int64) (int64, error) {
	var balance int64
	err := q.QueryRow(ctx, `
		UPDATE accounts
		SET credits = credits - $2,
		    updated_at = now()
		WHERE id = $1
		  AND credits >= $2
		RETURNING credits
	`, accountID, amount).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("debit account: %w", err)
	}

	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, accountID).Scan(&exists); err != nil {
		return 0, fmt.Errorf("check account: %w", err)
	}
	if !exists {
		return 0, ErrAccountNotFound
	}
	return 0, ErrInsufficientCredits
}

func (PgStore) Credit(ctx context.Context, q db.DBTX, accountID uuid.UUID, amount int64) (int64, error) {
	var balance int64
	err := q.QueryRow(ctx, `
		UPDATE accounts
		SET credits = credits + $2,
		    updated_at = now()
		WHERE id = $1
		RETURNING credits
	`, accountID, amount).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrAccountNotFound
		}
		return 0, fmt.Errorf("credit account: %w", err)
	}
	return balance, nil
}

func (PgStore) Append(ctx context.Context, q db.DBTX, t Transaction) error {
	_, err := q.Exec(ctx, `
		INSERT INTO credit_transactions (id, account_id, amount, type, appointment_id, payout_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, t.ID, t.AccountID, t.Amount, string(t.Type), t.AppointmentID, t.PayoutID, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert credit transaction: %w", err)
	}
	return nil
}

func (PgStore) Balance(ctx context.Context, q db.DBTX, accountID uuid.UUID) (int64, error) {
	var balance int64
	err := q.QueryRow(ctx, `SELECT credits FROM accounts WHERE id = $1`, accountID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrAccountNotFound
		}
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return balance, nil
}

func (PgStore) Sum(ctx context.Context, q db.DBTX, accountID uuid.UUID) (int64, error) {
	var sum int64
	err := q.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)::bigint
		FROM credit_transactions
		WHERE account_id = $1
	`, accountID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum credit transactions: %w", err)
	}
	return sum, nil
}

func (PgStore) List(ctx context.Context, q db.DBTX, accountID uuid.UUID, limit int) ([]Transaction, error) {
	rows, err := q.Query(ctx, `
		SELECT id, account_id, amount, type, appointment_id, payout_id, created_at
		FROM credit_transactions
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("list credit transactions: %w", err)
	}
	defer rows.Close()

	var result []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Amount, &t.Type, &t.AppointmentID, &t.PayoutID, &t.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
