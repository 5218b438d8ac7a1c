package ledger

import (
	"bytes"
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/telehealth-scheduling/internal/db"
)

// Ledger moves credits between accounts. It never opens a transaction of its
// own; callers pass the handle of the transaction the movement belongs to.
type Ledger struct {
	store Store
	now   func() time.Time
}

func New(store Store) *Ledger {
	return &Ledger{
		store: store,
		now:   time.Now,
	}
}

// Transfer debits amount from one account and, when to is set, credits the
// same amount to another. The debit fails with ErrInsufficientCredits when
// the balance does not cover it. The receiving row uses the counterpart type.
//
// Both account rows are locked in ascending id order before either balance
// changes, so opposite transfers between the same pair cannot deadlock.
func (l *Ledger) Transfer(ctx context.Context, q db.DBTX, from uuid.UUID, to *uuid.UUID, amount int64, typ Type, ref Ref) ([]Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if to != nil && *to != from {
		for _, id := range lockOrder(from, *to) {
			if err := l.store.Lock(ctx, q, id); err != nil {
				return nil, err
			}
		}
	}

	if _, err := l.store.Debit(ctx, q, from, amount); err != nil {
		return nil, err
	}

	now := l.now().UTC()
	debit := Transaction{
		ID:            uuid.New(),
		AccountID:     from,
		Amount:        -amount,
		Type:          typ,
		AppointmentID: ref.AppointmentID,
		PayoutID:      ref.PayoutID,
		CreatedAt:     now,
	}
	if err := l.store.Append(ctx, q, debit); err != nil {
		return nil, err
	}

	result := []Transaction{debit}
	if to == nil {
		return result, nil
	}

	if _, err := l.store.Credit(ctx, q, *to, amount); err != nil {
		return nil, err
	}
	credit := Transaction{
		ID:            uuid.New(),
		AccountID:     *to,
		Amount:        amount,
		Type:          typ.Counterpart(),
		AppointmentID: ref.AppointmentID,
		PayoutID:      ref.PayoutID,
		CreatedAt:     now,
	}
	if err := l.store.Append(ctx, q, credit); err != nil {
		return nil, err
	}

	return append(result, credit), nil
}

func lockOrder(a, b uuid.UUID) [2]uuid.UUID {
	if bytes.Compare(a[:], b[:]) > 0 {
		return [2]uuid.UUID{b, a}
	}
	return [2]uuid.UUID{a, b}
}

// Grant credits an account without a matching debit. Used for purchases and
// positive admin adjustments.
func (l *Ledger) Grant(ctx context.Context, q db.DBTX, accountID uuid.UUID, amount int64, typ Type, ref Ref) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	if _, err := l.store.Credit(ctx, q, accountID, amount); err != nil {
		return nil, err
	}

	t := Transaction{
		ID:            uuid.New(),
		AccountID:     accountID,
		Amount:        amount,
		Type:          typ,
		AppointmentID: ref.AppointmentID,
		PayoutID:      ref.PayoutID,
		CreatedAt:     l.now().UTC(),
	}
	if err := l.store.Append(ctx, q, t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (l *Ledger) Balance(ctx context.Context, q db.DBTX, accountID uuid.UUID) (int64, error) {
	return l.store.Balance(ctx, q, accountID)
}

// Reconcile compares the stored balance with the sum of the account's rows.
func (l *Ledger) Reconcile(ctx context.Context, q db.DBTX, accountID uuid.UUID) (*Reconciliation, error) {
	balance, err := l.store.Balance(ctx, q, accountID)
	if err != nil {
		return nil, err
	}
	sum, err := l.store.Sum(ctx, q, accountID)
	if err != nil {
		return nil, err
	}
	return &Reconciliation{
		AccountID: accountID,
		Balance:   balance,
		LogSum:    sum,
		OK:        balance == sum,
	}, nil
}

func (l *Ledger) History(ctx context.Context, q db.DBTX, accountID uuid.UUID, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	return l.store.List(ctx, q, accountID, limit)
}
