// Package ledgertest provides an in-memory ledger store for service tests.
package ledgertest

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/hackgods/telehealth-scheduling/internal/db"
	"github.com/hackgods/telehealth-scheduling/internal/ledger"
)

// MemStore is an in-memory ledger.Store. It ignores the handle it is given;
// callers that need rollback use Snapshot and Restore.
type MemStore struct {
	mu       sync.Mutex
	balances map[uuid.UUID]int64
	rows     []ledger.Transaction
}

var _ ledger.Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{balances: make(map[uuid.UUID]int64)}
}

// Open registers an account with an opening balance and no rows.
func (m *MemStore) Open(accountID uuid.UUID, balance int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[accountID] = balance
}

// Lock only checks that the account exists; MemStore serializes every call.
func (m *MemStore) Lock(_ context.Context, _ db.DBTX, accountID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.balances[accountID]; !ok {
		return ledger.ErrAccountNotFound
	}
	return nil
}

func (m *MemStore) Debit(_ context.Context, _ db.DBTX, accountID uuid.UUID, amount int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	balance, ok := m.balances[accountID]
	if !ok {
		return 0, ledger.ErrAccountNotFound
	}
	if balance < amount {
		return 0, ledger.ErrInsufficientCredits
	}
	m.balances[accountID] = balance - amount
	return balance - amount, nil
}

func (m *MemStore) Credit(_ context.Context, _ db.DBTX, accountID uuid.UUID, amount int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	balance, ok := m.balances[accountID]
	if !ok {
		return 0, ledger.ErrAccountNotFound
	}
	m.balances[accountID] = balance + amount
	return balance + amount, nil
}

func (m *MemStore) Append(_ context.Context, _ db.DBTX, t ledger.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, t)
	return nil
}

func (m *MemStore) Balance(_ context.Context, _ db.DBTX, accountID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	balance, ok := m.balances[accountID]
	if !ok {
		return 0, ledger.ErrAccountNotFound
	}
	return balance, nil
}

func (m *MemStore) Sum(_ context.Context, _ db.DBTX, accountID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, t := range m.rows {
		if t.AccountID == accountID {
			sum += t.Amount
		}
	}
	return sum, nil
}

func (m *MemStore) List(_ context.Context, _ db.DBTX, accountID uuid.UUID, limit int) ([]ledger.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []ledger.Transaction
	for _, t := range m.rows {
		if t.AccountID == accountID {
			result = append(result, t)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Rows returns a copy of every row recorded so far.
func (m *MemStore) Rows() []ledger.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ledger.Transaction(nil), m.rows...)
}

type snapshot struct {
	balances map[uuid.UUID]int64
	rows     int
}

// Snapshot captures the current state for a later Restore.
func (m *MemStore) Snapshot() any {
	m.mu.Lock()
	defer m.mu.Unlock()
	balances := make(map[uuid.UUID]int64, len(m.balances))
	for k, v := range m.balances {
		balances[k] = v
	}
	return snapshot{balances: balances, rows: len(m.rows)}
}

func (m *MemStore) Restore(s any) {
	snap := s.(snapshot)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances = snap.balances
	m.rows = m.rows[:snap.rows]
}
