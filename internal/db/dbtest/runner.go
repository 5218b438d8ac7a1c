// Package dbtest runs transactional code against in-memory stores.
package dbtest

import (
	"context"
	"sync"

	"github.com/hackgods/telehealth-scheduling/internal/db"
)

// Snapshotter is an in-memory store that can roll back to a saved state.
type Snapshotter interface {
	Snapshot() any
	Restore(s any)
}

// SerialRunner is a db.TxRunner over in-memory stores. Transactions run one
// at a time and a failing fn restores every store to its state before the
// call.
type SerialRunner struct {
	mu     sync.Mutex
	stores []Snapshotter
}

var _ db.TxRunner = (*SerialRunner)(nil)

func NewSerialRunner(stores ...Snapshotter) *SerialRunner {
	return &SerialRunner{stores: stores}
}

func (r *SerialRunner) InTx(ctx context.Context, fn func(ctx context.Context, q db.DBTX) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snaps := make([]any, len(r.stores))
	for i, s := range r.stores {
		snaps[i] = s.Snapshot()
	}

	if err := fn(ctx, nil); err != nil {
		for i, s := range r.stores {
			s.Restore(snaps[i])
		}
		return err
	}
	return nil
}
