package account

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/telehealth-scheduling/internal/apperr"
	"github.com/hackgods/telehealth-scheduling/internal/db/dbtest"
	"github.com/hackgods/telehealth-scheduling/internal/ledger"
	"github.com/hackgods/telehealth-scheduling/internal/ledger/ledgertest"
)

// memRepo keeps accounts in memory and reads balances from the ledger store.
type memRepo struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]Account
	balances *ledgertest.MemStore
	gets     int
}

func newMemRepo(balances *ledgertest.MemStore) *memRepo {
	return &memRepo{accounts: make(map[uuid.UUID]Account), balances: balances}
}

func (r *memRepo) put(a Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[a.ID] = a
	r.balances.Open(a.ID, a.Credits)
}

func (r *memRepo) Get(ctx context.Context, id uuid.UUID) (*Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	a, ok := r.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	a.Credits, _ = r.balances.Balance(ctx, nil, id)
	return &a, nil
}

func (r *memRepo) Ensure(ctx context.Context, id uuid.UUID) (*Account, error) {
	r.mu.Lock()
	if _, ok := r.accounts[id]; !ok {
		now := time.Now()
		r.accounts[id] = Account{ID: id, Role: RoleUnassigned, CreatedAt: now, UpdatedAt: now}
		r.balances.Open(id, 0)
	}
	r.mu.Unlock()
	return r.Get(ctx, id)
}

func (r *memRepo) AssignRole(ctx context.Context, id uuid.UUID, role Role, status *VerificationStatus, p Profile) (*Account, error) {
	r.mu.Lock()
	a, ok := r.accounts[id]
	if !ok {
		r.mu.Unlock()
		return nil, ErrAccountNotFound
	}
	if a.Role != RoleUnassigned {
		r.mu.Unlock()
		return nil, ErrRoleAlreadySet
	}
	a.Role = role
	a.Verification = status
	a.Name = p.Name
	r.accounts[id] = a
	r.mu.Unlock()
	return r.Get(ctx, id)
}

func (r *memRepo) SetVerification(ctx context.Context, id uuid.UUID, status VerificationStatus) (*Account, error) {
	r.mu.Lock()
	a, ok := r.accounts[id]
	if !ok || a.Role != RoleDoctor {
		r.mu.Unlock()
		return nil, ErrDoctorNotFound
	}
	a.Verification = &status
	r.accounts[id] = a
	r.mu.Unlock()
	return r.Get(ctx, id)
}

func (r *memRepo) ListPendingDoctors(ctx context.Context, limit int) ([]Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Account
	for _, a := range r.accounts {
		if a.Role == RoleDoctor && a.Verification != nil && *a.Verification == VerificationPending {
			out = append(out, a)
		}
	}
	return out, nil
}

type mapCache struct {
	mu      sync.Mutex
	entries map[uuid.UUID]Account
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[uuid.UUID]Account)}
}

func (c *mapCache) Get(_ context.Context, id uuid.UUID) (*Account, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.entries[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (c *mapCache) Set(_ context.Context, a *Account) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[a.ID] = *a
	return nil
}

func (c *mapCache) Delete(_ context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
	return nil
}

type fixture struct {
	svc    *Service
	repo   *memRepo
	cache  *mapCache
	ledger *ledgertest.MemStore
	admin  uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := ledgertest.NewMemStore()
	repo := newMemRepo(store)
	cache := newMapCache()
	runner := dbtest.NewSerialRunner(store)

	admin := uuid.New()
	repo.put(Account{ID: admin, Role: RoleAdmin})

	svc := NewService(repo, cache, runner, nil, ledger.New(store), nil)
	return &fixture{svc: svc, repo: repo, cache: cache, ledger: store, admin: admin}
}

func statusPtr(s VerificationStatus) *VerificationStatus { return &s }

func TestCurrentCreatesOnFirstAccess(t *testing.T) {
	f := newFixture(t)
	id := uuid.New()

	a, err := f.svc.Current(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, RoleUnassigned, a.Role)
	assert.Equal(t, int64(0), a.Credits)

	again, err := f.svc.Current(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, a.ID, again.ID)
}

func TestChooseRoleOnlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := uuid.New()
	_, err := f.svc.Current(ctx, id)
	require.NoError(t, err)

	a, err := f.svc.ChooseRole(ctx, id, RoleDoctor, Profile{})
	require.NoError(t, err)
	assert.Equal(t, RoleDoctor, a.Role)
	require.NotNil(t, a.Verification)
	assert.Equal(t, VerificationPending, *a.Verification)

	_, err = f.svc.ChooseRole(ctx, id, RolePatient, Profile{})
	require.ErrorIs(t, err, ErrRoleAlreadySet)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestChooseRoleRejectsAdmin(t *testing.T) {
	f := newFixture(t)
	id := uuid.New()
	_, err := f.svc.ChooseRole(context.Background(), id, RoleAdmin, Profile{})
	require.ErrorIs(t, err, ErrInvalidRole)
}

func TestSetVerificationRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doctor := uuid.New()
	f.repo.put(Account{ID: doctor, Role: RoleDoctor, Verification: statusPtr(VerificationPending)})

	_, err := f.svc.SetVerification(ctx, doctor, doctor, VerificationVerified)
	require.ErrorIs(t, err, apperr.ErrUnauthorized)

	a, err := f.svc.SetVerification(ctx, f.admin, doctor, VerificationVerified)
	require.NoError(t, err)
	assert.True(t, a.IsVerifiedDoctor())
}

func TestSetVerificationInvalidatesCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doctor := uuid.New()
	f.repo.put(Account{ID: doctor, Role: RoleDoctor, Verification: statusPtr(VerificationVerified)})

	_, err := f.svc.Doctor(ctx, doctor)
	require.NoError(t, err)
	cached, _ := f.cache.Get(ctx, doctor)
	require.NotNil(t, cached)

	_, err = f.svc.SetVerification(ctx, f.admin, doctor, VerificationRejected)
	require.NoError(t, err)

	cached, _ = f.cache.Get(ctx, doctor)
	assert.Nil(t, cached)

	_, err = f.svc.Doctor(ctx, doctor)
	require.ErrorIs(t, err, ErrDoctorNotFound)
}

func TestDoctorServedFromCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doctor := uuid.New()
	f.repo.put(Account{ID: doctor, Role: RoleDoctor, Verification: statusPtr(VerificationVerified)})

	_, err := f.svc.Doctor(ctx, doctor)
	require.NoError(t, err)
	gets := f.repo.gets

	_, err = f.svc.Doctor(ctx, doctor)
	require.NoError(t, err)
	assert.Equal(t, gets, f.repo.gets)
}

func TestDoctorWithoutCacheReadsThrough(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewService(f.repo, nil, dbtest.NewSerialRunner(f.ledger), nil, ledger.New(f.ledger), nil)
	doctor := uuid.New()
	f.repo.put(Account{ID: doctor, Role: RoleDoctor, Verification: statusPtr(VerificationVerified)})

	_, err := svc.Doctor(ctx, doctor)
	require.NoError(t, err)
	gets := f.repo.gets

	_, err = svc.Doctor(ctx, doctor)
	require.NoError(t, err)
	assert.Greater(t, f.repo.gets, gets)

	_, err = svc.SetVerification(ctx, f.admin, doctor, VerificationRejected)
	require.NoError(t, err)
	_, err = svc.Doctor(ctx, doctor)
	require.ErrorIs(t, err, ErrDoctorNotFound)
}

func TestDoctorUnknownOrUnverified(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pending := uuid.New()
	f.repo.put(Account{ID: pending, Role: RoleDoctor, Verification: statusPtr(VerificationPending)})

	_, err := f.svc.Doctor(ctx, pending)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.svc.Doctor(ctx, uuid.New())
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestPurchaseAndAdjustCredits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	patient := uuid.New()
	f.repo.put(Account{ID: patient, Role: RolePatient})

	a, err := f.svc.PurchaseCredits(ctx, patient, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(10), a.Credits)

	_, err = f.svc.PurchaseCredits(ctx, patient, 0)
	require.ErrorIs(t, err, apperr.ErrValidation)

	a, err = f.svc.AdjustCredits(ctx, f.admin, patient, -4)
	require.NoError(t, err)
	assert.Equal(t, int64(6), a.Credits)

	_, err = f.svc.AdjustCredits(ctx, f.admin, patient, -7)
	require.ErrorIs(t, err, apperr.ErrInsufficientCredits)

	a, err = f.svc.Get(ctx, patient)
	require.NoError(t, err)
	assert.Equal(t, int64(6), a.Credits)

	rec, err := f.svc.Reconcile(ctx, f.admin, patient)
	require.NoError(t, err)
	assert.True(t, rec.OK)

	history, err := f.svc.History(ctx, patient, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
}

func TestListPendingDoctorsRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.repo.put(Account{ID: uuid.New(), Role: RoleDoctor, Verification: statusPtr(VerificationPending)})
	f.repo.put(Account{ID: uuid.New(), Role: RoleDoctor, Verification: statusPtr(VerificationVerified)})

	list, err := f.svc.ListPendingDoctors(ctx, f.admin, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = f.svc.ListPendingDoctors(ctx, uuid.New(), 0)
	require.ErrorIs(t, err, ErrNotAdmin)
}
