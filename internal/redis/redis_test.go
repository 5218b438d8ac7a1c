package redisclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/telehealth-scheduling/internal/account"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestWithLockReleasesAfterRun(t *testing.T) {
	mr, client := newTestClient(t)
	locker := NewRedisLocker(client, time.Second, nil)

	ran := false
	err := locker.WithLock(context.Background(), "appointment-session:1", func(ctx context.Context) error {
		ran = true
		assert.True(t, mr.Exists("lock:appointment-session:1"))
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.False(t, mr.Exists("lock:appointment-session:1"))
}

func TestWithLockContention(t *testing.T) {
	_, client := newTestClient(t)
	locker := NewRedisLocker(client, time.Second, nil)

	err := locker.WithLock(context.Background(), "k", func(ctx context.Context) error {
		inner := locker.WithLock(ctx, "k", func(context.Context) error {
			t.Fatal("second holder must not run")
			return nil
		})
		assert.ErrorIs(t, inner, ErrLockNotAcquired)
		return nil
	})
	require.NoError(t, err)
}

func TestWithLockReturnsFnError(t *testing.T) {
	mr, client := newTestClient(t)
	locker := NewRedisLocker(client, time.Second, nil)
	boom := errors.New("boom")

	err := locker.WithLock(context.Background(), "k", func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("lock:k"))
}

func TestReleaseKeepsForeignLock(t *testing.T) {
	mr, client := newTestClient(t)
	l := NewRedisLocker(client, time.Second, nil)

	require.NoError(t, mr.Set("lock:k", "someone-else"))
	require.NoError(t, l.release(context.Background(), "lock:k", "mine"))

	v, err := mr.Get("lock:k")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", v)
}

func TestDoctorCacheRoundTripAndTTL(t *testing.T) {
	mr, client := newTestClient(t)
	cache := NewDoctorCache(client, time.Minute)
	ctx := context.Background()

	v := account.VerificationVerified
	doc := &account.Account{ID: uuid.New(), Role: account.RoleDoctor, Verification: &v, Credits: 4}

	miss, err := cache.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Nil(t, miss)

	require.NoError(t, cache.Set(ctx, doc))
	got, err := cache.Get(ctx, doc.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.IsVerifiedDoctor())
	assert.Equal(t, doc.ID, got.ID)

	mr.FastForward(2 * time.Minute)
	expired, err := cache.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Nil(t, expired)
}

func TestDoctorCacheDelete(t *testing.T) {
	_, client := newTestClient(t)
	cache := NewDoctorCache(client, time.Minute)
	ctx := context.Background()

	doc := &account.Account{ID: uuid.New(), Role: account.RoleDoctor}
	require.NoError(t, cache.Set(ctx, doc))
	require.NoError(t, cache.Delete(ctx, doc.ID))

	got, err := cache.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}
