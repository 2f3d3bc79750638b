package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shplep/homecontentslistpro-sub000/internal/core/importer"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func samplePreview() *importer.Preview {
	return importer.BuildPreview([]importer.RawRow{
		{"House Name": "Main", "House Address": "1 Elm St", "Room Name": "Den", "Item Name": "Lamp", "Price": "12.50"},
		{"Brand": "Acme"},
	}, nil)
}

// storeSuite runs the behavior both Store implementations share.
func storeSuite(t *testing.T, s Store, c *clock) {
	ctx := context.Background()

	sess := New("owner-1", "items.csv", samplePreview(), c.now(), 30*time.Minute)
	require.NoError(t, s.Save(ctx, sess))

	got, err := s.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.OwnerID, got.OwnerID)
	assert.Equal(t, sess.Source, got.Source)
	assert.True(t, sess.ExpiresAt.Equal(got.ExpiresAt))
	assert.Equal(t, sess.Preview.Items, got.Preview.Items)
	assert.Equal(t, sess.Preview.Errors, got.Preview.Errors)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	c.advance(30 * time.Minute)
	_, err = s.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNotFound, "expired sessions are not returned")

	fresh := New("owner-1", "", samplePreview(), c.now(), time.Minute)
	require.NoError(t, s.Save(ctx, fresh))
	require.NoError(t, s.Delete(ctx, fresh.ID))
	_, err = s.Get(ctx, fresh.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, s.Delete(ctx, fresh.ID), "deleting twice is fine")
}

func TestMemoryStore(t *testing.T) {
	c := &clock{t: epoch}
	s := NewMemoryStore()
	s.now = c.now
	storeSuite(t, s, c)
}

func TestMemoryStore_Sweep(t *testing.T) {
	c := &clock{t: epoch}
	s := NewMemoryStore()
	s.now = c.now
	ctx := context.Background()

	short := New("o", "", samplePreview(), c.now(), time.Minute)
	long := New("o", "", samplePreview(), c.now(), time.Hour)
	require.NoError(t, s.Save(ctx, short))
	require.NoError(t, s.Save(ctx, long))

	c.advance(2 * time.Minute)
	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 1, s.Len())

	_, err := s.Get(ctx, long.ID)
	assert.NoError(t, err)
}

func TestMemoryStore_RunSweeperStops(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.RunSweeper(ctx, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestRedisStore(t *testing.T) {
	c := &clock{t: epoch}
	s := NewRedisStore(newFakeRedis(), "inventory:import:")
	s.now = c.now
	storeSuite(t, s, c)
}

func TestRedisStore_KeyAndTTL(t *testing.T) {
	c := &clock{t: epoch}
	rdb := newFakeRedis()
	s := NewRedisStore(rdb, "inv:")
	s.now = c.now

	sess := New("o", "", samplePreview(), c.now(), 10*time.Minute)
	require.NoError(t, s.Save(context.Background(), sess))
	assert.Equal(t, 10*time.Minute, rdb.keyTTL("inv:preview:"+sess.ID))
}

func TestRedisStore_RejectsExpired(t *testing.T) {
	c := &clock{t: epoch}
	s := NewRedisStore(newFakeRedis(), "inv:")
	s.now = c.now

	sess := New("o", "", samplePreview(), c.now().Add(-time.Hour), time.Minute)
	assert.Error(t, s.Save(context.Background(), sess))
}

func TestRedisStore_BackendError(t *testing.T) {
	rdb := newFakeRedis()
	rdb.failGet = errors.New("connection refused")
	s := NewRedisStore(rdb, "inv:")

	_, err := s.Get(context.Background(), "x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func lockerSuite(t *testing.T, l Locker) {
	ctx := context.Background()

	a, err := l.Acquire(ctx, "owner-1", time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "owner-1", time.Minute)
	assert.ErrorIs(t, err, ErrLocked)

	other, err := l.Acquire(ctx, "owner-2", time.Minute)
	require.NoError(t, err, "locks are per key")
	require.NoError(t, other.Release(ctx))

	require.NoError(t, a.Release(ctx))
	assert.ErrorIs(t, a.Release(ctx), ErrLockNotHeld)

	b, err := l.Acquire(ctx, "owner-1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, b.Release(ctx))
}

func TestMemoryLocker(t *testing.T) {
	lockerSuite(t, NewMemoryLocker())
}

func TestMemoryLocker_Expiry(t *testing.T) {
	c := &clock{t: epoch}
	l := NewMemoryLocker()
	l.now = c.now
	ctx := context.Background()

	stale, err := l.Acquire(ctx, "owner-1", time.Minute)
	require.NoError(t, err)

	c.advance(time.Minute)
	fresh, err := l.Acquire(ctx, "owner-1", time.Minute)
	require.NoError(t, err, "expired lock can be taken over")

	assert.ErrorIs(t, stale.Release(ctx), ErrLockNotHeld, "stale holder cannot release successor")
	assert.NoError(t, fresh.Release(ctx))
}

func TestRedisLocker(t *testing.T) {
	lockerSuite(t, NewRedisLocker(newFakeRedis(), "inv:"))
}

func TestSessionExpired(t *testing.T) {
	s := New("o", "", nil, epoch, time.Minute)
	assert.False(t, s.Expired(epoch))
	assert.False(t, s.Expired(epoch.Add(59*time.Second)))
	assert.True(t, s.Expired(epoch.Add(time.Minute)))
	assert.False(t, (&Session{}).Expired(epoch), "zero expiry never expires")
}
