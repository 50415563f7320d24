package lock

import (
	"errors"
	"testing"
	"time"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

type failingStore struct{ err error }

func (s failingStore) Get(string) ([]byte, bool, error) { return nil, false, s.err }
func (s failingStore) Update(string, UpdateFunc) error { return s.err }
func (s failingStore) Delete(string) error { return s.err }

func TestRefreshLock(t *testing.T) {
	t.Run("Acquire then contended", func(t *testing.T) {
		store := NewMemoryStore()
		clock := newClock()
		a := New(store, WithClock(clock.Now))
		b := New(store, WithClock(clock.Now))

		ok, err := a.Acquire()
		if err != nil || !ok {
			t.Fatalf("expected first acquire to succeed, got ok=%v err=%v", ok, err)
		}

		ok, err = b.Acquire()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ok {
			t.Error("expected second acquire to fail while lease is live")
		}
	})

	t.Run("not reentrant", func(t *testing.T) {
		clock := newClock()
		l := New(NewMemoryStore(), WithClock(clock.Now))

		if ok, _ := l.Acquire(); !ok {
			t.Fatal("expected first acquire to succeed")
		}
		if ok, _ := l.Acquire(); ok {
			t.Error("holder should not re-acquire its own live lease")
		}
	})

	t.Run("expired lease is reclaimed", func(t *testing.T) {
		store := NewMemoryStore()
		clock := newClock()
		a := New(store, WithClock(clock.Now), WithTTL(5*time.Second))
		b := New(store, WithClock(clock.Now), WithTTL(5*time.Second))

		if ok, _ := a.Acquire(); !ok {
			t.Fatal("expected acquire to succeed")
		}

		clock.Advance(4 * time.Second)
		if ok, _ := b.Acquire(); ok {
			t.Fatal("lease should still be live before the ttl")
		}

		clock.Advance(time.Second)
		ok, err := b.Acquire()
		if err != nil || !ok {
			t.Fatalf("expected reclaim at expiry, got ok=%v err=%v", ok, err)
		}

		lease, err := b.Status()
		if err != nil || lease == nil {
			t.Fatalf("expected lease, got %v err=%v", lease, err)
		}
		if !lease.AcquiredAt.Equal(clock.Now()) {
			t.Errorf("expected new lease acquired at %v, got %v", clock.Now(), lease.AcquiredAt)
		}
		if !lease.ExpiresAt.Equal(clock.Now().Add(5 * time.Second)) {
			t.Errorf("unexpected expiry %v", lease.ExpiresAt)
		}
	})

	t.Run("Release is idempotent", func(t *testing.T) {
		l := New(NewMemoryStore())

		if err := l.Release(); err != nil {
			t.Fatalf("release without lease should succeed: %v", err)
		}
		if ok, _ := l.Acquire(); !ok {
			t.Fatal("expected acquire to succeed")
		}
		if err := l.Release(); err != nil {
			t.Fatalf("failed to release: %v", err)
		}
		if err := l.Release(); err != nil {
			t.Fatalf("second release should succeed: %v", err)
		}
		if ok, _ := l.Acquire(); !ok {
			t.Error("expected acquire after release to succeed")
		}
	})

	t.Run("Release frees another holder's lease", func(t *testing.T) {
		store := NewMemoryStore()
		a := New(store)
		b := New(store)

		if ok, _ := a.Acquire(); !ok {
			t.Fatal("expected acquire to succeed")
		}
		if err := b.Release(); err != nil {
			t.Fatalf("failed to release: %v", err)
		}
		if ok, _ := b.Acquire(); !ok {
			t.Error("expected acquire to succeed after release by non-holder")
		}
	})

	t.Run("corrupt lease is overwritten", func(t *testing.T) {
		store := NewMemoryStore()
		_ = store.Update(LeaseKey, func([]byte, bool) ([]byte, bool, error) {
			return []byte("{not json"), true, nil
		})

		l := New(store)
		if _, err := l.Status(); err == nil {
			t.Error("expected Status to report the corrupt lease")
		}
		if ok, err := l.Acquire(); err != nil || !ok {
			t.Fatalf("expected corrupt lease to be reclaimed, got ok=%v err=%v", ok, err)
		}
		if lease, err := l.Status(); err != nil || lease == nil {
			t.Errorf("expected valid lease after reclaim, got %v err=%v", lease, err)
		}
	})

	t.Run("Status and Held", func(t *testing.T) {
		clock := newClock()
		l := New(NewMemoryStore(), WithClock(clock.Now), WithTTL(time.Second))

		lease, err := l.Status()
		if err != nil || lease != nil {
			t.Fatalf("expected no lease, got %v err=%v", lease, err)
		}
		if held, _ := l.Held(); held {
			t.Error("expected Held to be false without a lease")
		}

		if ok, _ := l.Acquire(); !ok {
			t.Fatal("expected acquire to succeed")
		}
		if held, _ := l.Held(); !held {
			t.Error("expected Held after acquire")
		}

		clock.Advance(time.Second)
		if held, _ := l.Held(); held {
			t.Error("expected Held to be false once expired")
		}
		if lease, _ := l.Status(); lease == nil || lease.HolderToken == "" {
			t.Error("expired lease should still be reported with its holder token")
		}
	})

	t.Run("options", func(t *testing.T) {
		store := NewMemoryStore()
		l := New(store, WithKey("custom"), WithTTL(-time.Second))

		if l.TTL() != DefaultTTL {
			t.Errorf("non-positive ttl should be ignored, got %v", l.TTL())
		}
		if ok, _ := l.Acquire(); !ok {
			t.Fatal("expected acquire to succeed")
		}
		if _, ok, _ := store.Get("custom"); !ok {
			t.Error("expected lease under custom key")
		}
		if _, ok, _ := store.Get(LeaseKey); ok {
			t.Error("expected nothing under the default key")
		}
	})

	t.Run("store errors are wrapped", func(t *testing.T) {
		boom := errors.New("disk on fire")
		l := New(failingStore{err: boom})

		if _, err := l.Acquire(); !errors.Is(err, boom) {
			t.Errorf("Acquire: expected wrapped error, got %v", err)
		}
		if err := l.Release(); !errors.Is(err, boom) {
			t.Errorf("Release: expected wrapped error, got %v", err)
		}
		if _, err := l.Status(); !errors.Is(err, boom) {
			t.Errorf("Status: expected wrapped error, got %v", err)
		}
	})
}
