package lock

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/desertthunder/jam/internal/models"
	"github.com/desertthunder/jam/internal/shared"
)

const (
	// DefaultTTL outlasts a realistic refresh round trip while keeping a crashed holder from blocking refreshes for long.
	DefaultTTL = 10 * time.Second
	// LeaseKey is the well-known key the lease is stored under.
	LeaseKey = "jam.refresh_lease"
)

// UpdateFunc receives the current value (ok is false when the key is absent) and returns the value to write.
// Returning write=false leaves the store untouched.
type UpdateFunc func(current []byte, ok bool) (next []byte, write bool, err error)

// Store is a key-value store shared by every cooperating process.
type Store interface {
	// Get returns the value stored under key.
	Get(key string) ([]byte, bool, error)
	// Update runs fn and applies its result atomically with respect to other Update calls on the same store.
	Update(key string, fn UpdateFunc) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error
}

// RefreshLock is a TTL lease over a [Store].
type RefreshLock struct {
	store Store
	key   string
	ttl   time.Duration
	now   func() time.Time
	token func() string
}

// Option configures a [RefreshLock].
type Option func(*RefreshLock)

// WithTTL overrides [DefaultTTL]. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(l *RefreshLock) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithClock replaces [time.Now].
func WithClock(now func() time.Time) Option {
	return func(l *RefreshLock) { l.now = now }
}

// WithKey stores the lease under key instead of [LeaseKey].
func WithKey(key string) Option {
	return func(l *RefreshLock) { l.key = key }
}

// New creates a [RefreshLock] over store.
func New(store Store, opts ...Option) *RefreshLock {
	l := &RefreshLock{
		store: store,
		key:   LeaseKey,
		ttl:   DefaultTTL,
		now:   time.Now,
		token: shared.GenerateID,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// TTL returns the lease duration.
func (l *RefreshLock) TTL() time.Duration {
	return l.ttl
}

// Acquire claims the lease. It returns false, without side effects, while another unexpired lease exists.
//
// A lease that cannot be decoded is treated like an expired one and overwritten.
func (l *RefreshLock) Acquire() (bool, error) {
	now := l.now()
	acquired := false

	err := l.store.Update(l.key, func(current []byte, ok bool) ([]byte, bool, error) {
		acquired = false
		if ok {
			if lease, err := decodeLease(current); err == nil && !lease.Expired(now) {
				return nil, false, nil
			}
		}

		next, err := json.Marshal(models.RefreshLease{
			HolderToken: l.token(),
			AcquiredAt:  now,
			ExpiresAt:   now.Add(l.ttl),
		})
		if err != nil {
			return nil, false, fmt.Errorf("failed to encode lease: %w", err)
		}
		acquired = true
		return next, true, nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to acquire refresh lease: %w", err)
	}
	return acquired, nil
}

// Release deletes the lease whoever holds it.
func (l *RefreshLock) Release() error {
	if err := l.store.Delete(l.key); err != nil {
		return fmt.Errorf("failed to release refresh lease: %w", err)
	}
	return nil
}

// Status returns the stored lease, or nil when none is stored. The result is informational only; it may be stale by
// the time the caller reads it.
func (l *RefreshLock) Status() (*models.RefreshLease, error) {
	raw, ok, err := l.store.Get(l.key)
	if err != nil {
		return nil, fmt.Errorf("failed to read refresh lease: %w", err)
	}
	if !ok {
		return nil, nil
	}

	lease, err := decodeLease(raw)
	if err != nil {
		return nil, err
	}
	return &lease, nil
}

// Held reports whether an unexpired lease is stored.
func (l *RefreshLock) Held() (bool, error) {
	lease, err := l.Status()
	if err != nil || lease == nil {
		return false, err
	}
	return !lease.Expired(l.now()), nil
}

func decodeLease(raw []byte) (models.RefreshLease, error) {
	var lease models.RefreshLease
	if err := json.Unmarshal(raw, &lease); err != nil {
		return lease, fmt.Errorf("%w: corrupt refresh lease: %v", shared.ErrInvalidInput, err)
	}
	return lease, nil
}
