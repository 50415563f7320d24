package models

import "time"

// RefreshLease is the claim stored under the refresh lock key.
type RefreshLease struct {
	HolderToken string    `json:"holderToken"`
	AcquiredAt  time.Time `json:"acquiredAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Expired reports whether the lease no longer blocks other holders at now.
func (l RefreshLease) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}
