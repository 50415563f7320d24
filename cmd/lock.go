package main

import (
	"context"
	"time"

	"github.com/desertthunder/jam/internal/models"
	"github.com/urfave/cli/v3"
)

type leaseStatus struct {
	Held  bool                 `json:"held"`
	Lease *models.RefreshLease `json:"lease,omitempty"`
}

// LockAcquire tries to claim the refresh lease once. Contention is reported, not returned as an error.
func (r *Runner) LockAcquire(ctx context.Context, cmd *cli.Command) error {
	store, err := r.openStore()
	if err != nil {
		return err
	}

	l := r.refreshLock(store)
	acquired, err := l.Acquire()
	if err != nil {
		return err
	}
	if !acquired {
		return r.writePlain("✗ Lease held by another process\n")
	}
	return r.writePlain("✓ Lease acquired for %s\n", l.TTL())
}

// LockRelease drops the refresh lease whoever holds it.
func (r *Runner) LockRelease(ctx context.Context, cmd *cli.Command) error {
	store, err := r.openStore()
	if err != nil {
		return err
	}

	if err := r.refreshLock(store).Release(); err != nil {
		return err
	}
	return r.writePlain("✓ Lease released\n")
}

// LockStatus prints the stored lease.
func (r *Runner) LockStatus(ctx context.Context, cmd *cli.Command) error {
	store, err := r.openStore()
	if err != nil {
		return err
	}

	l := r.refreshLock(store)
	lease, err := l.Status()
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		held, err := l.Held()
		if err != nil {
			return err
		}
		return r.writeJSON(leaseStatus{Held: held, Lease: lease}, cmd.Bool("pretty"))
	}
	return r.writeLease(lease)
}

func (r *Runner) writeLease(lease *models.RefreshLease) error {
	if lease == nil {
		return r.writePlain("Refresh lock: free\n")
	}
	if lease.Expired(time.Now()) {
		return r.writePlain("Refresh lock: free (stale lease expired %s)\n", lease.ExpiresAt.Local().Format(time.RFC1123))
	}
	return r.writePlain("Refresh lock: held by %s until %s\n", lease.HolderToken, lease.ExpiresAt.Local().Format(time.RFC1123))
}
