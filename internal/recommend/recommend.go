// Package recommend feeds track suggestions into a listening session.
//
// A [Feed] asks an [Engine] for suggestions based on the reconciler's current snapshot and applies each new track as a
// RecommendationAdded event. Engine calls are paced by a token bucket so a busy session cannot exhaust the upstream
// API's quota.
package recommend

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/desertthunder/jam/internal/models"
	"github.com/desertthunder/jam/internal/shared"
)

const (
	DefaultRateLimit = 1.0
	DefaultInterval  = 30 * time.Second
)

// Engine suggests tracks for a session.
type Engine interface {
	Recommend(ctx context.Context, session models.Session) ([]models.Track, error)
}

// Sink is the session state a feed reads from and writes into. [session.Reconciler] implements it.
type Sink interface {
	Snapshot() models.Session
	Apply(models.Event)
}

// Options configures a [Feed].
type Options struct {
	RateLimit float64 // Engine calls per second (default: 1)
	Logger    *log.Logger
}

// Feed polls an [Engine] and applies its suggestions.
type Feed struct {
	engine  Engine
	sink    Sink
	limiter *rate.Limiter
	logger  *log.Logger
}

// NewFeed creates a feed writing into sink.
func NewFeed(engine Engine, sink Sink, opts Options) (*Feed, error) {
	if engine == nil || sink == nil {
		return nil, fmt.Errorf("%w: engine and sink are required", shared.ErrInvalidArgument)
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = DefaultRateLimit
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Feed{
		engine:  engine,
		sink:    sink,
		limiter: rate.NewLimiter(rate.Limit(opts.RateLimit), 1),
		logger:  shared.WithLogger(opts.Logger, "component", "recommend"),
	}, nil
}

// Poll runs one round and returns the number of tracks applied. A feed with no joined session does nothing.
//
// Tracks already queued or already recommended are skipped.
func (f *Feed) Poll(ctx context.Context) (int, error) {
	snapshot := f.sink.Snapshot()
	if snapshot.ID == "" {
		return 0, nil
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	tracks, err := f.engine.Recommend(ctx, snapshot)
	if err != nil {
		return 0, fmt.Errorf("recommend for session %s: %w", snapshot.ID, err)
	}

	known := make(map[string]struct{}, len(snapshot.Playlist)+len(snapshot.Recommendations))
	for _, t := range snapshot.Playlist {
		known[t.ID] = struct{}{}
	}
	for _, t := range snapshot.Recommendations {
		known[t.ID] = struct{}{}
	}

	applied := 0
	for _, track := range tracks {
		if track.ID == "" {
			continue
		}
		if _, ok := known[track.ID]; ok {
			continue
		}
		known[track.ID] = struct{}{}

		f.sink.Apply(models.Event{Type: models.RecommendationAdded, SessionID: snapshot.ID, Track: &track})
		applied++
	}

	f.logger.Debug("recommendations applied", "session", snapshot.ID, "count", applied)
	return applied, nil
}

// Run polls immediately and then every interval until ctx is cancelled. Engine errors are logged and do not stop
// the feed.
func (f *Feed) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := f.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.logger.Warn("recommendation round failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
