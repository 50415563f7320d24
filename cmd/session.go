package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/desertthunder/jam/internal/auth"
	"github.com/desertthunder/jam/internal/channel"
	"github.com/desertthunder/jam/internal/formatter"
	"github.com/desertthunder/jam/internal/models"
	"github.com/desertthunder/jam/internal/recommend"
	"github.com/desertthunder/jam/internal/services"
	"github.com/desertthunder/jam/internal/session"
	"github.com/desertthunder/jam/internal/shared"
	"github.com/desertthunder/jam/internal/transport"
	"github.com/urfave/cli/v3"
)

const (
	// userIDKey holds the participant id generated for a user without one in the config.
	userIDKey   = "jam.user_id"
	joinTimeout = 10 * time.Second
	pollEvery   = 50 * time.Millisecond
)

type participantIdentity struct {
	participant models.Participant
}

func (i participantIdentity) Identity() (models.Participant, bool) {
	return i.participant, i.participant.ID != ""
}

// sessionClient is one channel with its reconciler.
type sessionClient struct {
	channel *channel.Channel
	state   *session.Reconciler
	self    models.Participant
	detach  func()

	synced     chan struct{}
	syncedOnce sync.Once
	fatal      chan error
	printMu    sync.Mutex
}

// authorizeSpotify points the Spotify client at the shared token. It reports false when no token is stored.
func (r *Runner) authorizeSpotify(ctx context.Context, p *auth.Provider) bool {
	if r.spotify == nil {
		return false
	}
	if _, ok, err := p.Token(); err != nil || !ok {
		return false
	}
	r.spotify.UseTokenSource(ctx, p.TokenSource(ctx))
	return true
}

// identity resolves the local participant: the [user] config section, then the Spotify profile, then an id generated
// once and kept in the shared store.
func (r *Runner) identity(ctx context.Context, p *auth.Provider) (models.Participant, error) {
	u := r.config.User
	self := models.Participant{ID: u.ID, Name: u.Name, Avatar: u.Avatar}

	if self.ID == "" && r.authorizeSpotify(ctx, p) {
		profile, err := r.spotify.Participant(ctx)
		if err != nil {
			r.logger.Warn("could not read Spotify profile", "error", err)
		} else {
			self.ID = profile.ID
			if self.Name == "" {
				self.Name = profile.Name
			}
			if self.Avatar == "" {
				self.Avatar = profile.Avatar
			}
		}
	}

	if self.ID == "" {
		store, err := r.openStore()
		if err != nil {
			return self, err
		}
		err = store.Update(userIDKey, func(current []byte, ok bool) ([]byte, bool, error) {
			if ok && len(current) > 0 {
				self.ID = string(current)
				return nil, false, nil
			}
			self.ID = shared.GenerateID()
			return []byte(self.ID), true, nil
		})
		if err != nil {
			return self, fmt.Errorf("failed to store generated user id: %w", err)
		}
	}

	if self.Name == "" {
		self.Name = self.ID
	}
	return self, nil
}

// openSession builds a channel and reconciler for the local participant. The token is refreshed first when it is
// about to expire.
func (r *Runner) openSession(ctx context.Context) (*sessionClient, error) {
	p, err := r.provider()
	if err != nil {
		return nil, err
	}

	if r.spotify != nil {
		if _, err := p.EnsureFresh(ctx); err != nil && !errors.Is(err, shared.ErrNotAuthenticated) {
			r.logger.Warn("token refresh failed", "error", err)
		}
	}

	self, err := r.identity(ctx, p)
	if err != nil {
		return nil, err
	}

	ch, err := channel.New(channel.Options{
		Transport:   transport.WebSocketFactory(r.logger),
		Credentials: p,
		Identity:    participantIdentity{participant: self},
		Config:      r.config.Session,
		Logger:      r.logger,
	})
	if err != nil {
		return nil, err
	}

	c := &sessionClient{
		channel: ch,
		state:   session.NewReconciler(r.logger),
		self:    self,
		synced:  make(chan struct{}),
		fatal:   make(chan error, 1),
	}
	c.detach = c.state.Attach(ch)

	ch.AddEventListener(models.SessionUpdate, func(models.Event) {
		c.syncedOnce.Do(func() { close(c.synced) })
	})
	ch.AddEventListener(models.Error, func(e models.Event) {
		if e.Err.Code != models.AuthRequired && ch.State() != models.Failed {
			return
		}
		select {
		case c.fatal <- e.Err:
		default:
		}
	})
	return c, nil
}

// Close disconnects and detaches the reconciler.
func (c *sessionClient) Close() {
	c.channel.Disconnect()
	c.detach()
}

// waitJoined blocks until the first snapshot of the joined session arrives.
func (c *sessionClient) waitJoined(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case <-c.synced:
		return nil
	case err := <-c.fatal:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%w: not joined within %s (state %s)", shared.ErrConnectionFailed, timeout, c.channel.State())
	}
}

// waitFor polls the reconciled session until cond holds.
func (c *sessionClient) waitFor(ctx context.Context, timeout time.Duration, cond func(models.Session) bool) bool {
	deadline := time.Now().Add(timeout)
	for !cond(c.state.Snapshot()) {
		if time.Now().After(deadline) || ctx.Err() != nil {
			return false
		}
		time.Sleep(pollEvery)
	}
	return true
}

// startFeed runs the Spotify recommendation feed into the reconciler until ctx ends.
func (r *Runner) startFeed(ctx context.Context, sink recommend.Sink) error {
	if err := r.requireSpotify(); err != nil {
		return err
	}
	p, err := r.provider()
	if err != nil {
		return err
	}
	if !r.authorizeSpotify(ctx, p) {
		return fmt.Errorf("%w: recommendations need a Spotify token (run 'jam auth login')", shared.ErrNotAuthenticated)
	}

	feed, err := recommend.NewFeed(r.spotify, sink, recommend.Options{
		RateLimit: r.config.Recommend.RateLimit,
		Logger:    r.logger,
	})
	if err != nil {
		return err
	}
	go feed.Run(ctx, r.config.Recommend.Interval)
	return nil
}

// printingSink echoes recommendations as they are applied.
type printingSink struct {
	*session.Reconciler
	echo func(models.Event)
}

func (s printingSink) Apply(e models.Event) {
	s.Reconciler.Apply(e)
	if e.Type == models.RecommendationAdded {
		s.echo(e)
	}
}

// SessionJoin joins a session and prints its events until interrupted or the channel gives up.
func (r *Runner) SessionJoin(ctx context.Context, cmd *cli.Command) error {
	sessionID := cmd.StringArg("session")
	if sessionID == "" {
		return fmt.Errorf("%w: session id", shared.ErrMissingArgument)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := r.openSession(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	echo := func(e models.Event) {
		c.printMu.Lock()
		defer c.printMu.Unlock()
		r.writePlain("%s\n", describeEvent(c.state.Snapshot(), e))
	}
	for _, t := range models.EventTypes {
		if t != models.RecommendationAdded {
			c.channel.AddEventListener(t, echo)
		}
	}

	if cmd.Bool("recommend") {
		if err := r.startFeed(ctx, printingSink{Reconciler: c.state, echo: echo}); err != nil {
			return err
		}
	}

	r.writePlain("Joining %s as %s (ctrl+c to leave)\n", sessionID, c.self.Name)
	if err := c.channel.Connect(sessionID); err != nil {
		return err
	}

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.channel.LeaveSession()
			return nil
		case err := <-c.fatal:
			return err
		case <-ticker.C:
			if c.channel.State() == models.Failed {
				return fmt.Errorf("%w: gave up on %s", shared.ErrConnectionFailed, sessionID)
			}
		}
	}
}

// SessionAdd joins, queues one track and waits until the relay confirms it.
func (r *Runner) SessionAdd(ctx context.Context, cmd *cli.Command) error {
	sessionID, trackID := cmd.StringArg("session"), cmd.StringArg("track")
	if sessionID == "" || trackID == "" {
		return fmt.Errorf("%w: session id and track id", shared.ErrMissingArgument)
	}

	c, err := r.openSession(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	track, err := r.lookupTrack(ctx, trackID, cmd)
	if err != nil {
		return err
	}

	if err := c.channel.Connect(sessionID); err != nil {
		return err
	}
	if err := c.waitJoined(ctx, joinTimeout); err != nil {
		return err
	}

	if snapshot := c.state.Snapshot(); snapshot.HasTrack(track.ID) {
		return r.writePlain("%s is already in the playlist\n", track.Title)
	}
	if !c.channel.AddTrack(track) {
		return fmt.Errorf("%w: add_track was not sent", shared.ErrNotConnected)
	}

	confirmed := c.waitFor(ctx, joinTimeout, func(s models.Session) bool { return s.HasTrack(track.ID) })
	c.channel.LeaveSession()
	if !confirmed {
		return fmt.Errorf("%w: relay did not confirm %s", shared.ErrConnectionFailed, track.ID)
	}
	return r.writePlain("✓ Added %s by %s to %s\n", track.Title, track.Artist, sessionID)
}

// lookupTrack builds the track from flags, falling back to Spotify for the metadata.
func (r *Runner) lookupTrack(ctx context.Context, trackID string, cmd *cli.Command) (models.Track, error) {
	if title := cmd.String("title"); title != "" {
		return models.Track{
			ID:       trackID,
			Title:    title,
			Artist:   cmd.String("artist"),
			Duration: cmd.Int("duration"),
		}, nil
	}

	p, err := r.provider()
	if err != nil {
		return models.Track{}, err
	}
	if !r.authorizeSpotify(ctx, p) {
		return models.Track{}, fmt.Errorf("%w: --title (no Spotify token to look the track up)", shared.ErrMissingArgument)
	}

	found, err := r.spotify.Track(ctx, trackID)
	if err != nil {
		return models.Track{}, err
	}
	return found.ToTrack(), nil
}

// SessionRemove joins and removes one track.
func (r *Runner) SessionRemove(ctx context.Context, cmd *cli.Command) error {
	sessionID, trackID := cmd.StringArg("session"), cmd.StringArg("track")
	if sessionID == "" || trackID == "" {
		return fmt.Errorf("%w: session id and track id", shared.ErrMissingArgument)
	}

	c, err := r.openSession(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.channel.Connect(sessionID); err != nil {
		return err
	}
	if err := c.waitJoined(ctx, joinTimeout); err != nil {
		return err
	}

	if snapshot := c.state.Snapshot(); !snapshot.HasTrack(trackID) {
		return r.writePlain("%s is not in the playlist\n", trackID)
	}
	if !c.channel.RemoveTrack(trackID) {
		return fmt.Errorf("%w: remove_track was not sent", shared.ErrNotConnected)
	}

	confirmed := c.waitFor(ctx, joinTimeout, func(s models.Session) bool { return !s.HasTrack(trackID) })
	c.channel.LeaveSession()
	if !confirmed {
		return fmt.Errorf("%w: relay did not confirm removal of %s", shared.ErrConnectionFailed, trackID)
	}
	return r.writePlain("✓ Removed %s from %s\n", trackID, sessionID)
}

func (r *Runner) relayClient() (*services.RelayClient, error) {
	base, err := services.RelayBaseURL(r.config.Session.URL)
	if err != nil {
		return nil, err
	}

	token := ""
	if p, err := r.provider(); err != nil {
		r.logger.Debug("relay request without credential", "error", err)
	} else {
		token, _ = p.BearerToken()
	}
	return services.NewRelayClient(base, token, r.httpClient), nil
}

// SessionExport fetches the live snapshot from the relay and writes it with a formatter.
func (r *Runner) SessionExport(ctx context.Context, cmd *cli.Command) error {
	sessionID := cmd.StringArg("session")
	if sessionID == "" {
		return fmt.Errorf("%w: session id", shared.ErrMissingArgument)
	}

	format := cmd.String("format")
	if _, err := formatter.Export(format, models.Session{}); err != nil {
		return fmt.Errorf("%w (supported: %v)", err, formatter.Formats)
	}

	client, err := r.relayClient()
	if err != nil {
		return err
	}

	snapshot, err := client.Session(ctx, sessionID)
	if err != nil {
		return err
	}

	path, err := formatter.WriteExport(*snapshot, format, cmd.String("output"))
	if err != nil {
		return err
	}

	r.logger.Info("session exported", "session", sessionID, "format", format, "path", path)
	return r.writePlain("✓ Exported %d tracks to %s\n", len(snapshot.Playlist), path)
}

// SessionHealth prints the relay's health counters.
func (r *Runner) SessionHealth(ctx context.Context, cmd *cli.Command) error {
	client, err := r.relayClient()
	if err != nil {
		return err
	}

	health, err := client.Health(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(health, cmd.Bool("pretty"))
	}
	return r.writePlain("Relay: %s (%d sessions, %d clients)\n", health.Status, health.Sessions, health.Clients)
}

// describeEvent renders one event as a log line. Names are resolved against the current roster.
func describeEvent(s models.Session, e models.Event) string {
	switch e.Type {
	case models.SessionUpdate:
		return fmt.Sprintf("● %s: %d participants, %d tracks", e.Session.ID, len(e.Session.Participants), len(e.Session.Playlist))
	case models.UserJoin:
		if e.Local {
			return fmt.Sprintf("→ joined %s", e.SessionID)
		}
		return fmt.Sprintf("→ %s joined", e.Participant.Name)
	case models.UserLeave:
		if e.Local {
			return fmt.Sprintf("← left %s (%s)", e.SessionID, e.Reason)
		}
		return fmt.Sprintf("← %s left (%s)", e.Participant.Name, e.Reason)
	case models.PlaylistUpdate:
		if e.Op == models.OpRemove {
			return fmt.Sprintf("- %s", trackLabel(*e.Track))
		}
		who := e.Track.AddedBy
		if p, ok := s.Participant(who); ok {
			who = p.Name
		}
		if who == "" {
			return fmt.Sprintf("+ %s", trackLabel(*e.Track))
		}
		return fmt.Sprintf("+ %s (added by %s)", trackLabel(*e.Track), who)
	case models.RecommendationAdded:
		return fmt.Sprintf("★ %s", trackLabel(*e.Track))
	case models.Error:
		return fmt.Sprintf("! %s", e.Err.Error())
	default:
		return e.Type.String()
	}
}

func trackLabel(t models.Track) string {
	label := t.Title
	if label == "" {
		label = t.ID
	}
	if t.Artist != "" {
		label += " by " + t.Artist
	}
	if t.Duration > 0 {
		label += " [" + shared.FormatDuration(t.Duration) + "]"
	}
	return label
}
