package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/jam/internal/events"
	"github.com/desertthunder/jam/internal/models"
	"github.com/desertthunder/jam/internal/shared"
	"github.com/desertthunder/jam/internal/transport"
)

const (
	DefaultRetryInterval = 3 * time.Second
	DefaultMaxAttempts   = 5
)

// CredentialSource supplies the bearer token presented when dialing.
type CredentialSource interface {
	BearerToken() (string, bool)
}

// IdentitySource supplies the local participant sent during identification.
type IdentitySource interface {
	Identity() (models.Participant, bool)
}

// Listener receives channel events.
type Listener func(models.Event)

// Options configures a [Channel].
type Options struct {
	Transport   transport.Factory
	Credentials CredentialSource
	Identity    IdentitySource
	Config      shared.SessionConfig
	Logger      *log.Logger
}

type timer interface {
	Stop() bool
}

// inbound maps relay events onto the event taxonomy.
var inbound = map[string]models.EventType{
	transport.EventSessionUpdate:       models.SessionUpdate,
	transport.EventPlaylistUpdate:      models.PlaylistUpdate,
	transport.EventUserJoin:            models.UserJoin,
	transport.EventUserLeave:           models.UserLeave,
	transport.EventRecommendationAdded: models.RecommendationAdded,
}

// Channel owns the connection to one session at a time.
type Channel struct {
	newTransport  transport.Factory
	credentials   CredentialSource
	identity      IdentitySource
	url           string
	retryInterval time.Duration
	maxAttempts   int
	logger        *log.Logger
	events        *events.Dispatcher[models.EventType, models.Event]
	after         func(time.Duration, func()) timer

	mu        sync.Mutex
	state     models.ConnectionState
	sessionID string
	self      models.Participant
	conn      transport.Transport
	gen       uint64
	attempts  int
	retry     timer
}

// New creates a disconnected [Channel].
func New(opts Options) (*Channel, error) {
	if opts.Transport == nil {
		return nil, fmt.Errorf("%w: transport factory is required", shared.ErrInvalidArgument)
	}
	if opts.Credentials == nil {
		return nil, fmt.Errorf("%w: credential source is required", shared.ErrInvalidArgument)
	}
	if opts.Identity == nil {
		return nil, fmt.Errorf("%w: identity source is required", shared.ErrInvalidArgument)
	}
	if opts.Config.URL == "" {
		return nil, fmt.Errorf("%w: session url is required", shared.ErrMissingConfig)
	}

	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	c := &Channel{
		newTransport:  opts.Transport,
		credentials:   opts.Credentials,
		identity:      opts.Identity,
		url:           opts.Config.URL,
		retryInterval: opts.Config.RetryInterval,
		maxAttempts:   opts.Config.MaxAttempts,
		logger:        shared.WithLogger(logger, "component", "channel"),
		events:        events.NewDispatcher[models.EventType, models.Event](),
		after: func(d time.Duration, fn func()) timer {
			return time.AfterFunc(d, fn)
		},
	}
	if c.retryInterval <= 0 {
		c.retryInterval = DefaultRetryInterval
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = DefaultMaxAttempts
	}
	return c, nil
}

// AddEventListener subscribes fn to one event type.
func (c *Channel) AddEventListener(t models.EventType, fn Listener) events.ListenerID {
	return c.events.Subscribe(t, fn)
}

// RemoveEventListener removes a subscription. Reports whether it existed.
func (c *Channel) RemoveEventListener(t models.EventType, id events.ListenerID) bool {
	return c.events.Unsubscribe(t, id)
}

// State returns the current connection state.
func (c *Channel) State() models.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether the channel is Joined.
func (c *Channel) IsConnected() bool {
	return c.State() == models.Joined
}

// SessionID returns the session the channel is bound to, or "" after Disconnect.
func (c *Channel) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Connect binds the channel to sessionID and starts the handshake. It returns before any network activity completes;
// progress is reported through events.
//
// An empty session id is a caller error. Without a credential Connect emits Error{AuthRequired}, returns
// [shared.ErrAuthRequired] and makes no connection attempt. Connecting to the session the channel is already bound
// to is a no-op unless the channel is Disconnected or Failed; connecting to a different session tears the current one
// down first.
func (c *Channel) Connect(sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("%w: session id is required", shared.ErrInvalidArgument)
	}

	token, hasToken := c.credentials.BearerToken()

	c.mu.Lock()
	if c.sessionID == sessionID && c.state != models.Disconnected && c.state != models.Failed {
		c.mu.Unlock()
		return nil
	}

	stale := c.disconnectLocked("switched session")

	if !hasToken {
		c.enqueueLocked(models.Event{
			Type:      models.Error,
			SessionID: sessionID,
			Err:       models.NewSessionError(models.AuthRequired, "no credential available"),
		})
		c.mu.Unlock()
		c.closeTransport(stale)
		c.events.Drain()
		return shared.ErrAuthRequired
	}

	c.sessionID = sessionID
	t, gen := c.dialLocked(models.Connecting)
	c.mu.Unlock()

	c.closeTransport(stale)
	c.events.Drain()
	c.start(t, gen, token)
	return nil
}

// Disconnect tears the channel down from any state. It emits a local UserLeave only if the channel was Joined.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	stale := c.disconnectLocked("disconnected")
	c.mu.Unlock()

	c.closeTransport(stale)
	c.events.Drain()
}

// SendMessage sends event with payload plus the bound session id. It returns false without sending unless the channel
// is Joined. Delivery is attempted, not guaranteed.
func (c *Channel) SendMessage(event string, payload map[string]any) bool {
	c.mu.Lock()
	if c.state != models.Joined || c.conn == nil {
		c.mu.Unlock()
		c.logger.Debug("send rejected", "event", event, "state", c.State())
		return false
	}
	t, sessionID := c.conn, c.sessionID
	c.mu.Unlock()

	body := make(map[string]any, len(payload)+1)
	maps.Copy(body, payload)
	body["sessionId"] = sessionID

	if err := t.Send(event, body); err != nil {
		c.logger.Warn("send failed", "event", event, "error", err)
		return false
	}
	return true
}

// AddTrack asks the relay to append track to the playlist.
func (c *Channel) AddTrack(track models.Track) bool {
	return c.SendMessage(transport.EventAddTrack, map[string]any{"track": track})
}

// RemoveTrack asks the relay to remove a track from the playlist.
func (c *Channel) RemoveTrack(trackID string) bool {
	return c.SendMessage(transport.EventRemoveTrack, map[string]any{"trackId": trackID})
}

// LeaveSession tells the relay the local participant is leaving. The connection stays open until Disconnect.
func (c *Channel) LeaveSession() bool {
	return c.SendMessage(transport.EventLeaveSession, nil)
}

func (c *Channel) enqueueLocked(e models.Event) {
	c.events.Enqueue(e.Type, e)
}

func (c *Channel) errorLocked(code models.ErrorCode, format string, args ...any) {
	c.enqueueLocked(models.Event{
		Type:      models.Error,
		SessionID: c.sessionID,
		Err:       models.NewSessionError(code, format, args...),
	})
}

func (c *Channel) leaveLocked(reason string) {
	self := c.self
	c.enqueueLocked(models.Event{
		Type:        models.UserLeave,
		SessionID:   c.sessionID,
		Participant: &self,
		Reason:      reason,
		Local:       true,
	})
}

// resetLocked invalidates the current generation and returns the transport to close.
func (c *Channel) resetLocked(state models.ConnectionState) transport.Transport {
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	stale := c.conn
	c.conn = nil
	c.gen++
	c.state = state
	return stale
}

func (c *Channel) disconnectLocked(reason string) transport.Transport {
	if c.state == models.Joined {
		c.leaveLocked(reason)
	}
	stale := c.resetLocked(models.Disconnected)
	c.attempts = 0
	c.sessionID = ""
	return stale
}

func (c *Channel) dialLocked(state models.ConnectionState) (transport.Transport, uint64) {
	c.gen++
	t := c.newTransport()
	c.conn = t
	c.state = state
	c.bind(t, c.gen)
	return t, c.gen
}

func (c *Channel) start(t transport.Transport, gen uint64, token string) {
	c.logger.Info("connecting", "session", c.SessionID(), "url", c.url)
	if err := t.Connect(context.Background(), c.url, transport.Auth{Token: token}); err != nil {
		c.onConnectError(gen, transport.ConnectError{Message: err.Error()})
	}
}

func (c *Channel) closeTransport(t transport.Transport) {
	if t == nil {
		return
	}
	if err := t.Disconnect(); err != nil {
		c.logger.Debug("transport close failed", "error", err)
	}
}

func (c *Channel) bind(t transport.Transport, gen uint64) {
	t.On(transport.EventConnect, func(json.RawMessage) { c.onConnect(gen) })
	t.On(transport.EventConnectError, func(data json.RawMessage) {
		var ce transport.ConnectError
		if err := decode(data, &ce); err != nil {
			ce.Message = "connect failed"
		}
		c.onConnectError(gen, ce)
	})
	t.On(transport.EventDisconnect, func(data json.RawMessage) {
		var reason transport.DisconnectReason
		if err := decode(data, &reason); err != nil || reason.Reason == "" {
			reason.Reason = "transport error"
		}
		c.onDisconnect(gen, reason)
	})
	t.On(transport.EventIdentified, func(json.RawMessage) { c.onIdentified(gen) })
	t.On(transport.EventSessionJoined, func(data json.RawMessage) { c.onSessionJoined(gen, data) })
	t.On(transport.EventError, func(data json.RawMessage) { c.onRelayError(gen, data) })

	for name, typ := range inbound {
		t.On(name, func(data json.RawMessage) { c.onDomainEvent(gen, name, typ, data) })
	}
}

func (c *Channel) onConnect(gen uint64) {
	self, hasIdentity := c.identity.Identity()

	c.mu.Lock()
	if gen != c.gen || (c.state != models.Connecting && c.state != models.Reconnecting) {
		c.mu.Unlock()
		return
	}

	if !hasIdentity || self.Validate() != nil {
		c.errorLocked(models.AuthRequired, "no user identity available")
		stale := c.resetLocked(models.Disconnected)
		c.attempts = 0
		c.mu.Unlock()

		c.closeTransport(stale)
		c.events.Drain()
		return
	}

	c.self = self
	c.state = models.Identifying
	t := c.conn
	c.mu.Unlock()

	c.logger.Debug("identifying", "user", self.ID)
	payload := transport.Payload{UserID: self.ID, Name: self.Name, Avatar: self.Avatar}
	if err := t.Send(transport.EventIdentify, payload); err != nil {
		c.logger.Warn("identify failed", "error", err)
	}
}

func (c *Channel) onIdentified(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.state != models.Identifying {
		c.mu.Unlock()
		return
	}
	c.state = models.Joining
	t, sessionID := c.conn, c.sessionID
	c.mu.Unlock()

	if err := t.Send(transport.EventJoinSession, transport.Payload{SessionID: sessionID}); err != nil {
		c.logger.Warn("join failed", "session", sessionID, "error", err)
	}
}

func (c *Channel) onSessionJoined(gen uint64, data json.RawMessage) {
	var p transport.Payload
	if err := decode(data, &p); err != nil {
		c.logger.Warn("dropped malformed event", "event", transport.EventSessionJoined, "code", models.MalformedEvent, "error", err)
		return
	}

	c.mu.Lock()
	if gen != c.gen || c.state != models.Joining {
		c.mu.Unlock()
		return
	}
	if p.SessionID != "" && p.SessionID != c.sessionID {
		want := c.sessionID
		stale := c.retryLocked()
		c.mu.Unlock()

		c.logger.Warn("join acknowledged for another session", "want", want, "got", p.SessionID)
		c.closeTransport(stale)
		c.events.Drain()
		return
	}

	c.state = models.Joined
	c.attempts = 0
	self := c.self
	c.enqueueLocked(models.Event{
		Type:        models.UserJoin,
		SessionID:   c.sessionID,
		Participant: &self,
		Local:       true,
	})
	sessionID := c.sessionID
	c.mu.Unlock()

	c.logger.Info("joined session", "session", sessionID)
	c.events.Drain()
}

func (c *Channel) onDisconnect(gen uint64, reason transport.DisconnectReason) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}

	var stale transport.Transport
	switch {
	case reason.Auth:
		stale = c.authFailureLocked(reason.Reason)
	case c.state.Handshaking():
		c.leaveLocked(reason.Reason)
		stale = c.retryLocked()
	case c.state == models.Connecting || c.state == models.Reconnecting:
		stale = c.retryLocked()
	}
	c.mu.Unlock()

	c.logger.Warn("transport disconnected", "reason", reason.Reason)
	c.closeTransport(stale)
	c.events.Drain()
}

func (c *Channel) onConnectError(gen uint64, ce transport.ConnectError) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}

	var stale transport.Transport
	switch {
	case ce.Auth:
		stale = c.authFailureLocked(ce.Message)
	case c.state == models.Connecting || c.state == models.Reconnecting:
		stale = c.retryLocked()
	}
	c.mu.Unlock()

	c.logger.Warn("connect failed", "status", ce.Status, "error", ce.Message)
	c.closeTransport(stale)
	c.events.Drain()
}

func (c *Channel) onRelayError(gen uint64, data json.RawMessage) {
	var p transport.Payload
	if err := decode(data, &p); err != nil {
		c.logger.Warn("dropped malformed event", "event", transport.EventError, "code", models.MalformedEvent, "error", err)
		return
	}

	if !isAuthFailure(p) {
		c.logger.Warn("relay reported an error", "message", p.Message, "code", p.Code)
		return
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	stale := c.authFailureLocked(p.Message)
	c.mu.Unlock()

	c.closeTransport(stale)
	c.events.Drain()
}

func (c *Channel) onDomainEvent(gen uint64, name string, typ models.EventType, data json.RawMessage) {
	var p transport.Payload
	if err := decode(data, &p); err != nil {
		c.logger.Warn("dropped malformed event", "event", name, "code", models.MalformedEvent, "error", err)
		return
	}

	c.mu.Lock()
	if gen != c.gen || c.conn == nil {
		c.mu.Unlock()
		return
	}

	sessionID := p.SessionID
	if sessionID == "" && p.Session != nil {
		sessionID = p.Session.ID
	}
	if sessionID == "" {
		sessionID = c.sessionID
	}
	if sessionID != c.sessionID {
		c.mu.Unlock()
		c.logger.Debug("ignored event for another session", "event", name, "session", sessionID)
		return
	}

	e := models.Event{Type: typ, SessionID: sessionID}
	switch typ {
	case models.SessionUpdate:
		e.Session = p.Session
	case models.PlaylistUpdate:
		e.Track = p.Track
		e.Op = p.Op
	case models.UserJoin, models.UserLeave:
		e.Participant = p.Participant
		e.Reason = p.Reason
	case models.RecommendationAdded:
		e.Track = p.Track
	}
	c.enqueueLocked(e)
	c.mu.Unlock()

	c.events.Drain()
}

// authFailureLocked emits AuthRequired and returns to Disconnected without consuming a reconnect attempt.
func (c *Channel) authFailureLocked(message string) transport.Transport {
	if message == "" {
		message = "authentication failed"
	}
	if c.state.Handshaking() {
		c.leaveLocked(message)
	}
	c.errorLocked(models.AuthRequired, "%s", message)
	stale := c.resetLocked(models.Disconnected)
	c.attempts = 0
	return stale
}

// retryLocked schedules the next reconnect attempt, or fails the channel once attempts are exhausted.
func (c *Channel) retryLocked() transport.Transport {
	stale := c.resetLocked(models.Reconnecting)
	if c.attempts >= c.maxAttempts {
		c.state = models.Failed
		c.errorLocked(models.ConnectionFailed, "gave up after %d reconnect attempts", c.attempts)
		return stale
	}

	c.attempts++
	gen := c.gen
	c.logger.Info("reconnecting", "attempt", c.attempts, "of", c.maxAttempts, "in", c.retryInterval)
	c.retry = c.after(c.retryInterval, func() { c.reconnect(gen) })
	return stale
}

func (c *Channel) reconnect(gen uint64) {
	token, hasToken := c.credentials.BearerToken()

	c.mu.Lock()
	if gen != c.gen || c.state != models.Reconnecting {
		c.mu.Unlock()
		return
	}
	c.retry = nil

	if !hasToken {
		c.errorLocked(models.AuthRequired, "no credential available")
		c.resetLocked(models.Disconnected)
		c.attempts = 0
		c.mu.Unlock()
		c.events.Drain()
		return
	}

	t, next := c.dialLocked(models.Reconnecting)
	c.mu.Unlock()

	c.start(t, next, token)
}

func isAuthFailure(p transport.Payload) bool {
	if p.Code == transport.ErrorCodeAuth {
		return true
	}
	msg := strings.ToLower(p.Message)
	return strings.Contains(msg, "unauthorized") || strings.Contains(msg, "authentication")
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Join(shared.ErrMalformedEvent, err)
	}
	return nil
}
