// Package session keeps the client-local view of a listening session consistent with what the relay confirms.
//
// The [Reconciler] turns channel events into idempotent merges:
//   - SessionUpdate replaces the roster and playlist wholesale (last snapshot wins)
//   - UserJoin and UserLeave add or remove one participant by id
//   - a local UserLeave (the channel left the session) clears everything
//   - PlaylistUpdate adds a track once or removes it by id
//   - RecommendationAdded appends without deduplication
//
// Local changes are never applied optimistically; the reconciler only reflects confirmed events. Malformed events are
// logged and dropped.
package session

import (
	"sync"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/jam/internal/channel"
	"github.com/desertthunder/jam/internal/events"
	"github.com/desertthunder/jam/internal/models"
	"github.com/desertthunder/jam/internal/shared"
)

// Source is the event surface of a session channel.
type Source interface {
	AddEventListener(models.EventType, channel.Listener) events.ListenerID
	RemoveEventListener(models.EventType, events.ListenerID) bool
}

// StateChange is published after every merge.
type StateChange struct {
	// Type is the event that caused the change.
	Type    models.EventType
	Session models.Session
	// Err is set for Error events, which do not mutate state.
	Err *models.SessionError
	// Reset marks a cleared session, either from [Reconciler.Reset] or because the channel left.
	Reset bool
}

// Reconciler owns the local [models.Session].
type Reconciler struct {
	logger *log.Logger

	mu      sync.Mutex
	session models.Session
	subs    map[int]chan StateChange
	nextSub int
}

// NewReconciler creates a reconciler with an empty session.
func NewReconciler(logger *log.Logger) *Reconciler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Reconciler{
		logger: shared.WithLogger(logger, "component", "session"),
		subs:   make(map[int]chan StateChange),
	}
}

// Attach subscribes to every event type of src. The returned func detaches.
func (r *Reconciler) Attach(src Source) func() {
	ids := make(map[models.EventType]events.ListenerID, len(models.EventTypes))
	for _, t := range models.EventTypes {
		ids[t] = src.AddEventListener(t, r.Apply)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			for t, id := range ids {
				src.RemoveEventListener(t, id)
			}
		})
	}
}

// Snapshot returns a deep copy of the current session.
func (r *Reconciler) Snapshot() models.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session.Clone()
}

// Subscribe returns a channel of state changes and a func that cancels the subscription and closes the channel.
// Sends never block: a subscriber whose buffer is full misses the notification and should read [Reconciler.Snapshot]
// on the next one.
func (r *Reconciler) Subscribe(buffer int) (<-chan StateChange, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan StateChange, buffer)

	r.mu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = ch
	r.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs, id)
			r.mu.Unlock()
			close(ch)
		})
	}
}

// Reset clears the local session.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.session = models.Session{}
	r.publishLocked(StateChange{Reset: true, Session: models.Session{}})
}

// Apply merges one event. Invalid events are logged and dropped.
func (r *Reconciler) Apply(e models.Event) {
	if err := e.Validate(); err != nil {
		r.logger.Warn("dropped malformed event", "type", e.Type, "code", models.MalformedEvent, "error", err)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if e.Type == models.Error {
		r.logger.Debug("session error", "code", e.Err.Code, "message", e.Err.Message)
		r.publishLocked(StateChange{Type: e.Type, Session: r.session.Clone(), Err: e.Err})
		return
	}

	if e.Type == models.UserLeave && e.Local {
		if e.SessionID != "" && r.session.ID != "" && e.SessionID != r.session.ID {
			return
		}
		r.session = models.Session{}
		r.publishLocked(StateChange{Type: e.Type, Session: models.Session{}, Reset: true})
		return
	}

	if !r.adoptLocked(e) {
		r.logger.Debug("ignored event for another session", "type", e.Type, "session", e.SessionID, "current", r.session.ID)
		return
	}

	if r.mergeLocked(e) {
		r.publishLocked(StateChange{Type: e.Type, Session: r.session.Clone()})
	}
}

// adoptLocked binds the local session to the event's session id. A local join for a different session starts over;
// any other event for a different session is rejected.
func (r *Reconciler) adoptLocked(e models.Event) bool {
	id := e.SessionID
	if id == "" && e.Session != nil {
		id = e.Session.ID
	}

	switch {
	case id == "" || id == r.session.ID:
		return true
	case r.session.ID == "":
		r.session.ID = id
		return true
	case e.Type == models.UserJoin && e.Local:
		r.session = models.Session{ID: id}
		return true
	default:
		return false
	}
}

func (r *Reconciler) mergeLocked(e models.Event) bool {
	switch e.Type {
	case models.SessionUpdate:
		next := e.Session.Clone()
		if next.ID == "" {
			next.ID = r.session.ID
		}
		if next.Recommendations == nil {
			next.Recommendations = r.session.Recommendations
		}
		r.session = next
		return true
	case models.UserJoin:
		return r.session.AddParticipant(*e.Participant)
	case models.UserLeave:
		return r.session.RemoveParticipant(e.Participant.ID)
	case models.PlaylistUpdate:
		if e.Op == models.OpAdd {
			return r.session.AddTrack(*e.Track)
		}
		return r.session.RemoveTrack(e.Track.ID)
	case models.RecommendationAdded:
		r.session.Recommendations = append(r.session.Recommendations, *e.Track)
		return true
	default:
		return false
	}
}

func (r *Reconciler) publishLocked(change StateChange) {
	for _, ch := range r.subs {
		select {
		case ch <- change:
		default:
		}
	}
}
