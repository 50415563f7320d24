package models

import (
	"fmt"

	"github.com/desertthunder/jam/internal/shared"
)

// EventType enumerates the events a session channel surfaces.
type EventType int

const (
	SessionUpdate EventType = iota
	PlaylistUpdate
	UserJoin
	UserLeave
	RecommendationAdded
	Error
)

// EventTypes lists every [EventType] in declaration order.
var EventTypes = []EventType{SessionUpdate, PlaylistUpdate, UserJoin, UserLeave, RecommendationAdded, Error}

func (t EventType) String() string {
	switch t {
	case SessionUpdate:
		return "session_update"
	case PlaylistUpdate:
		return "playlist_update"
	case UserJoin:
		return "user_join"
	case UserLeave:
		return "user_leave"
	case RecommendationAdded:
		return "recommendation_added"
	case Error:
		return "error"
	default:
		return ""
	}
}

// PlaylistOp is the mutation carried by a PlaylistUpdate.
type PlaylistOp string

const (
	OpAdd    PlaylistOp = "add"
	OpRemove PlaylistOp = "remove"
)

// Event is one entry of the channel's event taxonomy.
//
// Which payload field is set depends on Type:
//   - SessionUpdate: Session (a full snapshot)
//   - PlaylistUpdate: Track and Op
//   - UserJoin, UserLeave: Participant, Reason (leave only); Local marks the local participant's own lifecycle
//   - RecommendationAdded: Track
//   - Error: Err
type Event struct {
	Type        EventType
	SessionID   string
	Session     *Session
	Participant *Participant
	Track       *Track
	Op          PlaylistOp
	Reason      string
	Local       bool
	Err         *SessionError
}

// Validate reports a [shared.ErrMalformedEvent] when a required payload field is missing.
func (e Event) Validate() error {
	switch e.Type {
	case SessionUpdate:
		if e.Session == nil {
			return fmt.Errorf("%w: %s without session", shared.ErrMalformedEvent, e.Type)
		}
	case PlaylistUpdate:
		if e.Track == nil || e.Track.Validate() != nil {
			return fmt.Errorf("%w: %s without track id", shared.ErrMalformedEvent, e.Type)
		}
		if e.Op != OpAdd && e.Op != OpRemove {
			return fmt.Errorf("%w: %s with unknown op %q", shared.ErrMalformedEvent, e.Type, e.Op)
		}
	case UserJoin, UserLeave:
		if e.Participant == nil || e.Participant.Validate() != nil {
			return fmt.Errorf("%w: %s without participant id", shared.ErrMalformedEvent, e.Type)
		}
	case RecommendationAdded:
		if e.Track == nil || e.Track.Validate() != nil {
			return fmt.Errorf("%w: %s without track id", shared.ErrMalformedEvent, e.Type)
		}
	case Error:
		if e.Err == nil {
			return fmt.Errorf("%w: %s without reason", shared.ErrMalformedEvent, e.Type)
		}
	default:
		return fmt.Errorf("%w: unknown event type %d", shared.ErrMalformedEvent, e.Type)
	}
	return nil
}

// ErrorCode classifies failures reported through Error events.
type ErrorCode string

const (
	AuthRequired         ErrorCode = "auth_required"
	ConnectionFailed     ErrorCode = "connection_failed"
	RefreshLockContended ErrorCode = "refresh_lock_contended"
	MalformedEvent       ErrorCode = "malformed_event"
)

// SessionError is the payload of an Error event.
type SessionError struct {
	Code    ErrorCode
	Message string
}

// NewSessionError builds a [SessionError] for code.
func NewSessionError(code ErrorCode, format string, args ...any) *SessionError {
	return &SessionError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e *SessionError) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap maps the code onto the matching sentinel so callers can use errors.Is.
func (e *SessionError) Unwrap() error {
	switch e.Code {
	case AuthRequired:
		return shared.ErrAuthRequired
	case ConnectionFailed:
		return shared.ErrConnectionFailed
	case RefreshLockContended:
		return shared.ErrRefreshLockContended
	case MalformedEvent:
		return shared.ErrMalformedEvent
	default:
		return nil
	}
}

// UserMessage is the text a UI should show for the error.
func (e *SessionError) UserMessage() string {
	switch e.Code {
	case AuthRequired:
		return "Your login has expired, please sign in again."
	case ConnectionFailed:
		return "Session disconnected, please rejoin."
	default:
		return e.Error()
	}
}
