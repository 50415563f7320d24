package transport

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/desertthunder/jam/internal/models"
)

// Synthesized by the transport itself.
const (
	EventConnect      = "connect"
	EventConnectError = "connect_error"
	EventDisconnect   = "disconnect"
)

// Client to relay.
const (
	EventIdentify     = "identify"
	EventJoinSession  = "join_session"
	EventAddTrack     = "add_track"
	EventRemoveTrack  = "remove_track"
	EventLeaveSession = "leave_session"
)

// Relay to client.
const (
	EventIdentified          = "identified"
	EventSessionJoined       = "session_joined"
	EventSessionUpdate       = "session_update"
	EventPlaylistUpdate      = "playlist_update"
	EventUserJoin            = "user_join"
	EventUserLeave           = "user_leave"
	EventRecommendationAdded = "recommendation_added"
	EventError               = "error"
)

// CloseAuthFailed is the close code the relay uses when a live connection's credentials are revoked.
const CloseAuthFailed = 4401

// Frame is the unit on the wire.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Payload is the data of every session frame. Each event uses a subset of the fields.
type Payload struct {
	SessionID   string              `json:"sessionId,omitempty"`
	UserID      string              `json:"userId,omitempty"`
	Name        string              `json:"name,omitempty"`
	Avatar      string              `json:"avatar,omitempty"`
	Session     *models.Session     `json:"session,omitempty"`
	Participant *models.Participant `json:"participant,omitempty"`
	Track       *models.Track       `json:"track,omitempty"`
	TrackID     string              `json:"trackId,omitempty"`
	Op          models.PlaylistOp   `json:"op,omitempty"`
	Reason      string              `json:"reason,omitempty"`
	Message     string              `json:"message,omitempty"`
	Code        string              `json:"code,omitempty"`
}

// ErrorCodeAuth marks an error frame as an authentication failure.
const ErrorCodeAuth = "auth_failed"

// ConnectError is the data of [EventConnectError].
type ConnectError struct {
	Message string `json:"message"`
	Status  int    `json:"status,omitempty"`
	Auth    bool   `json:"auth,omitempty"`
}

// DisconnectReason is the data of [EventDisconnect].
type DisconnectReason struct {
	Reason string `json:"reason"`
	Auth   bool   `json:"auth,omitempty"`
}

// Auth carries the credential presented when dialing.
type Auth struct {
	Token string
}

// Handler receives the raw data of one event.
type Handler func(data json.RawMessage)

// Transport is a single connection attempt and, if it succeeds, the connection.
type Transport interface {
	// Connect starts dialing url. Errors returned here are immediate (bad arguments, reuse); dial failures arrive
	// as [EventConnectError].
	Connect(ctx context.Context, url string, auth Auth) error
	// Send writes one frame. It fails when not connected.
	Send(event string, payload any) error
	// On registers h for event. Handlers run on the transport's read goroutine.
	On(event string, h Handler)
	// Disconnect closes the connection and silences all handlers. It is idempotent.
	Disconnect() error
}

var errMissingEvent = errors.New("frame has no event")

// Factory creates a fresh [Transport] for each connection attempt.
type Factory func() Transport

// Encode builds the wire form of one frame.
func Encode(event string, payload any) ([]byte, error) {
	frame := Frame{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		frame.Data = data
	}
	return json.Marshal(frame)
}

// Decode parses a frame. Frames without an event name are rejected.
func Decode(raw []byte) (Frame, error) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return frame, err
	}
	if frame.Event == "" {
		return frame, errMissingEvent
	}
	return frame, nil
}
