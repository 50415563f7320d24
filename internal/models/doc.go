// Package models defines the domain entities shared by the jam session layer.
//
// The package contains three groups of types:
//
// 1. Session state, synchronised across participants:
//   - [Session] : the shared listening room (roster, playlist, recommendations)
//   - [Participant] : a member of the room
//   - [Track] : a playlist or recommendation entry
//
// 2. Channel lifecycle and the event taxonomy surfaced to consumers:
//   - [ConnectionState] : the channel's handshake/reconnect state machine
//   - [Event] and [EventType] : SessionUpdate, PlaylistUpdate, UserJoin, UserLeave, RecommendationAdded, Error
//   - [SessionError] and [ErrorCode] : reason codes carried by Error events
//
// 3. Coordination records:
//   - [RefreshLease] : the time-bounded claim stored in the shared key-value store
//
// None of these types are persisted beyond the lifetime of an active session except [RefreshLease].
package models
