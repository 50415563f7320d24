// Package channel implements the session channel: one real-time connection bound to one listening session.
//
// A [Channel] runs the handshake over a [transport.Transport] and reports it as a single state machine:
//
//	Disconnected -> Connecting -> Identifying -> Joining -> Joined
//
// Connecting ends with the transport's own connect acknowledgment, at which point the local identity is sent.
// Identifying ends with the relay's "identified" reply, Joining with "session_joined". Reaching Joined emits a local
// UserJoin event.
//
// A transport-level disconnect during Identifying, Joining or Joined emits a local UserLeave and moves to
// Reconnecting; a fresh transport is dialed after the retry interval, up to the configured number of attempts, after
// which the channel is Failed and emits Error{ConnectionFailed}. Authentication failures are not retried: they emit
// Error{AuthRequired} and return the channel to Disconnected.
//
// Every connection attempt gets its own transport and generation number. Events from an older generation, including
// anything that arrives after [Channel.Disconnect], are discarded.
//
// Listeners are called on whichever goroutine delivered the transport event, one event at a time and in arrival order.
// A listener may call back into the channel.
package channel
