// Package server implements the relay: the server side of jam's session protocol, plus the HTTP plumbing the CLI's
// login flow uses.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns ("GET /health").
//
// # Relay
//
// [Relay] upgrades /ws to a WebSocket behind a bearer-token check and hands the connection to a [Hub]. The hub keeps
// one in-memory room per session id and answers the client handshake:
//
//	identify      -> identified
//	join_session  -> session_joined, session_update (snapshot) to the joiner; user_join to the rest of the room
//	add_track     -> playlist_update (op add) to the room, once per track id
//	remove_track  -> playlist_update (op remove) to the room, only if the track was queued
//	leave_session -> user_leave to the room; a closed socket does the same
//
// Rooms vanish with their last client. Nothing is persisted.
//
// Revoking a token closes its live connections with close code 4401 so clients treat it as an authentication failure.
//
// # Login Callback
//
// [CallbackHandler] implements the OAuth2 authorization code callback flow. It validates the state parameter,
// exchanges the code and sends the result through a channel. Only the first callback is processed.
package server
