// Package services implements the HTTP clients jam talks to besides the relay's WebSocket.
//
// # Spotify
//
// [SpotifyService] uses OAuth2 for authentication. It resolves the local participant from the user's profile, looks up
// track metadata for tracks added to a session, and implements the recommendation engine: suggestions are seeded with
// the most recent tracks of the session playlist.
//
// The HTTP client can come from a raw access token, an authorization code, or any [oauth2.TokenSource]. jam passes the
// auth provider's source so that every request uses the shared token and refreshes it under the refresh lease.
//
// # Relay
//
// [RelayClient] reads the relay's HTTP endpoints: health and the current snapshot of a session.
//
// # Error Handling
//
// Both clients map failures onto sentinels from the shared package:
//   - [shared.ErrNotAuthenticated] : no credentials configured
//   - [shared.ErrTokenExpired] : the API rejected the token (401)
//   - [shared.ErrNotFound] : 404, reported as [shared.ErrSessionNotFound] for relay sessions
//   - [shared.ErrServiceUnavailable] : 5xx responses
//   - [shared.ErrAPIRequest] : any other failed request
package services
