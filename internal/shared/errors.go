package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthRequired         = fmt.Errorf("authentication required")
	ErrNotAuthenticated     = fmt.Errorf("not authenticated")
	ErrTokenExpired         = fmt.Errorf("access token expired")
	ErrRefreshFailed        = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken       = fmt.Errorf("no refresh token available")
	ErrRefreshLockContended = fmt.Errorf("refresh lock held elsewhere")

	// Session errors
	ErrConnectionFailed = fmt.Errorf("connection failed")
	ErrNotConnected     = fmt.Errorf("not connected")
	ErrMalformedEvent   = fmt.Errorf("malformed event")
	ErrSessionNotFound  = fmt.Errorf("session not found")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrNotFound           = fmt.Errorf("resource not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
