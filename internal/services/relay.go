package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/jam/internal/models"
	"github.com/desertthunder/jam/internal/shared"
)

// RelayClient reads the relay's HTTP endpoints.
type RelayClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Health is the relay's status report.
type Health struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
	Clients  int    `json:"clients"`
}

// NewRelayClient creates a client for the relay at baseURL. An empty baseURL defaults to the local relay.
func NewRelayClient(baseURL, token string, client *http.Client) *RelayClient {
	if baseURL == "" {
		baseURL = "http://127.0.0.1:3000"
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &RelayClient{baseURL: strings.TrimRight(baseURL, "/"), token: token, httpClient: client}
}

// RelayBaseURL derives the relay's HTTP root from its WebSocket url.
func RelayBaseURL(wsURL string) (string, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return "", fmt.Errorf("%w: invalid session url: %v", shared.ErrInvalidConfig, err)
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	}
	u.Path = ""
	u.RawQuery = ""
	return u.String(), nil
}

// Health checks the relay is up.
func (c *RelayClient) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.get(ctx, "/health", &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Session fetches the relay's current snapshot of a session.
func (c *RelayClient) Session(ctx context.Context, sessionID string) (*models.Session, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", shared.ErrMissingArgument)
	}

	var s models.Session
	if err := c.get(ctx, "/api/sessions/"+url.PathEscape(sessionID), &s); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", shared.ErrSessionNotFound, sessionID)
		}
		return nil, err
	}
	return &s, nil
}

func (c *RelayClient) get(ctx context.Context, path string, result any) error {
	client := c.httpClient
	if c.token != "" {
		client = &http.Client{
			Transport: bearerTransport{token: c.token, base: c.httpClient.Transport},
			Timeout:   c.httpClient.Timeout,
		}
	}
	return getJSON(ctx, client, c.baseURL+path, result)
}

type bearerTransport struct {
	token string
	base  http.RoundTripper
}

func (t bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Bearer "+t.token)
	return base.RoundTrip(r)
}
