package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/desertthunder/jam/internal/models"
	"github.com/desertthunder/jam/internal/shared"
	tu "github.com/desertthunder/jam/internal/testing"
)

func TestRelayClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/health":
			writeJSON(t, w, Health{Status: "ok", Sessions: 2, Clients: 3})
		case "/api/sessions/s1":
			writeJSON(t, w, models.Session{ID: "s1", Playlist: []models.Track{{ID: "t1"}}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := NewRelayClient(server.URL, "tok", nil)

	t.Run("Health", func(t *testing.T) {
		h, err := client.Health(context.Background())
		if err != nil {
			t.Fatalf("Health() error = %v", err)
		}
		if h.Status != "ok" || h.Sessions != 2 || h.Clients != 3 {
			t.Errorf("unexpected health %+v", h)
		}
	})

	t.Run("Session", func(t *testing.T) {
		s, err := client.Session(context.Background(), "s1")
		if err != nil {
			t.Fatalf("Session() error = %v", err)
		}
		if s.ID != "s1" || len(s.Playlist) != 1 {
			t.Errorf("unexpected session %+v", s)
		}
	})

	t.Run("Unknown Session", func(t *testing.T) {
		if _, err := client.Session(context.Background(), "missing"); !errors.Is(err, shared.ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("Empty Session ID", func(t *testing.T) {
		if _, err := client.Session(context.Background(), ""); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("Bad Token", func(t *testing.T) {
		bad := NewRelayClient(server.URL, "wrong", nil)
		if _, err := bad.Health(context.Background()); !errors.Is(err, shared.ErrTokenExpired) {
			t.Errorf("expected ErrTokenExpired, got %v", err)
		}
	})
}

func TestRelayClientTransportErrors(t *testing.T) {
	t.Run("Request Failure", func(t *testing.T) {
		client := NewRelayClient("http://relay", "", &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("dial failed"))})
		if _, err := client.Health(context.Background()); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})

	t.Run("Body Read Failure", func(t *testing.T) {
		resp := &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(&tu.FCloser{}), Header: http.Header{}}
		client := NewRelayClient("http://relay", "tok", &http.Client{Transport: tu.NewMockRoundTripper(resp, nil)})
		if _, err := client.Health(context.Background()); err == nil {
			t.Error("expected decode error")
		}
	})
}

func TestRelayBaseURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"ws://127.0.0.1:3000/ws", "http://127.0.0.1:3000"},
		{"wss://jam.example.com/ws?x=1", "https://jam.example.com"},
		{"http://host:8080/ws", "http://host:8080"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := RelayBaseURL(tt.in)
			if err != nil {
				t.Fatalf("RelayBaseURL() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("RelayBaseURL() = %q, want %q", got, tt.want)
			}
		})
	}
}
