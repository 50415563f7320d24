package auth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/desertthunder/jam/internal/lock"
	"github.com/desertthunder/jam/internal/shared"
)

type tokenServer struct {
	*httptest.Server
	calls  atomic.Int32
	status int
}

func newTokenServer(t *testing.T) *tokenServer {
	t.Helper()
	ts := &tokenServer{status: http.StatusOK}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.calls.Add(1)
		if err := r.ParseForm(); err != nil || r.Form.Get("grant_type") != "refresh_token" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if ts.status != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(ts.status)
			w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "fresh-access",
			"token_type":    "Bearer",
			"expires_in":    3600,
			"refresh_token": "fresh-refresh",
		})
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *tokenServer) config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		Endpoint:     oauth2.Endpoint{TokenURL: ts.URL, AuthStyle: oauth2.AuthStyleInParams},
	}
}

type fixture struct {
	store    *lock.MemoryStore
	provider *Provider
	server   *tokenServer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := lock.NewMemoryStore()
	server := newTokenServer(t)
	return &fixture{
		store:    store,
		server:   server,
		provider: NewProvider(server.config(), store, lock.New(store), shared.NewLogger(io.Discard)),
	}
}

func expiredToken() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  "stale-access",
		RefreshToken: "stale-refresh",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(-time.Minute),
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name  string
		token *oauth2.Token
		want  string
		ok    bool
	}{
		{name: "no token"},
		{name: "expired", token: expiredToken()},
		{name: "valid", token: &oauth2.Token{AccessToken: "a", Expiry: time.Now().Add(time.Hour)}, want: "a", ok: true},
		{name: "no expiry", token: &oauth2.Token{AccessToken: "b"}, want: "b", ok: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.token != nil {
				if err := f.provider.Store(tt.token); err != nil {
					t.Fatalf("failed to store token: %v", err)
				}
			}

			got, ok := f.provider.BearerToken()
			if ok != tt.ok || got != tt.want {
				t.Errorf("expected (%q, %v), got (%q, %v)", tt.want, tt.ok, got, ok)
			}
		})
	}

	t.Run("corrupt token reads as absent", func(t *testing.T) {
		f := newFixture(t)
		f.store.Update(TokenKey, func([]byte, bool) ([]byte, bool, error) { return []byte("{"), true, nil })

		if _, ok := f.provider.BearerToken(); ok {
			t.Error("expected no token")
		}
		if _, _, err := f.provider.Token(); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestStore(t *testing.T) {
	f := newFixture(t)
	if err := f.provider.Store(nil); !errors.Is(err, shared.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for nil token, got %v", err)
	}
	if err := f.provider.Store(&oauth2.Token{}); !errors.Is(err, shared.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for empty token, got %v", err)
	}
}

func TestRefresh(t *testing.T) {
	t.Run("refreshes and persists under the lease", func(t *testing.T) {
		f := newFixture(t)
		f.provider.Store(expiredToken())

		token, err := f.provider.Refresh(context.Background())
		if err != nil {
			t.Fatalf("refresh failed: %v", err)
		}
		if token.AccessToken != "fresh-access" || token.RefreshToken != "fresh-refresh" {
			t.Errorf("unexpected token %+v", token)
		}
		if f.server.calls.Load() != 1 {
			t.Errorf("expected one token request, got %d", f.server.calls.Load())
		}

		stored, _, _ := f.provider.Token()
		if stored.AccessToken != "fresh-access" {
			t.Errorf("expected refreshed token to be stored, got %q", stored.AccessToken)
		}
		if lease, _ := lock.New(f.store).Status(); lease != nil {
			t.Error("lease should be released after refresh")
		}
	})

	t.Run("contended lease skips the refresh", func(t *testing.T) {
		f := newFixture(t)
		f.provider.Store(expiredToken())

		other := lock.New(f.store)
		if ok, _ := other.Acquire(); !ok {
			t.Fatal("expected to acquire the lease")
		}

		_, err := f.provider.Refresh(context.Background())
		if !errors.Is(err, shared.ErrRefreshLockContended) {
			t.Fatalf("expected ErrRefreshLockContended, got %v", err)
		}
		if f.server.calls.Load() != 0 {
			t.Error("no request should be made while contended")
		}
		if held, _ := other.Held(); !held {
			t.Error("the other holder's lease must survive")
		}
	})

	t.Run("token refreshed elsewhere is reused", func(t *testing.T) {
		f := newFixture(t)
		f.provider.Store(&oauth2.Token{AccessToken: "already", RefreshToken: "r", Expiry: time.Now().Add(time.Hour)})

		token, err := f.provider.Refresh(context.Background())
		if err != nil {
			t.Fatalf("refresh failed: %v", err)
		}
		if token.AccessToken != "already" || f.server.calls.Load() != 0 {
			t.Errorf("expected stored token without a request, got %q after %d calls", token.AccessToken, f.server.calls.Load())
		}
	})

	t.Run("failures release the lease", func(t *testing.T) {
		tests := []struct {
			name   string
			token  *oauth2.Token
			status int
			want   error
		}{
			{name: "no token", want: shared.ErrNotAuthenticated},
			{
				name:  "no refresh token",
				token: &oauth2.Token{AccessToken: "a", Expiry: time.Now().Add(-time.Minute)},
				want:  shared.ErrNoRefreshToken,
			},
			{name: "rejected by provider", token: expiredToken(), status: http.StatusBadRequest, want: shared.ErrRefreshFailed},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				f := newFixture(t)
				if tt.status != 0 {
					f.server.status = tt.status
				}
				if tt.token != nil {
					f.provider.Store(tt.token)
				}

				_, err := f.provider.Refresh(context.Background())
				if !errors.Is(err, tt.want) {
					t.Fatalf("expected %v, got %v", tt.want, err)
				}
				if lease, _ := lock.New(f.store).Status(); lease != nil {
					t.Error("lease should be released after a failed refresh")
				}
			})
		}
	})

	t.Run("no oauth config", func(t *testing.T) {
		store := lock.NewMemoryStore()
		p := NewProvider(nil, store, lock.New(store), shared.NewLogger(io.Discard))
		if _, err := p.Refresh(context.Background()); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})
}

func TestEnsureFresh(t *testing.T) {
	t.Run("fresh token is returned as is", func(t *testing.T) {
		f := newFixture(t)
		f.provider.Store(&oauth2.Token{AccessToken: "ok", Expiry: time.Now().Add(time.Hour)})

		token, err := f.provider.EnsureFresh(context.Background())
		if err != nil || token.AccessToken != "ok" {
			t.Fatalf("expected stored token, got %v err=%v", token, err)
		}
		if f.server.calls.Load() != 0 {
			t.Error("no refresh expected")
		}
	})

	t.Run("token inside the skew window is refreshed", func(t *testing.T) {
		f := newFixture(t)
		f.provider.Store(&oauth2.Token{AccessToken: "soon", RefreshToken: "r", Expiry: time.Now().Add(30 * time.Second)})

		token, err := f.provider.EnsureFresh(context.Background())
		if err != nil || token.AccessToken != "fresh-access" {
			t.Fatalf("expected refreshed token, got %v err=%v", token, err)
		}
	})

	t.Run("contended refresh falls back to a usable token", func(t *testing.T) {
		f := newFixture(t)
		f.provider.Store(&oauth2.Token{AccessToken: "soon", RefreshToken: "r", Expiry: time.Now().Add(30 * time.Second)})
		lock.New(f.store).Acquire()

		token, err := f.provider.EnsureFresh(context.Background())
		if err != nil || token.AccessToken != "soon" {
			t.Fatalf("expected current token, got %v err=%v", token, err)
		}
	})

	t.Run("contended refresh of an expired token fails", func(t *testing.T) {
		f := newFixture(t)
		f.provider.Store(expiredToken())
		lock.New(f.store).Acquire()

		if _, err := f.provider.EnsureFresh(context.Background()); !errors.Is(err, shared.ErrRefreshLockContended) {
			t.Errorf("expected ErrRefreshLockContended, got %v", err)
		}
	})

	t.Run("TokenSource authorises requests", func(t *testing.T) {
		f := newFixture(t)
		f.provider.Store(expiredToken())

		var auth string
		api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth = r.Header.Get("Authorization")
		}))
		defer api.Close()

		client := oauth2.NewClient(context.Background(), f.provider.TokenSource(context.Background()))
		resp, err := client.Get(api.URL)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()

		if auth != "Bearer fresh-access" {
			t.Errorf("expected refreshed bearer token, got %q", auth)
		}
	})
}
