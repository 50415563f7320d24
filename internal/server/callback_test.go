package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/oauth2"
)

type fakeExchanger struct {
	token *oauth2.Token
	err   error
	code  string
}

func (f *fakeExchanger) Exchange(_ context.Context, code string, _ ...oauth2.AuthCodeOption) (*oauth2.Token, error) {
	f.code = code
	return f.token, f.err
}

func TestCallbackHandler(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		exchanger *fakeExchanger
		status    int
		wantToken bool
	}{
		{"success", "?state=s&code=abc", &fakeExchanger{token: &oauth2.Token{AccessToken: "tok"}}, http.StatusOK, true},
		{"state mismatch", "?state=other&code=abc", &fakeExchanger{}, http.StatusBadRequest, false},
		{"denied", "?state=s&error=access_denied", &fakeExchanger{}, http.StatusBadRequest, false},
		{"exchange failure", "?state=s&code=abc", &fakeExchanger{err: errors.New("bad code")}, http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewCallbackHandler(tt.exchanger, "http://localhost:3000/oauth/callback", "s")
			if routes := h.Routes(); len(routes) != 1 || routes[0] != "GET /oauth/callback" {
				t.Fatalf("unexpected routes %v", routes)
			}

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth/callback"+tt.query, nil))
			if rec.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, rec.Code)
			}

			result, ok := <-h.Result()
			if !ok {
				t.Fatal("expected a result")
			}
			if tt.wantToken {
				if result.Err != nil || result.Token.AccessToken != "tok" {
					t.Errorf("unexpected result %+v", result)
				}
				if tt.exchanger.code != "abc" {
					t.Errorf("exchanged wrong code %q", tt.exchanger.code)
				}
			} else if result.Err == nil {
				t.Error("expected an error result")
			}

			if _, open := <-h.Result(); open {
				t.Error("expected result channel to be closed")
			}
		})
	}

	t.Run("Single Use", func(t *testing.T) {
		h := NewCallbackHandler(&fakeExchanger{token: &oauth2.Token{}}, "", "s")
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/callback?state=s&code=a", nil))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=s&code=a", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected second callback to be rejected, got %d", rec.Code)
		}
	})
}
