package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"golang.org/x/oauth2"
)

// LoginResult is the outcome of one authorization code callback.
type LoginResult struct {
	Token *oauth2.Token
	Err   error
}

// Exchanger trades an authorization code for a token. [oauth2.Config] implements it.
type Exchanger interface {
	Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error)
}

// CallbackHandler receives the OAuth2 redirect for `jam auth login`.
type CallbackHandler struct {
	exchanger Exchanger
	state     string
	path      string

	mu     sync.Mutex
	hit    bool
	once   sync.Once
	result chan LoginResult
}

// NewCallbackHandler serves the path of redirectURL. state must be the value sent with the authorization request.
func NewCallbackHandler(exchanger Exchanger, redirectURL, state string) *CallbackHandler {
	path := "/callback"
	if u, err := url.Parse(redirectURL); err == nil && u.Path != "" {
		path = u.Path
	}
	return &CallbackHandler{
		exchanger: exchanger,
		state:     state,
		path:      path,
		result:    make(chan LoginResult, 1),
	}
}

func (h *CallbackHandler) Routes() []string {
	return []string{"GET " + h.path}
}

func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.hit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.hit = true
	h.mu.Unlock()

	q := r.URL.Query()
	if q.Get("state") != h.state {
		h.finish(LoginResult{Err: fmt.Errorf("invalid state parameter")})
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	code := q.Get("code")
	if code == "" {
		h.finish(LoginResult{Err: fmt.Errorf("authorization failed: %s - %s", q.Get("error"), q.Get("error_description"))})
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	token, err := h.exchanger.Exchange(r.Context(), code)
	if err != nil {
		h.finish(LoginResult{Err: fmt.Errorf("token exchange failed: %w", err)})
		http.Error(w, "Token exchange failed", http.StatusInternalServerError)
		return
	}

	h.finish(LoginResult{Token: token})

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head><title>jam</title></head>
<body style="font-family: sans-serif; text-align: center; margin-top: 20vh">
    <h1>Signed in</h1>
    <p>You can close this window and return to the terminal.</p>
</body>
</html>
`)
}

func (h *CallbackHandler) finish(result LoginResult) {
	h.once.Do(func() {
		h.result <- result
		close(h.result)
	})
}

// Result receives exactly one [LoginResult] and is then closed.
func (h *CallbackHandler) Result() <-chan LoginResult {
	return h.result
}
