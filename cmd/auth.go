package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/desertthunder/jam/internal/models"
	"github.com/desertthunder/jam/internal/server"
	"github.com/desertthunder/jam/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const loginTimeout = 2 * time.Minute

type tokenStatus struct {
	Present     bool                 `json:"present"`
	Valid       bool                 `json:"valid"`
	Refreshable bool                 `json:"refreshable"`
	Expiry      *time.Time           `json:"expiry,omitempty"`
	Lease       *models.RefreshLease `json:"lease,omitempty"`
}

// AuthImport stores a token read from a JSON file in the shared store.
func (r *Runner) AuthImport(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: token file path", shared.ErrMissingArgument)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read token file: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return fmt.Errorf("%w: token file is not valid JSON: %v", shared.ErrInvalidInput, err)
	}
	if token.AccessToken == "" {
		return fmt.Errorf("%w: token file has no access_token", shared.ErrInvalidInput)
	}

	p, err := r.provider()
	if err != nil {
		return err
	}
	if err := p.Store(&token); err != nil {
		return err
	}

	r.logger.Info("token imported", "path", path, "refreshable", token.RefreshToken != "")
	return r.writePlain("✓ Token imported\n")
}

// AuthLogin runs the authorization code flow: it serves the redirect URI locally, opens the browser and stores the
// exchanged token.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireSpotify(); err != nil {
		return err
	}

	p, err := r.provider()
	if err != nil {
		return err
	}

	token, err := r.doOAuth(ctx, cmd.Duration("timeout"), !cmd.Bool("no-browser"))
	if err != nil {
		return err
	}
	if err := p.Store(token); err != nil {
		return err
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Token saved to %s\n", r.config.Database.Path)
	return nil
}

func (r *Runner) doOAuth(ctx context.Context, timeout time.Duration, browser bool) (*oauth2.Token, error) {
	config := r.spotify.Config()
	redirect, err := url.Parse(config.RedirectURL)
	if err != nil || redirect.Host == "" {
		return nil, fmt.Errorf("%w: redirect_uri %q", shared.ErrInvalidConfig, config.RedirectURL)
	}

	state := shared.GenerateID()
	handler := server.NewCallbackHandler(config, config.RedirectURL, state)

	router := server.NewBasicRouter()
	router.Use(server.RequestLogger(r.logger))
	router.Handler(handler)

	ln, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", redirect.Host, err)
	}

	srv := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("callback server failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	authURL := r.spotify.GetAuthURL(state)
	if browser {
		if err := shared.OpenBrowser(authURL); err != nil {
			r.logger.Warn("failed to open browser", "error", err)
			browser = false
		}
	}
	if !browser {
		r.writePlain("Open this URL to authorize jam:\n\n%s\n\n", authURL)
	} else {
		r.writePlain("Waiting for authorization in the browser...\n")
	}

	if timeout <= 0 {
		timeout = loginTimeout
	}
	select {
	case result := <-handler.Result():
		if result.Err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrAuthRequired, result.Err)
		}
		return result.Token, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("%w: no callback within %s", shared.ErrAuthRequired, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// AuthRefresh refreshes the shared token. Losing the race for the refresh lock is reported, not treated as failure.
func (r *Runner) AuthRefresh(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireSpotify(); err != nil {
		return err
	}

	p, err := r.provider()
	if err != nil {
		return err
	}

	token, err := p.Refresh(ctx)
	switch {
	case errors.Is(err, shared.ErrRefreshLockContended):
		return r.writePlain("Another process is refreshing the token; nothing to do\n")
	case err != nil:
		return err
	}
	return r.writePlain("✓ Token valid until %s\n", token.Expiry.Local().Format(time.RFC1123))
}

// AuthStatus reports whether a token is stored and who holds the refresh lock.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	p, err := r.provider()
	if err != nil {
		return err
	}

	var status tokenStatus
	token, ok, err := p.Token()
	if err != nil {
		return err
	}
	if ok {
		status.Present = true
		status.Valid = token.Valid()
		status.Refreshable = token.RefreshToken != ""
		if !token.Expiry.IsZero() {
			expiry := token.Expiry
			status.Expiry = &expiry
		}
	}

	if status.Lease, err = r.refreshLock(r.store).Status(); err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, cmd.Bool("pretty"))
	}

	r.writePlainHeader("Credential")
	if !status.Present {
		r.writePlain("Token: ✗ none stored (run 'jam auth login' or 'jam auth import')\n")
	} else {
		mark := "✓ valid"
		if !status.Valid {
			mark = "✗ expired"
		}
		r.writePlain("Token: %s\n", mark)
		if status.Expiry != nil {
			r.writePlain("Expires: %s\n", status.Expiry.Local().Format(time.RFC1123))
		}
		r.writePlain("Refreshable: %v\n", status.Refreshable)
	}
	return r.writeLease(status.Lease)
}
