package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/jam/internal/server"
	"github.com/urfave/cli/v3"
)

// Serve runs the session relay until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	cfg := r.config.Server
	if host := cmd.String("host"); host != "" {
		cfg.Host = host
	}
	if port := cmd.Int("port"); port > 0 {
		cfg.Port = port
	}
	if tokens := cmd.StringSlice("token"); len(tokens) > 0 {
		cfg.Tokens = tokens
	}

	if len(cfg.Tokens) == 0 {
		r.logger.Warn("no server tokens configured, relay accepts any client")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	relay := server.NewRelay(cfg, r.logger)
	r.writePlain("Relay listening on ws://%s/ws\n", cfg.Addr())
	return relay.ListenAndServe(ctx, cfg.Addr())
}
