package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/jam/internal/shared"
	"github.com/desertthunder/jam/internal/ui"
	"github.com/urfave/cli/v3"
)

// SessionWatch joins a session in the interactive viewer.
func (r *Runner) SessionWatch(ctx context.Context, cmd *cli.Command) error {
	sessionID := cmd.StringArg("session")
	if sessionID == "" {
		return fmt.Errorf("%w: session id", shared.ErrMissingArgument)
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/jam-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c, err := r.openSession(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if cmd.Bool("recommend") {
		if err := r.startFeed(ctx, c.state); err != nil {
			return err
		}
	}

	model := ui.NewModel(c.channel, c.state, sessionID)
	defer model.Close()

	if err := c.channel.Connect(sessionID); err != nil {
		return err
	}

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	c.channel.LeaveSession()
	return nil
}
