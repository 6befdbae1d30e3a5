package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/ttrack/internal/session"
	"github.com/desertthunder/ttrack/internal/shared"
	"github.com/desertthunder/ttrack/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive time tracker, restoring the last session when possible.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(cmd.String("log-file"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	return r.withSession(ctx, signedOut, func(s *session.Session) error {
		if _, err := s.RestoreSession(ctx); err != nil {
			r.logger.Warn("could not restore session", "err", err)
		}

		if err := ui.Run(ctx, s); err != nil {
			return fmt.Errorf("error running TUI: %w", err)
		}
		return s.Close(ctx)
	})
}
