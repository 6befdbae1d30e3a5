package main

import (
	"context"
	"errors"
	"time"

	"github.com/desertthunder/ttrack/internal/session"
	"github.com/desertthunder/ttrack/internal/shared"
	"github.com/urfave/cli/v3"
)

// AuthLogin runs the browser sign-in, then connects the spreadsheet and pushes the task list once.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	return r.withSession(ctx, signedOut, func(s *session.Session) error {
		r.logger.Info("starting Google sign-in")
		if err := s.SignIn(ctx); err != nil {
			return err
		}

		r.writePlain("✓ Signed in")
		if email := s.Email(); email != "" {
			r.writePlain(" as %s", email)
		}
		return r.writePlain("\nTasks: %d active, %d finished\n", len(s.Tasks().Active()), len(s.Tasks().Finished()))
	})
}

// AuthLogout revokes the stored credential.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	return r.withSession(ctx, signedOut, func(s *session.Session) error {
		if err := s.SignOut(ctx); err != nil {
			return err
		}
		return r.writePlain("✓ Signed out\n")
	})
}

// AuthStatus reports whether a usable credential is stored and what the spreadsheet holds.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	err := r.withSession(ctx, readOnly, func(s *session.Session) error {
		r.writePlainHeader("ttrack status")
		email := s.Email()
		if email == "" {
			email = "unknown"
		}
		r.writePlain("Authentication: ✓ Signed in (%s)\n", email)
		r.writePlain("Spreadsheet: %s / %s\n", r.config.Store.SpreadsheetTitle, r.config.Store.SheetName)
		r.writePlain("Tasks: %d active, %d finished, %d running\n",
			len(s.Tasks().Active()), len(s.Tasks().Finished()), len(s.Tasks().Running()))
		if last := s.LastSync(); !last.IsZero() {
			r.writePlain("Last sync: %s\n", last.Local().Format(time.DateTime))
		}
		return nil
	})

	if errors.Is(err, shared.ErrNotAuthenticated) {
		return r.writePlain("Authentication: ✗ Not signed in\n")
	}
	return err
}
