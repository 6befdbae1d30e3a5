package main

import (
	"context"

	"github.com/desertthunder/ttrack/internal/session"
	"github.com/urfave/cli/v3"
)

// Sync pushes the full task list and reports the cycle outcome.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	return r.withSession(ctx, readOnly, func(s *session.Session) error {
		res, err := s.Sync(ctx)
		if err != nil {
			return err
		}
		return r.writePlain("✓ Synced %d task(s) in %d attempt(s)\n", res.Rows, res.Attempts)
	})
}
