package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/ttrack/internal/formatter"
	"github.com/desertthunder/ttrack/internal/models"
	"github.com/desertthunder/ttrack/internal/session"
	"github.com/desertthunder/ttrack/internal/shared"
	"github.com/desertthunder/ttrack/internal/tasks"
	"github.com/urfave/cli/v3"
)

// TaskAdd adds a task, optionally starting it.
func (r *Runner) TaskAdd(ctx context.Context, cmd *cli.Command) error {
	name := cmd.StringArg("name")
	if name == "" {
		return fmt.Errorf("%w: task name", shared.ErrMissingArgument)
	}

	return r.withSession(ctx, readWrite, func(s *session.Session) error {
		t, err := s.AddTask(ctx, name)
		if err != nil {
			return err
		}
		if cmd.Bool("start") {
			if err := s.StartTask(ctx, t.ID); err != nil {
				return err
			}
			return r.writePlain("✓ Added and started %q (%d)\n", t.Name, t.ID)
		}
		return r.writePlain("✓ Added %q (%d)\n", t.Name, t.ID)
	})
}

func (r *Runner) TaskStart(ctx context.Context, cmd *cli.Command) error {
	return r.taskAction(ctx, cmd, "Started", (*session.Session).StartTask)
}

func (r *Runner) TaskStop(ctx context.Context, cmd *cli.Command) error {
	return r.taskAction(ctx, cmd, "Stopped", (*session.Session).StopTask)
}

func (r *Runner) TaskFinish(ctx context.Context, cmd *cli.Command) error {
	return r.taskAction(ctx, cmd, "Finished", (*session.Session).FinishTask)
}

func (r *Runner) TaskDelete(ctx context.Context, cmd *cli.Command) error {
	return r.taskAction(ctx, cmd, "Deleted", (*session.Session).DeleteTask)
}

// taskAction resolves the task argument, applies op, and prints the task's elapsed time afterwards.
func (r *Runner) taskAction(
	ctx context.Context, cmd *cli.Command, verb string, op func(*session.Session, context.Context, int64) error,
) error {
	ref := cmd.StringArg("task")
	if ref == "" {
		return fmt.Errorf("%w: task id or name", shared.ErrMissingArgument)
	}

	return r.withSession(ctx, readWrite, func(s *session.Session) error {
		id, err := resolveTask(s.Tasks(), ref)
		if err != nil {
			return err
		}
		if err := op(s, ctx, id); err != nil {
			return err
		}

		t, _ := s.Tasks().Get(id)
		return r.writePlain("✓ %s %q [%s]\n", verb, t.Name, shared.FormatElapsed(t.ElapsedAt(time.Now())))
	})
}

// TaskList prints the active tasks, or the finished ones with --finished. --all lists every record, tombstones included.
func (r *Runner) TaskList(ctx context.Context, cmd *cli.Command) error {
	return r.withSession(ctx, readOnly, func(s *session.Session) error {
		list, title := s.Tasks().Active(), "Active tasks"
		switch {
		case cmd.Bool("all"):
			list, title = s.Tasks().All(), "All tasks"
		case cmd.Bool("finished"):
			list, title = s.Tasks().Finished(), "Finished tasks"
		}

		if cmd.Bool("json") {
			return r.writeJSON(list, cmd.Bool("pretty"))
		}

		r.writePlainHeader(fmt.Sprintf("%s (%d)", title, len(list)))
		now := time.Now()
		for _, t := range list {
			r.writePlain("%-14d %s  %s%s\n", t.ID, shared.FormatElapsed(t.ElapsedAt(now)), t.Name, marker(t))
		}
		return nil
	})
}

// TaskExport writes every task to a file in the requested format.
func (r *Runner) TaskExport(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	return r.withSession(ctx, readOnly, func(s *session.Session) error {
		path, err := formatter.WriteExport(format, s.Tasks().All(), time.Now(), cmd.String("output"))
		if err != nil {
			return err
		}
		r.logger.Info("exported tasks", "format", format, "path", path)
		return r.writePlain("✓ Exported %d task(s) to %s\n", s.Tasks().Len(), path)
	})
}

func marker(t models.Task) string {
	switch {
	case t.IsDeleted:
		return " (deleted)"
	case t.IsRunning:
		return " ▶"
	case t.IsFinished:
		return " ✓"
	default:
		return ""
	}
}

// resolveTask accepts a task id or a case-insensitive exact name. Deleted tasks only match by id.
func resolveTask(reg *tasks.Registry, ref string) (int64, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		if _, ok := reg.Get(id); ok {
			return id, nil
		}
	}

	var matches []models.Task
	for _, t := range reg.All() {
		if !t.IsDeleted && strings.EqualFold(t.Name, strings.TrimSpace(ref)) {
			matches = append(matches, t)
		}
	}

	switch len(matches) {
	case 0:
		return 0, fmt.Errorf("%w: %q", shared.ErrTaskNotFound, ref)
	case 1:
		return matches[0].ID, nil
	default:
		return 0, fmt.Errorf("%w: %d tasks are named %q, use the id", shared.ErrInvalidArgument, len(matches), ref)
	}
}
