// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// newApp assembles the command tree around r.
func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:     "ttrack",
		Usage:    "Track time on tasks and keep them in a Google Sheet",
		Version:  "0.3.0",
		Flags:    globalFlags(),
		Before:   r.Before,
		Commands: r.register(),
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   "config.toml",
			Sources: cli.EnvVars("TTRACK_CONFIG"),
		},
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "Enable debug logging",
		},
	}
}

// setupCommand writes a config file and prepares the credential database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create config.toml (if missing) and run database migrations",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "reset", Usage: "Remove the stored sign-in after migrating"},
			&cli.BoolFlag{Name: "rollback", Usage: "Roll back the latest migration and exit"},
		},
		Action: r.Setup,
	}
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the Google sign-in",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Sign in with Google in the browser and connect the task spreadsheet",
				Action: r.AuthLogin,
			},
			{
				Name:   "logout",
				Usage:  "Revoke the stored credential",
				Action: r.AuthLogout,
			},
			{
				Name:   "status",
				Usage:  "Show the signed-in account and spreadsheet state",
				Action: r.AuthStatus,
			},
		},
	}
}

// taskCommand handles task operations. Each mutation syncs before the command returns.
func taskCommand(r *Runner) *cli.Command {
	ref := []cli.Argument{&cli.StringArg{Name: "task", UsageText: "task id or exact name"}}
	return &cli.Command{
		Name:    "task",
		Aliases: []string{"t"},
		Usage:   "Add, time, and finish tasks",
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Add a task",
				Arguments: []cli.Argument{&cli.StringArg{Name: "name"}},
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "start", Aliases: []string{"s"}, Usage: "Start the timer right away"},
				},
				Action: r.TaskAdd,
			},
			{Name: "start", Usage: "Start a task's timer", Arguments: ref, Action: r.TaskStart},
			{Name: "stop", Usage: "Stop a task's timer", Arguments: ref, Action: r.TaskStop},
			{Name: "finish", Usage: "Mark a task finished", Arguments: ref, Action: r.TaskFinish},
			{Name: "delete", Aliases: []string{"rm"}, Usage: "Delete a task", Arguments: ref, Action: r.TaskDelete},
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List tasks",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "finished", Usage: "List finished tasks instead of active ones"},
					&cli.BoolFlag{Name: "all", Usage: "Include deleted tasks"},
					&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"},
					&cli.BoolFlag{Name: "pretty", Usage: "Pretty-print output", Value: true},
				},
				Action: r.TaskList,
			},
			{
				Name:  "export",
				Usage: "Export tasks to CSV, JSON, Markdown, or text",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "csv, json, md, or txt", Value: "csv"},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output file path (default: tasks.<format>)"},
				},
				Action: r.TaskExport,
			},
		},
	}
}

// syncCommand pushes the task list once.
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "sync",
		Usage:  "Push the task list to the spreadsheet now",
		Action: r.Sync,
	}
}

// tuiCommand returns the top-level TUI command for interactive time tracking.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive time tracker",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-file", Usage: "Write logs here while the TUI runs", Value: "./tmp/ttrack-tui.log"},
		},
		Action: r.TUI,
	}
}
