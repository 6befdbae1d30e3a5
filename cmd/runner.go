package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ttrack/internal/auth"
	"github.com/desertthunder/ttrack/internal/repositories"
	"github.com/desertthunder/ttrack/internal/session"
	"github.com/desertthunder/ttrack/internal/shared"
	"github.com/urfave/cli/v3"
)

// credentialNamespace scopes the credential keys in the key/value table.
const credentialNamespace = "google"

// SessionFactory builds a signed-out session and returns a func releasing what it opened.
type SessionFactory func(ctx context.Context, cfg *shared.Config, logger *log.Logger, out io.Writer) (*session.Session, func() error, error)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer
	newSession SessionFactory
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	Sessions   SessionFactory
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Sessions == nil {
		opts.Sessions = openSession
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		newSession: opts.Sessions,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, taskCommand, syncCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before applies the global flags: log level and configuration file.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	r.configPath = cmd.String("config")
	config, err := shared.LoadConfigOrDefault(r.configPath)
	if err != nil {
		return ctx, err
	}
	r.config = config
	return ctx, nil
}

// SetLogger replaces the logger used by subsequent commands.
func (r *Runner) SetLogger(l *log.Logger) {
	if l != nil {
		l.SetLevel(r.logger.GetLevel())
		r.logger = l
	}
}

// openSession is the production [SessionFactory]: sqlite-backed credentials and a Google provider.
func openSession(_ context.Context, cfg *shared.Config, logger *log.Logger, out io.Writer) (*session.Session, func() error, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	db, err := shared.OpenDatabase(cfg.Database)
	if err != nil {
		return nil, nil, err
	}

	provider, err := auth.NewGoogleProvider(cfg, out, logger)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	kv := repositories.NewKeyValueRepository(db, credentialNamespace)
	s, err := session.NewFromConfig(cfg, provider, kv, logger)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return s, db.Close, nil
}

// sessionMode says how much of a session a command needs.
type sessionMode int

const (
	signedOut sessionMode = iota // fresh session, no restore
	readOnly                     // restored, stopped without a final push
	readWrite                    // restored, task list pushed before returning
)

// withSession builds a session, runs fn, and then stops the session.
func (r *Runner) withSession(ctx context.Context, mode sessionMode, fn func(*session.Session) error) error {
	s, release, err := r.newSession(ctx, r.config, r.logger, r.output)
	if err != nil {
		return err
	}
	defer func() {
		if err := release(); err != nil {
			r.logger.Warn("failed to release session resources", "err", err)
		}
	}()

	if mode != signedOut {
		ok, err := s.RestoreSession(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return shared.ErrNotAuthenticated
		}
	}

	runErr := fn(s)
	if mode != readWrite {
		s.Stop()
		return runErr
	}

	if closeErr := s.Close(ctx); closeErr != nil {
		if runErr == nil {
			return closeErr
		}
		r.logger.Error("final sync failed", "err", closeErr)
	}
	return runErr
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
