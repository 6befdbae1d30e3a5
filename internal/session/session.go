package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ttrack/internal/auth"
	"github.com/desertthunder/ttrack/internal/models"
	"github.com/desertthunder/ttrack/internal/repositories"
	"github.com/desertthunder/ttrack/internal/shared"
	"github.com/desertthunder/ttrack/internal/tasks"
)

// State is the session's sign-in state.
type State int

const (
	SignedOut State = iota
	Connecting
	SignedIn
)

func (s State) String() string {
	switch s {
	case SignedOut:
		return "signed out"
	case Connecting:
		return "connecting"
	case SignedIn:
		return "signed in"
	default:
		return ""
	}
}

// Opts configures a [Session].
type Opts struct {
	Credentials *auth.Manager    // Required
	Connect     Connector        // Required
	Interval    time.Duration    // Periodic sync interval (default: 10s)
	MaxAttempts int              // Save attempts per sync cycle (default: 3)
	Now         func() time.Time // Clock (default: time.Now)
	Logger      *log.Logger      // Logger (default: log.Default())
}

// Session is the application context: it owns the registry and coordinator and holds
// the remote store while signed in.
type Session struct {
	creds    *auth.Manager
	connect  Connector
	registry *tasks.Registry
	coord    *tasks.Coordinator
	logger   *log.Logger

	mu      sync.Mutex
	state   State
	backend Backend
	email   string
}

// New creates a signed-out session.
func New(opts Opts) (*Session, error) {
	if opts.Credentials == nil {
		return nil, fmt.Errorf("%w: credential manager", shared.ErrMissingArgument)
	}
	if opts.Connect == nil {
		return nil, fmt.Errorf("%w: store connector", shared.ErrMissingArgument)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	s := &Session{
		creds:    opts.Credentials,
		connect:  opts.Connect,
		registry: tasks.NewRegistry(opts.Now),
		logger:   opts.Logger.WithPrefix("session"),
	}
	s.coord = tasks.NewCoordinator(sessionStore{s}, opts.Credentials, s.registry, tasks.CoordinatorOpts{
		Interval:    opts.Interval,
		MaxAttempts: opts.MaxAttempts,
		Now:         opts.Now,
		Logger:      opts.Logger,
	})
	return s, nil
}

// NewFromConfig builds a session backed by Google Sheets using cfg and a durable credential store.
func NewFromConfig(cfg *shared.Config, provider auth.Provider, store auth.KeyValueStore, logger *log.Logger) (*Session, error) {
	creds := auth.NewManager(provider, store,
		auth.WithExpiryMargin(cfg.Auth.ExpiryMargin.Duration),
		auth.WithDefaultLifetime(cfg.Auth.DefaultLifetime.Duration),
		auth.WithLogger(logger),
	)
	return New(Opts{
		Credentials: creds,
		Connect:     GoogleConnector(cfg, logger),
		Interval:    cfg.Sync.Interval.Duration,
		MaxAttempts: cfg.Sync.MaxAttempts,
		Logger:      logger,
	})
}

// SignIn runs interactive authorization and connects to the remote store.
// If connecting fails the session stays signed out.
func (s *Session) SignIn(ctx context.Context) error {
	s.setState(Connecting)
	if err := s.creds.Authorize(ctx); err != nil {
		s.setState(SignedOut)
		return err
	}
	return s.open(ctx)
}

// RestoreSession connects with a stored credential, without prompting. It reports false when
// there is no usable credential, leaving the session signed out.
func (s *Session) RestoreSession(ctx context.Context) (bool, error) {
	ok, err := s.creds.Restore(ctx)
	if err != nil || !ok {
		return false, err
	}

	s.setState(Connecting)
	if err := s.open(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// SignOut stops periodic sync, revokes the credential, and clears the task list.
// A stored credential that was never restored is loaded first so the provider can revoke it.
func (s *Session) SignOut(ctx context.Context) error {
	s.coord.Stop()
	if !s.creds.IsSignedIn() {
		if _, err := s.creds.Restore(ctx); err != nil {
			s.logger.Warn("could not load stored credential", "err", err)
		}
	}
	err := s.creds.Revoke(ctx)
	s.reset()
	s.logger.Info("signed out")
	return err
}

// Close stops periodic sync and pushes the task list one last time. It does not sign out.
func (s *Session) Close(ctx context.Context) error {
	s.coord.Stop()
	if s.State() != SignedIn {
		return nil
	}
	return s.coord.Flush(ctx).Err
}

// Stop halts periodic sync. Unlike Close it does not push the task list.
func (s *Session) Stop() {
	s.coord.Stop()
}

// Sync runs a sync cycle now. It returns [shared.ErrNotAuthenticated] when signed out.
func (s *Session) Sync(ctx context.Context) (tasks.Result, error) {
	if s.State() != SignedIn {
		return tasks.Result{}, shared.ErrNotAuthenticated
	}
	res := s.coord.SyncNow(ctx)
	return res, res.Err
}

// AddTask creates a task named name.
func (s *Session) AddTask(ctx context.Context, name string) (models.Task, error) {
	t, err := s.registry.Add(name)
	if err != nil {
		return t, err
	}
	s.trigger(ctx)
	return t, nil
}

func (s *Session) StartTask(ctx context.Context, id int64) error {
	return s.mutate(ctx, s.registry.Start, id)
}

func (s *Session) StopTask(ctx context.Context, id int64) error {
	return s.mutate(ctx, s.registry.Stop, id)
}

func (s *Session) FinishTask(ctx context.Context, id int64) error {
	return s.mutate(ctx, s.registry.Finish, id)
}

func (s *Session) DeleteTask(ctx context.Context, id int64) error {
	return s.mutate(ctx, s.registry.Delete, id)
}

// Tasks returns the task registry for read access.
func (s *Session) Tasks() *tasks.Registry {
	return s.registry
}

// Updates returns the sync status channel.
func (s *Session) Updates() <-chan tasks.StatusUpdate {
	return s.coord.Updates()
}

// LastSync returns when the store last accepted the task set.
func (s *Session) LastSync() time.Time {
	return s.coord.LastSync()
}

// Email returns the signed-in account's email, or "" when unknown.
func (s *Session) Email() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.email
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// open connects to the store, loads the task set, and starts periodic sync.
func (s *Session) open(ctx context.Context) error {
	s.coord.Stop()
	if err := s.creds.EnsureValid(ctx); err != nil {
		s.reset()
		return err
	}

	remote, err := s.connect(ctx, s.creds)
	if err != nil {
		s.reset()
		return fmt.Errorf("failed to connect to store: %w", err)
	}

	setup, err := remote.Store.Initialize(ctx)
	if err != nil {
		s.reset()
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	if setup.Created {
		s.logger.Info("created spreadsheet", "id", setup.SpreadsheetID)
	}
	if setup.RewroteHeaders {
		s.logger.Warn("spreadsheet headers did not match, rewrote them", "id", setup.SpreadsheetID)
	}

	loaded, err := remote.Store.Load(ctx)
	if err != nil {
		s.reset()
		return fmt.Errorf("failed to load tasks: %w", err)
	}
	s.registry.Replace(loaded)

	var email string
	if remote.Account != nil {
		if email, err = remote.Account.Email(ctx); err != nil {
			s.logger.Warn("could not fetch account email", "err", err)
		}
	}

	s.mu.Lock()
	s.backend = remote.Store
	s.email = email
	s.state = SignedIn
	s.mu.Unlock()

	s.logger.Info("signed in", "email", email, "tasks", len(loaded))
	s.coord.Start(context.WithoutCancel(ctx))
	s.coord.SyncNow(ctx)
	return nil
}

func (s *Session) reset() {
	s.coord.Stop()
	s.registry.Clear()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.backend = nil
	s.email = ""
	s.state = SignedOut
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func (s *Session) mutate(ctx context.Context, op func(int64) error, id int64) error {
	if err := op(id); err != nil {
		return err
	}
	s.trigger(ctx)
	return nil
}

// trigger syncs after a mutation. Failures reach the caller through the status updates.
func (s *Session) trigger(ctx context.Context) {
	if s.State() != SignedIn {
		return
	}
	s.coord.SyncNow(ctx)
}

// sessionStore routes the coordinator's saves to whichever backend is connected.
type sessionStore struct {
	s *Session
}

func (st sessionStore) Save(ctx context.Context, list []models.Task) (repositories.SaveResult, error) {
	st.s.mu.Lock()
	backend := st.s.backend
	st.s.mu.Unlock()

	if backend == nil {
		return repositories.SaveResult{}, shared.ErrStoreNotReady
	}
	return backend.Save(ctx, list)
}

var _ tasks.Store = sessionStore{}

// IsSignedOut reports whether err means the user has to sign in again.
func IsSignedOut(err error) bool {
	return errors.Is(err, shared.ErrNotAuthenticated) || errors.Is(err, shared.ErrAuthFailed)
}
