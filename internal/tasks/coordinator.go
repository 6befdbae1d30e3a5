package tasks

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ttrack/internal/models"
	"github.com/desertthunder/ttrack/internal/repositories"
	"github.com/desertthunder/ttrack/internal/services"
	"github.com/desertthunder/ttrack/internal/shared"
)

// Store persists the full task set.
type Store interface {
	Save(ctx context.Context, tasks []models.Task) (repositories.SaveResult, error)
}

// Credentials is the part of the credential manager a sync cycle needs.
type Credentials interface {
	EnsureValid(ctx context.Context) error
	Refresh(ctx context.Context) error
}

// Snapshotter supplies the task set to send.
type Snapshotter interface {
	All() []models.Task
}

// CoordinatorOpts configures a [Coordinator].
type CoordinatorOpts struct {
	Interval    time.Duration    // Periodic sync interval and minimum gap between syncs (default: 10s)
	MaxAttempts int              // Save attempts per cycle, counting 401 retries (default: 3)
	Now         func() time.Time // Clock (default: time.Now)
	Logger      *log.Logger      // Logger (default: log.Default())
	BufferSize  int              // Capacity of the updates channel (default: 16)
}

// Coordinator runs sync cycles, one at a time.
type Coordinator struct {
	store       Store
	creds       Credentials
	tasks       Snapshotter
	interval    time.Duration
	maxAttempts int
	now         func() time.Time
	logger      *log.Logger
	updates     chan StatusUpdate

	busy sync.Mutex

	mu          sync.Mutex
	state       State
	lastSync    time.Time
	lastAttempt time.Time
	generation  uint64
	cancel      context.CancelFunc
}

// NewCoordinator creates a stopped coordinator.
func NewCoordinator(store Store, creds Credentials, tasks Snapshotter, opts CoordinatorOpts) *Coordinator {
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 16
	}

	return &Coordinator{
		store:       store,
		creds:       creds,
		tasks:       tasks,
		interval:    opts.Interval,
		maxAttempts: opts.MaxAttempts,
		now:         opts.Now,
		logger:      opts.Logger.WithPrefix("sync"),
		updates:     make(chan StatusUpdate, opts.BufferSize),
	}
}

// Updates returns the channel state changes are published on.
func (c *Coordinator) Updates() <-chan StatusUpdate {
	return c.updates
}

// State returns the state of the current or most recent cycle.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastSync returns when the store last accepted the task set, zero if never.
func (c *Coordinator) LastSync() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSync
}

// SyncNow runs a cycle unless one is already in flight, in which case it returns [Dropped].
func (c *Coordinator) SyncNow(ctx context.Context) Result {
	return c.trySync(ctx, c.currentGeneration())
}

// Tick runs a cycle only if the last successful sync is at least one interval old.
// A coordinator that has never synced is always due.
func (c *Coordinator) Tick(ctx context.Context) Result {
	return c.tick(ctx, c.currentGeneration())
}

// Flush waits for any in-flight cycle and then runs one more.
func (c *Coordinator) Flush(ctx context.Context) Result {
	c.busy.Lock()
	defer c.busy.Unlock()
	return c.run(ctx, c.currentGeneration())
}

// Start launches the periodic loop. Calling Start on a running coordinator does nothing.
func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	go c.loop(loopCtx, c.generation)
	c.logger.Debug("periodic sync started", "interval", c.interval)
}

// Stop ends the periodic loop. A cycle already in flight runs to completion but its result is discarded.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
		c.logger.Debug("periodic sync stopped")
	}
}

// Running reports whether the periodic loop is active.
func (c *Coordinator) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}

func (c *Coordinator) loop(ctx context.Context, gen uint64) {
	timer := time.NewTimer(c.untilDue())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if ctx.Err() != nil {
				return
			}
			// In-flight network calls are not cancelled by Stop.
			c.tick(context.WithoutCancel(ctx), gen)
			timer.Reset(c.untilDue())
		}
	}
}

// untilDue is the wait until one interval after the last cycle, never shorter than a quarter interval.
func (c *Coordinator) untilDue() time.Duration {
	c.mu.Lock()
	last := c.lastAttempt
	c.mu.Unlock()

	floor := c.interval / 4
	if last.IsZero() {
		return floor
	}
	if wait := c.interval - c.now().Sub(last); wait > floor {
		return wait
	}
	return floor
}

func (c *Coordinator) tick(ctx context.Context, gen uint64) Result {
	c.mu.Lock()
	last := c.lastSync
	c.mu.Unlock()

	if !last.IsZero() && c.now().Sub(last) < c.interval {
		return Result{Outcome: Skipped}
	}
	return c.trySync(ctx, gen)
}

func (c *Coordinator) trySync(ctx context.Context, gen uint64) Result {
	if !c.busy.TryLock() {
		c.logger.Debug("sync already in flight, dropping request")
		return Result{Outcome: Dropped}
	}
	defer c.busy.Unlock()
	return c.run(ctx, gen)
}

func (c *Coordinator) currentGeneration() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// run executes one cycle. The caller holds busy.
func (c *Coordinator) run(ctx context.Context, gen uint64) Result {
	res := Result{CycleID: shared.GenerateID()}
	if c.currentGeneration() != gen {
		res.Outcome = Discarded
		return res
	}

	logger := shared.WithLogger(c.logger, "cycle", res.CycleID[:8])
	tasks := c.tasks.All()

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		res.Attempts = attempt
		c.publish(syncingUpdate(res.CycleID, attempt, len(tasks)))

		if err := c.creds.EnsureValid(ctx); err != nil {
			lastErr = err
			break
		}

		saved, err := c.store.Save(ctx, tasks)
		res.Status = saved.Status
		if err == nil {
			res.Rows = saved.Rows
			lastErr = nil
			break
		}
		lastErr = err

		if saved.Status != http.StatusUnauthorized && !services.IsUnauthorized(err) {
			break
		}
		if attempt == c.maxAttempts {
			break
		}

		c.publish(authRetryUpdate(res.CycleID, attempt, c.maxAttempts))
		logger.Warn("store rejected credential, refreshing", "attempt", attempt)
		if err := c.creds.Refresh(ctx); err != nil {
			lastErr = err
			break
		}
	}

	c.mu.Lock()
	stale := c.generation != gen
	c.lastAttempt = c.now()
	if lastErr == nil && !stale {
		c.lastSync = c.lastAttempt
	}
	c.mu.Unlock()

	if stale {
		res.Outcome = Discarded
		res.Err = lastErr
		logger.Debug("discarding result of cycle that outlived its session")
		c.publish(idleUpdate(res.CycleID, "Sync stopped"))
		return res
	}

	if lastErr != nil {
		res.Outcome = SyncError
		res.Err = fmt.Errorf("%w after %d attempt(s): %w", shared.ErrSyncFailed, res.Attempts, lastErr)
		logger.Error("sync failed", "attempts", res.Attempts, "status", res.Status, "err", lastErr)
		c.publish(failedUpdate(res.CycleID, res.Attempts, res.Err))
		return res
	}

	res.Outcome = Synced
	logger.Info("synced", "rows", res.Rows, "attempts", res.Attempts)
	c.publish(successUpdate(res.CycleID, res.Attempts, res.Rows))
	return res
}

// publish records the update's state and sends it without blocking.
func (c *Coordinator) publish(update StatusUpdate) {
	c.mu.Lock()
	c.state = update.State
	c.mu.Unlock()

	if update.At.IsZero() {
		update.At = c.now()
	}
	select {
	case c.updates <- update:
	default:
	}
}
