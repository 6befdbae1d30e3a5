package tasks

import (
	"fmt"
	"time"
)

// State is the coordinator's position in a sync cycle.
type State int

const (
	Idle State = iota
	Syncing
	AuthRetry
	Success
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Syncing:
		return "syncing"
	case AuthRetry:
		return "auth_retry"
	case Success:
		return "synced"
	case Failed:
		return "failed"
	default:
		return ""
	}
}

// Outcome classifies how a sync request ended.
type Outcome int

const (
	Synced    Outcome = iota // the store accepted the task set
	SyncError                // every allowed attempt failed
	Dropped                  // another cycle was in flight
	Skipped                  // the last successful sync is too recent
	Discarded                // the coordinator was stopped while the cycle ran
)

func (o Outcome) String() string {
	switch o {
	case Synced:
		return "synced"
	case SyncError:
		return "failed"
	case Dropped:
		return "dropped"
	case Skipped:
		return "skipped"
	case Discarded:
		return "discarded"
	default:
		return ""
	}
}

// Result reports one sync request.
type Result struct {
	CycleID  string
	Outcome  Outcome
	Attempts int
	Rows     int
	Status   int // HTTP status of the last store call, 0 if none completed
	Err      error
}

// OK reports whether the task set reached the store.
func (r Result) OK() bool {
	return r.Outcome == Synced
}

// StatusUpdate is a state change published while a cycle runs.
type StatusUpdate struct {
	State   State
	CycleID string
	Attempt int
	Message string
	Err     error
	At      time.Time
}

func syncingUpdate(id string, attempt, total int) StatusUpdate {
	return StatusUpdate{State: Syncing, CycleID: id, Attempt: attempt, Message: fmt.Sprintf("Syncing %d task(s)...", total)}
}

func authRetryUpdate(id string, attempt, limit int) StatusUpdate {
	return StatusUpdate{
		State:   AuthRetry,
		CycleID: id,
		Attempt: attempt,
		Message: fmt.Sprintf("Credential rejected, refreshing (attempt %d/%d)...", attempt, limit),
	}
}

func successUpdate(id string, attempt, rows int) StatusUpdate {
	return StatusUpdate{State: Success, CycleID: id, Attempt: attempt, Message: fmt.Sprintf("✓ Synced %d task(s)", rows)}
}

func failedUpdate(id string, attempt int, err error) StatusUpdate {
	msg := fmt.Sprintf("✗ Sync failed after %d attempt(s)", attempt)
	if attempt == 0 {
		msg = "✗ Sync failed"
	}
	return StatusUpdate{State: Failed, CycleID: id, Attempt: attempt, Message: msg, Err: err}
}

func idleUpdate(id, reason string) StatusUpdate {
	return StatusUpdate{State: Idle, CycleID: id, Message: reason}
}
