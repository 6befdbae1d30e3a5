package models

import "time"

// Task represents one trackable unit of work.
//
// IsRunning and CurrentStartTime are set or cleared together.
// IsFinished and IsDeleted only move from false to true.
type Task struct {
	ID               int64         `json:"id"`
	Name             string        `json:"name"`
	Elapsed          time.Duration `json:"elapsed"`
	IsRunning        bool          `json:"is_running"`
	CurrentStartTime *time.Time    `json:"current_start_time,omitempty"`
	StartDateTime    *time.Time    `json:"start_date_time,omitempty"`
	IsFinished       bool          `json:"is_finished"`
	FinishedDateTime *time.Time    `json:"finished_date_time,omitempty"`
	IsDeleted        bool          `json:"is_deleted"`
}

// ElapsedAt returns the accumulated duration including the current run segment, if any.
func (t Task) ElapsedAt(now time.Time) time.Duration {
	if !t.IsRunning || t.CurrentStartTime == nil {
		return t.Elapsed
	}
	if seg := now.Sub(*t.CurrentStartTime); seg > 0 {
		return t.Elapsed + seg
	}
	return t.Elapsed
}

// IsActive reports whether the task belongs to the active view.
func (t Task) IsActive() bool {
	return !t.IsFinished && !t.IsDeleted
}

// IsDone reports whether the task belongs to the finished view.
func (t Task) IsDone() bool {
	return t.IsFinished && !t.IsDeleted
}

// Clone returns a deep copy so callers cannot mutate timestamps held by the registry.
func (t Task) Clone() Task {
	c := t
	c.CurrentStartTime = cloneTime(t.CurrentStartTime)
	c.StartDateTime = cloneTime(t.StartDateTime)
	c.FinishedDateTime = cloneTime(t.FinishedDateTime)
	return c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
