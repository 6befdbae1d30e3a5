package tasks

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/ttrack/internal/models"
	"github.com/desertthunder/ttrack/internal/shared"
)

// Registry owns the in-memory task set. It is safe for concurrent use.
type Registry struct {
	mu     sync.Mutex
	tasks  []models.Task
	now    func() time.Time
	lastID int64
}

// NewRegistry creates an empty registry. A nil clock means time.Now.
func NewRegistry(now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{now: now}
}

// Add creates a stopped task named name (trimmed) and returns a copy of it.
func (r *Registry) Add(name string) (models.Task, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Task{}, fmt.Errorf("%w: task name cannot be empty", shared.ErrValidation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	t := models.Task{ID: r.nextIDLocked(), Name: name}
	r.tasks = append(r.tasks, t)
	return t.Clone(), nil
}

// Start opens a run segment. Running, finished and deleted tasks are left unchanged.
func (r *Registry) Start(id int64) error {
	return r.update(id, func(t *models.Task, now time.Time) {
		if t.IsRunning || t.IsFinished || t.IsDeleted {
			return
		}
		start := now
		t.IsRunning = true
		t.CurrentStartTime = &start
		if t.StartDateTime == nil {
			first := now
			t.StartDateTime = &first
		}
	})
}

// Stop closes the current run segment and adds it to elapsed.
func (r *Registry) Stop(id int64) error {
	return r.update(id, stopTask)
}

// Delete stops the task and marks it as a tombstone. The record is kept.
func (r *Registry) Delete(id int64) error {
	return r.update(id, func(t *models.Task, now time.Time) {
		if t.IsDeleted {
			return
		}
		stopTask(t, now)
		t.IsDeleted = true
	})
}

// Finish stops the task and marks it finished. Finishing twice keeps the first finish time.
// Deleted tasks are left unchanged.
func (r *Registry) Finish(id int64) error {
	return r.update(id, func(t *models.Task, now time.Time) {
		if t.IsFinished || t.IsDeleted {
			return
		}
		stopTask(t, now)
		done := now
		t.IsFinished = true
		t.FinishedDateTime = &done
	})
}

// Get returns a copy of the task with id.
func (r *Registry) Get(id int64) (models.Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.indexLocked(id); i >= 0 {
		return r.tasks[i].Clone(), true
	}
	return models.Task{}, false
}

// Active returns the tasks that are neither finished nor deleted.
func (r *Registry) Active() []models.Task {
	return r.filter(models.Task.IsActive)
}

// Finished returns the finished tasks that are not deleted.
func (r *Registry) Finished() []models.Task {
	return r.filter(models.Task.IsDone)
}

// All returns every task, tombstones included, in creation order.
func (r *Registry) All() []models.Task {
	return r.filter(func(models.Task) bool { return true })
}

// Running returns the tasks with an open run segment.
func (r *Registry) Running() []models.Task {
	return r.filter(func(t models.Task) bool { return t.IsRunning })
}

// Len counts every task, tombstones included.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// Replace swaps the whole task set, as after loading from the remote store.
func (r *Registry) Replace(tasks []models.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tasks = make([]models.Task, len(tasks))
	for i, t := range tasks {
		r.tasks[i] = t.Clone()
		if t.ID > r.lastID {
			r.lastID = t.ID
		}
	}
}

// Clear removes every task, as on sign-out.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = nil
}

func (r *Registry) update(id int64, fn func(*models.Task, time.Time)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("%w: %d", shared.ErrTaskNotFound, id)
	}
	fn(&r.tasks[i], r.now())
	return nil
}

func (r *Registry) filter(keep func(models.Task) bool) []models.Task {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		if keep(t) {
			out = append(out, t.Clone())
		}
	}
	return out
}

func (r *Registry) indexLocked(id int64) int {
	for i := range r.tasks {
		if r.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// nextIDLocked returns the current Unix millisecond, bumped past the last issued id.
func (r *Registry) nextIDLocked() int64 {
	id := r.now().UnixMilli()
	if id <= r.lastID {
		id = r.lastID + 1
	}
	r.lastID = id
	return id
}

func stopTask(t *models.Task, now time.Time) {
	if !t.IsRunning {
		return
	}
	if t.CurrentStartTime != nil {
		if seg := now.Sub(*t.CurrentStartTime); seg > 0 {
			t.Elapsed += seg
		}
	}
	t.IsRunning = false
	t.CurrentStartTime = nil
}
