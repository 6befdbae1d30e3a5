package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/ttrack/internal/models"
	"github.com/desertthunder/ttrack/internal/shared"
)

var _ list.Item = taskItem{}

// taskItem wraps [models.Task] to implement [list.Item]. now fixes the elapsed time shown for running tasks.
type taskItem struct {
	task models.Task
	now  time.Time
}

func (i taskItem) FilterValue() string { return i.task.Name }
func (i taskItem) Title() string {
	if i.task.IsRunning {
		return styles.running.Render("▶ " + i.task.Name)
	}
	return i.task.Name
}

func (i taskItem) Description() string {
	elapsed := shared.FormatElapsed(i.task.ElapsedAt(i.now))
	switch {
	case i.task.IsFinished && i.task.FinishedDateTime != nil:
		return fmt.Sprintf("%s • finished %s", elapsed, i.task.FinishedDateTime.Local().Format("Jan 2 15:04"))
	case i.task.IsRunning:
		return elapsed + " • running"
	default:
		return elapsed
	}
}

func taskItems(tasks []models.Task, now time.Time) []list.Item {
	items := make([]list.Item, len(tasks))
	for i, t := range tasks {
		items[i] = taskItem{task: t, now: now}
	}
	return items
}
