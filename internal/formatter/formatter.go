// package formatter renders task lists as CSV, JSON, Markdown, or plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/ttrack/internal/models"
	"github.com/desertthunder/ttrack/internal/shared"
)

// Format names an export encoding.
type Format string

const (
	CSV      Format = "csv"
	JSON     Format = "json"
	Markdown Format = "md"
	Text     Format = "txt"
)

// ParseFormat accepts a format name or common alias, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return CSV, nil
	case "json":
		return JSON, nil
	case "md", "markdown":
		return Markdown, nil
	case "txt", "text", "":
		return Text, nil
	default:
		return "", fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, s)
	}
}

// status is the one-word label used in every format.
func status(t models.Task) string {
	switch {
	case t.IsDeleted:
		return "deleted"
	case t.IsFinished:
		return "finished"
	case t.IsRunning:
		return "running"
	default:
		return "stopped"
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// ExportToCSV writes columns ID, Name, Status, Elapsed, Seconds, Started, Finished.
//
// Elapsed includes the running segment as of now.
func ExportToCSV(tasks []models.Task, now time.Time) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Name", "Status", "Elapsed", "Seconds", "Started", "Finished"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, t := range tasks {
		elapsed := t.ElapsedAt(now)
		record := []string{
			strconv.FormatInt(t.ID, 10),
			t.Name,
			status(t),
			shared.FormatElapsed(elapsed),
			strconv.FormatFloat(elapsed.Seconds(), 'f', 3, 64),
			formatTime(t.StartDateTime),
			formatTime(t.FinishedDateTime),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

type jsonTask struct {
	models.Task
	Status         string  `json:"status"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	ElapsedText    string  `json:"elapsed_text"`
}

// ExportToJSON writes an indented array of tasks with derived status and elapsed fields.
func ExportToJSON(tasks []models.Task, now time.Time) ([]byte, error) {
	out := make([]jsonTask, 0, len(tasks))
	for _, t := range tasks {
		elapsed := t.ElapsedAt(now)
		out = append(out, jsonTask{
			Task:           t,
			Status:         status(t),
			ElapsedSeconds: elapsed.Seconds(),
			ElapsedText:    shared.FormatElapsed(elapsed),
		})
	}
	return shared.MarshalJSON(out, true)
}

// ExportToMarkdown writes an Active and a Finished section. Deleted tasks are omitted.
func ExportToMarkdown(tasks []models.Task, now time.Time) ([]byte, error) {
	var buf bytes.Buffer
	var active, finished []models.Task
	var total time.Duration
	for _, t := range tasks {
		switch {
		case t.IsActive():
			active = append(active, t)
		case t.IsDone():
			finished = append(finished, t)
		default:
			continue
		}
		total += t.ElapsedAt(now)
	}

	buf.WriteString("# Tasks\n\n")
	fmt.Fprintf(&buf, "**Tracked**: %s across %d task(s)\n\n", shared.FormatElapsed(total), len(active)+len(finished))

	section := func(title string, list []models.Task) {
		fmt.Fprintf(&buf, "## %s\n\n", title)
		if len(list) == 0 {
			buf.WriteString("_None_\n\n")
			return
		}
		buf.WriteString("| Task | Elapsed | Status |\n|---|---|---|\n")
		for _, t := range list {
			name := strings.ReplaceAll(t.Name, "|", `\|`)
			fmt.Fprintf(&buf, "| %s | %s | %s |\n", name, shared.FormatElapsed(t.ElapsedAt(now)), status(t))
		}
		buf.WriteString("\n")
	}
	section("Active", active)
	section("Finished", finished)

	return buf.Bytes(), nil
}

// ExportToText writes one line per visible task.
func ExportToText(tasks []models.Task, now time.Time) ([]byte, error) {
	var buf bytes.Buffer
	n := 0
	for _, t := range tasks {
		if t.IsDeleted {
			continue
		}
		n++
		fmt.Fprintf(&buf, "%d. [%s] %s %s\n", n, shared.FormatElapsed(t.ElapsedAt(now)), t.Name, status(t))
	}
	if n == 0 {
		buf.WriteString("No tasks\n")
	}
	return buf.Bytes(), nil
}

// Export renders tasks in format.
func Export(format Format, tasks []models.Task, now time.Time) ([]byte, error) {
	switch format {
	case CSV:
		return ExportToCSV(tasks, now)
	case JSON:
		return ExportToJSON(tasks, now)
	case Markdown:
		return ExportToMarkdown(tasks, now)
	case Text:
		return ExportToText(tasks, now)
	default:
		return nil, fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, format)
	}
}

// WriteExport renders tasks and writes them to path.
//
// Defaults to tasks.{format} in the working directory.
func WriteExport(format Format, tasks []models.Task, now time.Time, path string) (string, error) {
	if path == "" {
		path = "tasks." + string(format)
	}

	data, err := Export(format, tasks, now)
	if err != nil {
		return "", fmt.Errorf("failed to generate %s: %w", format, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}
