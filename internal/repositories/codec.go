package repositories

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/ttrack/internal/models"
)

// TimestampLayout is RFC 3339 with millisecond precision, always written in UTC.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

var (
	ErrEmptyRow     = fmt.Errorf("empty row")
	ErrMalformedRow = fmt.Errorf("malformed row")
)

// RowCodec encodes and decodes tasks in the column order of a schema.
type RowCodec struct {
	schema models.Schema
}

// NewRowCodec validates schema and returns a codec for it.
func NewRowCodec(schema models.Schema) (*RowCodec, error) {
	if err := schema.Validate(); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return &RowCodec{schema: schema}, nil
}

// Encode serializes t into one row of cells.
func (c *RowCodec) Encode(t models.Task) []any {
	row := make([]any, len(c.schema.Fields))
	for i, f := range c.schema.Fields {
		switch f.Key {
		case models.FieldID:
			row[i] = t.ID
		case models.FieldName:
			row[i] = t.Name
		case models.FieldElapsed:
			row[i] = math.Round(t.Elapsed.Seconds()*1000) / 1000
		case models.FieldIsRunning:
			row[i] = t.IsRunning
		case models.FieldCurrentStartTime:
			row[i] = encodeTime(t.CurrentStartTime)
		case models.FieldStartDateTime:
			row[i] = encodeTime(t.StartDateTime)
		case models.FieldIsFinished:
			row[i] = t.IsFinished
		case models.FieldFinishedDateTime:
			row[i] = encodeTime(t.FinishedDateTime)
		case models.FieldIsDeleted:
			row[i] = t.IsDeleted
		}
	}
	return row
}

// EncodeAll serializes tasks in order.
func (c *RowCodec) EncodeAll(tasks []models.Task) [][]any {
	rows := make([][]any, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, c.Encode(t))
	}
	return rows
}

// Decode parses one row. Short rows are padded with empty cells.
//
// Returns [ErrEmptyRow] for a row with no content and [ErrMalformedRow] when a cell
// cannot be parsed as its column's kind or the id or name is missing.
func (c *RowCodec) Decode(row []any) (models.Task, error) {
	if isEmptyRow(row) {
		return models.Task{}, ErrEmptyRow
	}

	var t models.Task
	for i, f := range c.schema.Fields {
		var cell any
		if i < len(row) {
			cell = row[i]
		}

		if err := decodeField(&t, f, cell); err != nil {
			return models.Task{}, fmt.Errorf("%w: column %q: %w", ErrMalformedRow, f.Header, err)
		}
	}

	if t.ID <= 0 {
		return models.Task{}, fmt.Errorf("%w: missing task id", ErrMalformedRow)
	}
	if strings.TrimSpace(t.Name) == "" {
		return models.Task{}, fmt.Errorf("%w: missing task name", ErrMalformedRow)
	}

	normalize(&t)
	return t, nil
}

func decodeField(t *models.Task, f models.Field, cell any) error {
	var err error
	switch f.Key {
	case models.FieldID:
		t.ID, err = cellInt(cell)
	case models.FieldName:
		t.Name = cellString(cell)
	case models.FieldElapsed:
		t.Elapsed, err = cellSeconds(cell)
	case models.FieldIsRunning:
		t.IsRunning = cellBool(cell)
	case models.FieldCurrentStartTime:
		t.CurrentStartTime, err = cellTime(cell)
	case models.FieldStartDateTime:
		t.StartDateTime, err = cellTime(cell)
	case models.FieldIsFinished:
		t.IsFinished = cellBool(cell)
	case models.FieldFinishedDateTime:
		t.FinishedDateTime, err = cellTime(cell)
	case models.FieldIsDeleted:
		t.IsDeleted = cellBool(cell)
	}
	return err
}

// normalize restores the running/start-time pairing and forces finished tasks to be stopped.
func normalize(t *models.Task) {
	if t.IsFinished {
		t.IsRunning = false
	}
	if !t.IsRunning || t.CurrentStartTime == nil {
		t.IsRunning = false
		t.CurrentStartTime = nil
	}
	if t.StartDateTime == nil && t.CurrentStartTime != nil {
		start := *t.CurrentStartTime
		t.StartDateTime = &start
	}
}

func isEmptyRow(row []any) bool {
	for _, cell := range row {
		if cellString(cell) != "" {
			return false
		}
	}
	return true
}

func cellString(cell any) string {
	switch v := cell.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func cellInt(cell any) (int64, error) {
	switch v := cell.(type) {
	case nil:
		return 0, nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%v is not an integer", v)
		}
		return int64(v), nil
	}

	s := cellString(cell)
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("%q is not an integer", s)
	}
	return int64(f), nil
}

func cellSeconds(cell any) (time.Duration, error) {
	var secs float64
	switch v := cell.(type) {
	case nil:
		return 0, nil
	case float64:
		secs = v
	case int64:
		secs = float64(v)
	case int:
		secs = float64(v)
	default:
		s := cellString(cell)
		if s == "" {
			return 0, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number of seconds", s)
		}
		secs = f
	}

	if secs < 0 || math.IsNaN(secs) || math.IsInf(secs, 0) {
		return 0, fmt.Errorf("invalid elapsed seconds %v", secs)
	}
	return time.Duration(math.Round(secs*1000)) * time.Millisecond, nil
}

func cellBool(cell any) bool {
	if b, ok := cell.(bool); ok {
		return b
	}
	return strings.EqualFold(cellString(cell), "true")
}

func cellTime(cell any) (*time.Time, error) {
	s := cellString(cell)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, fmt.Errorf("%q is not an RFC 3339 timestamp", s)
	}
	t = t.UTC()
	return &t, nil
}

func encodeTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(TimestampLayout)
}
