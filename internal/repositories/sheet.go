package repositories

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ttrack/internal/models"
	"github.com/desertthunder/ttrack/internal/services"
	"github.com/desertthunder/ttrack/internal/shared"
)

// InitResult records what [SheetRepository.Initialize] had to change.
type InitResult struct {
	SpreadsheetID  string
	Created        bool
	RewroteHeaders bool
}

// SaveResult is the transport outcome of a save. Status is 200 on success,
// otherwise the HTTP status of the failing call, or 0 when no response arrived.
type SaveResult struct {
	Status int
	Rows   int
}

// SheetRepository keeps the full task set in one sheet of a named spreadsheet.
//
// Row 1 holds the schema headers and rows 2 onward hold one task each.
type SheetRepository struct {
	client Spreadsheet
	codec  *RowCodec
	schema models.Schema
	title  string
	sheet  string
	logger *log.Logger

	mu            sync.RWMutex
	spreadsheetID string
}

// NewSheetRepository creates a repository for the spreadsheet titled title, using the sheet named sheet.
func NewSheetRepository(client Spreadsheet, schema models.Schema, title, sheet string, logger *log.Logger) (*SheetRepository, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: spreadsheet client", shared.ErrMissingArgument)
	}
	if title == "" || sheet == "" {
		return nil, fmt.Errorf("%w: spreadsheet title and sheet name are required", shared.ErrMissingArgument)
	}

	codec, err := NewRowCodec(schema)
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = log.Default()
	}

	return &SheetRepository{
		client: client,
		codec:  codec,
		schema: schema,
		title:  title,
		sheet:  sheet,
		logger: logger.WithPrefix("store"),
	}, nil
}

// HeaderRange is the A1 range of the header row.
func (r *SheetRepository) HeaderRange() string {
	last := ColumnName(r.schema.Width())
	return fmt.Sprintf("%s!A1:%s1", QuoteSheet(r.sheet), last)
}

// headerRowRange spans the whole first row so columns past the schema width are seen.
func (r *SheetRepository) headerRowRange() string {
	return QuoteSheet(r.sheet) + "!1:1"
}

// DataRange is the open-ended A1 range below the header row.
func (r *SheetRepository) DataRange() string {
	last := ColumnName(r.schema.Width())
	return fmt.Sprintf("%s!A2:%s", QuoteSheet(r.sheet), last)
}

// SpreadsheetID returns the id resolved by the last successful Initialize.
func (r *SheetRepository) SpreadsheetID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.spreadsheetID
}

// Initialize locates the spreadsheet by exact title or creates it, then reconciles the header row.
//
// An existing header row that differs from the schema in length or in any position is overwritten.
func (r *SheetRepository) Initialize(ctx context.Context) (InitResult, error) {
	var res InitResult

	id, found, err := r.client.FindByName(ctx, r.title)
	if err != nil {
		return res, fmt.Errorf("failed to locate spreadsheet %q: %w", r.title, err)
	}

	headers := r.headerRow()
	if !found {
		id, err = r.client.Create(ctx, r.title, r.sheet)
		if err != nil {
			return res, fmt.Errorf("failed to create spreadsheet %q: %w", r.title, err)
		}
		if err := r.client.WriteRange(ctx, id, r.HeaderRange(), [][]any{headers}); err != nil {
			return res, fmt.Errorf("failed to write headers: %w", err)
		}

		r.setID(id)
		r.logger.Info("created spreadsheet", "title", r.title, "id", id)
		return InitResult{SpreadsheetID: id, Created: true}, nil
	}

	r.setID(id)
	res.SpreadsheetID = id

	existing, err := r.client.ReadRange(ctx, id, r.headerRowRange())
	if err != nil {
		return res, fmt.Errorf("failed to read headers from tab %q of %q (renamed or removed?): %w", r.sheet, r.title, err)
	}

	var current []any
	if len(existing) > 0 {
		current = existing[0]
	}
	if r.headersMatch(current) {
		return res, nil
	}

	if err := r.client.ClearRange(ctx, id, r.headerRowRange()); err != nil {
		return res, fmt.Errorf("failed to clear headers: %w", err)
	}
	if err := r.client.WriteRange(ctx, id, r.HeaderRange(), [][]any{headers}); err != nil {
		return res, fmt.Errorf("failed to rewrite headers: %w", err)
	}
	r.logger.Warn("header drift corrected", "found", len(current), "want", len(headers))
	res.RewroteHeaders = true
	return res, nil
}

// Load decodes every data row. Empty and malformed rows are skipped, as are repeated ids.
func (r *SheetRepository) Load(ctx context.Context) ([]models.Task, error) {
	id := r.SpreadsheetID()
	if id == "" {
		return nil, shared.ErrStoreNotReady
	}

	rows, err := r.client.ReadRange(ctx, id, r.DataRange())
	if err != nil {
		return nil, fmt.Errorf("failed to read tasks: %w", err)
	}

	tasks := make([]models.Task, 0, len(rows))
	seen := make(map[int64]bool, len(rows))
	for i, row := range rows {
		task, err := r.codec.Decode(row)
		if errors.Is(err, ErrEmptyRow) {
			continue
		}
		if err != nil {
			r.logger.Debug("skipping row", "row", i+2, "err", err)
			continue
		}
		if seen[task.ID] {
			r.logger.Debug("skipping duplicate task id", "row", i+2, "id", task.ID)
			continue
		}
		seen[task.ID] = true
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// Save clears the data range and writes tasks in order.
func (r *SheetRepository) Save(ctx context.Context, tasks []models.Task) (SaveResult, error) {
	id := r.SpreadsheetID()
	if id == "" {
		return SaveResult{}, shared.ErrStoreNotReady
	}

	if err := r.client.ClearRange(ctx, id, r.DataRange()); err != nil {
		return SaveResult{Status: services.StatusCode(err)}, fmt.Errorf("failed to clear tasks: %w", err)
	}

	rows := r.codec.EncodeAll(tasks)
	if len(rows) > 0 {
		start := fmt.Sprintf("%s!A2", QuoteSheet(r.sheet))
		if err := r.client.WriteRange(ctx, id, start, rows); err != nil {
			return SaveResult{Status: services.StatusCode(err)}, fmt.Errorf("failed to write tasks: %w", err)
		}
	}

	return SaveResult{Status: http.StatusOK, Rows: len(rows)}, nil
}

func (r *SheetRepository) setID(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spreadsheetID = id
}

func (r *SheetRepository) headerRow() []any {
	headers := r.schema.Headers()
	row := make([]any, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	return row
}

func (r *SheetRepository) headersMatch(current []any) bool {
	headers := r.schema.Headers()
	if len(current) != len(headers) {
		return false
	}
	for i, h := range headers {
		if cellString(current[i]) != h {
			return false
		}
	}
	return true
}
