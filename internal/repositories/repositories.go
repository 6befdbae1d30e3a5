package repositories

import (
	"context"

	"github.com/desertthunder/ttrack/internal/services"
)

// Spreadsheet is the remote tabular store surface used by [SheetRepository].
type Spreadsheet interface {
	FindByName(ctx context.Context, name string) (string, bool, error)
	Create(ctx context.Context, title, sheetName string) (string, error)
	ReadRange(ctx context.Context, spreadsheetID, rng string) ([][]any, error)
	WriteRange(ctx context.Context, spreadsheetID, rng string, rows [][]any) error
	ClearRange(ctx context.Context, spreadsheetID, rng string) error
}

var _ Spreadsheet = (*services.GoogleService)(nil)

// ColumnName converts a 1-based column number to its A1 letters (1 → A, 27 → AA).
func ColumnName(n int) string {
	name := ""
	for n > 0 {
		n--
		name = string(rune('A'+n%26)) + name
		n /= 26
	}
	return name
}

// QuoteSheet quotes a sheet title for use in A1 notation when it holds anything but letters and digits.
func QuoteSheet(name string) string {
	plain := name != ""
	for _, c := range name {
		if !(c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_') {
			plain = false
			break
		}
	}
	if plain {
		return name
	}

	quoted := "'"
	for _, c := range name {
		if c == '\'' {
			quoted += "''"
			continue
		}
		quoted += string(c)
	}
	return quoted + "'"
}
