package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/desertthunder/ttrack/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
	"google.golang.org/api/drive/v3"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	SpreadsheetMimeType = "application/vnd.google-apps.spreadsheet"
	RevokeURL           = "https://oauth2.googleapis.com"
)

// GoogleService talks to Sheets, Drive, and the userinfo endpoint on behalf of one credential.
type GoogleService struct {
	sheets  *sheets.Service
	drive   *drive.Service
	users   *oauth2api.Service
	limiter *rate.Limiter
}

// NewGoogleService builds the API clients over a transport that asks ts for a token on every request.
//
// Extra options are appended after the HTTP client, so callers can redirect the endpoint in tests.
func NewGoogleService(ctx context.Context, ts oauth2.TokenSource, rps float64, opts ...option.ClientOption) (*GoogleService, error) {
	if ts == nil {
		return nil, fmt.Errorf("%w: token source is required", shared.ErrMissingArgument)
	}
	if rps <= 0 {
		rps = 5
	}

	client := &http.Client{Transport: &oauth2.Transport{Source: ts, Base: http.DefaultTransport}}
	all := append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)

	sheetsSvc, err := sheets.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("%w: sheets client: %w", shared.ErrServiceUnavailable, err)
	}

	driveSvc, err := drive.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("%w: drive client: %w", shared.ErrServiceUnavailable, err)
	}

	usersSvc, err := oauth2api.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("%w: userinfo client: %w", shared.ErrServiceUnavailable, err)
	}

	return &GoogleService{
		sheets:  sheetsSvc,
		drive:   driveSvc,
		users:   usersSvc,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}, nil
}

func (s *GoogleService) wait(ctx context.Context) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

// FindByName returns the id of the first non-trashed spreadsheet titled exactly name.
func (s *GoogleService) FindByName(ctx context.Context, name string) (string, bool, error) {
	if err := s.wait(ctx); err != nil {
		return "", false, err
	}

	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false", escapeQuery(name), SpreadsheetMimeType)
	list, err := s.drive.Files.List().
		Q(q).
		Spaces("drive").
		Fields("files(id, name)").
		PageSize(10).
		Context(ctx).
		Do()
	if err != nil {
		return "", false, fmt.Errorf("%w: drive search %q: %w", shared.ErrAPIRequest, name, err)
	}

	for _, f := range list.Files {
		if f.Name == name {
			return f.Id, true, nil
		}
	}
	return "", false, nil
}

// Create makes a new spreadsheet with a single sheet and returns its id.
func (s *GoogleService) Create(ctx context.Context, title, sheetName string) (string, error) {
	if err := s.wait(ctx); err != nil {
		return "", err
	}

	ss := &sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{Title: title},
		Sheets: []*sheets.Sheet{
			{Properties: &sheets.SheetProperties{Title: sheetName}},
		},
	}

	created, err := s.sheets.Spreadsheets.Create(ss).Fields("spreadsheetId").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("%w: create spreadsheet %q: %w", shared.ErrAPIRequest, title, err)
	}
	return created.SpreadsheetId, nil
}

// ReadRange returns the raw cell values in rng. Trailing empty rows and cells are omitted by the API.
func (s *GoogleService) ReadRange(ctx context.Context, spreadsheetID, rng string) ([][]any, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	vr, err := s.sheets.Spreadsheets.Values.Get(spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", shared.ErrAPIRequest, rng, err)
	}
	return vr.Values, nil
}

// WriteRange overwrites rng with rows, starting at its top-left cell.
func (s *GoogleService) WriteRange(ctx context.Context, spreadsheetID, rng string, rows [][]any) error {
	if err := s.wait(ctx); err != nil {
		return err
	}

	_, err := s.sheets.Spreadsheets.Values.Update(spreadsheetID, rng, &sheets.ValueRange{Values: rows}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("%w: write %s: %w", shared.ErrAPIRequest, rng, err)
	}
	return nil
}

// ClearRange blanks every cell in rng.
func (s *GoogleService) ClearRange(ctx context.Context, spreadsheetID, rng string) error {
	if err := s.wait(ctx); err != nil {
		return err
	}

	if _, err := s.sheets.Spreadsheets.Values.Clear(spreadsheetID, rng, &sheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("%w: clear %s: %w", shared.ErrAPIRequest, rng, err)
	}
	return nil
}

// Email returns the address of the account the credential belongs to.
func (s *GoogleService) Email(ctx context.Context) (string, error) {
	if err := s.wait(ctx); err != nil {
		return "", err
	}

	info, err := s.users.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("%w: userinfo: %w", shared.ErrAPIRequest, err)
	}
	return info.Email, nil
}

func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
