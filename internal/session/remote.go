package session

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ttrack/internal/models"
	"github.com/desertthunder/ttrack/internal/repositories"
	"github.com/desertthunder/ttrack/internal/services"
	"github.com/desertthunder/ttrack/internal/shared"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
)

// Backend is the remote task store of a connected session.
type Backend interface {
	Initialize(ctx context.Context) (repositories.InitResult, error)
	Load(ctx context.Context) ([]models.Task, error)
	Save(ctx context.Context, tasks []models.Task) (repositories.SaveResult, error)
}

// Account looks up the signed-in identity.
type Account interface {
	Email(ctx context.Context) (string, error)
}

// Remote is what a [Connector] hands back. Account may be nil.
type Remote struct {
	Store   Backend
	Account Account
}

// Connector builds the remote side of a session over a token source.
type Connector func(ctx context.Context, ts oauth2.TokenSource) (*Remote, error)

// GoogleConnector returns a [Connector] that stores tasks in the spreadsheet named by cfg.Store.
func GoogleConnector(cfg *shared.Config, logger *log.Logger, opts ...option.ClientOption) Connector {
	return func(ctx context.Context, ts oauth2.TokenSource) (*Remote, error) {
		svc, err := services.NewGoogleService(ctx, ts, cfg.Sync.RequestsPerSecond, opts...)
		if err != nil {
			return nil, err
		}

		repo, err := repositories.NewSheetRepository(
			svc, models.TaskSchema(), cfg.Store.SpreadsheetTitle, cfg.Store.SheetName, logger,
		)
		if err != nil {
			return nil, err
		}
		return &Remote{Store: repo, Account: svc}, nil
	}
}
