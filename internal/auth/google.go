package auth

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ttrack/internal/models"
	"github.com/desertthunder/ttrack/internal/server"
	"github.com/desertthunder/ttrack/internal/services"
	"github.com/desertthunder/ttrack/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// GoogleProvider implements [Provider] with Google's authorization code flow and a loopback redirect.
type GoogleProvider struct {
	config  *oauth2.Config
	addr    string
	path    string
	timeout time.Duration
	open    shared.BrowserOpener
	out     io.Writer
	revoker *services.APIService
	logger  *log.Logger
}

// ProviderOption configures a [GoogleProvider].
type ProviderOption func(*GoogleProvider)

// WithBrowser replaces the function used to open the consent page.
func WithBrowser(open shared.BrowserOpener) ProviderOption {
	return func(p *GoogleProvider) { p.open = open }
}

// WithEndpoint points the provider at a different authorization server.
func WithEndpoint(endpoint oauth2.Endpoint) ProviderOption {
	return func(p *GoogleProvider) { p.config.Endpoint = endpoint }
}

// WithRevoker replaces the client used for token revocation.
func WithRevoker(api *services.APIService) ProviderOption {
	return func(p *GoogleProvider) { p.revoker = api }
}

// NewGoogleProvider builds a provider from the google, auth and server sections of cfg.
// Prompts and fallback URLs are written to out.
func NewGoogleProvider(cfg *shared.Config, out io.Writer, logger *log.Logger, opts ...ProviderOption) (*GoogleProvider, error) {
	if cfg.Google.ClientID == "" {
		return nil, fmt.Errorf("%w: google.client_id is required", shared.ErrMissingConfig)
	}

	redirect := cfg.Google.RedirectURL
	if redirect == "" {
		redirect = "http://" + cfg.Server.Addr() + "/callback"
	}
	u, err := url.Parse(redirect)
	if err != nil {
		return nil, fmt.Errorf("%w: bad redirect_url: %v", shared.ErrInvalidConfig, err)
	}

	if logger == nil {
		logger = log.Default()
	}
	if out == nil {
		out = io.Discard
	}

	p := &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			Endpoint:     google.Endpoint,
			RedirectURL:  redirect,
			Scopes:       cfg.Google.Scopes,
		},
		addr:    cfg.Server.Addr(),
		path:    u.Path,
		timeout: cfg.Auth.Timeout.Duration,
		open:    shared.OpenBrowser,
		out:     out,
		revoker: services.NewAPIService(services.RevokeURL, nil),
		logger:  logger.WithPrefix("google"),
	}
	if p.timeout <= 0 {
		p.timeout = 2 * time.Minute
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// OAuthConfig exposes the underlying client configuration.
func (p *GoogleProvider) OAuthConfig() *oauth2.Config {
	return p.config
}

// Authorize starts the loopback server, sends the user to the consent page and waits for the redirect.
func (p *GoogleProvider) Authorize(ctx context.Context) (*models.Credential, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}
	verifier := oauth2.GenerateVerifier()

	handler := server.NewOAuthHandler(p.config, state, verifier, p.path)
	router := server.NewBasicRouter()
	router.Use(server.RequestLogger(p.logger))
	router.Handler(handler)

	loopback, err := server.Listen(p.addr, router)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := loopback.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn("error shutting down callback server", "error", err)
		}
	}()
	p.logger.Debug("callback server listening", "addr", loopback.Addr())

	authURL := p.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.S256ChallengeOption(verifier),
	)

	fmt.Fprintln(p.out, "→ Opening browser for Google sign-in...")
	if err := p.open(authURL); err != nil {
		p.logger.Warn("failed to open browser automatically", "err", err)
		fmt.Fprintln(p.out, "⚠ Could not open browser automatically.")
		fmt.Fprintf(p.out, "Please open this URL in your browser:\n%s\n\n", authURL)
	}
	fmt.Fprintf(p.out, "→ Waiting for authorization (%s timeout)...\n", p.timeout)

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	var result server.OAuthResult
	select {
	case result = <-handler.Result():
	case err := <-loopback.Errors():
		return nil, fmt.Errorf("%w: callback server: %v", shared.ErrAuthFailed, err)
	case <-timer.C:
		return nil, fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, p.timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err := result.Error(); err != nil {
		return nil, err
	}
	if result.Token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}
	return credentialFromToken(result.Token), nil
}

// Refresh redeems the refresh token for a new access token.
func (p *GoogleProvider) Refresh(ctx context.Context, cred *models.Credential) (*models.Credential, error) {
	if cred == nil || cred.RefreshToken == "" {
		return nil, shared.ErrNoRefreshToken
	}

	// An expired token forces the source to hit the token endpoint.
	stale := &oauth2.Token{RefreshToken: cred.RefreshToken, Expiry: time.Unix(1, 0)}
	tok, err := p.config.TokenSource(ctx, stale).Token()
	if err != nil {
		return nil, err
	}
	return credentialFromToken(tok), nil
}

// Revoke asks Google to invalidate token. A 400 for an already invalid token counts as success.
func (p *GoogleProvider) Revoke(ctx context.Context, token string) error {
	resp, err := p.revoker.PostForm(ctx, "/revoke", url.Values{"token": {token}})
	if err != nil {
		return fmt.Errorf("%w: revoke: %w", shared.ErrAPIRequest, err)
	}
	if resp.StatusCode == 400 {
		p.logger.Debug("token already invalid at provider")
		return nil
	}
	if err := resp.Err(); err != nil {
		return fmt.Errorf("%w: revoke: %w", shared.ErrAPIRequest, err)
	}
	return nil
}

func credentialFromToken(tok *oauth2.Token) *models.Credential {
	return &models.Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
}
