package auth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ttrack/internal/models"
	"github.com/desertthunder/ttrack/internal/services"
	"github.com/desertthunder/ttrack/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find free port: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func newTokenEndpoint(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		switch r.PostForm.Get("grant_type") {
		case "authorization_code":
			if r.PostForm.Get("code_verifier") == "" {
				t.Error("expected PKCE verifier on code exchange")
			}
			json.NewEncoder(w).Encode(map[string]any{
				"access_token": "first", "refresh_token": "long-lived", "token_type": "Bearer", "expires_in": 3599,
			})
		case "refresh_token":
			if r.PostForm.Get("refresh_token") != "long-lived" {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error":"invalid_grant"}`))
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"access_token": "second", "token_type": "Bearer", "expires_in": 3599,
			})
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testProviderConfig(port int) *shared.Config {
	cfg := shared.DefaultConfig()
	cfg.Google.ClientID = "client"
	cfg.Google.ClientSecret = "secret"
	cfg.Google.RedirectURL = "http://127.0.0.1:" + strconv.Itoa(port) + "/callback"
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = port
	cfg.Auth.Timeout = shared.Duration{Duration: 2 * time.Second}
	return cfg
}

func TestGoogleProvider(t *testing.T) {
	ctx := context.Background()
	quiet := log.New(io.Discard)

	t.Run("Requires Client ID", func(t *testing.T) {
		cfg := shared.DefaultConfig()
		cfg.Google.ClientID = ""
		if _, err := NewGoogleProvider(cfg, nil, quiet); !errors.Is(err, shared.ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("Defaults Redirect To Loopback", func(t *testing.T) {
		cfg := testProviderConfig(8765)
		cfg.Google.RedirectURL = ""
		p, err := NewGoogleProvider(cfg, nil, quiet)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		oc := p.OAuthConfig()
		if oc.RedirectURL != "http://127.0.0.1:8765/callback" {
			t.Errorf("redirect = %q", oc.RedirectURL)
		}
		if oc.Endpoint.TokenURL != google.Endpoint.TokenURL {
			t.Errorf("token url = %q", oc.Endpoint.TokenURL)
		}
	})

	t.Run("Authorize", func(t *testing.T) {
		tokenSrv := newTokenEndpoint(t)
		port := freePort(t)

		// Plays the browser: follows the consent URL straight to the redirect.
		browser := func(authURL string) error {
			u, err := url.Parse(authURL)
			if err != nil {
				return err
			}
			q := u.Query()
			if q.Get("access_type") != "offline" || q.Get("code_challenge_method") != "S256" {
				t.Errorf("unexpected auth URL params %v", q)
			}
			go func() {
				cb := q.Get("redirect_uri") + "?state=" + url.QueryEscape(q.Get("state")) + "&code=abc"
				resp, err := http.Get(cb)
				if err == nil {
					resp.Body.Close()
				}
			}()
			return nil
		}

		p, err := NewGoogleProvider(testProviderConfig(port), io.Discard, quiet,
			WithBrowser(browser),
			WithEndpoint(oauth2.Endpoint{AuthURL: "http://auth.invalid/o/oauth2/auth", TokenURL: tokenSrv.URL}),
		)
		if err != nil {
			t.Fatalf("failed to create provider: %v", err)
		}

		cred, err := p.Authorize(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if cred.AccessToken != "first" || cred.RefreshToken != "long-lived" {
			t.Errorf("unexpected credential %+v", cred)
		}
		if cred.Expiry.IsZero() {
			t.Error("expected expiry from expires_in")
		}
	})

	t.Run("Authorize Timeout", func(t *testing.T) {
		cfg := testProviderConfig(freePort(t))
		cfg.Auth.Timeout = shared.Duration{Duration: 50 * time.Millisecond}

		p, err := NewGoogleProvider(cfg, io.Discard, quiet, WithBrowser(func(string) error { return errors.New("headless") }))
		if err != nil {
			t.Fatalf("failed to create provider: %v", err)
		}

		if _, err := p.Authorize(ctx); !errors.Is(err, shared.ErrTimeout) {
			t.Errorf("expected ErrTimeout, got %v", err)
		}
	})

	t.Run("Refresh", func(t *testing.T) {
		tokenSrv := newTokenEndpoint(t)
		p, _ := NewGoogleProvider(testProviderConfig(freePort(t)), io.Discard, quiet,
			WithEndpoint(oauth2.Endpoint{TokenURL: tokenSrv.URL}))

		t.Run("Success", func(t *testing.T) {
			cred, err := p.Refresh(ctx, &models.Credential{AccessToken: "first", RefreshToken: "long-lived"})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if cred.AccessToken != "second" {
				t.Errorf("expected second, got %s", cred.AccessToken)
			}
		})

		t.Run("No Refresh Token", func(t *testing.T) {
			if _, err := p.Refresh(ctx, &models.Credential{AccessToken: "x"}); !errors.Is(err, shared.ErrNoRefreshToken) {
				t.Errorf("expected ErrNoRefreshToken, got %v", err)
			}
		})

		t.Run("Rejected Grant", func(t *testing.T) {
			_, err := p.Refresh(ctx, &models.Credential{RefreshToken: "revoked"})
			if err == nil {
				t.Fatal("expected error")
			}
			if services.StatusCode(err) != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", services.StatusCode(err))
			}
		})
	})

	t.Run("Revoke", func(t *testing.T) {
		var got string
		revokeSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.ParseForm()
			got = r.PostForm.Get("token")
			if got == "stale" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			if got == "boom" {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer revokeSrv.Close()

		p, _ := NewGoogleProvider(testProviderConfig(freePort(t)), io.Discard, quiet,
			WithRevoker(services.NewAPIService(revokeSrv.URL, nil)))

		if err := p.Revoke(ctx, "abc"); err != nil || got != "abc" {
			t.Errorf("expected token abc revoked, got %q %v", got, err)
		}
		if err := p.Revoke(ctx, "stale"); err != nil {
			t.Errorf("already invalid token should not fail, got %v", err)
		}
		if err := p.Revoke(ctx, "boom"); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})
}
