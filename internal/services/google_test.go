package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/ttrack/internal/shared"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

func newTestGoogleService(t *testing.T, h http.HandlerFunc) *GoogleService {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token", TokenType: "Bearer"})
	svc, err := NewGoogleService(context.Background(), ts, 1000, option.WithEndpoint(srv.URL+"/"))
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return svc
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func TestGoogleService(t *testing.T) {
	t.Run("NewGoogleService", func(t *testing.T) {
		t.Run("Requires Token Source", func(t *testing.T) {
			_, err := NewGoogleService(context.Background(), nil, 1)
			if !errors.Is(err, shared.ErrMissingArgument) {
				t.Errorf("expected ErrMissingArgument, got %v", err)
			}
		})
	})

	t.Run("Authorization", func(t *testing.T) {
		svc := newTestGoogleService(t, func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
				t.Errorf("expected bearer token, got %q", got)
			}
			writeJSON(w, map[string]any{"values": [][]any{}})
		})

		if _, err := svc.ReadRange(context.Background(), "sheet-1", "Tasks!A1:I1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("FindByName", func(t *testing.T) {
		t.Run("Exact Match", func(t *testing.T) {
			svc := newTestGoogleService(t, func(w http.ResponseWriter, r *http.Request) {
				if !strings.HasSuffix(r.URL.Path, "/files") {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				q := r.URL.Query().Get("q")
				if !strings.Contains(q, "name = 'Time Tracker Data'") || !strings.Contains(q, SpreadsheetMimeType) {
					t.Errorf("unexpected query %q", q)
				}
				writeJSON(w, map[string]any{"files": []map[string]string{
					{"id": "other", "name": "Time Tracker Data (copy)"},
					{"id": "abc123", "name": "Time Tracker Data"},
				}})
			})

			id, found, err := svc.FindByName(context.Background(), "Time Tracker Data")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !found || id != "abc123" {
				t.Errorf("expected abc123 found, got %q %v", id, found)
			}
		})

		t.Run("Not Found", func(t *testing.T) {
			svc := newTestGoogleService(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, map[string]any{"files": []any{}})
			})

			_, found, err := svc.FindByName(context.Background(), "missing")
			if err != nil || found {
				t.Errorf("expected not found without error, got %v %v", found, err)
			}
		})

		t.Run("Quotes Escaped", func(t *testing.T) {
			if got := escapeQuery(`Bob's`); got != `Bob\'s` {
				t.Errorf("expected escaped quote, got %s", got)
			}
		})
	})

	t.Run("Create", func(t *testing.T) {
		svc := newTestGoogleService(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/v4/spreadsheets") {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			body, _ := io.ReadAll(r.Body)
			if !strings.Contains(string(body), `"title":"Time Tracker Data"`) || !strings.Contains(string(body), `"title":"Tasks"`) {
				t.Errorf("unexpected body %s", body)
			}
			writeJSON(w, map[string]any{"spreadsheetId": "new-id"})
		})

		id, err := svc.Create(context.Background(), "Time Tracker Data", "Tasks")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if id != "new-id" {
			t.Errorf("expected new-id, got %s", id)
		}
	})

	t.Run("ReadRange", func(t *testing.T) {
		svc := newTestGoogleService(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("valueRenderOption") != "UNFORMATTED_VALUE" {
				t.Errorf("expected unformatted values, got %s", r.URL.RawQuery)
			}
			writeJSON(w, map[string]any{"values": [][]any{{1700000000000, "Write docs", 12.5, true}}})
		})

		rows, err := svc.ReadRange(context.Background(), "id", "Tasks!A2:I")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(rows) != 1 || len(rows[0]) != 4 {
			t.Fatalf("unexpected rows %v", rows)
		}
		if rows[0][1] != "Write docs" {
			t.Errorf("expected name cell, got %v", rows[0][1])
		}
	})

	t.Run("WriteRange", func(t *testing.T) {
		svc := newTestGoogleService(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPut {
				t.Errorf("expected PUT, got %s", r.Method)
			}
			if r.URL.Query().Get("valueInputOption") != "RAW" {
				t.Errorf("expected RAW input, got %s", r.URL.RawQuery)
			}
			writeJSON(w, map[string]any{"updatedRows": 1})
		})

		if err := svc.WriteRange(context.Background(), "id", "Tasks!A1", [][]any{{"a", "b"}}); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("ClearRange", func(t *testing.T) {
		svc := newTestGoogleService(t, func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasSuffix(r.URL.Path, ":clear") {
				t.Errorf("expected clear path, got %s", r.URL.Path)
			}
			writeJSON(w, map[string]any{})
		})

		if err := svc.ClearRange(context.Background(), "id", "Tasks!A2:I"); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("Email", func(t *testing.T) {
		svc := newTestGoogleService(t, func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasSuffix(r.URL.Path, "/userinfo") {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			writeJSON(w, map[string]any{"email": "owner@example.com"})
		})

		email, err := svc.Email(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if email != "owner@example.com" {
			t.Errorf("expected owner@example.com, got %s", email)
		}
	})

	t.Run("Unauthorized Response", func(t *testing.T) {
		svc := newTestGoogleService(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": {"code": 401, "message": "Invalid Credentials"}}`))
		})

		err := svc.WriteRange(context.Background(), "id", "Tasks!A1", [][]any{{"x"}})
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
		if !IsUnauthorized(err) {
			t.Errorf("expected unauthorized, got status %d", StatusCode(err))
		}
	})
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"googleapi", &googleapi.Error{Code: 403}, 403},
		{"wrapped googleapi", fmt.Errorf("%w: %w", shared.ErrAPIRequest, &googleapi.Error{Code: 401}), 401},
		{"retrieve", &oauth2.RetrieveError{Response: &http.Response{StatusCode: 400}}, 400},
		{"status", &StatusError{Code: 503}, 503},
		{"not authenticated", shared.ErrNotAuthenticated, 401},
		{"network", errors.New("connection reset"), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusCode(tt.err); got != tt.want {
				t.Errorf("StatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
