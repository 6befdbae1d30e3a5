package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ttrack/internal/auth"
	"github.com/desertthunder/ttrack/internal/models"
	"github.com/desertthunder/ttrack/internal/repositories"
	"github.com/desertthunder/ttrack/internal/session"
	"github.com/desertthunder/ttrack/internal/shared"
	"github.com/desertthunder/ttrack/internal/tasks"
	tu "github.com/desertthunder/ttrack/internal/testing"
	"golang.org/x/oauth2"
)

// fakeEnv backs every session built during a test with the same fakes, so state survives between commands.
type fakeEnv struct {
	provider *tu.FakeProvider
	kv       *tu.MemoryKV
	sheets   *tu.FakeSpreadsheet
	released int
}

func newFakeEnv() *fakeEnv {
	return &fakeEnv{provider: tu.NewFakeProvider(), kv: tu.NewMemoryKV(), sheets: tu.NewFakeSpreadsheet()}
}

func (e *fakeEnv) factory(_ context.Context, cfg *shared.Config, logger *log.Logger, _ io.Writer) (*session.Session, func() error, error) {
	s, err := session.New(session.Opts{
		Credentials: auth.NewManager(e.provider, e.kv, auth.WithLogger(logger)),
		Connect: func(context.Context, oauth2.TokenSource) (*session.Remote, error) {
			repo, err := repositories.NewSheetRepository(
				e.sheets, models.TaskSchema(), cfg.Store.SpreadsheetTitle, cfg.Store.SheetName, logger,
			)
			if err != nil {
				return nil, err
			}
			return &session.Remote{Store: repo}, nil
		},
		Interval: time.Hour,
		Logger:   logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return s, func() error { e.released++; return nil }, nil
}

// run executes one CLI invocation against env and returns its output.
func (e *fakeEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{Output: output, Logger: log.New(io.Discard), Sessions: e.factory})

	argv := append([]string{"ttrack", "--config", filepath.Join(t.TempDir(), "missing.toml")}, args...)
	err := newApp(runner).Run(context.Background(), argv)
	return output.String(), err
}

func (e *fakeEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	if err != nil {
		t.Fatalf("%v failed: %v", args, err)
	}
	return out
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				ConfigPath: "/test/path/config.toml",
				Logger:     logger,
				Output:     output,
				Sessions:   newFakeEnv().factory,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.newSession == nil {
				t.Error("expected session factory to be set")
			}
		})

		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
			if runner.newSession == nil {
				t.Error("expected default session factory")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if output.String() != expected {
				t.Errorf("expected %q, got %q", expected, output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "hello world" {
				t.Errorf("expected 'hello world', got %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		names := map[string]bool{}
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			names[cmd.Name] = true
		}
		for _, want := range []string{"setup", "auth", "task", "sync", "tui"} {
			if !names[want] {
				t.Errorf("expected %q command registered", want)
			}
		}
	})

	t.Run("Before", func(t *testing.T) {
		t.Run("loads config file", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			config := shared.DefaultConfig()
			config.Store.SheetName = "Work"
			if err := shared.SaveConfig(path, config); err != nil {
				t.Fatalf("failed to save config: %v", err)
			}

			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}, Logger: log.New(io.Discard)})
			if err := newApp(runner).Run(context.Background(), []string{"ttrack", "--config", path, "--verbose"}); err != nil {
				t.Fatalf("run failed: %v", err)
			}
			if runner.config.Store.SheetName != "Work" {
				t.Errorf("expected config loaded, got sheet %q", runner.config.Store.SheetName)
			}
			if runner.configPath != path {
				t.Errorf("expected config path recorded, got %q", runner.configPath)
			}
			if runner.logger.GetLevel() != log.DebugLevel {
				t.Error("expected --verbose to enable debug logging")
			}
		})

		t.Run("verbose still runs the command", func(t *testing.T) {
			env := newFakeEnv()
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output, Logger: log.New(io.Discard), Sessions: env.factory})

			argv := []string{"ttrack", "--config", filepath.Join(t.TempDir(), "missing.toml"), "--verbose", "auth", "status"}
			if err := newApp(runner).Run(context.Background(), argv); err != nil {
				t.Fatalf("run failed: %v", err)
			}
			if !strings.Contains(output.String(), "Not signed in") {
				t.Errorf("expected auth status output, got %q", output.String())
			}
			if strings.Contains(output.String(), "version") {
				t.Errorf("--verbose must not print the version, got %q", output.String())
			}
			if runner.logger.GetLevel() != log.DebugLevel {
				t.Error("expected --verbose to enable debug logging")
			}
		})

		t.Run("rejects malformed config", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			os.WriteFile(path, []byte("[sync]\ninterval = \"soon\"\n"), 0644)

			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}, Logger: log.New(io.Discard)})
			err := newApp(runner).Run(context.Background(), []string{"ttrack", "--config", path, "sync"})
			if err == nil || !strings.Contains(err.Error(), "failed to parse config") {
				t.Errorf("expected parse error, got %v", err)
			}
		})
	})
}

func TestSetup(t *testing.T) {
	dir := t.TempDir()
	originalDir := tu.MustGetwd(t)
	tu.MustChdir(t, dir)
	defer tu.MustChdir(t, originalDir)

	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{Output: output, Logger: log.New(io.Discard)})
	if err := newApp(runner).Run(context.Background(), []string{"ttrack", "--config", "config.toml", "setup"}); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	tu.AssertFileExists(t, "config.toml")
	tu.AssertFileExists(t, runner.config.Database.Path)
	if !strings.Contains(output.String(), "ttrack auth login") {
		t.Errorf("expected next steps, got %q", output.String())
	}

	rerun := func(t *testing.T, flag string) string {
		t.Helper()
		out := &bytes.Buffer{}
		r := NewRunner(RunnerOpts{Output: out, Logger: log.New(io.Discard)})
		if err := newApp(r).Run(context.Background(), []string{"ttrack", "--config", "config.toml", "setup", flag}); err != nil {
			t.Fatalf("setup %s failed: %v", flag, err)
		}
		return out.String()
	}

	t.Run("Reset", func(t *testing.T) {
		db, err := shared.NewDatabase(runner.config.Database.Path)
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		kv := repositories.NewKeyValueRepository(db, credentialNamespace)
		if err := kv.Set("access_token", "stale"); err != nil {
			t.Fatalf("failed to seed credential: %v", err)
		}
		db.Close()

		if out := rerun(t, "--reset"); !strings.Contains(out, "Removed stored sign-in (1 key(s))") {
			t.Errorf("unexpected reset output %q", out)
		}
	})

	t.Run("Rollback", func(t *testing.T) {
		if out := rerun(t, "--rollback"); !strings.Contains(out, "Rolled back") {
			t.Errorf("unexpected rollback output %q", out)
		}
	})
}

func TestCommands(t *testing.T) {
	t.Run("Signed Out", func(t *testing.T) {
		env := newFakeEnv()

		_, err := env.run(t, "task", "add", "Write report")
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}

		out := env.mustRun(t, "auth", "status")
		if !strings.Contains(out, "Not signed in") {
			t.Errorf("expected signed-out status, got %q", out)
		}
	})

	t.Run("Login Then Task Lifecycle", func(t *testing.T) {
		env := newFakeEnv()

		out := env.mustRun(t, "auth", "login")
		if !strings.Contains(out, "✓ Signed in") {
			t.Errorf("expected sign-in confirmation, got %q", out)
		}

		out = env.mustRun(t, "task", "add", "--start", "Write report")
		if !strings.Contains(out, `Added and started "Write report"`) {
			t.Errorf("unexpected add output %q", out)
		}

		out = env.mustRun(t, "task", "stop", "write report")
		if !strings.Contains(out, `Stopped "Write report"`) {
			t.Errorf("expected lookup by name, got %q", out)
		}

		out = env.mustRun(t, "task", "list")
		if !strings.Contains(out, "Active tasks (1)") || !strings.Contains(out, "Write report") {
			t.Errorf("expected task listed after reload from store, got %q", out)
		}

		env.mustRun(t, "task", "finish", "Write report")
		out = env.mustRun(t, "task", "list", "--finished")
		if !strings.Contains(out, "Finished tasks (1)") || !strings.Contains(out, "✓") {
			t.Errorf("expected finished task, got %q", out)
		}

		env.mustRun(t, "task", "delete", "Write report")
		out = env.mustRun(t, "task", "list", "--all", "--json")
		if !strings.Contains(out, `"is_deleted": true`) {
			t.Errorf("expected tombstone in JSON output, got %q", out)
		}

		out = env.mustRun(t, "sync")
		if !strings.Contains(out, "✓ Synced 1 task(s)") {
			t.Errorf("expected sync report, got %q", out)
		}

		if env.provider.CallCount("authorize") != 1 {
			t.Error("expected later commands to reuse the stored credential")
		}
		if env.released == 0 {
			t.Error("expected session resources released")
		}
	})

	t.Run("Unknown Task", func(t *testing.T) {
		env := newFakeEnv()
		env.mustRun(t, "auth", "login")

		if _, err := env.run(t, "task", "start", "nothing"); !errors.Is(err, shared.ErrTaskNotFound) {
			t.Errorf("expected ErrTaskNotFound, got %v", err)
		}
	})

	t.Run("Export", func(t *testing.T) {
		env := newFakeEnv()
		env.mustRun(t, "auth", "login")
		env.mustRun(t, "task", "add", "Write report")

		path := filepath.Join(t.TempDir(), "tasks.md")
		out := env.mustRun(t, "task", "export", "--format", "markdown", "--output", path)
		if !strings.Contains(out, path) {
			t.Errorf("expected export path, got %q", out)
		}
		if content := tu.MustReadFile(t, path); !strings.Contains(content, "| Write report |") {
			t.Errorf("expected task in export, got %q", content)
		}

		if _, err := env.run(t, "task", "export", "--format", "xlsx"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("Logout", func(t *testing.T) {
		env := newFakeEnv()
		env.mustRun(t, "auth", "login")

		out := env.mustRun(t, "auth", "logout")
		if !strings.Contains(out, "✓ Signed out") {
			t.Errorf("expected sign-out confirmation, got %q", out)
		}
		if len(env.kv.Values) != 0 || env.provider.CallCount("revoke") != 1 {
			t.Error("expected stored credential revoked and removed")
		}
	})
}

func TestResolveTask(t *testing.T) {
	reg := tasks.NewRegistry(time.Now)
	first, _ := reg.Add("Review")
	second, _ := reg.Add("Review")
	solo, _ := reg.Add("Deploy")
	gone, _ := reg.Add("Old")
	reg.Delete(gone.ID)

	tests := []struct {
		name    string
		ref     string
		want    int64
		wantErr error
	}{
		{"by id", "", solo.ID, nil},
		{"by name case-insensitive", "deploy", solo.ID, nil},
		{"ambiguous name", "Review", 0, shared.ErrInvalidArgument},
		{"deleted by id", "", gone.ID, nil},
		{"deleted by name", "Old", 0, shared.ErrTaskNotFound},
		{"unknown", "nope", 0, shared.ErrTaskNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref := tt.ref
			if ref == "" {
				ref = strconv.FormatInt(tt.want, 10)
			}
			got, err := resolveTask(reg, ref)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("resolveTask(%q) = %d, %v; want %d", ref, got, err, tt.want)
			}
		})
	}

	if first.ID == second.ID {
		t.Fatal("expected distinct ids")
	}
}
