package main

import (
	"context"
	"errors"
	"os"

	"github.com/desertthunder/ttrack/internal/shared"
)

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(RunnerOpts{Logger: logger})

	app := newApp(runner)

	if err := app.Run(context.Background(), os.Args); err != nil {
		if errors.Is(err, shared.ErrNotAuthenticated) {
			logger.Error("not signed in, run `ttrack auth login` first")
			os.Exit(1)
		}
		logger.Fatalf("application error: %v", err)
	}
}
