package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"

	"SocialPoster/internal/app"
	"SocialPoster/internal/config"
	"SocialPoster/internal/logging"
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	var runErr error
	if cfg.Run.Mode == "watch" {
		runErr = application.RunWatch(ctx)
	} else {
		runErr = application.Run(ctx)
	}
	if runErr != nil {
		logger.Error("application stopped", "error", runErr)
		application.RecordFailure(ctx, runErr)
		os.Exit(1)
	}
}
