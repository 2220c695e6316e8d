package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"SocialPoster/internal/config"
	"SocialPoster/internal/infrastructure/browser"
	"SocialPoster/internal/infrastructure/llm"
	"SocialPoster/internal/infrastructure/search"
	"SocialPoster/internal/infrastructure/storage"
	"SocialPoster/internal/infrastructure/telegram"
	"SocialPoster/internal/logging"
	"SocialPoster/internal/ports"
	"SocialPoster/internal/usecase"
)

// Application wires configuration to infrastructure and the run orchestrator.
type Application struct {
	cfg    config.Config
	db     *sql.DB
	runner *usecase.Runner
	events ports.SystemEventStore
	logger *slog.Logger
}

// New builds a runnable application instance. Every client handle and the
// persona text are loaded here, once per process invocation.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	persona, err := os.ReadFile(cfg.Generation.PersonaFile)
	if err != nil {
		return nil, fmt.Errorf("read persona %s: %w", cfg.Generation.PersonaFile, err)
	}

	db, err := storage.Open(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	posts := storage.NewPostRepository(db)
	articles := storage.NewArticleRepository(db)
	topics := storage.NewTopicRepository(db)
	events := storage.NewSystemEventRepository(db)

	model := llm.NewOpenAIClient(cfg.LLM)
	searcher := search.NewClient(cfg.Search)
	fetcher := search.NewFetcher(nil)
	publisher := browser.NewPublisher(cfg.Publish, logging.Component(baseLogger, "browser"))

	var alerter ports.Alerter
	if cfg.Notifications.Telegram.BotToken != "" {
		alerter = telegram.NewAlerter(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
	}

	selector := usecase.NewSelector(articles, topics, searcher, fetcher, cfg.Sources,
		logging.Component(baseLogger, "selector"))
	generator := usecase.NewGenerator(model, strings.TrimSpace(string(persona)), cfg.Generation,
		logging.Component(baseLogger, "generator"))
	planner := usecase.NewPlanner(cfg.Schedule)
	executor := usecase.NewExecutor(publisher, cfg.Publish, logging.Component(baseLogger, "executor"))

	runner := usecase.NewRunner(usecase.RunnerDeps{
		Posts:     posts,
		Articles:  articles,
		Selector:  selector,
		Generator: generator,
		Planner:   planner,
		Executor:  executor,
		Alerter:   alerter,
		Logger:    logging.Component(baseLogger, "runner"),
	}, cfg.Schedule.Buffer.Std(), cfg.Schedule.Grace.Std(), cfg.Sources.RecentTopicCount)

	return &Application{
		cfg:    cfg,
		db:     db,
		runner: runner,
		events: events,
		logger: logging.Component(baseLogger, "app"),
	}, nil
}

// Run performs a single orchestrator pass.
func (a *Application) Run(ctx context.Context) error {
	return a.runner.Run(ctx)
}

// RunWatch re-runs the pass on a fixed ticker until the context is done.
// Pass failures are logged and recorded; the loop keeps going.
func (a *Application) RunWatch(ctx context.Context) error {
	interval := a.cfg.Run.WatchInterval.Std()
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.runPass(ctx)
	for {
		select {
		case <-ticker.C:
			a.runPass(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (a *Application) runPass(ctx context.Context) {
	if err := a.runner.Run(ctx); err != nil {
		a.logger.Error("run pass failed", "error", err)
		a.RecordFailure(ctx, err)
	}
}

// RecordFailure persists a best-effort system-error audit row.
func (a *Application) RecordFailure(ctx context.Context, runErr error) {
	if a.events == nil {
		return
	}
	if err := a.events.RecordError(ctx, "runner", runErr.Error()); err != nil {
		a.logger.Error("record system error", "error", err)
	}
}

// Close releases the database handle.
func (a *Application) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
