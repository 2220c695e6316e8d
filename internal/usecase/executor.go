package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"SocialPoster/internal/config"
	"SocialPoster/internal/domain"
	"SocialPoster/internal/ports"
)

// Executor wraps the unreliable publish surface with a session precondition,
// bounded whole-attempt retries and outcome classification. It persists
// nothing; the caller owns all state changes.
type Executor struct {
	publisher  ports.PostPublisher
	retries    int
	retryDelay time.Duration
	logger     *slog.Logger

	sleep func(time.Duration)
}

// NewExecutor builds an executor from publish configuration.
func NewExecutor(publisher ports.PostPublisher, cfg config.PublishConfig, logger *slog.Logger) *Executor {
	return &Executor{
		publisher:  publisher,
		retries:    cfg.Retries,
		retryDelay: cfg.RetryDelay.Std(),
		logger:     logger,
		sleep:      time.Sleep,
	}
}

// Publish verifies the session, then attempts publication up to 1+retries
// times, each attempt starting from fresh navigation. A dead session fails
// fast with domain.ErrAuthExpired before any attempt is made.
func (e *Executor) Publish(ctx context.Context, text string) (ports.PublishOutcome, error) {
	ok, err := e.publisher.VerifySession(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrAuthExpired) {
			return ports.PublishOutcome{}, err
		}
		return ports.PublishOutcome{}, fmt.Errorf("verify session: %w", err)
	}
	if !ok {
		return ports.PublishOutcome{}, fmt.Errorf("%w: authenticated-state marker absent", domain.ErrAuthExpired)
	}

	var lastErr error
	for attempt := 1; attempt <= e.retries+1; attempt++ {
		if attempt > 1 {
			e.sleep(e.retryDelay)
		}

		outcome, err := e.publisher.Publish(ctx, text)
		if err == nil {
			if e.logger != nil {
				e.logger.Info("publish confirmed", "attempt", attempt, "url", outcome.URL)
			}
			return outcome, nil
		}
		if errors.Is(err, domain.ErrAuthExpired) {
			return ports.PublishOutcome{}, err
		}

		lastErr = err
		if e.logger != nil {
			e.logger.Warn("publish attempt failed", "attempt", attempt, "error", err)
		}
	}

	return ports.PublishOutcome{}, fmt.Errorf("publish exhausted after %d attempts: %w", e.retries+1, lastErr)
}
