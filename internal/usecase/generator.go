package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"SocialPoster/internal/config"
	"SocialPoster/internal/ports"
)

// Reply labels the model must emit, in this order. Any deviation is a parse
// failure that consumes a retry; partial replies are never accepted.
const (
	alignmentLabel = "ALIGNMENT:"
	topicLabel     = "TOPIC:"
	postLabel      = "POST:"
)

const structuredReplyInstructions = `Reply with exactly three labeled sections in this order:
ALIGNMENT: one sentence on how the post fits the persona.
TOPIC: a short restatement of the topic.
POST: the post text itself, nothing after it.
Never ask questions. Never mention failures or limitations.`

// Draft is a validated generation result plus its audit trail.
type Draft struct {
	Body          string
	Topic         string
	AlignmentNote string
	RawReply      string
	Attempts      int
}

// Generator produces post drafts through the text model, re-validating the
// persona contract (no questions, no error leakage, minimum substance)
// outside the model.
type Generator struct {
	model         ports.TextModel
	persona       string
	attempts      int
	retryDelay    time.Duration
	minBodyLength int
	contextBudget int
	logger        *slog.Logger

	sleep func(time.Duration)
}

// NewGenerator builds a generator around a text model and persona text.
func NewGenerator(model ports.TextModel, persona string, cfg config.GenerationConfig, logger *slog.Logger) *Generator {
	return &Generator{
		model:         model,
		persona:       persona,
		attempts:      cfg.Attempts,
		retryDelay:    cfg.RetryDelay.Std(),
		minBodyLength: cfg.MinBodyLength,
		contextBudget: cfg.ContextBudget,
		logger:        logger,
		sleep:         time.Sleep,
	}
}

// Generate issues up to the configured number of model calls and returns the
// first draft that parses and passes validation.
func (g *Generator) Generate(ctx context.Context, topic, contextText string) (Draft, error) {
	user := g.buildPrompt(topic, contextText)
	system := g.persona + "\n\n" + structuredReplyInstructions

	var lastErr error
	for attempt := 1; attempt <= g.attempts; attempt++ {
		if attempt > 1 {
			g.sleep(g.retryDelay)
		}

		raw, err := g.model.Complete(ctx, system, user)
		if err != nil {
			lastErr = fmt.Errorf("model call: %w", err)
			g.warn("generation attempt failed", attempt, lastErr)
			continue
		}

		draft, err := parseReply(raw)
		if err != nil {
			lastErr = fmt.Errorf("parse reply: %w", err)
			g.warn("generation attempt failed", attempt, lastErr)
			continue
		}

		if err := g.validate(draft.Body); err != nil {
			lastErr = fmt.Errorf("validate body: %w", err)
			g.warn("generation attempt failed", attempt, lastErr)
			continue
		}

		draft.Attempts = attempt
		return draft, nil
	}

	return Draft{}, fmt.Errorf("generation exhausted after %d attempts: %w", g.attempts, lastErr)
}

func (g *Generator) buildPrompt(topic, contextText string) string {
	if g.contextBudget > 0 && len(contextText) > g.contextBudget {
		contextText = contextText[:g.contextBudget]
	}

	var b strings.Builder
	b.WriteString("Topic: ")
	b.WriteString(topic)
	if contextText != "" {
		b.WriteString("\n\nBackground material:\n")
		b.WriteString(contextText)
	}
	return b.String()
}

// parseReply extracts the three labeled sections, requiring them in fixed
// order.
func parseReply(raw string) (Draft, error) {
	upper := strings.ToUpper(raw)

	alignIdx := strings.Index(upper, alignmentLabel)
	topicIdx := strings.Index(upper, topicLabel)
	postIdx := strings.Index(upper, postLabel)

	if alignIdx < 0 || topicIdx < 0 || postIdx < 0 {
		return Draft{}, fmt.Errorf("missing labeled section")
	}
	if !(alignIdx < topicIdx && topicIdx < postIdx) {
		return Draft{}, fmt.Errorf("sections out of order")
	}

	alignment := strings.TrimSpace(raw[alignIdx+len(alignmentLabel) : topicIdx])
	topic := strings.TrimSpace(raw[topicIdx+len(topicLabel) : postIdx])
	body := strings.TrimSpace(raw[postIdx+len(postLabel):])

	if topic == "" || body == "" {
		return Draft{}, fmt.Errorf("empty section")
	}

	return Draft{
		Body:          body,
		Topic:         topic,
		AlignmentNote: alignment,
		RawReply:      raw,
	}, nil
}

// validate enforces the persona contract on a produced body.
func (g *Generator) validate(body string) error {
	if len(body) < g.minBodyLength {
		return fmt.Errorf("body too short (%d < %d)", len(body), g.minBodyLength)
	}
	if strings.Contains(body, "?") {
		return fmt.Errorf("body contains a question")
	}
	if containsErrorToken(body) {
		return fmt.Errorf("body leaks an error token")
	}
	return nil
}

func containsErrorToken(body string) bool {
	upper := strings.ToUpper(body)
	return strings.Contains(upper, "[ERROR]") ||
		strings.HasPrefix(upper, "ERROR:") ||
		strings.Contains(upper, "I CANNOT") ||
		strings.Contains(upper, "I'M SORRY")
}

func (g *Generator) warn(msg string, attempt int, err error) {
	if g.logger != nil {
		g.logger.Warn(msg, "attempt", attempt, "error", err)
	}
}
