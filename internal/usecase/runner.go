package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"SocialPoster/internal/domain"
	"SocialPoster/internal/ports"
)

// missedGraceSlack is added to the grace window before the reconciler
// demotes a record, so reconciliation never races the publish check.
const missedGraceSlack = time.Hour

// RunnerDeps wires all collaborators into the orchestrator.
type RunnerDeps struct {
	Posts     ports.PostStore
	Articles  ports.ArticleStore
	Selector  *Selector
	Generator *Generator
	Planner   *Planner
	Executor  *Executor
	Alerter   ports.Alerter
	Logger    *slog.Logger
}

// Runner drives one invocation of the publication state machine:
// reconcile missed schedules, publish due work, prepare the next item.
// All coordination state lives in the store; the process keeps nothing.
type Runner struct {
	posts     ports.PostStore
	articles  ports.ArticleStore
	selector  *Selector
	generator *Generator
	planner   *Planner
	executor  *Executor
	alerter   ports.Alerter
	logger    *slog.Logger

	buffer           time.Duration
	grace            time.Duration
	recentTopicCount int

	now func() time.Time
}

// NewRunner constructs the orchestrator. buffer allows slightly early firing;
// grace bounds how late a publish may still happen.
func NewRunner(deps RunnerDeps, buffer, grace time.Duration, recentTopicCount int) *Runner {
	return &Runner{
		posts:            deps.Posts,
		articles:         deps.Articles,
		selector:         deps.Selector,
		generator:        deps.Generator,
		planner:          deps.Planner,
		executor:         deps.Executor,
		alerter:          deps.Alerter,
		logger:           deps.Logger,
		buffer:           buffer,
		grace:            grace,
		recentTopicCount: recentTopicCount,
		now:              time.Now,
	}
}

// Run executes one pass. Externally-facing failures are absorbed here and
// turned into persisted records plus log lines; only store failures escape.
func (r *Runner) Run(ctx context.Context) error {
	now := r.now()

	if err := r.reconcileMissed(ctx, now); err != nil {
		return err
	}

	published := false
	due, err := r.posts.EarliestReady(ctx, now, r.buffer, r.grace)
	switch {
	case err == nil:
		published = r.publishPost(ctx, due)
	case errors.Is(err, domain.ErrNotFound):
		r.debug("no post due", "now", now)
	default:
		return fmt.Errorf("query due post: %w", err)
	}

	prepare := published
	if !prepare {
		anyReady, err := r.posts.AnyReady(ctx, r.now(), r.grace)
		if err != nil {
			return fmt.Errorf("check pending schedule: %w", err)
		}
		prepare = !anyReady
	}
	if !prepare {
		r.debug("unexpired scheduled post already pending, nothing to prepare")
		return nil
	}

	return r.prepareNext(ctx, true)
}

// reconcileMissed demotes ready_to_post records whose window has definitively
// closed. It runs before any publish attempt so a stale item can never slip
// through. Re-running it on already-demoted records is a no-op because the
// sweep only sees ready_to_post.
func (r *Runner) reconcileMissed(ctx context.Context, now time.Time) error {
	cutoff := now.Add(-(r.grace + missedGraceSlack))

	stale, err := r.posts.StaleReady(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("sweep stale posts: %w", err)
	}

	for _, post := range stale {
		message := fmt.Sprintf("missed posting window: scheduled %s, grace of %s expired",
			post.ScheduledTime.Format(time.RFC3339), r.grace)
		err := r.posts.Transition(ctx, post.ID, domain.StatusReadyToPost, domain.StatusMissedSchedule,
			domain.ScheduledPost{ErrorMessage: message})
		if errors.Is(err, domain.ErrConflict) {
			continue
		}
		if err != nil {
			return fmt.Errorf("demote missed post %s: %w", post.ID, err)
		}
		r.info("post missed its window", "id", post.ID, "scheduled", post.ScheduledTime)
	}
	return nil
}

// publishPost runs the executor against one due record and persists the
// outcome. Returns true when the platform confirmed the publication.
func (r *Runner) publishPost(ctx context.Context, post domain.ScheduledPost) bool {
	r.info("publishing due post", "id", post.ID, "topic", post.Topic, "scheduled", post.ScheduledTime)

	outcome, err := r.executor.Publish(ctx, post.Body)
	publishedAt := r.now()

	if errors.Is(err, domain.ErrAuthExpired) {
		// The record stays ready_to_post: a fresh session can still publish
		// it within the window. The operator has to act, not the machine.
		r.error("authentication expired, publish skipped", "id", post.ID, "error", err)
		r.alert(ctx, fmt.Sprintf("socialposter: authentication expired, post %s left scheduled", post.ID))
		return false
	}

	if err != nil {
		r.error("publish failed", "id", post.ID, "error", err)
		tErr := r.posts.Transition(ctx, post.ID, domain.StatusReadyToPost, domain.StatusFailedToPost,
			domain.ScheduledPost{ErrorMessage: err.Error(), PublishedTime: &publishedAt})
		if tErr != nil {
			r.error("record publish failure", "id", post.ID, "error", tErr)
		}
		r.writeBackArticle(ctx, post, domain.ArticleFailed, err.Error())
		return false
	}

	url := outcome.URL
	if url == "" {
		url = domain.URLUnknown
	}
	tErr := r.posts.Transition(ctx, post.ID, domain.StatusReadyToPost, domain.StatusPosted,
		domain.ScheduledPost{PublishedURL: url, PublishedTime: &publishedAt})
	if errors.Is(tErr, domain.ErrConflict) {
		r.error("post already transitioned by a concurrent run", "id", post.ID)
		return true
	}
	if tErr != nil {
		r.error("record publish success", "id", post.ID, "error", tErr)
	}
	r.writeBackArticle(ctx, post, domain.ArticlePosted, "")
	r.info("post published", "id", post.ID, "url", url)
	return true
}

// prepareNext drafts and schedules the next record. allowImmediate guards
// the bootstrap special case so at most one immediate publication happens
// per invocation.
func (r *Runner) prepareNext(ctx context.Context, allowImmediate bool) error {
	recent, err := r.posts.RecentTopics(ctx, r.recentTopicCount)
	if err != nil {
		return fmt.Errorf("load recent topics: %w", err)
	}

	selection, err := r.selector.SelectNext(ctx, recent)
	if err != nil {
		// Selection failures are recorded against the article/topic attempt
		// inside the selector; the run itself completes normally.
		r.info("nothing to prepare", "reason", err)
		return nil
	}

	anchor, err := r.lastPostedAnchor(ctx)
	if err != nil {
		return err
	}
	slot := r.planner.NextSlot(anchor)

	record := domain.ScheduledPost{
		ID:              uuid.NewString(),
		Topic:           selection.Topic,
		Status:          domain.StatusGenerationInProgress,
		ScheduledTime:   slot.At,
		SourceReference: selection.SourceRef,
		CreatedAt:       r.now(),
	}
	if err := r.posts.Insert(ctx, record); err != nil {
		return fmt.Errorf("insert scheduled post: %w", err)
	}
	r.info("drafting next post", "id", record.ID, "topic", selection.Topic, "scheduled", slot.At, "immediate", slot.Immediate)

	draft, err := r.generator.Generate(ctx, selection.Topic, selection.Context)
	if err != nil {
		r.error("generation exhausted", "id", record.ID, "error", err)
		tErr := r.posts.Transition(ctx, record.ID, domain.StatusGenerationInProgress, domain.StatusGenerationFailed,
			domain.ScheduledPost{ErrorMessage: err.Error()})
		if tErr != nil {
			r.error("record generation failure", "id", record.ID, "error", tErr)
		}
		r.writeBackArticle(ctx, record, domain.ArticleFailed, err.Error())
		r.alert(ctx, fmt.Sprintf("socialposter: generation failed for %q", selection.Topic))
		return nil
	}

	if draft.Topic != "" {
		record.Topic = draft.Topic
	}
	record.Body = draft.Body
	record.Metadata = domain.GenerationMetadata{
		RawReply:      draft.RawReply,
		AlignmentNote: draft.AlignmentNote,
		ReportedTopic: draft.Topic,
		Attempts:      draft.Attempts,
	}

	err = r.posts.Transition(ctx, record.ID, domain.StatusGenerationInProgress, domain.StatusReadyToPost,
		domain.ScheduledPost{Topic: record.Topic, Body: record.Body, Metadata: record.Metadata})
	if err != nil {
		return fmt.Errorf("promote post %s to ready: %w", record.ID, err)
	}
	record.Status = domain.StatusReadyToPost
	r.writeBackArticle(ctx, record, domain.ArticleProcessed, "")
	r.info("post scheduled", "id", record.ID, "topic", record.Topic, "scheduled", slot.At)

	if slot.Immediate && allowImmediate {
		// Bootstrap-now: publish within this invocation, then prepare the
		// item after this one so exactly one record is pending on exit.
		r.publishPost(ctx, record)
		return r.prepareNext(ctx, false)
	}
	return nil
}

func (r *Runner) lastPostedAnchor(ctx context.Context) (*time.Time, error) {
	at, err := r.posts.LastPostedAt(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query last posted: %w", err)
	}
	return &at, nil
}

// writeBackArticle mirrors a post outcome onto the article that sourced it.
// SourceReference carries the article URL in article mode and the search
// query in discovery mode; only the former triggers a writeback.
func (r *Runner) writeBackArticle(ctx context.Context, post domain.ScheduledPost, status domain.ArticleStatus, note string) {
	if r.articles == nil || !strings.HasPrefix(post.SourceReference, "http") {
		return
	}
	if err := r.articles.SetStatus(ctx, post.SourceReference, status, note); err != nil {
		r.error("article status writeback", "url", post.SourceReference, "error", err)
	}
}

func (r *Runner) alert(ctx context.Context, message string) {
	if r.alerter == nil {
		return
	}
	if err := r.alerter.Alert(ctx, message); err != nil {
		r.error("operator alert", "error", err)
	}
}

func (r *Runner) debug(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}

func (r *Runner) info(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Info(msg, args...)
	}
}

func (r *Runner) error(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Error(msg, args...)
	}
}
