package usecase

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SocialPoster/internal/config"
	"SocialPoster/internal/domain"
	"SocialPoster/internal/ports"
)

type runnerFixture struct {
	posts     *fakePostStore
	articles  *fakeArticleStore
	topics    *fakeTopicStore
	search    *fakeSearch
	model     *fakeModel
	publisher *fakePublisher
	alerter   *fakeAlerter
	runner    *Runner
	now       time.Time
}

func newRunnerFixture(t *testing.T, bootstrap string) *runnerFixture {
	t.Helper()

	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	f := &runnerFixture{
		posts:    newFakePostStore(),
		articles: newFakeArticleStore(),
		topics: &fakeTopicStore{seeds: []domain.SearchTopic{
			{ID: "t1", Text: "fusion"},
		}},
		search: &fakeSearch{byQuery: map[string][]ports.SearchResult{
			"fusion":                     {{Title: "Compact fusion pilot plant"}},
			"Compact fusion pilot plant": {{Content: "search excerpt"}},
		}},
		model:     &fakeModel{replies: []string{validReply, validReply, validReply}},
		publisher: &fakePublisher{sessionOK: true},
		alerter:   &fakeAlerter{},
		now:       now,
	}

	scheduleCfg := config.ScheduleConfig{
		Interval:       config.Duration(6 * time.Hour),
		Jitter:         config.Duration(30 * time.Minute),
		Buffer:         config.Duration(30 * time.Minute),
		Grace:          config.Duration(2 * time.Hour),
		Bootstrap:      bootstrap,
		BootstrapDelay: config.Duration(5 * time.Minute),
	}

	planner := NewPlanner(scheduleCfg)
	planner.now = func() time.Time { return f.now }
	planner.rand = rand.New(rand.NewSource(7))

	selector := NewSelector(f.articles, f.topics, f.search, &fakeFetcher{content: "article body"},
		config.SourcesConfig{Mode: "discovery", RecentTopicCount: 7, SelectorAttempts: 5}, nil)
	selector.now = func() time.Time { return f.now }

	generator := NewGenerator(f.model, "persona", config.GenerationConfig{
		Attempts: 3, RetryDelay: config.Duration(time.Millisecond), MinBodyLength: 40, ContextBudget: 1000,
	}, nil)
	generator.sleep = func(time.Duration) {}

	executor := NewExecutor(f.publisher, config.PublishConfig{
		Retries: 2, RetryDelay: config.Duration(time.Millisecond),
	}, nil)
	executor.sleep = func(time.Duration) {}

	f.runner = NewRunner(RunnerDeps{
		Posts:     f.posts,
		Articles:  f.articles,
		Selector:  selector,
		Generator: generator,
		Planner:   planner,
		Executor:  executor,
		Alerter:   f.alerter,
	}, scheduleCfg.Buffer.Std(), scheduleCfg.Grace.Std(), 7)
	f.runner.now = func() time.Time { return f.now }

	return f
}

func TestRunnerBootstrapImmediatePublishesAndPreparesNext(t *testing.T) {
	t.Parallel()

	f := newRunnerFixture(t, "immediate")
	f.publisher.outcomes = []ports.PublishOutcome{{Confirmed: true, URL: "https://x.com/u/status/9"}}

	require.NoError(t, f.runner.Run(context.Background()))

	posted := f.posts.byStatus(domain.StatusPosted)
	require.Len(t, posted, 1)
	assert.Equal(t, "https://x.com/u/status/9", posted[0].PublishedURL)
	assert.Equal(t, f.now, posted[0].ScheduledTime, "bootstrap slot is now")
	require.NotNil(t, posted[0].PublishedTime)

	ready := f.posts.byStatus(domain.StatusReadyToPost)
	require.Len(t, ready, 1, "exactly one extra record pending after the run")
	low := f.now.Add(5*time.Hour + 30*time.Minute)
	high := f.now.Add(6*time.Hour + 30*time.Minute)
	assert.False(t, ready[0].ScheduledTime.Before(low))
	assert.False(t, ready[0].ScheduledTime.After(high))
}

func TestRunnerReconcilesMissedSchedule(t *testing.T) {
	t.Parallel()

	f := newRunnerFixture(t, "delayed")
	f.topics.seeds = nil // nothing to prepare afterwards

	stale := domain.ScheduledPost{
		ID:            "stale-1",
		Topic:         "old",
		Body:          "old body",
		Status:        domain.StatusReadyToPost,
		ScheduledTime: f.now.Add(-3*time.Hour - time.Minute),
		CreatedAt:     f.now.Add(-10 * time.Hour),
	}
	require.NoError(t, f.posts.Insert(context.Background(), stale))

	require.NoError(t, f.runner.Run(context.Background()))

	missed := f.posts.byStatus(domain.StatusMissedSchedule)
	require.Len(t, missed, 1)
	assert.NotEmpty(t, missed[0].ErrorMessage)
	assert.Equal(t, 0, f.publisher.calls, "a missed record is never published")

	// Re-running is a no-op for already-demoted records.
	require.NoError(t, f.runner.Run(context.Background()))
	assert.Len(t, f.posts.byStatus(domain.StatusMissedSchedule), 1)
}

func TestRunnerAuthExpiredLeavesRecordScheduled(t *testing.T) {
	t.Parallel()

	f := newRunnerFixture(t, "delayed")
	f.publisher.sessionOK = false

	due := domain.ScheduledPost{
		ID:            "due-1",
		Topic:         "due",
		Body:          "due body",
		Status:        domain.StatusReadyToPost,
		ScheduledTime: f.now,
		CreatedAt:     f.now.Add(-6 * time.Hour),
	}
	require.NoError(t, f.posts.Insert(context.Background(), due))

	require.NoError(t, f.runner.Run(context.Background()))

	ready := f.posts.byStatus(domain.StatusReadyToPost)
	require.Len(t, ready, 1, "record stays scheduled for a later session")
	assert.Empty(t, ready[0].ErrorMessage)
	assert.NotEmpty(t, f.alerter.messages, "operator is told to re-authenticate")
	assert.Empty(t, f.posts.byStatus(domain.StatusFailedToPost))
}

func TestRunnerPublishFailureRecordsFailedToPost(t *testing.T) {
	t.Parallel()

	f := newRunnerFixture(t, "delayed")
	f.topics.seeds = nil
	boom := assert.AnError
	f.publisher.errs = []error{boom, boom, boom}

	due := domain.ScheduledPost{
		ID:            "due-2",
		Topic:         "due",
		Body:          "due body",
		Status:        domain.StatusReadyToPost,
		ScheduledTime: f.now,
		CreatedAt:     f.now.Add(-6 * time.Hour),
	}
	require.NoError(t, f.posts.Insert(context.Background(), due))

	require.NoError(t, f.runner.Run(context.Background()))

	failed := f.posts.byStatus(domain.StatusFailedToPost)
	require.Len(t, failed, 1)
	assert.NotEmpty(t, failed[0].ErrorMessage)
	require.NotNil(t, failed[0].PublishedTime, "resolution time is stamped on failure too")
}

func TestRunnerDoesNotDoubleSchedule(t *testing.T) {
	t.Parallel()

	f := newRunnerFixture(t, "delayed")

	pending := domain.ScheduledPost{
		ID:            "future-1",
		Topic:         "future",
		Body:          "future body",
		Status:        domain.StatusReadyToPost,
		ScheduledTime: f.now.Add(2 * time.Hour), // outside the early-fire buffer
		CreatedAt:     f.now.Add(-4 * time.Hour),
	}
	require.NoError(t, f.posts.Insert(context.Background(), pending))

	require.NoError(t, f.runner.Run(context.Background()))

	assert.Len(t, f.posts.byStatus(domain.StatusReadyToPost), 1, "no second ready record while one is pending")
	assert.Equal(t, 0, f.publisher.calls)
	assert.Equal(t, 0, f.model.calls)
}

func TestRunnerPublishesDueRecordAndPreparesNext(t *testing.T) {
	t.Parallel()

	f := newRunnerFixture(t, "delayed")
	f.publisher.outcomes = []ports.PublishOutcome{{Confirmed: true, URL: ""}}

	due := domain.ScheduledPost{
		ID:            "due-3",
		Topic:         "due",
		Body:          "due body",
		Status:        domain.StatusReadyToPost,
		ScheduledTime: f.now.Add(10 * time.Minute), // early fire within buffer
		CreatedAt:     f.now.Add(-6 * time.Hour),
	}
	require.NoError(t, f.posts.Insert(context.Background(), due))

	require.NoError(t, f.runner.Run(context.Background()))

	posted := f.posts.byStatus(domain.StatusPosted)
	require.Len(t, posted, 1)
	assert.Equal(t, domain.URLUnknown, posted[0].PublishedURL, "missing permalink falls back to the sentinel")

	ready := f.posts.byStatus(domain.StatusReadyToPost)
	require.Len(t, ready, 1, "a fresh record is prepared after publishing")
	assert.NotEmpty(t, ready[0].Body)
	assert.Equal(t, validReply, ready[0].Metadata.RawReply)
}

func TestRunnerGenerationExhaustionRecordsFailure(t *testing.T) {
	t.Parallel()

	f := newRunnerFixture(t, "delayed")
	short := "ALIGNMENT: a\nTOPIC: b\nPOST: nope."
	f.model.replies = []string{short, short, short}

	require.NoError(t, f.runner.Run(context.Background()))

	failed := f.posts.byStatus(domain.StatusGenerationFailed)
	require.Len(t, failed, 1)
	assert.NotEmpty(t, failed[0].ErrorMessage)
	assert.Empty(t, f.posts.byStatus(domain.StatusReadyToPost))
	assert.NotEmpty(t, f.alerter.messages)
}

func TestRunnerArticleWritebackOnPublish(t *testing.T) {
	t.Parallel()

	f := newRunnerFixture(t, "delayed")
	f.topics.seeds = nil
	f.publisher.outcomes = []ports.PublishOutcome{{Confirmed: true, URL: "https://x.com/u/status/5"}}

	due := domain.ScheduledPost{
		ID:              "due-4",
		Topic:           "from article",
		Body:            "article-born body",
		Status:          domain.StatusReadyToPost,
		ScheduledTime:   f.now,
		SourceReference: "https://example.org/source",
		CreatedAt:       f.now.Add(-6 * time.Hour),
	}
	require.NoError(t, f.posts.Insert(context.Background(), due))

	require.NoError(t, f.runner.Run(context.Background()))

	assert.Equal(t, domain.ArticlePosted, f.articles.statuses["https://example.org/source"])
}
