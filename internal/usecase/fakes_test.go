package usecase

import (
	"context"
	"sort"
	"time"

	"SocialPoster/internal/domain"
	"SocialPoster/internal/ports"
)

// fakePostStore is an in-memory PostStore mirroring the guarded-transition
// semantics of the Postgres repository.
type fakePostStore struct {
	posts map[string]*domain.ScheduledPost
}

func newFakePostStore() *fakePostStore {
	return &fakePostStore{posts: map[string]*domain.ScheduledPost{}}
}

func (s *fakePostStore) Insert(_ context.Context, post domain.ScheduledPost) error {
	copied := post
	s.posts[post.ID] = &copied
	return nil
}

func (s *fakePostStore) Transition(_ context.Context, id string, expected, next domain.PostStatus, patch domain.ScheduledPost) error {
	post, ok := s.posts[id]
	if !ok || post.Status != expected {
		return domain.ErrConflict
	}
	post.Status = next
	if patch.Topic != "" {
		post.Topic = patch.Topic
	}
	if patch.Body != "" {
		post.Body = patch.Body
	}
	if patch.Metadata != (domain.GenerationMetadata{}) {
		post.Metadata = patch.Metadata
	}
	if patch.PublishedURL != "" {
		post.PublishedURL = patch.PublishedURL
	}
	if patch.PublishedTime != nil {
		post.PublishedTime = patch.PublishedTime
	}
	if patch.ErrorMessage != "" {
		post.ErrorMessage = patch.ErrorMessage
	}
	return nil
}

func (s *fakePostStore) EarliestReady(_ context.Context, now time.Time, buffer, grace time.Duration) (domain.ScheduledPost, error) {
	var due []*domain.ScheduledPost
	for _, post := range s.posts {
		if post.Status != domain.StatusReadyToPost {
			continue
		}
		if post.ScheduledTime.Before(now.Add(-grace)) || post.ScheduledTime.After(now.Add(buffer)) {
			continue
		}
		due = append(due, post)
	}
	if len(due) == 0 {
		return domain.ScheduledPost{}, domain.ErrNotFound
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ScheduledTime.Before(due[j].ScheduledTime) })
	return *due[0], nil
}

func (s *fakePostStore) AnyReady(_ context.Context, now time.Time, grace time.Duration) (bool, error) {
	for _, post := range s.posts {
		if post.Status == domain.StatusReadyToPost && !post.ScheduledTime.Before(now.Add(-grace)) {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakePostStore) LastPostedAt(_ context.Context) (time.Time, error) {
	var last time.Time
	found := false
	for _, post := range s.posts {
		if post.Status == domain.StatusPosted && post.PublishedTime != nil {
			if !found || post.PublishedTime.After(last) {
				last = *post.PublishedTime
				found = true
			}
		}
	}
	if !found {
		return time.Time{}, domain.ErrNotFound
	}
	return last, nil
}

func (s *fakePostStore) RecentTopics(_ context.Context, n int) ([]string, error) {
	var all []*domain.ScheduledPost
	for _, post := range s.posts {
		if post.Topic != "" {
			all = append(all, post)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	var topics []string
	for _, post := range all {
		if len(topics) == n {
			break
		}
		topics = append(topics, post.Topic)
	}
	return topics, nil
}

func (s *fakePostStore) StaleReady(_ context.Context, cutoff time.Time) ([]domain.ScheduledPost, error) {
	var stale []domain.ScheduledPost
	for _, post := range s.posts {
		if post.Status == domain.StatusReadyToPost && post.ScheduledTime.Before(cutoff) {
			stale = append(stale, *post)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].ScheduledTime.Before(stale[j].ScheduledTime) })
	return stale, nil
}

func (s *fakePostStore) byStatus(status domain.PostStatus) []domain.ScheduledPost {
	var out []domain.ScheduledPost
	for _, post := range s.posts {
		if post.Status == status {
			out = append(out, *post)
		}
	}
	return out
}

type fakeArticleStore struct {
	pending  []domain.Article
	statuses map[string]domain.ArticleStatus
	notes    map[string]string
}

func newFakeArticleStore(pending ...domain.Article) *fakeArticleStore {
	return &fakeArticleStore{
		pending:  pending,
		statuses: map[string]domain.ArticleStatus{},
		notes:    map[string]string{},
	}
}

func (s *fakeArticleStore) OldestPending(_ context.Context) (domain.Article, error) {
	for _, article := range s.pending {
		if s.statuses[article.URL] == "" || s.statuses[article.URL] == domain.ArticlePending {
			return article, nil
		}
	}
	return domain.Article{}, domain.ErrNotFound
}

func (s *fakeArticleStore) SetStatus(_ context.Context, url string, status domain.ArticleStatus, note string) error {
	s.statuses[url] = status
	s.notes[url] = note
	return nil
}

type fakeTopicStore struct {
	seeds   []domain.SearchTopic
	touched []string
}

func (s *fakeTopicStore) LeastRecentlyUsed(_ context.Context, limit int) ([]domain.SearchTopic, error) {
	if len(s.seeds) > limit {
		return s.seeds[:limit], nil
	}
	return s.seeds, nil
}

func (s *fakeTopicStore) TouchLastUsed(_ context.Context, id string, _ time.Time) error {
	s.touched = append(s.touched, id)
	return nil
}

// fakeSearch returns canned results per query, falling back to defaults.
type fakeSearch struct {
	byQuery map[string][]ports.SearchResult
	deep    []ports.SearchResult
	err     error
}

func (s *fakeSearch) Search(_ context.Context, query, depth string, _ int) ([]ports.SearchResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	if results, ok := s.byQuery[query]; ok {
		return results, nil
	}
	if depth == deepSearchDepth {
		return s.deep, nil
	}
	return nil, nil
}

type fakeFetcher struct {
	content string
	err     error
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string) (string, error) {
	return f.content, f.err
}

// fakeModel replies from a queue, one entry per Complete call.
type fakeModel struct {
	replies []string
	errs    []error
	calls   int
}

func (m *fakeModel) Complete(_ context.Context, _, _ string) (string, error) {
	i := m.calls
	m.calls++
	if i < len(m.errs) && m.errs[i] != nil {
		return "", m.errs[i]
	}
	if i < len(m.replies) {
		return m.replies[i], nil
	}
	return "", context.Canceled
}

// fakePublisher scripts VerifySession and per-attempt Publish outcomes.
type fakePublisher struct {
	sessionOK  bool
	sessionErr error
	outcomes   []ports.PublishOutcome
	errs       []error
	calls      int
}

func (p *fakePublisher) VerifySession(_ context.Context) (bool, error) {
	return p.sessionOK, p.sessionErr
}

func (p *fakePublisher) Publish(_ context.Context, _ string) (ports.PublishOutcome, error) {
	i := p.calls
	p.calls++
	if i < len(p.errs) && p.errs[i] != nil {
		return ports.PublishOutcome{}, p.errs[i]
	}
	if i < len(p.outcomes) {
		return p.outcomes[i], nil
	}
	return ports.PublishOutcome{}, context.Canceled
}

type fakeAlerter struct {
	messages []string
}

func (a *fakeAlerter) Alert(_ context.Context, message string) error {
	a.messages = append(a.messages, message)
	return nil
}
