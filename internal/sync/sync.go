package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/go-github/v57/github"
	"github.com/sirupsen/logrus"
	"github.com/wesm/issue-desk/internal/api"
	"github.com/wesm/issue-desk/internal/auth"
	"github.com/wesm/issue-desk/internal/cache"
	"github.com/wesm/issue-desk/internal/models"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrInvalidRepository is returned for repository strings not shaped like "owner/name"
	ErrInvalidRepository = errors.New("invalid repository")

	// ErrEmptyComment is returned when adding or editing a comment without a body
	ErrEmptyComment = errors.New("comment body is empty")

	// ErrEmptyTitle is returned when creating an issue without a title
	ErrEmptyTitle = errors.New("issue title is empty")

	// ErrRefreshAfterMutation means GitHub applied a comment change but the issue
	// could not be re-read afterwards. The change is not undone.
	ErrRefreshAfterMutation = errors.New("comment saved on GitHub but refreshing the issue failed")
)

// DefaultRetryDelay is the first pause before refreshing an issue again
const DefaultRetryDelay = 500 * time.Millisecond

// IssueSource is the part of the GitHub API the syncer needs
type IssueSource interface {
	ListIssues(ctx context.Context, owner, name string) ([]*github.Issue, error)
	GetIssue(ctx context.Context, owner, name string, number int) (*github.Issue, error)
	GetIssueComments(ctx context.Context, owner, name string, issueNumber int) ([]*github.IssueComment, error)
	CreateComment(ctx context.Context, owner, name string, issueNumber int, body string) (*github.IssueComment, error)
	EditComment(ctx context.Context, owner, name string, commentID int64, body string) (*github.IssueComment, error)
	DeleteComment(ctx context.Context, owner, name string, commentID int64) error
	CreateIssue(ctx context.Context, owner, name, title, body string, labels []string) (*github.Issue, error)
}

// Syncer keeps the issue cache consistent with GitHub
type Syncer struct {
	store  *cache.Store
	source IssueSource
	tokens auth.TokenProvider

	// Default number of workers for parallel comment fetching
	workers int
	maxAge  time.Duration
	now     func() time.Time

	refreshAttempts int
	retryDelay      time.Duration
	maxRetryDelay   time.Duration
}

// New creates a new syncer. tokens may be nil when source handles authentication itself.
func New(store *cache.Store, source IssueSource, tokens auth.TokenProvider) *Syncer {
	return &Syncer{
		store:           store,
		source:          source,
		tokens:          tokens,
		workers:         5,
		maxAge:          cache.DefaultMaxAge,
		now:             time.Now,
		refreshAttempts: 3,
		retryDelay:      DefaultRetryDelay,
		maxRetryDelay:   5 * time.Second,
	}
}

// SetWorkers sets the number of parallel workers
func (s *Syncer) SetWorkers(workers int) {
	if workers < 1 {
		workers = 1
	}
	if workers > 10 {
		workers = 10 // Cap at 10 to avoid overwhelming GitHub API
	}
	s.workers = workers
}

// SetMaxAge sets how long a full refresh is served from the cache
func (s *Syncer) SetMaxAge(maxAge time.Duration) {
	if maxAge <= 0 {
		maxAge = cache.DefaultMaxAge
	}
	s.maxAge = maxAge
}

// SetRetryPolicy configures retries of the refresh that follows a comment change
func (s *Syncer) SetRetryPolicy(attempts int, delay time.Duration) {
	if attempts < 1 {
		attempts = 1
	}
	s.refreshAttempts = attempts
	s.retryDelay = delay
}

// FetchIssues returns the issues of a repository, serving them from the cache
// while fresh unless forceRefresh is set
func (s *Syncer) FetchIssues(ctx context.Context, owner, name string, forceRefresh bool) ([]models.Issue, error) {
	key := cache.Key(owner, name)

	if !forceRefresh {
		if entry, ok := s.store.Get(key); ok && cache.IsFresh(&entry, s.now(), s.maxAge) {
			logrus.WithField("repo", key).Debug("Serving issues from cache")
			return entry.Issues, nil
		}
	}

	return s.FullRefresh(ctx, owner, name)
}

// FullRefresh fetches every issue and every comment of a repository and
// replaces its cache entry. Nothing is written unless all fetches succeed.
func (s *Syncer) FullRefresh(ctx context.Context, owner, name string) ([]models.Issue, error) {
	key := cache.Key(owner, name)
	log := logrus.WithField("repo", key)

	if err := s.requireToken(ctx); err != nil {
		return nil, err
	}

	log.Debug("Fetching issues from GitHub")
	issues, err := s.source.ListIssues(ctx, owner, name)
	if err != nil {
		logRateLimit(log, err)
		return nil, fmt.Errorf("failed to get issues for %s: %w", key, err)
	}

	total := len(issues)
	log.Debugf("Found %d issues, fetching comments with %d workers", total, s.workers)

	records := make([]models.Issue, total)
	progress := newProgress(log, total)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, ghIssue := range issues {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			record := api.ConvertGitHubIssue(ghIssue)
			comments, err := s.source.GetIssueComments(gctx, owner, name, record.Number)
			if err != nil {
				return fmt.Errorf("failed to get comments for issue #%d: %w", record.Number, err)
			}
			record.Comments = api.ConvertGitHubComments(comments)
			records[i] = record

			progress.step()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logRateLimit(log, err)
		return nil, fmt.Errorf("failed to sync %s: %w", key, err)
	}

	s.store.Put(key, records, s.now())
	log.Infof("Cached %d issues", total)

	return records, nil
}

// RefreshIssue re-reads one issue and its comments and patches it into the cache
func (s *Syncer) RefreshIssue(ctx context.Context, owner, name string, number int) (models.Issue, error) {
	key := cache.Key(owner, name)

	if err := s.requireToken(ctx); err != nil {
		return models.Issue{}, err
	}

	ghIssue, err := s.source.GetIssue(ctx, owner, name, number)
	if err != nil {
		return models.Issue{}, fmt.Errorf("failed to refresh %s#%d: %w", key, number, err)
	}

	comments, err := s.source.GetIssueComments(ctx, owner, name, number)
	if err != nil {
		return models.Issue{}, fmt.Errorf("failed to get comments for %s#%d: %w", key, number, err)
	}

	record := api.ConvertGitHubIssue(ghIssue)
	record.Comments = api.ConvertGitHubComments(comments)

	s.store.UpsertIssue(key, record, s.now())
	logrus.WithFields(logrus.Fields{"repo": key, "issue": number}).Debug("Patched issue into cache")

	return record, nil
}

// ActionKind names a change to an issue comment
type ActionKind string

// Comment changes
const (
	ActionAdd    ActionKind = "add"
	ActionEdit   ActionKind = "edit"
	ActionDelete ActionKind = "delete"
)

// CommentAction is a change to apply to an issue's comments
type CommentAction struct {
	Kind      ActionKind
	CommentID int64
	Body      string
}

// AddComment returns the action that adds a comment
func AddComment(body string) CommentAction {
	return CommentAction{Kind: ActionAdd, Body: body}
}

// EditComment returns the action that replaces a comment's body
func EditComment(commentID int64, body string) CommentAction {
	return CommentAction{Kind: ActionEdit, CommentID: commentID, Body: body}
}

// DeleteComment returns the action that removes a comment
func DeleteComment(commentID int64) CommentAction {
	return CommentAction{Kind: ActionDelete, CommentID: commentID}
}

// MutateComment applies action on GitHub, then refreshes the issue so the
// cache reflects the post-change state. A failed refresh is retried with
// backoff and reported as ErrRefreshAfterMutation; GitHub keeps the change.
func (s *Syncer) MutateComment(ctx context.Context, owner, name string, number int, action CommentAction) (models.Issue, error) {
	key := cache.Key(owner, name)
	log := logrus.WithFields(logrus.Fields{"repo": key, "issue": number, "action": action.Kind})

	if (action.Kind == ActionAdd || action.Kind == ActionEdit) && strings.TrimSpace(action.Body) == "" {
		return models.Issue{}, ErrEmptyComment
	}

	if err := s.requireToken(ctx); err != nil {
		return models.Issue{}, err
	}

	var err error
	switch action.Kind {
	case ActionAdd:
		_, err = s.source.CreateComment(ctx, owner, name, number, action.Body)
	case ActionEdit:
		_, err = s.source.EditComment(ctx, owner, name, action.CommentID, action.Body)
	case ActionDelete:
		err = s.source.DeleteComment(ctx, owner, name, action.CommentID)
	default:
		return models.Issue{}, fmt.Errorf("unknown comment action %q", action.Kind)
	}
	if err != nil {
		logRateLimit(log, err)
		return models.Issue{}, fmt.Errorf("failed to %s comment on %s#%d: %w", action.Kind, key, number, err)
	}
	log.Info("Comment change applied on GitHub")

	issue, err := s.refreshWithRetry(ctx, owner, name, number)
	if err != nil {
		log.WithError(err).Error("Cache out of date after comment change")
		return models.Issue{}, fmt.Errorf("%w: %s#%d: %w", ErrRefreshAfterMutation, key, number, err)
	}

	return issue, nil
}

// CreateIssue opens an issue on GitHub and adds it to the cached list
func (s *Syncer) CreateIssue(ctx context.Context, owner, name, title, body string, labels []string) (models.Issue, error) {
	key := cache.Key(owner, name)

	if strings.TrimSpace(title) == "" {
		return models.Issue{}, ErrEmptyTitle
	}

	if err := s.requireToken(ctx); err != nil {
		return models.Issue{}, err
	}

	ghIssue, err := s.source.CreateIssue(ctx, owner, name, title, body, labels)
	if err != nil {
		return models.Issue{}, fmt.Errorf("failed to create issue in %s: %w", key, err)
	}

	record := api.ConvertGitHubIssue(ghIssue)
	s.store.UpsertIssue(key, record, s.now())
	logrus.WithFields(logrus.Fields{"repo": key, "issue": record.Number}).Info("Created issue")

	return record, nil
}

// SyncAll refreshes several repositories concurrently. A failing repository
// is reported in its result and does not stop the others.
func (s *Syncer) SyncAll(ctx context.Context, repos []string, forceRefresh bool) []models.RepoSyncResult {
	results := make([]models.RepoSyncResult, len(repos))

	var wg sync.WaitGroup
	for i, repoStr := range repos {
		wg.Add(1)
		go func() {
			defer wg.Done()

			results[i].Repository = repoStr
			owner, name, err := ParseRepositoryString(repoStr)
			if err != nil {
				results[i].Error = err.Error()
				return
			}

			issues, err := s.FetchIssues(ctx, owner, name, forceRefresh)
			if err != nil {
				logrus.WithField("repo", repoStr).WithError(err).Warn("Failed to sync repository")
				results[i].Error = err.Error()
				return
			}
			results[i].Issues = len(issues)
		}()
	}
	wg.Wait()

	return results
}

func (s *Syncer) requireToken(ctx context.Context) error {
	if s.tokens == nil {
		return nil
	}
	_, err := s.tokens.Token(ctx)
	return err
}

// refreshWithRetry re-reads an issue, backing off exponentially between
// attempts. Errors retrying cannot fix end the loop at once.
func (s *Syncer) refreshWithRetry(ctx context.Context, owner, name string, number int) (models.Issue, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.retryDelay
	policy.MaxInterval = s.maxRetryDelay
	policy.Multiplier = 2
	policy.RandomizationFactor = 0
	policy.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(s.refreshAttempts-1)), ctx)

	attempt := 0
	refresh := func() (models.Issue, error) {
		attempt++
		issue, err := s.RefreshIssue(ctx, owner, name, number)
		if err != nil && !retryable(err) {
			return models.Issue{}, backoff.Permanent(err)
		}
		return issue, err
	}
	notify := func(err error, wait time.Duration) {
		logrus.WithFields(logrus.Fields{
			"issue":   number,
			"attempt": attempt,
			"wait":    wait,
		}).WithError(err).Warn("Refresh failed, retrying")
	}

	return backoff.RetryNotifyWithData(refresh, b, notify)
}

func retryable(err error) bool {
	var rle *api.RateLimitError
	switch {
	case errors.Is(err, auth.ErrNotAuthenticated),
		errors.Is(err, api.ErrNotFound),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &rle):
		return false
	}
	return true
}

func logRateLimit(log *logrus.Entry, err error) {
	var rle *api.RateLimitError
	if errors.As(err, &rle) {
		waitTime := time.Until(rle.ResetTime).Round(time.Second)
		log.Warnf("Rate limit detected! Resets at %s (%s from now)", rle.ResetTime.Format(time.RFC3339), waitTime)
	}
}

// progress logs comment fetching at most every progressInterval
type progress struct {
	log   *logrus.Entry
	total int

	mu         sync.Mutex
	processed  int
	lastUpdate time.Time
}

const progressInterval = 5 * time.Second

func newProgress(log *logrus.Entry, total int) *progress {
	return &progress{log: log, total: total, lastUpdate: time.Now()}
}

func (p *progress) step() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.processed++
	current := p.processed

	shouldLog := current == 1 || current == p.total ||
		time.Since(p.lastUpdate) >= progressInterval
	if shouldLog {
		p.log.Debugf("Progress: %d/%d issues (%.1f%%)",
			current, p.total, float64(current)/float64(p.total)*100.0)
		p.lastUpdate = time.Now()
	}
}

// ParseRepositoryString parses a repository string in the format "owner/name"
func ParseRepositoryString(repoStr string) (string, string, error) {
	parts := strings.Split(strings.TrimSpace(repoStr), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: expected 'owner/name', got '%s'", ErrInvalidRepository, repoStr)
	}
	return parts[0], parts[1], nil
}
