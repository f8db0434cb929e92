// Package app wires the cache, the syncer and local storage together and
// exposes the operations the desktop UI calls.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/sirupsen/logrus"
	"github.com/wesm/issue-desk/config"
	"github.com/wesm/issue-desk/internal/api"
	"github.com/wesm/issue-desk/internal/auth"
	"github.com/wesm/issue-desk/internal/cache"
	"github.com/wesm/issue-desk/internal/db"
	"github.com/wesm/issue-desk/internal/models"
	"github.com/wesm/issue-desk/internal/sync"
	"golang.org/x/oauth2"
)

// Viewer identifies the account a token belongs to
type Viewer interface {
	Viewer(ctx context.Context) (*models.User, *api.RateLimit, error)
}

// GitHub is the REST surface the backend calls
type GitHub interface {
	sync.IssueSource
	ListUserRepos(ctx context.Context) ([]*github.Repository, error)
}

// ViewerFactory builds a Viewer authenticated by ts
type ViewerFactory func(ts oauth2.TokenSource) Viewer

func graphQLViewer(ts oauth2.TokenSource) Viewer {
	return api.NewGraphQLClient(ts)
}

// App is the composition root of the backend
type App struct {
	cfg    *config.Config
	db     *db.DB
	store  *cache.Store
	syncer *sync.Syncer
	gh     GitHub
	tokens auth.TokenProvider

	viewerFor ViewerFactory
	viewer    Viewer
	now       func() time.Time
}

// New creates the application backed by the GitHub API
func New(ctx context.Context, cfg *config.Config, database *db.DB) (*App, error) {
	tokens := tokenChain(cfg, database)
	source := api.NewGitHubClient(auth.TokenSource(ctx, tokens))
	return build(ctx, cfg, database, tokens, source, graphQLViewer)
}

// tokenChain prefers the token saved by Login over the configured one, so
// logging in replaces an expired configuration token.
func tokenChain(cfg *config.Config, database *db.DB) auth.TokenProvider {
	return auth.Chain{
		auth.StoredToken{Store: database},
		auth.StaticToken(cfg.GitHubToken),
	}
}

func build(ctx context.Context, cfg *config.Config, database *db.DB, tokens auth.TokenProvider, source GitHub, viewerFor ViewerFactory) (*App, error) {
	store := cache.NewStore()

	syncer := sync.New(store, source, tokens)
	syncer.SetWorkers(cfg.Workers)
	syncer.SetMaxAge(cfg.CacheMaxAge)
	syncer.SetRetryPolicy(cfg.RefreshRetries, sync.DefaultRetryDelay)

	a := &App{
		cfg:       cfg,
		db:        database,
		store:     store,
		syncer:    syncer,
		gh:        source,
		tokens:    tokens,
		viewerFor: viewerFor,
		viewer:    viewerFor(auth.TokenSource(ctx, tokens)),
		now:       time.Now,
	}

	if err := a.seedPinned(); err != nil {
		return nil, err
	}

	return a, nil
}

// seedPinned pins the configured repositories on first run
func (a *App) seedPinned() error {
	pinned, err := a.db.GetPinnedRepos()
	if err != nil {
		return err
	}
	if len(pinned) > 0 || len(a.cfg.Repositories) == 0 {
		return nil
	}

	var repos []string
	for _, repoStr := range a.cfg.Repositories {
		if _, _, err := sync.ParseRepositoryString(repoStr); err != nil {
			logrus.WithField("repo", repoStr).Warn("Skipping invalid repository in configuration")
			continue
		}
		repos = append(repos, strings.TrimSpace(repoStr))
	}

	logrus.Debugf("Pinning %d configured repositories", len(repos))
	return a.db.SavePinnedRepos(dedupeRepos(repos))
}

// FetchIssues returns a repository's issues, from the cache while it is fresh
func (a *App) FetchIssues(ctx context.Context, owner, repo string, forceRefresh bool) ([]models.Issue, error) {
	return a.syncer.FetchIssues(ctx, owner, repo, forceRefresh)
}

// GetCachedIssue returns one cached issue, or nil when it is not cached
func (a *App) GetCachedIssue(owner, repo string, number int) *models.Issue {
	issue, ok := a.store.GetIssue(cache.Key(owner, repo), number)
	if !ok {
		return nil
	}
	return &issue
}

// CheckCacheStatus reports whether a repository is cached and since when
func (a *App) CheckCacheStatus(owner, repo string) models.CacheStatus {
	return a.store.Status(cache.Key(owner, repo))
}

// AddComment comments on an issue and returns the refreshed issue
func (a *App) AddComment(ctx context.Context, owner, repo string, number int, body string) (models.Issue, error) {
	return a.syncer.MutateComment(ctx, owner, repo, number, sync.AddComment(body))
}

// EditComment replaces a comment's body and returns the refreshed issue
func (a *App) EditComment(ctx context.Context, owner, repo string, number int, commentID int64, body string) (models.Issue, error) {
	return a.syncer.MutateComment(ctx, owner, repo, number, sync.EditComment(commentID, body))
}

// DeleteComment removes a comment and returns the refreshed issue
func (a *App) DeleteComment(ctx context.Context, owner, repo string, number int, commentID int64) (models.Issue, error) {
	return a.syncer.MutateComment(ctx, owner, repo, number, sync.DeleteComment(commentID))
}

// CreateIssue opens an issue and adds it to the cache
func (a *App) CreateIssue(ctx context.Context, owner, repo, title, body string, labels []string) (models.Issue, error) {
	return a.syncer.CreateIssue(ctx, owner, repo, title, body, labels)
}

// ListUserRepos lists the repositories the user can pin
func (a *App) ListUserRepos(ctx context.Context) ([]models.Repository, error) {
	if _, err := a.tokens.Token(ctx); err != nil {
		return nil, err
	}

	repos, err := a.gh.ListUserRepos(ctx)
	if err != nil {
		return nil, err
	}
	return api.ConvertGitHubRepositories(repos), nil
}

// GetPinnedRepos returns the pinned repositories in display order
func (a *App) GetPinnedRepos() ([]string, error) {
	return a.db.GetPinnedRepos()
}

// SavePinnedRepos replaces the pinned repositories. Every entry must be
// "owner/name"; repeated entries keep their first position.
func (a *App) SavePinnedRepos(repos []string) ([]string, error) {
	cleaned := make([]string, 0, len(repos))
	for _, repoStr := range repos {
		if _, _, err := sync.ParseRepositoryString(repoStr); err != nil {
			return nil, err
		}
		cleaned = append(cleaned, strings.TrimSpace(repoStr))
	}
	cleaned = dedupeRepos(cleaned)

	if err := a.db.SavePinnedRepos(cleaned); err != nil {
		return nil, err
	}
	return cleaned, nil
}

// PinRepo appends a repository to the pinned list if it is not there yet
func (a *App) PinRepo(repoStr string) ([]string, error) {
	pinned, err := a.db.GetPinnedRepos()
	if err != nil {
		return nil, err
	}
	return a.SavePinnedRepos(append(pinned, repoStr))
}

// UnpinRepo removes a repository from the pinned list
func (a *App) UnpinRepo(repoStr string) ([]string, error) {
	pinned, err := a.db.GetPinnedRepos()
	if err != nil {
		return nil, err
	}

	repoStr = strings.TrimSpace(repoStr)
	kept := make([]string, 0, len(pinned))
	for _, p := range pinned {
		if !strings.EqualFold(p, repoStr) {
			kept = append(kept, p)
		}
	}
	return a.SavePinnedRepos(kept)
}

// SyncPinned refreshes every pinned repository
func (a *App) SyncPinned(ctx context.Context, forceRefresh bool) ([]models.RepoSyncResult, error) {
	pinned, err := a.db.GetPinnedRepos()
	if err != nil {
		return nil, err
	}

	start := a.now()
	results := a.syncer.SyncAll(ctx, pinned, forceRefresh)

	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}
	logrus.WithFields(logrus.Fields{
		"repositories": len(results),
		"failed":       failed,
	}).Infof("Sync completed in %s", time.Since(start).Round(time.Millisecond))

	return results, nil
}

// AddRecent records that the user opened an item
func (a *App) AddRecent(id, name string) ([]models.RecentItem, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("recent item id is empty")
	}
	if err := a.db.AddRecent(models.RecentItem{ID: id, Name: name, ViewedAt: a.now()}); err != nil {
		return nil, err
	}
	return a.db.Recents()
}

// Recents returns the recently opened items, newest first
func (a *App) Recents() ([]models.RecentItem, error) {
	return a.db.Recents()
}

// ClearRecents forgets the recently opened items
func (a *App) ClearRecents() error {
	return a.db.ClearRecents()
}

// LoadSettings returns the user's settings
func (a *App) LoadSettings() (models.Settings, error) {
	return a.db.LoadSettings()
}

// SaveSettings stores the user's settings
func (a *App) SaveSettings(settings models.Settings) error {
	return a.db.SaveSettings(settings)
}

// Login verifies token against GitHub and stores it with its account
func (a *App) Login(ctx context.Context, token string) (*models.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: token is empty", auth.ErrNotAuthenticated)
	}

	viewer := a.viewerFor(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	user, _, err := viewer.Viewer(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to verify token: %w", err)
	}

	if err := a.db.SaveAuthState(&models.AuthState{Token: token, User: user}); err != nil {
		return nil, err
	}

	logrus.WithField("user", user.Login).Info("Logged in")
	return user, nil
}

// Logout forgets the stored token
func (a *App) Logout() error {
	return a.db.ClearAuthState()
}

// CheckAuth reports whether the current token works
func (a *App) CheckAuth(ctx context.Context) (models.AuthStatus, error) {
	if _, err := a.tokens.Token(ctx); err != nil {
		if errors.Is(err, auth.ErrNotAuthenticated) {
			return models.AuthStatus{}, nil
		}
		return models.AuthStatus{}, err
	}

	user, _, err := a.viewer.Viewer(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return models.AuthStatus{}, ctx.Err()
		}
		logrus.WithError(err).Warn("Token was rejected")
		return models.AuthStatus{}, nil
	}

	return models.AuthStatus{Authenticated: true, User: user}, nil
}

// Username returns the login of the authenticated account
func (a *App) Username(ctx context.Context) (string, error) {
	state, err := a.db.GetAuthState()
	if err != nil {
		return "", err
	}
	if state != nil && state.User != nil && state.User.Login != "" {
		return state.User.Login, nil
	}

	status, err := a.CheckAuth(ctx)
	if err != nil {
		return "", err
	}
	if !status.Authenticated {
		return "", auth.ErrNotAuthenticated
	}
	return status.User.Login, nil
}

func dedupeRepos(repos []string) []string {
	seen := make(map[string]bool, len(repos))
	out := make([]string, 0, len(repos))
	for _, r := range repos {
		k := strings.ToLower(r)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	return out
}
