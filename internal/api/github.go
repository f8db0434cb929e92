package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/wesm/issue-desk/internal/models"
	"golang.org/x/oauth2"
)

const perPage = 100

// ErrNotFound is returned when GitHub answers 404 for a repository, issue or comment
var ErrNotFound = errors.New("not found on GitHub")

// RateLimitError reports that GitHub refused the request until ResetTime
type RateLimitError struct {
	ResetTime time.Time
	Err       error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("GitHub rate limit exceeded, resets at %s: %v", e.ResetTime.Format(time.RFC3339), e.Err)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// GitHubClient represents a client for the GitHub API
type GitHubClient struct {
	client *github.Client
}

// NewHTTPClient returns an HTTP client that authenticates every request with
// a token read from ts at send time. ts is never cached, so a token replaced
// after startup is used from the next request on.
func NewHTTPClient(ts oauth2.TokenSource) *http.Client {
	if ts == nil {
		return &http.Client{}
	}
	return &http.Client{Transport: &oauth2.Transport{Source: ts}}
}

// NewGitHubClient creates a new GitHub API client authenticated by ts
func NewGitHubClient(ts oauth2.TokenSource) *GitHubClient {
	return WithGitHubClient(github.NewClient(NewHTTPClient(ts)))
}

// WithGitHubClient wraps an already configured go-github client
func WithGitHubClient(client *github.Client) *GitHubClient {
	return &GitHubClient{client: client}
}

// ListIssues lists every issue of a repository in all states
func (c *GitHubClient) ListIssues(ctx context.Context, owner, name string) ([]*github.Issue, error) {
	var allIssues []*github.Issue
	opts := &github.IssueListByRepoOptions{
		State: "all",
		ListOptions: github.ListOptions{
			PerPage: perPage,
		},
	}

	for {
		issues, resp, err := c.client.Issues.ListByRepo(ctx, owner, name, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list issues: %w", classify(err))
		}

		allIssues = append(allIssues, issues...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return allIssues, nil
}

// GetIssue gets a single issue by number
func (c *GitHubClient) GetIssue(ctx context.Context, owner, name string, number int) (*github.Issue, error) {
	issue, _, err := c.client.Issues.Get(ctx, owner, name, number)
	if err != nil {
		return nil, fmt.Errorf("failed to get issue #%d: %w", number, classify(err))
	}
	return issue, nil
}

// GetIssueComments gets comments for an issue
func (c *GitHubClient) GetIssueComments(ctx context.Context, owner, name string, issueNumber int) ([]*github.IssueComment, error) {
	var allComments []*github.IssueComment
	opts := &github.IssueListCommentsOptions{
		ListOptions: github.ListOptions{
			PerPage: perPage,
		},
	}

	for {
		comments, resp, err := c.client.Issues.ListComments(ctx, owner, name, issueNumber, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list comments: %w", classify(err))
		}

		allComments = append(allComments, comments...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return allComments, nil
}

// CreateComment adds a comment to an issue
func (c *GitHubClient) CreateComment(ctx context.Context, owner, name string, issueNumber int, body string) (*github.IssueComment, error) {
	comment, _, err := c.client.Issues.CreateComment(ctx, owner, name, issueNumber, &github.IssueComment{
		Body: github.String(body),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", classify(err))
	}
	return comment, nil
}

// EditComment replaces the body of an existing comment
func (c *GitHubClient) EditComment(ctx context.Context, owner, name string, commentID int64, body string) (*github.IssueComment, error) {
	comment, _, err := c.client.Issues.EditComment(ctx, owner, name, commentID, &github.IssueComment{
		Body: github.String(body),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to edit comment %d: %w", commentID, classify(err))
	}
	return comment, nil
}

// DeleteComment removes a comment
func (c *GitHubClient) DeleteComment(ctx context.Context, owner, name string, commentID int64) error {
	if _, err := c.client.Issues.DeleteComment(ctx, owner, name, commentID); err != nil {
		return fmt.Errorf("failed to delete comment %d: %w", commentID, classify(err))
	}
	return nil
}

// CreateIssue opens a new issue
func (c *GitHubClient) CreateIssue(ctx context.Context, owner, name, title, body string, labels []string) (*github.Issue, error) {
	req := &github.IssueRequest{
		Title: github.String(title),
		Body:  github.String(body),
	}
	if len(labels) > 0 {
		req.Labels = &labels
	}

	issue, _, err := c.client.Issues.Create(ctx, owner, name, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create issue: %w", classify(err))
	}
	return issue, nil
}

// ListUserRepos lists the repositories the authenticated user can access
func (c *GitHubClient) ListUserRepos(ctx context.Context) ([]*github.Repository, error) {
	var allRepos []*github.Repository
	opts := &github.RepositoryListOptions{
		ListOptions: github.ListOptions{
			PerPage: perPage,
		},
	}

	for {
		repos, resp, err := c.client.Repositories.List(ctx, "", opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list repositories: %w", classify(err))
		}

		allRepos = append(allRepos, repos...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return allRepos, nil
}

// classify maps go-github errors onto the errors callers branch on
func classify(err error) error {
	var rle *github.RateLimitError
	if errors.As(err, &rle) {
		return &RateLimitError{ResetTime: rle.Rate.Reset.Time, Err: err}
	}

	var abuse *github.AbuseRateLimitError
	if errors.As(err, &abuse) {
		reset := time.Now()
		if abuse.RetryAfter != nil {
			reset = reset.Add(*abuse.RetryAfter)
		}
		return &RateLimitError{ResetTime: reset, Err: err}
	}

	var er *github.ErrorResponse
	if errors.As(err, &er) && er.Response != nil && er.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	return err
}

// ConvertGitHubState maps a GitHub issue state onto the states shown to the user
func ConvertGitHubState(state string) string {
	switch state {
	case "open":
		return models.StateOpen
	case "closed":
		return models.StateClosed
	default:
		return models.StateUnknown
	}
}

// ConvertGitHubIssue converts a GitHub issue to our model. Comments are left empty.
func ConvertGitHubIssue(issue *github.Issue) models.Issue {
	labels := make([]string, 0, len(issue.Labels))
	for _, label := range issue.Labels {
		labels = append(labels, label.GetName())
	}

	assignees := make([]string, 0, len(issue.Assignees))
	for _, user := range issue.Assignees {
		assignees = append(assignees, user.GetLogin())
	}

	var body *string
	if issue.Body != nil {
		b := *issue.Body
		body = &b
	}

	return models.Issue{
		Number:    issue.GetNumber(),
		Title:     issue.GetTitle(),
		State:     ConvertGitHubState(issue.GetState()),
		CreatedAt: issue.GetCreatedAt().Time,
		Body:      body,
		Labels:    labels,
		Assignees: assignees,
		Comments:  []models.Comment{},
		Creator:   issue.GetUser().GetLogin(),
	}
}

// ConvertGitHubComment converts a GitHub comment to our model
func ConvertGitHubComment(comment *github.IssueComment) models.Comment {
	var updatedAt *time.Time
	if comment.UpdatedAt != nil {
		t := comment.UpdatedAt.Time
		updatedAt = &t
	}

	return models.Comment{
		ID:        comment.GetID(),
		Body:      comment.GetBody(),
		CreatedAt: comment.GetCreatedAt().Time,
		UpdatedAt: updatedAt,
		Author:    comment.GetUser().GetLogin(),
	}
}

// ConvertGitHubComments converts a comment list, preserving GitHub's order
func ConvertGitHubComments(comments []*github.IssueComment) []models.Comment {
	out := make([]models.Comment, 0, len(comments))
	for _, comment := range comments {
		out = append(out, ConvertGitHubComment(comment))
	}
	return out
}

// ConvertGitHubRepository converts a GitHub repository to our model
func ConvertGitHubRepository(repo *github.Repository) models.Repository {
	visibility := repo.GetVisibility()
	if visibility == "" {
		visibility = "private"
		if !repo.GetPrivate() {
			visibility = "public"
		}
	}

	return models.Repository{
		Name:            repo.GetName(),
		FullName:        repo.GetFullName(),
		Owner:           repo.GetOwner().GetLogin(),
		Description:     repo.Description,
		Language:        repo.Language,
		StargazersCount: repo.GetStargazersCount(),
		Fork:            repo.GetFork(),
		Visibility:      visibility,
		CreatedAt:       repo.GetCreatedAt().Time,
		UpdatedAt:       repo.GetUpdatedAt().Time,
	}
}

// ConvertGitHubRepositories converts a repository list, preserving GitHub's order
func ConvertGitHubRepositories(repos []*github.Repository) []models.Repository {
	out := make([]models.Repository, 0, len(repos))
	for _, repo := range repos {
		out = append(out, ConvertGitHubRepository(repo))
	}
	return out
}
