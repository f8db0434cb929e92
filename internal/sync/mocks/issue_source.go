package mocks

import (
	"context"

	"github.com/google/go-github/v57/github"
	"github.com/stretchr/testify/mock"
)

// IssueSource mock
type IssueSource struct {
	mock.Mock
}

func (m *IssueSource) ListIssues(ctx context.Context, owner, name string) ([]*github.Issue, error) {
	args := m.Called(ctx, owner, name)
	issues, _ := args.Get(0).([]*github.Issue)
	return issues, args.Error(1)
}

func (m *IssueSource) GetIssue(ctx context.Context, owner, name string, number int) (*github.Issue, error) {
	args := m.Called(ctx, owner, name, number)
	issue, _ := args.Get(0).(*github.Issue)
	return issue, args.Error(1)
}

func (m *IssueSource) GetIssueComments(ctx context.Context, owner, name string, issueNumber int) ([]*github.IssueComment, error) {
	args := m.Called(ctx, owner, name, issueNumber)
	comments, _ := args.Get(0).([]*github.IssueComment)
	return comments, args.Error(1)
}

func (m *IssueSource) CreateComment(ctx context.Context, owner, name string, issueNumber int, body string) (*github.IssueComment, error) {
	args := m.Called(ctx, owner, name, issueNumber, body)
	comment, _ := args.Get(0).(*github.IssueComment)
	return comment, args.Error(1)
}

func (m *IssueSource) EditComment(ctx context.Context, owner, name string, commentID int64, body string) (*github.IssueComment, error) {
	args := m.Called(ctx, owner, name, commentID, body)
	comment, _ := args.Get(0).(*github.IssueComment)
	return comment, args.Error(1)
}

func (m *IssueSource) DeleteComment(ctx context.Context, owner, name string, commentID int64) error {
	args := m.Called(ctx, owner, name, commentID)
	return args.Error(0)
}

func (m *IssueSource) CreateIssue(ctx context.Context, owner, name, title, body string, labels []string) (*github.Issue, error) {
	args := m.Called(ctx, owner, name, title, body, labels)
	issue, _ := args.Get(0).(*github.Issue)
	return issue, args.Error(1)
}

func (m *IssueSource) ListUserRepos(ctx context.Context) ([]*github.Repository, error) {
	args := m.Called(ctx)
	repos, _ := args.Get(0).([]*github.Repository)
	return repos, args.Error(1)
}
