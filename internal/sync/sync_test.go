package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/wesm/issue-desk/internal/api"
	"github.com/wesm/issue-desk/internal/auth"
	"github.com/wesm/issue-desk/internal/cache"
	"github.com/wesm/issue-desk/internal/models"
	"github.com/wesm/issue-desk/internal/sync/mocks"
)

var t0 = time.Date(2024, 8, 19, 10, 0, 0, 0, time.UTC)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newTestSyncer(source *mocks.IssueSource, tokens auth.TokenProvider) (*Syncer, *cache.Store, *clock) {
	store := cache.NewStore()
	c := &clock{now: t0}
	s := New(store, source, tokens)
	s.now = c.Now
	s.SetRetryPolicy(3, 0)
	return s, store, c
}

func ghIssue(number int, title string) *github.Issue {
	return &github.Issue{
		Number:    github.Int(number),
		Title:     github.String(title),
		State:     github.String("open"),
		CreatedAt: &github.Timestamp{Time: t0},
		User:      &github.User{Login: github.String("ann")},
	}
}

func ghComment(id int64, body string) *github.IssueComment {
	return &github.IssueComment{
		ID:        github.Int64(id),
		Body:      github.String(body),
		CreatedAt: &github.Timestamp{Time: t0},
		User:      &github.User{Login: github.String("bob")},
	}
}

func expectRepo(source *mocks.IssueSource, issues ...*github.Issue) {
	source.On("ListIssues", mock.Anything, "acme", "widgets").Return(issues, nil)
	for _, is := range issues {
		source.On("GetIssueComments", mock.Anything, "acme", "widgets", is.GetNumber()).
			Return([]*github.IssueComment{ghComment(int64(is.GetNumber()*100), "first")}, nil)
	}
}

func numbers(issues []models.Issue) []int {
	out := make([]int, len(issues))
	for i, is := range issues {
		out[i] = is.Number
	}
	return out
}

func TestFetchIssuesColdCache(t *testing.T) {
	source := new(mocks.IssueSource)
	expectRepo(source, ghIssue(43, "c"), ghIssue(41, "a"), ghIssue(42, "b"))
	s, store, _ := newTestSyncer(source, auth.StaticToken("t"))

	issues, err := s.FetchIssues(context.Background(), "acme", "widgets", false)
	require.NoError(t, err)

	assert.Equal(t, []int{43, 41, 42}, numbers(issues), "GitHub's order is kept")
	for _, is := range issues {
		require.Len(t, is.Comments, 1)
		assert.Equal(t, int64(is.Number*100), is.Comments[0].ID)
	}

	status := store.Status("acme/widgets")
	assert.True(t, status.Cached)
	require.NotNil(t, status.LastUpdated)
	assert.Equal(t, t0, *status.LastUpdated)
	source.AssertExpectations(t)
}

func TestFetchIssuesServesFreshCache(t *testing.T) {
	source := new(mocks.IssueSource)
	expectRepo(source, ghIssue(1, "a"), ghIssue(2, "b"))
	s, _, c := newTestSyncer(source, auth.StaticToken("t"))

	first, err := s.FetchIssues(context.Background(), "acme", "widgets", false)
	require.NoError(t, err)

	c.now = t0.Add(time.Minute)
	second, err := s.FetchIssues(context.Background(), "acme", "widgets", false)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	source.AssertNumberOfCalls(t, "ListIssues", 1)
	source.AssertNumberOfCalls(t, "GetIssueComments", 2)
}

func TestFetchIssuesFreshCacheNeedsNoToken(t *testing.T) {
	source := new(mocks.IssueSource)
	s, store, _ := newTestSyncer(source, auth.StaticToken(""))
	store.Put("acme/widgets", []models.Issue{{Number: 1}}, t0)

	issues, err := s.FetchIssues(context.Background(), "acme", "widgets", false)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, numbers(issues))
	source.AssertNotCalled(t, "ListIssues", mock.Anything, mock.Anything, mock.Anything)
}

func TestFetchIssuesIgnoresRepositoryCase(t *testing.T) {
	source := new(mocks.IssueSource)
	expectRepo(source, ghIssue(1, "a"))
	s, _, _ := newTestSyncer(source, auth.StaticToken("t"))

	_, err := s.FetchIssues(context.Background(), "acme", "widgets", false)
	require.NoError(t, err)
	issues, err := s.FetchIssues(context.Background(), "Acme", "Widgets", false)
	require.NoError(t, err)

	assert.Equal(t, []int{1}, numbers(issues))
	source.AssertNumberOfCalls(t, "ListIssues", 1)
}

func TestFetchIssuesRefetchesStaleCache(t *testing.T) {
	source := new(mocks.IssueSource)
	expectRepo(source, ghIssue(1, "a"))
	s, store, c := newTestSyncer(source, auth.StaticToken("t"))

	_, err := s.FetchIssues(context.Background(), "acme", "widgets", false)
	require.NoError(t, err)

	c.now = t0.Add(6 * time.Minute)
	_, err = s.FetchIssues(context.Background(), "acme", "widgets", false)
	require.NoError(t, err)

	source.AssertNumberOfCalls(t, "ListIssues", 2)
	assert.Equal(t, t0.Add(6*time.Minute), *store.Status("acme/widgets").LastUpdated)
}

func TestFetchIssuesForceRefreshBypassesFreshCache(t *testing.T) {
	source := new(mocks.IssueSource)
	expectRepo(source, ghIssue(7, "new"))
	s, store, c := newTestSyncer(source, auth.StaticToken("t"))
	store.Put("acme/widgets", []models.Issue{{Number: 1, Title: "cached"}}, t0)

	c.now = t0.Add(10 * time.Second)
	issues, err := s.FetchIssues(context.Background(), "acme", "widgets", true)
	require.NoError(t, err)

	assert.Equal(t, []int{7}, numbers(issues))
	entry, _ := store.Get("acme/widgets")
	assert.Equal(t, []int{7}, numbers(entry.Issues))
	assert.Equal(t, t0.Add(10*time.Second), entry.LastUpdated)
	source.AssertNumberOfCalls(t, "ListIssues", 1)
}

func TestFullRefreshIsAllOrNothing(t *testing.T) {
	tests := []struct {
		name   string
		cached []models.Issue
	}{
		{name: "existing entry unchanged", cached: []models.Issue{{Number: 1, Title: "old"}}},
		{name: "absent entry stays absent"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := new(mocks.IssueSource)
			source.On("ListIssues", mock.Anything, "acme", "widgets").
				Return([]*github.Issue{ghIssue(1, "a"), ghIssue(2, "b"), ghIssue(3, "c")}, nil)
			source.On("GetIssueComments", mock.Anything, "acme", "widgets", 1).Return([]*github.IssueComment{}, nil).Maybe()
			source.On("GetIssueComments", mock.Anything, "acme", "widgets", 2).Return(nil, errors.New("boom"))
			source.On("GetIssueComments", mock.Anything, "acme", "widgets", 3).Return([]*github.IssueComment{}, nil).Maybe()

			s, store, c := newTestSyncer(source, auth.StaticToken("t"))
			if tt.cached != nil {
				store.Put("acme/widgets", tt.cached, t0.Add(-time.Hour))
			}
			before, hadBefore := store.Get("acme/widgets")

			c.now = t0
			_, err := s.FetchIssues(context.Background(), "acme", "widgets", true)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "issue #2")

			after, hasAfter := store.Get("acme/widgets")
			assert.Equal(t, hadBefore, hasAfter)
			assert.Equal(t, before, after)
		})
	}
}

func TestFullRefreshListFailure(t *testing.T) {
	source := new(mocks.IssueSource)
	reset := t0.Add(time.Hour)
	source.On("ListIssues", mock.Anything, "acme", "widgets").
		Return(nil, &api.RateLimitError{ResetTime: reset, Err: errors.New("limited")})
	s, store, _ := newTestSyncer(source, auth.StaticToken("t"))

	_, err := s.FetchIssues(context.Background(), "acme", "widgets", false)
	var rle *api.RateLimitError
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, reset, rle.ResetTime)
	assert.False(t, store.Status("acme/widgets").Cached)
}

func TestNotAuthenticated(t *testing.T) {
	source := new(mocks.IssueSource)
	s, store, _ := newTestSyncer(source, auth.StaticToken(""))

	_, err := s.FetchIssues(context.Background(), "acme", "widgets", false)
	assert.ErrorIs(t, err, auth.ErrNotAuthenticated)

	_, err = s.MutateComment(context.Background(), "acme", "widgets", 1, AddComment("hi"))
	assert.ErrorIs(t, err, auth.ErrNotAuthenticated)

	_, err = s.RefreshIssue(context.Background(), "acme", "widgets", 1)
	assert.ErrorIs(t, err, auth.ErrNotAuthenticated)

	assert.Empty(t, source.Calls)
	assert.False(t, store.Status("acme/widgets").Cached)
}

func TestAddCommentPatchesOnlyThatIssue(t *testing.T) {
	source := new(mocks.IssueSource)
	source.On("ListIssues", mock.Anything, "acme", "widgets").
		Return([]*github.Issue{ghIssue(41, "a"), ghIssue(42, "b")}, nil)
	source.On("GetIssueComments", mock.Anything, "acme", "widgets", 41).
		Return([]*github.IssueComment{ghComment(4100, "first")}, nil)
	source.On("GetIssueComments", mock.Anything, "acme", "widgets", 42).
		Return([]*github.IssueComment{ghComment(4200, "first")}, nil).Once()
	s, store, c := newTestSyncer(source, auth.StaticToken("t"))

	_, err := s.FetchIssues(context.Background(), "acme", "widgets", false)
	require.NoError(t, err)
	before41, ok := store.GetIssue("acme/widgets", 41)
	require.True(t, ok)

	source.On("CreateComment", mock.Anything, "acme", "widgets", 42, "new comment").
		Return(ghComment(9001, "new comment"), nil)
	source.On("GetIssue", mock.Anything, "acme", "widgets", 42).Return(ghIssue(42, "b"), nil)
	source.On("GetIssueComments", mock.Anything, "acme", "widgets", 42).
		Return([]*github.IssueComment{ghComment(4200, "first"), ghComment(9001, "new comment")}, nil)

	c.now = t0.Add(2 * time.Minute)
	updated, err := s.MutateComment(context.Background(), "acme", "widgets", 42, AddComment("new comment"))
	require.NoError(t, err)
	require.Len(t, updated.Comments, 2)
	assert.Equal(t, "new comment", updated.Comments[1].Body)

	cached42, ok := store.GetIssue("acme/widgets", 42)
	require.True(t, ok)
	assert.Equal(t, updated, cached42)

	after41, ok := store.GetIssue("acme/widgets", 41)
	require.True(t, ok)
	assert.Equal(t, before41, after41)

	assert.Equal(t, t0, *store.Status("acme/widgets").LastUpdated, "comment patches do not refresh the list timestamp")
	source.AssertNumberOfCalls(t, "ListIssues", 1)
}

func TestEditAndDeleteComment(t *testing.T) {
	tests := []struct {
		name   string
		action CommentAction
		expect func(*mocks.IssueSource)
	}{
		{
			name:   "edit",
			action: EditComment(5, "fixed typo"),
			expect: func(m *mocks.IssueSource) {
				m.On("EditComment", mock.Anything, "acme", "widgets", int64(5), "fixed typo").
					Return(ghComment(5, "fixed typo"), nil)
			},
		},
		{
			name:   "delete",
			action: DeleteComment(5),
			expect: func(m *mocks.IssueSource) {
				m.On("DeleteComment", mock.Anything, "acme", "widgets", int64(5)).Return(nil)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := new(mocks.IssueSource)
			tt.expect(source)
			source.On("GetIssue", mock.Anything, "acme", "widgets", 3).Return(ghIssue(3, "c"), nil)
			source.On("GetIssueComments", mock.Anything, "acme", "widgets", 3).Return([]*github.IssueComment{}, nil)
			s, store, _ := newTestSyncer(source, auth.StaticToken("t"))

			issue, err := s.MutateComment(context.Background(), "acme", "widgets", 3, tt.action)
			require.NoError(t, err)
			assert.Equal(t, 3, issue.Number)

			_, ok := store.GetIssue("acme/widgets", 3)
			assert.True(t, ok)
			source.AssertExpectations(t)
		})
	}
}

func TestMutationFailureLeavesCacheAlone(t *testing.T) {
	source := new(mocks.IssueSource)
	source.On("CreateComment", mock.Anything, "acme", "widgets", 1, "hi").Return(nil, errors.New("403"))
	s, store, _ := newTestSyncer(source, auth.StaticToken("t"))
	store.Put("acme/widgets", []models.Issue{{Number: 1, Title: "a"}}, t0)
	before, _ := store.Get("acme/widgets")

	_, err := s.MutateComment(context.Background(), "acme", "widgets", 1, AddComment("hi"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRefreshAfterMutation)

	after, _ := store.Get("acme/widgets")
	assert.Equal(t, before, after)
	source.AssertNotCalled(t, "GetIssue", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRefreshAfterMutationIsRetried(t *testing.T) {
	source := new(mocks.IssueSource)
	source.On("CreateComment", mock.Anything, "acme", "widgets", 1, "hi").Return(ghComment(2, "hi"), nil).Once()
	source.On("GetIssue", mock.Anything, "acme", "widgets", 1).Return(nil, errors.New("502 bad gateway")).Once()
	source.On("GetIssue", mock.Anything, "acme", "widgets", 1).Return(ghIssue(1, "a"), nil).Once()
	source.On("GetIssueComments", mock.Anything, "acme", "widgets", 1).Return([]*github.IssueComment{ghComment(2, "hi")}, nil)
	s, store, _ := newTestSyncer(source, auth.StaticToken("t"))

	issue, err := s.MutateComment(context.Background(), "acme", "widgets", 1, AddComment("hi"))
	require.NoError(t, err)
	assert.Len(t, issue.Comments, 1)

	source.AssertNumberOfCalls(t, "CreateComment", 1)
	source.AssertNumberOfCalls(t, "GetIssue", 2)
	_, ok := store.GetIssue("acme/widgets", 1)
	assert.True(t, ok)
}

func TestRefreshAfterMutationGivesUp(t *testing.T) {
	source := new(mocks.IssueSource)
	upstream := errors.New("502 bad gateway")
	source.On("DeleteComment", mock.Anything, "acme", "widgets", int64(2)).Return(nil).Once()
	source.On("GetIssue", mock.Anything, "acme", "widgets", 1).Return(nil, upstream)
	s, store, _ := newTestSyncer(source, auth.StaticToken("t"))
	store.Put("acme/widgets", []models.Issue{{Number: 1, Comments: []models.Comment{{ID: 2}}}}, t0)

	_, err := s.MutateComment(context.Background(), "acme", "widgets", 1, DeleteComment(2))
	assert.ErrorIs(t, err, ErrRefreshAfterMutation)
	assert.ErrorIs(t, err, upstream)

	source.AssertNumberOfCalls(t, "DeleteComment", 1)
	source.AssertNumberOfCalls(t, "GetIssue", 3)

	cached, _ := store.GetIssue("acme/widgets", 1)
	assert.Len(t, cached.Comments, 1, "stale cache is kept until a later refresh succeeds")
}

func TestRefreshAfterMutationDoesNotRetryNotFound(t *testing.T) {
	source := new(mocks.IssueSource)
	source.On("EditComment", mock.Anything, "acme", "widgets", int64(2), "x").Return(ghComment(2, "x"), nil)
	source.On("GetIssue", mock.Anything, "acme", "widgets", 1).Return(nil, api.ErrNotFound)
	s, _, _ := newTestSyncer(source, auth.StaticToken("t"))

	_, err := s.MutateComment(context.Background(), "acme", "widgets", 1, EditComment(2, "x"))
	assert.ErrorIs(t, err, ErrRefreshAfterMutation)
	source.AssertNumberOfCalls(t, "GetIssue", 1)
}

func TestRefreshRetryStopsWhenContextEnds(t *testing.T) {
	source := new(mocks.IssueSource)
	source.On("CreateComment", mock.Anything, "acme", "widgets", 1, "hi").Return(ghComment(2, "hi"), nil)
	source.On("GetIssue", mock.Anything, "acme", "widgets", 1).Return(nil, errors.New("502 bad gateway"))
	s, _, _ := newTestSyncer(source, auth.StaticToken("t"))
	s.SetRetryPolicy(5, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.MutateComment(ctx, "acme", "widgets", 1, AddComment("hi"))
	assert.ErrorIs(t, err, ErrRefreshAfterMutation)
	assert.ErrorIs(t, err, context.Canceled)
	source.AssertNumberOfCalls(t, "GetIssue", 1)
}

func TestEmptyCommentRejected(t *testing.T) {
	source := new(mocks.IssueSource)
	s, _, _ := newTestSyncer(source, auth.StaticToken("t"))

	_, err := s.MutateComment(context.Background(), "acme", "widgets", 1, AddComment("  "))
	assert.ErrorIs(t, err, ErrEmptyComment)
	_, err = s.MutateComment(context.Background(), "acme", "widgets", 1, EditComment(3, ""))
	assert.ErrorIs(t, err, ErrEmptyComment)
	assert.Empty(t, source.Calls)
}

func TestRefreshIssueCreatesEntryWhenMissing(t *testing.T) {
	source := new(mocks.IssueSource)
	source.On("GetIssue", mock.Anything, "acme", "widgets", 8).Return(ghIssue(8, "h"), nil)
	source.On("GetIssueComments", mock.Anything, "acme", "widgets", 8).Return([]*github.IssueComment{}, nil)
	s, store, _ := newTestSyncer(source, auth.StaticToken("t"))

	_, err := s.RefreshIssue(context.Background(), "acme", "widgets", 8)
	require.NoError(t, err)

	entry, ok := store.Get("acme/widgets")
	require.True(t, ok)
	assert.Equal(t, []int{8}, numbers(entry.Issues))
	assert.Equal(t, t0, entry.LastUpdated)
}

func TestCreateIssue(t *testing.T) {
	source := new(mocks.IssueSource)
	source.On("CreateIssue", mock.Anything, "acme", "widgets", "broken", "details", []string{"bug"}).
		Return(ghIssue(50, "broken"), nil)
	s, store, _ := newTestSyncer(source, auth.StaticToken("t"))
	store.Put("acme/widgets", []models.Issue{{Number: 1}}, t0.Add(-time.Minute))

	issue, err := s.CreateIssue(context.Background(), "acme", "widgets", "broken", "details", []string{"bug"})
	require.NoError(t, err)
	assert.Equal(t, 50, issue.Number)

	entry, _ := store.Get("acme/widgets")
	assert.Equal(t, []int{1, 50}, numbers(entry.Issues))
	assert.Equal(t, t0.Add(-time.Minute), entry.LastUpdated)

	_, err = s.CreateIssue(context.Background(), "acme", "widgets", " ", "", nil)
	assert.ErrorIs(t, err, ErrEmptyTitle)
}

func TestSyncAll(t *testing.T) {
	source := new(mocks.IssueSource)
	expectRepo(source, ghIssue(1, "a"), ghIssue(2, "b"))
	source.On("ListIssues", mock.Anything, "acme", "gadgets").Return(nil, errors.New("boom"))
	s, _, _ := newTestSyncer(source, auth.StaticToken("t"))

	results := s.SyncAll(context.Background(), []string{"acme/widgets", "acme/gadgets", "bogus"}, false)
	require.Len(t, results, 3)

	assert.Equal(t, models.RepoSyncResult{Repository: "acme/widgets", Issues: 2}, results[0])
	assert.Equal(t, "acme/gadgets", results[1].Repository)
	assert.Contains(t, results[1].Error, "boom")
	assert.Contains(t, results[2].Error, "invalid repository")
}

func TestParseRepositoryString(t *testing.T) {
	tests := []struct {
		input     string
		wantOwner string
		wantName  string
		wantErr   bool
	}{
		{input: "acme/widgets", wantOwner: "acme", wantName: "widgets"},
		{input: " acme/widgets ", wantOwner: "acme", wantName: "widgets"},
		{input: "acme", wantErr: true},
		{input: "acme/", wantErr: true},
		{input: "/widgets", wantErr: true},
		{input: "a/b/c", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			owner, name, err := ParseRepositoryString(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRepository)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOwner, owner)
			assert.Equal(t, tt.wantName, name)
		})
	}
}

func TestSetWorkersClamps(t *testing.T) {
	s := New(cache.NewStore(), new(mocks.IssueSource), nil)
	s.SetWorkers(0)
	assert.Equal(t, 1, s.workers)
	s.SetWorkers(50)
	assert.Equal(t, 10, s.workers)
	s.SetWorkers(4)
	assert.Equal(t, 4, s.workers)
}
