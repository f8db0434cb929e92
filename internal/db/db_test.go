package db

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wesm/issue-desk/internal/models"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	database, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, database.Initialize())

	t.Cleanup(func() {
		database.Close()
	})
	return database
}

func TestInitializeIsIdempotent(t *testing.T) {
	database := setupTestDB(t)
	assert.NoError(t, database.Initialize())
}

func TestPinnedRepos(t *testing.T) {
	database := setupTestDB(t)

	repos, err := database.GetPinnedRepos()
	require.NoError(t, err)
	assert.Empty(t, repos)

	require.NoError(t, database.SavePinnedRepos([]string{"acme/widgets", "acme/gadgets", "zed/app"}))
	repos, err = database.GetPinnedRepos()
	require.NoError(t, err)
	assert.Equal(t, []string{"acme/widgets", "acme/gadgets", "zed/app"}, repos)

	require.NoError(t, database.SavePinnedRepos([]string{"zed/app", "acme/widgets"}))
	repos, err = database.GetPinnedRepos()
	require.NoError(t, err)
	assert.Equal(t, []string{"zed/app", "acme/widgets"}, repos)
}

func TestSavePinnedReposRollsBackOnDuplicate(t *testing.T) {
	database := setupTestDB(t)
	require.NoError(t, database.SavePinnedRepos([]string{"acme/widgets"}))

	err := database.SavePinnedRepos([]string{"zed/app", "zed/app"})
	assert.Error(t, err)

	repos, err := database.GetPinnedRepos()
	require.NoError(t, err)
	assert.Equal(t, []string{"acme/widgets"}, repos)
}

func TestRecents(t *testing.T) {
	database := setupTestDB(t)
	base := time.Date(2024, 8, 19, 10, 0, 0, 0, time.UTC)

	require.NoError(t, database.AddRecent(models.RecentItem{ID: "acme/widgets#1", Name: "first", ViewedAt: base}))
	require.NoError(t, database.AddRecent(models.RecentItem{ID: "acme/widgets#2", Name: "second", ViewedAt: base.Add(time.Minute)}))
	require.NoError(t, database.AddRecent(models.RecentItem{ID: "acme/widgets#1", Name: "first again", ViewedAt: base.Add(2 * time.Minute)}))

	items, err := database.Recents()
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "acme/widgets#1", items[0].ID)
	assert.Equal(t, "first again", items[0].Name)
	assert.True(t, base.Add(2*time.Minute).Equal(items[0].ViewedAt))
	assert.Equal(t, "acme/widgets#2", items[1].ID)

	require.NoError(t, database.ClearRecents())
	items, err = database.Recents()
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestRecentsAreCapped(t *testing.T) {
	database := setupTestDB(t)
	base := time.Date(2024, 8, 19, 10, 0, 0, 0, time.UTC)

	for i := 0; i < MaxRecents+5; i++ {
		require.NoError(t, database.AddRecent(models.RecentItem{
			ID:       fmt.Sprintf("acme/widgets#%d", i),
			Name:     fmt.Sprintf("issue %d", i),
			ViewedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	items, err := database.Recents()
	require.NoError(t, err)
	require.Len(t, items, MaxRecents)
	assert.Equal(t, fmt.Sprintf("acme/widgets#%d", MaxRecents+4), items[0].ID)
	assert.Equal(t, "acme/widgets#5", items[MaxRecents-1].ID)
}

func TestSettings(t *testing.T) {
	database := setupTestDB(t)

	settings, err := database.LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSettings(), settings)

	custom := models.Settings{Theme: "dark", Notifications: false, FontSize: "large", FileDirectory: "/tmp/notes"}
	require.NoError(t, database.SaveSettings(custom))
	settings, err = database.LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, custom, settings)

	custom.Theme = "light"
	require.NoError(t, database.SaveSettings(custom))
	settings, err = database.LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, "light", settings.Theme)
}

func TestAuthState(t *testing.T) {
	database := setupTestDB(t)

	state, err := database.GetAuthState()
	require.NoError(t, err)
	assert.Nil(t, state)

	require.NoError(t, database.SaveAuthState(&models.AuthState{Token: "tok"}))
	state, err = database.GetAuthState()
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, "tok", state.Token)
	assert.Nil(t, state.User)

	require.NoError(t, database.SaveAuthState(&models.AuthState{
		Token: "tok2",
		User:  &models.User{Login: "octocat", AvatarURL: "https://avatars.example/octocat"},
	}))
	state, err = database.GetAuthState()
	require.NoError(t, err)
	assert.Equal(t, "tok2", state.Token)
	assert.Equal(t, &models.User{Login: "octocat", AvatarURL: "https://avatars.example/octocat"}, state.User)

	require.NoError(t, database.ClearAuthState())
	state, err = database.GetAuthState()
	require.NoError(t, err)
	assert.Nil(t, state)
}
