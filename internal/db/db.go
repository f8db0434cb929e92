package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/wesm/issue-desk/internal/models"
)

// MaxRecents is how many recently viewed issues are kept
const MaxRecents = 10

// DB represents the database connection
type DB struct {
	*sql.DB
}

// New creates a new database connection
func New(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// sqlite allows one writer; serialize through a single connection
	db.SetMaxOpenConns(1)

	return &DB{DB: db}, nil
}

// Initialize creates the database schema if it doesn't exist
func (db *DB) Initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS pinned_repositories (
		full_name TEXT PRIMARY KEY,
		position INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS recent_items (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		viewed_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS settings (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		theme TEXT NOT NULL,
		notifications BOOLEAN NOT NULL,
		font_size TEXT NOT NULL,
		file_directory TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS auth_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		token TEXT NOT NULL,
		login TEXT,
		avatar_url TEXT
	);
	`

	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// GetPinnedRepos gets the pinned repositories in display order
func (db *DB) GetPinnedRepos() ([]string, error) {
	rows, err := db.Query(`SELECT full_name FROM pinned_repositories ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to get pinned repositories: %w", err)
	}
	defer rows.Close()

	repos := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan pinned repository: %w", err)
		}
		repos = append(repos, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read pinned repositories: %w", err)
	}

	return repos, nil
}

// SavePinnedRepos replaces the pinned repositories with repos, keeping their order
func (db *DB) SavePinnedRepos(repos []string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM pinned_repositories`); err != nil {
		return fmt.Errorf("failed to clear pinned repositories: %w", err)
	}

	for i, name := range repos {
		if _, err := tx.Exec(
			`INSERT INTO pinned_repositories (full_name, position) VALUES (?, ?)`,
			name, i,
		); err != nil {
			return fmt.Errorf("failed to pin %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to save pinned repositories: %w", err)
	}

	return nil
}

// AddRecent records that an item was viewed, moving it to the front and
// dropping the oldest items beyond MaxRecents
func (db *DB) AddRecent(item models.RecentItem) error {
	query := `
	INSERT INTO recent_items (id, name, viewed_at)
	VALUES (?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		viewed_at = excluded.viewed_at
	`

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(query, item.ID, item.Name, item.ViewedAt.UTC()); err != nil {
		return fmt.Errorf("failed to save recent item: %w", err)
	}

	if _, err := tx.Exec(`
	DELETE FROM recent_items WHERE id NOT IN (
		SELECT id FROM recent_items ORDER BY viewed_at DESC, rowid DESC LIMIT ?
	)`, MaxRecents); err != nil {
		return fmt.Errorf("failed to trim recent items: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to save recent item: %w", err)
	}

	return nil
}

// Recents gets the recently viewed items, newest first
func (db *DB) Recents() ([]models.RecentItem, error) {
	rows, err := db.Query(`SELECT id, name, viewed_at FROM recent_items ORDER BY viewed_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent items: %w", err)
	}
	defer rows.Close()

	items := []models.RecentItem{}
	for rows.Next() {
		var item models.RecentItem
		var viewedAt time.Time
		if err := rows.Scan(&item.ID, &item.Name, &viewedAt); err != nil {
			return nil, fmt.Errorf("failed to scan recent item: %w", err)
		}
		item.ViewedAt = viewedAt
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read recent items: %w", err)
	}

	return items, nil
}

// ClearRecents removes every recently viewed item
func (db *DB) ClearRecents() error {
	if _, err := db.Exec(`DELETE FROM recent_items`); err != nil {
		return fmt.Errorf("failed to clear recent items: %w", err)
	}
	return nil
}

// LoadSettings gets the saved settings, or the defaults if none were saved
func (db *DB) LoadSettings() (models.Settings, error) {
	query := `SELECT theme, notifications, font_size, file_directory FROM settings WHERE id = 1`

	var s models.Settings
	err := db.QueryRow(query).Scan(&s.Theme, &s.Notifications, &s.FontSize, &s.FileDirectory)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.DefaultSettings(), nil
		}
		return models.Settings{}, fmt.Errorf("failed to load settings: %w", err)
	}

	return s, nil
}

// SaveSettings saves the settings
func (db *DB) SaveSettings(s models.Settings) error {
	query := `
	INSERT INTO settings (id, theme, notifications, font_size, file_directory)
	VALUES (1, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		theme = excluded.theme,
		notifications = excluded.notifications,
		font_size = excluded.font_size,
		file_directory = excluded.file_directory
	`

	_, err := db.Exec(query, s.Theme, s.Notifications, s.FontSize, s.FileDirectory)
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	return nil
}

// GetAuthState gets the stored login, or nil if nobody logged in
func (db *DB) GetAuthState() (*models.AuthState, error) {
	query := `SELECT token, login, avatar_url FROM auth_state WHERE id = 1`

	var state models.AuthState
	var login, avatarURL sql.NullString
	err := db.QueryRow(query).Scan(&state.Token, &login, &avatarURL)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get auth state: %w", err)
	}

	if login.Valid {
		state.User = &models.User{Login: login.String, AvatarURL: avatarURL.String}
	}

	return &state, nil
}

// SaveAuthState saves the token and the account it belongs to
func (db *DB) SaveAuthState(state *models.AuthState) error {
	query := `
	INSERT INTO auth_state (id, token, login, avatar_url)
	VALUES (1, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		token = excluded.token,
		login = excluded.login,
		avatar_url = excluded.avatar_url
	`

	var login, avatarURL sql.NullString
	if state.User != nil {
		login = sql.NullString{String: state.User.Login, Valid: true}
		avatarURL = sql.NullString{String: state.User.AvatarURL, Valid: true}
	}

	_, err := db.Exec(query, state.Token, login, avatarURL)
	if err != nil {
		return fmt.Errorf("failed to save auth state: %w", err)
	}

	return nil
}

// ClearAuthState forgets the stored login
func (db *DB) ClearAuthState() error {
	if _, err := db.Exec(`DELETE FROM auth_state`); err != nil {
		return fmt.Errorf("failed to clear auth state: %w", err)
	}
	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
