package models

import (
	"time"
)

// Issue states as exposed to the UI
const (
	StateOpen    = "open"
	StateClosed  = "closed"
	StateUnknown = "unknown"
)

// Issue represents a GitHub issue together with its comments
type Issue struct {
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	Body      *string   `json:"body"`
	Labels    []string  `json:"labels"`
	Assignees []string  `json:"assignees"`
	Comments  []Comment `json:"comments"`
	Creator   string    `json:"creator"`
}

// Clone returns a copy of the issue that shares no memory with the original
func (i Issue) Clone() Issue {
	out := i
	if i.Body != nil {
		body := *i.Body
		out.Body = &body
	}
	if i.Labels != nil {
		out.Labels = make([]string, len(i.Labels))
		copy(out.Labels, i.Labels)
	}
	if i.Assignees != nil {
		out.Assignees = make([]string, len(i.Assignees))
		copy(out.Assignees, i.Assignees)
	}
	if i.Comments != nil {
		out.Comments = make([]Comment, len(i.Comments))
		for idx, c := range i.Comments {
			out.Comments[idx] = c.Clone()
		}
	}
	return out
}

// Comment represents a GitHub issue comment
type Comment struct {
	ID        int64      `json:"id"`
	Body      string     `json:"body"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
	Author    string     `json:"author"`
}

// Clone returns a copy of the comment that shares no memory with the original
func (c Comment) Clone() Comment {
	out := c
	if c.UpdatedAt != nil {
		t := *c.UpdatedAt
		out.UpdatedAt = &t
	}
	return out
}

// Repository is a repository the user can pin
type Repository struct {
	Name            string    `json:"name"`
	FullName        string    `json:"full_name"`
	Owner           string    `json:"owner"`
	Description     *string   `json:"description"`
	Language        *string   `json:"language"`
	StargazersCount int       `json:"stargazers_count"`
	Fork            bool      `json:"fork"`
	Visibility      string    `json:"visibility"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CacheStatus reports whether a repository has cached issues
type CacheStatus struct {
	Cached      bool       `json:"cached"`
	LastUpdated *time.Time `json:"last_updated"`
}

// User represents a GitHub account
type User struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
}

// AuthState is the token and account stored after a successful login
type AuthState struct {
	Token string `json:"-"`
	User  *User  `json:"user"`
}

// AuthStatus reports whether a working token is available
type AuthStatus struct {
	Authenticated bool  `json:"authenticated"`
	User          *User `json:"user,omitempty"`
}

// RecentItem is an issue the user recently opened
type RecentItem struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	ViewedAt time.Time `json:"viewed_at"`
}

// Settings holds the user's application preferences
type Settings struct {
	Theme         string `json:"theme"`
	Notifications bool   `json:"notifications"`
	FontSize      string `json:"font_size"`
	FileDirectory string `json:"file_directory"`
}

// DefaultSettings returns the settings used before the user saves any
func DefaultSettings() Settings {
	return Settings{
		Theme:         "system",
		Notifications: true,
		FontSize:      "medium",
		FileDirectory: "",
	}
}

// RepoSyncResult is the outcome of refreshing one pinned repository
type RepoSyncResult struct {
	Repository string `json:"repository"`
	Issues     int    `json:"issues"`
	Error      string `json:"error,omitempty"`
}
