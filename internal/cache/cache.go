// Package cache keeps the issues of each repository in memory between refreshes.
//
// Entries are keyed by lower-cased "owner/repo", as GitHub matches names
// case-insensitively. A single lock guards the whole map and is
// never held across network calls; every value handed out is a deep copy.
package cache

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/wesm/issue-desk/internal/models"
)

// DefaultMaxAge is how long a full refresh is served from memory
const DefaultMaxAge = 5 * time.Minute

// Key returns the cache key of a repository
func Key(owner, repo string) string {
	return strings.ToLower(fmt.Sprintf("%s/%s", owner, repo))
}

// Entry is the cached issue list of one repository
type Entry struct {
	Issues      []models.Issue
	LastUpdated time.Time
}

func (e *Entry) clone() Entry {
	issues := make([]models.Issue, len(e.Issues))
	for i, issue := range e.Issues {
		issues[i] = issue.Clone()
	}
	return Entry{Issues: issues, LastUpdated: e.LastUpdated}
}

// IsFresh reports whether entry was fully refreshed less than maxAge before now
func IsFresh(entry *Entry, now time.Time, maxAge time.Duration) bool {
	if entry == nil {
		return false
	}
	return now.Sub(entry.LastUpdated) < maxAge
}

// Store is the process-wide issue cache
type Store struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{entries: make(map[string]*Entry)}
}

// Get returns a copy of the entry for key
func (s *Store) Get(key string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key]
	if !ok {
		return Entry{}, false
	}
	return entry.clone(), true
}

// GetIssue returns a copy of one cached issue
func (s *Store) GetIssue(key string, number int) (models.Issue, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key]
	if !ok {
		return models.Issue{}, false
	}
	for _, issue := range entry.Issues {
		if issue.Number == number {
			return issue.Clone(), true
		}
	}
	return models.Issue{}, false
}

// Put replaces the whole entry for key after a full refresh. Later records win
// when issues repeats a number. LastUpdated never moves backwards.
func (s *Store) Put(key string, issues []models.Issue, now time.Time) {
	deduped := dedupe(issues)

	s.mu.Lock()
	defer s.mu.Unlock()

	lastUpdated := now
	if prev, ok := s.entries[key]; ok && prev.LastUpdated.After(now) {
		lastUpdated = prev.LastUpdated
	}
	s.entries[key] = &Entry{Issues: deduped, LastUpdated: lastUpdated}
}

// UpsertIssue replaces the cached issue with the same number in place, or
// appends it. A single issue is not a full refresh, so LastUpdated of an
// existing entry is left alone; a missing entry is created with now.
func (s *Store) UpsertIssue(key string, issue models.Issue, now time.Time) {
	issue = issue.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		s.entries[key] = &Entry{Issues: []models.Issue{issue}, LastUpdated: now}
		return
	}

	for i := range entry.Issues {
		if entry.Issues[i].Number == issue.Number {
			entry.Issues[i] = issue
			return
		}
	}
	entry.Issues = append(entry.Issues, issue)
}

// Status reports whether key is cached and when it was last fully refreshed
func (s *Store) Status(key string) models.CacheStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key]
	if !ok {
		return models.CacheStatus{}
	}
	lastUpdated := entry.LastUpdated
	return models.CacheStatus{Cached: true, LastUpdated: &lastUpdated}
}

// dedupe copies issues keeping one record per number at the position of its
// first occurrence, holding the data of its last occurrence
func dedupe(issues []models.Issue) []models.Issue {
	out := make([]models.Issue, 0, len(issues))
	index := make(map[int]int, len(issues))
	for _, issue := range issues {
		if i, ok := index[issue.Number]; ok {
			out[i] = issue.Clone()
			continue
		}
		index[issue.Number] = len(out)
		out = append(out, issue.Clone())
	}
	return out
}
