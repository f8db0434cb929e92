// Package server exposes the backend to the desktop UI as JSON over local HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/wesm/issue-desk/internal/api"
	"github.com/wesm/issue-desk/internal/auth"
	"github.com/wesm/issue-desk/internal/models"
	"github.com/wesm/issue-desk/internal/sync"
)

// Backend is what the HTTP surface calls into
type Backend interface {
	FetchIssues(ctx context.Context, owner, repo string, forceRefresh bool) ([]models.Issue, error)
	GetCachedIssue(owner, repo string, number int) *models.Issue
	CheckCacheStatus(owner, repo string) models.CacheStatus
	CreateIssue(ctx context.Context, owner, repo, title, body string, labels []string) (models.Issue, error)
	AddComment(ctx context.Context, owner, repo string, number int, body string) (models.Issue, error)
	EditComment(ctx context.Context, owner, repo string, number int, commentID int64, body string) (models.Issue, error)
	DeleteComment(ctx context.Context, owner, repo string, number int, commentID int64) (models.Issue, error)

	ListUserRepos(ctx context.Context) ([]models.Repository, error)
	GetPinnedRepos() ([]string, error)
	SavePinnedRepos(repos []string) ([]string, error)
	SyncPinned(ctx context.Context, forceRefresh bool) ([]models.RepoSyncResult, error)

	AddRecent(id, name string) ([]models.RecentItem, error)
	Recents() ([]models.RecentItem, error)
	ClearRecents() error

	LoadSettings() (models.Settings, error)
	SaveSettings(settings models.Settings) error

	Login(ctx context.Context, token string) (*models.User, error)
	CheckAuth(ctx context.Context) (models.AuthStatus, error)
}

// Server handles the UI's requests
type Server struct {
	backend Backend
	mux     *http.ServeMux
}

// New creates the server and registers its routes
func New(backend Backend) *Server {
	s := &Server{backend: backend, mux: http.NewServeMux()}

	s.mux.HandleFunc("GET /repos/{owner}/{repo}/issues", s.fetchIssues)
	s.mux.HandleFunc("POST /repos/{owner}/{repo}/issues", s.createIssue)
	s.mux.HandleFunc("GET /repos/{owner}/{repo}/issues/{number}", s.getCachedIssue)
	s.mux.HandleFunc("GET /repos/{owner}/{repo}/cache", s.cacheStatus)
	s.mux.HandleFunc("POST /repos/{owner}/{repo}/issues/{number}/comments", s.addComment)
	s.mux.HandleFunc("PATCH /repos/{owner}/{repo}/issues/{number}/comments/{id}", s.editComment)
	s.mux.HandleFunc("DELETE /repos/{owner}/{repo}/issues/{number}/comments/{id}", s.deleteComment)

	s.mux.HandleFunc("GET /repos", s.listRepos)
	s.mux.HandleFunc("GET /pinned", s.getPinned)
	s.mux.HandleFunc("PUT /pinned", s.savePinned)
	s.mux.HandleFunc("POST /sync", s.syncPinned)

	s.mux.HandleFunc("GET /recents", s.getRecents)
	s.mux.HandleFunc("POST /recents", s.addRecent)
	s.mux.HandleFunc("DELETE /recents", s.clearRecents)

	s.mux.HandleFunc("GET /settings", s.getSettings)
	s.mux.HandleFunc("PUT /settings", s.saveSettings)

	s.mux.HandleFunc("GET /auth", s.checkAuth)
	s.mux.HandleFunc("POST /auth", s.login)

	return s
}

// Handler returns the server's handler with request logging
func (s *Server) Handler() http.Handler {
	return withRequestID(s.mux)
}

// ListenAndServe serves on addr until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.Infof("Listening on http://%s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))

		logrus.WithFields(logrus.Fields{
			"request_id": id,
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     rec.status,
			"duration":   time.Since(start).Round(time.Microsecond),
		}).Debug("Handled request")
	})
}

func requestLog(r *http.Request) *logrus.Entry {
	id, _ := r.Context().Value(requestIDKey{}).(string)
	return logrus.WithField("request_id", id)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Error("Failed to encode response")
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps backend errors onto HTTP statuses. Unrecognised errors get
// fallback: 502 where GitHub was called, 500 for local storage.
func statusFor(err error, fallback int) int {
	var rle *api.RateLimitError
	switch {
	case errors.Is(err, auth.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.As(err, &rle):
		return http.StatusTooManyRequests
	case errors.Is(err, api.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, sync.ErrInvalidRepository), errors.Is(err, sync.ErrEmptyComment),
		errors.Is(err, sync.ErrEmptyTitle), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled):
		return 499
	default:
		return fallback
	}
}

// writeError answers a failed call that went to GitHub
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	writeErrorStatus(w, r, err, statusFor(err, http.StatusBadGateway))
}

// writeLocalError answers a failed call that only touched local storage
func writeLocalError(w http.ResponseWriter, r *http.Request, err error) {
	writeErrorStatus(w, r, err, statusFor(err, http.StatusInternalServerError))
}

func writeErrorStatus(w http.ResponseWriter, r *http.Request, err error, status int) {
	requestLog(r).WithError(err).WithField("status", status).Warn("Request failed")
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
