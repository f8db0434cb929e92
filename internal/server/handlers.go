package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/wesm/issue-desk/internal/models"
)

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("invalid request body: %v", err)
	}
	return nil
}

func pathInt(r *http.Request, name string) (int64, error) {
	n, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || n <= 0 {
		return 0, badRequest("invalid %s %q", name, r.PathValue(name))
	}
	return n, nil
}

func queryBool(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return v
}

func (s *Server) fetchIssues(w http.ResponseWriter, r *http.Request) {
	issues, err := s.backend.FetchIssues(r.Context(), r.PathValue("owner"), r.PathValue("repo"), queryBool(r, "force"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, issues)
}

func (s *Server) getCachedIssue(w http.ResponseWriter, r *http.Request) {
	number, err := pathInt(r, "number")
	if err != nil {
		writeLocalError(w, r, err)
		return
	}
	// null when the issue is not cached
	writeJSON(w, http.StatusOK, s.backend.GetCachedIssue(r.PathValue("owner"), r.PathValue("repo"), int(number)))
}

func (s *Server) cacheStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.backend.CheckCacheStatus(r.PathValue("owner"), r.PathValue("repo")))
}

type createIssueRequest struct {
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	Labels []string `json:"labels"`
}

func (s *Server) createIssue(w http.ResponseWriter, r *http.Request) {
	var req createIssueRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	issue, err := s.backend.CreateIssue(r.Context(), r.PathValue("owner"), r.PathValue("repo"), req.Title, req.Body, req.Labels)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, issue)
}

type commentRequest struct {
	Body string `json:"body"`
}

func (s *Server) addComment(w http.ResponseWriter, r *http.Request) {
	number, err := pathInt(r, "number")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req commentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	issue, err := s.backend.AddComment(r.Context(), r.PathValue("owner"), r.PathValue("repo"), int(number), req.Body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

func (s *Server) editComment(w http.ResponseWriter, r *http.Request) {
	number, err := pathInt(r, "number")
	if err != nil {
		writeError(w, r, err)
		return
	}
	commentID, err := pathInt(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req commentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	issue, err := s.backend.EditComment(r.Context(), r.PathValue("owner"), r.PathValue("repo"), int(number), commentID, req.Body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

func (s *Server) deleteComment(w http.ResponseWriter, r *http.Request) {
	number, err := pathInt(r, "number")
	if err != nil {
		writeError(w, r, err)
		return
	}
	commentID, err := pathInt(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	issue, err := s.backend.DeleteComment(r.Context(), r.PathValue("owner"), r.PathValue("repo"), int(number), commentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

func (s *Server) listRepos(w http.ResponseWriter, r *http.Request) {
	repos, err := s.backend.ListUserRepos(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, repos)
}

func (s *Server) getPinned(w http.ResponseWriter, r *http.Request) {
	repos, err := s.backend.GetPinnedRepos()
	if err != nil {
		writeLocalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, repos)
}

func (s *Server) savePinned(w http.ResponseWriter, r *http.Request) {
	var repos []string
	if err := decodeBody(r, &repos); err != nil {
		writeLocalError(w, r, err)
		return
	}

	saved, err := s.backend.SavePinnedRepos(repos)
	if err != nil {
		writeLocalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) syncPinned(w http.ResponseWriter, r *http.Request) {
	results, err := s.backend.SyncPinned(r.Context(), queryBool(r, "force"))
	if err != nil {
		writeLocalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) getRecents(w http.ResponseWriter, r *http.Request) {
	items, err := s.backend.Recents()
	if err != nil {
		writeLocalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

type recentRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (s *Server) addRecent(w http.ResponseWriter, r *http.Request) {
	var req recentRequest
	if err := decodeBody(r, &req); err != nil {
		writeLocalError(w, r, err)
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		writeLocalError(w, r, badRequest("id is required"))
		return
	}

	items, err := s.backend.AddRecent(req.ID, req.Name)
	if err != nil {
		writeLocalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) clearRecents(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.ClearRecents(); err != nil {
		writeLocalError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.backend.LoadSettings()
	if err != nil {
		writeLocalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) saveSettings(w http.ResponseWriter, r *http.Request) {
	var settings models.Settings
	if err := decodeBody(r, &settings); err != nil {
		writeLocalError(w, r, err)
		return
	}

	if err := s.backend.SaveSettings(settings); err != nil {
		writeLocalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) checkAuth(w http.ResponseWriter, r *http.Request) {
	status, err := s.backend.CheckAuth(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

type loginRequest struct {
	Token string `json:"token"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := s.backend.Login(r.Context(), req.Token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.AuthStatus{Authenticated: true, User: user})
}
