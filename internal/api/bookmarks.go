package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/linkvault/internal/bookmark"
)

type createRequest struct {
	URL string `json:"url"`
}

type updateRequest struct {
	Description *string `json:"description"`
	Tags        *string `json:"tags"`
	Archived    *bool   `json:"archived"`
}

func (s *Server) listBookmarks(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	archived, ok := bookmark.ParseArchivedFilter(query.Get("archived"))
	if !ok {
		writeError(w, http.StatusBadRequest, "archived must be include, only or exclude")
		return
	}
	items, err := s.bookmarks.List(r.Context(), bookmark.ListOptions{
		Query:    query.Get("q"),
		Archived: archived,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if items == nil {
		items = []bookmark.Bookmark{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) createBookmark(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	created, err := s.bookmarks.Create(r.Context(), req.URL)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) getBookmark(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	b, err := s.bookmarks.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) updateBookmark(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	updated, err := s.bookmarks.Update(r.Context(), id, bookmark.Patch{
		Description: req.Description,
		Tags:        req.Tags,
		Archived:    req.Archived != nil && *req.Archived,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteBookmark(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := s.bookmarks.Delete(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// fail maps a service error onto the JSON error contract.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, bookmark.ErrInvalidURL):
		writeError(w, http.StatusBadRequest, "URL is required")
	case errors.Is(err, bookmark.ErrConflict):
		writeError(w, http.StatusConflict, "URL already bookmarked")
	case errors.Is(err, bookmark.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found")
	default:
		s.logger.Error("request failed",
			zap.String("request_id", RequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
