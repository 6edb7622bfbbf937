package api

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/linkvault/internal/bookmark"
)

const faviconCacheControl = "public, max-age=86400"

func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Snapshot not found", http.StatusNotFound)
		return
	}
	obj, err := s.bookmarks.Snapshot(r.Context(), id)
	if err != nil {
		s.artifactError(w, r, err, "Snapshot not found")
		return
	}
	s.serveArtifact(w, r, obj.Data, "text/html; charset=utf-8", "")
}

func (s *Server) favicon(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, "Favicon not found", http.StatusNotFound)
		return
	}
	obj, err := s.bookmarks.Favicon(r.Context(), id)
	if err != nil {
		s.artifactError(w, r, err, "Favicon not found")
		return
	}
	contentType := obj.ContentType
	if contentType == "" {
		contentType = "image/x-icon"
	}
	s.serveArtifact(w, r, obj.Data, contentType, faviconCacheControl)
}

func (s *Server) serveArtifact(w http.ResponseWriter, r *http.Request, data []byte, contentType, cacheControl string) {
	etag := s.tagger.ETag(data)
	h := w.Header()
	h.Set("ETag", etag)
	if cacheControl != "" {
		h.Set("Cache-Control", cacheControl)
	}
	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	h.Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Debug("artifact write failed", zap.Error(err))
	}
}

func (s *Server) artifactError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	if errors.Is(err, bookmark.ErrNotFound) {
		http.Error(w, notFound, http.StatusNotFound)
		return
	}
	s.logger.Error("artifact read failed",
		zap.String("request_id", RequestID(r.Context())),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}
