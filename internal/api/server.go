package api

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/linkvault/internal/auth"
	"github.com/JakeFAU/linkvault/internal/bookmark"
	"github.com/JakeFAU/linkvault/internal/metrics"
)

// Bookmarks is the service behind the JSON API.
type Bookmarks interface {
	List(ctx context.Context, opts bookmark.ListOptions) ([]bookmark.Bookmark, error)
	Get(ctx context.Context, id int64) (bookmark.Bookmark, error)
	Create(ctx context.Context, rawURL string) (bookmark.Bookmark, error)
	Update(ctx context.Context, id int64, patch bookmark.Patch) (bookmark.Bookmark, error)
	Delete(ctx context.Context, id int64) error
	Snapshot(ctx context.Context, id int64) (bookmark.Object, error)
	Favicon(ctx context.Context, id int64) (bookmark.Object, error)
}

// Pinger is a dependency checked by /readyz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Tagger derives entity tags for artifact responses.
type Tagger interface {
	ETag(data []byte) string
}

// Throttle limits login attempts per client.
type Throttle interface {
	Allow(key string) bool
}

// Options configures a Server.
type Options struct {
	Bookmarks Bookmarks
	// Gate enables the login flow and session checks when non-nil.
	Gate     *auth.Gate
	Throttle Throttle
	Tagger   Tagger
	// Readiness maps a dependency name to its health check.
	Readiness      map[string]Pinger
	StaticDir      string
	RequestTimeout time.Duration
	Logger         *zap.Logger
}

// Server wires HTTP handlers to the bookmark service.
type Server struct {
	router    chi.Router
	bookmarks Bookmarks
	gate      *auth.Gate
	throttle  Throttle
	tagger    Tagger
	readiness map[string]Pinger
	staticDir string
	logger    *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(opts Options) (*Server, error) {
	if opts.Bookmarks == nil {
		return nil, fmt.Errorf("bookmark service is required")
	}
	if opts.Tagger == nil {
		return nil, fmt.Errorf("tagger is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	s := &Server{
		bookmarks: opts.Bookmarks,
		gate:      opts.Gate,
		throttle:  opts.Throttle,
		tagger:    opts.Tagger,
		readiness: opts.Readiness,
		staticDir: opts.StaticDir,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	if s.gate != nil {
		r.Use(s.gate.Middleware)
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Get(auth.LoginPath, s.loginPage)
	if s.gate != nil {
		r.Post("/auth/login", s.login)
		r.Get("/logout", s.logout)
	}

	r.Route("/api/bookmarks", func(r chi.Router) {
		r.Use(timeoutMiddleware(timeout))
		r.Get("/", s.listBookmarks)
		r.Post("/", s.createBookmark)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getBookmark)
			r.Put("/", s.updateBookmark)
			r.Delete("/", s.deleteBookmark)
		})
	})
	r.Get("/snapshot/{id}", s.snapshot)
	r.Get("/favicon/{id}", s.favicon)

	if s.staticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.staticDir)))
	}

	s.router = r
	return s, nil
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// PublicPaths lists the routes reachable without a session.
func PublicPaths() []string {
	return []string{auth.LoginPath, "/auth/login", "/healthz", "/readyz", "/metrics", "/style.css"}
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	for name, p := range s.readiness {
		if err := p.Ping(ctx); err != nil {
			s.logger.Warn("readiness check failed", zap.String("dependency", name), zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":     "unavailable",
				"dependency": name,
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) loginPage(w http.ResponseWriter, r *http.Request) {
	if s.staticDir == "" {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, filepath.Join(s.staticDir, "login.html"))
}
