package auth

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// LoginPath is where unauthenticated browsers are sent.
const LoginPath = "/login"

// Gate ties sessions to an HTTP cookie.
type Gate struct {
	sessions   *Sessions
	password   Password
	cookieName string
	secure     bool
	public     map[string]bool
	logger     *zap.Logger
}

// GateConfig configures a Gate.
type GateConfig struct {
	CookieName string
	Secure     bool
	// PublicPaths bypass the session check.
	PublicPaths []string
}

// NewGate builds a Gate.
func NewGate(sessions *Sessions, password Password, cfg GateConfig, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	public := make(map[string]bool, len(cfg.PublicPaths))
	for _, p := range cfg.PublicPaths {
		public[p] = true
	}
	return &Gate{
		sessions:   sessions,
		password:   password,
		cookieName: cfg.CookieName,
		secure:     cfg.Secure,
		public:     public,
		logger:     logger,
	}
}

// Middleware redirects requests without a valid session to LoginPath.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.public[r.URL.Path] || g.Authenticated(r) {
			next.ServeHTTP(w, r)
			return
		}
		http.Redirect(w, r, LoginPath, http.StatusFound)
	})
}

// Authenticated reports whether r carries a valid session cookie.
func (g *Gate) Authenticated(r *http.Request) bool {
	cookie, err := r.Cookie(g.cookieName)
	if err != nil {
		return false
	}
	if err := g.sessions.Verify(cookie.Value); err != nil {
		g.logger.Debug("session rejected", zap.Error(err))
		return false
	}
	return true
}

// Login checks password and, on a match, sets a fresh session cookie.
func (g *Gate) Login(w http.ResponseWriter, password string) (bool, error) {
	if !g.password.Matches(password) {
		return false, nil
	}
	token, expires, err := g.sessions.Issue()
	if err != nil {
		return false, err
	}
	http.SetCookie(w, g.cookie(token, expires))
	return true, nil
}

// Logout expires the session cookie.
func (g *Gate) Logout(w http.ResponseWriter) {
	c := g.cookie("", time.Unix(0, 0))
	c.MaxAge = -1
	http.SetCookie(w, c)
}

func (g *Gate) cookie(value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     g.cookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   g.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
