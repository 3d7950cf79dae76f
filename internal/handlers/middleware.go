package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/url"
	"time"

	"cadence/internal/authpath"
	"cadence/internal/models"
	"cadence/internal/security"
	"cadence/internal/service"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	UserContextKey    ContextKey = "user"
	SessionContextKey ContextKey = "session"
)

// SessionValidator is the slice of the auth service the gate needs
type SessionValidator interface {
	Enabled() bool
	ValidateSession(sessionID string) (*models.User, *models.Session, error)
}

// Middleware holds dependencies for middleware functions
type Middleware struct {
	auth        SessionValidator
	rateLimiter *security.RateLimiter
	csrf        *security.CSRFGenerator
}

// NewMiddleware creates a new middleware instance
func NewMiddleware(auth SessionValidator, rateLimiter *security.RateLimiter, csrf *security.CSRFGenerator) *Middleware {
	return &Middleware{
		auth:        auth,
		rateLimiter: rateLimiter,
		csrf:        csrf,
	}
}

// SessionGate wraps the whole route tree. It resolves the session cookie
// once per request, redirects unauthenticated requests off protected paths,
// and bounces authenticated users away from the login page. When auth is
// not configured the gate allows everything through rather than locking the
// entire app behind an unreachable login.
func (m *Middleware) SessionGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.auth.Enabled() {
			log.Printf("WARNING: auth disabled (AUTH_BASE_URL or SESSION_SECRET missing), allowing %s %s", r.Method, r.URL.Path)
			next.ServeHTTP(w, r)
			return
		}

		user, session := m.resolveSession(w, r)
		if user != nil {
			// Authenticated users have no business on the login page
			if r.URL.Path == authpath.LoginPath {
				dest := authpath.ToSafeInternalPath(r.URL.Query().Get("next"), authpath.DefaultPostAuthPath)
				http.Redirect(w, r, dest, http.StatusFound)
				return
			}

			// Sliding refresh: push the (possibly extended) expiry back
			// to the browser
			http.SetCookie(w, security.CreateSessionCookie(r, SessionCookieName, session.ID, session.ExpiresAt))

			ctx := context.WithValue(r.Context(), UserContextKey, user)
			ctx = context.WithValue(ctx, SessionContextKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		if authpath.IsProtectedPath(r.URL.Path) {
			target := r.URL.Path
			if r.URL.RawQuery != "" {
				target += "?" + r.URL.RawQuery
			}
			loginURL := authpath.LoginPath + "?" + url.Values{"next": []string{authpath.ToSafeInternalPath(target, authpath.DefaultPostAuthPath)}}.Encode()
			http.Redirect(w, r, loginURL, http.StatusFound)
			return
		}

		if r.URL.Path == authpath.LoginPath {
			// The login page reflects error and next query state
			w.Header().Set("Cache-Control", "no-store")
		}

		next.ServeHTTP(w, r)
	})
}

// resolveSession validates the session cookie if present. Stale or invalid
// cookies are cleared so the browser stops resending them.
func (m *Middleware) resolveSession(w http.ResponseWriter, r *http.Request) (*models.User, *models.Session) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, nil
	}

	user, session, err := m.auth.ValidateSession(cookie.Value)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) || errors.Is(err, service.ErrSessionExpired) {
			http.SetCookie(w, security.CreateDeleteCookie(r, SessionCookieName))
		} else {
			log.Printf("Session validation error: %v", err)
		}
		return nil, nil
	}

	return user, session
}

// RequireUser guards handlers that must never run without an authenticated
// user, regardless of path classification
func (m *Middleware) RequireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if GetUserFromContext(r.Context()) == nil {
			http.Redirect(w, r, authpath.LoginPath, http.StatusFound)
			return
		}
		next(w, r)
	}
}

// RequireUserJSON is RequireUser for API routes, answering JSON instead of
// redirecting
func (m *Middleware) RequireUserJSON(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if GetUserFromContext(r.Context()) == nil {
			respondJSONError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next(w, r)
	}
}

// CSRFProtect validates the csrf_token form field on session-bearing form
// posts. Tokens are derived from the session id, so they need no storage.
func (m *Middleware) CSRFProtect(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := GetSessionFromContext(r.Context())
		if session == nil {
			respondWithError(w, http.StatusForbidden, "Invalid CSRF token", "", nil)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, ErrInvalidFormData, http.StatusBadRequest)
			return
		}
		if !m.csrf.ValidateToken(session.ID, r.FormValue("csrf_token")) {
			respondWithError(w, http.StatusForbidden, "Invalid CSRF token", "", nil)
			return
		}
		next(w, r)
	}
}

// RateLimit throttles sensitive endpoints by client IP
func (m *Middleware) RateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := security.GetClientIP(r)
		if !m.rateLimiter.Allow(ip) {
			respondWithError(w, http.StatusTooManyRequests, "Too many requests, please try again later", "", nil)
			return
		}
		next(w, r)
	}
}

// Logging middleware logs HTTP requests
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		next.ServeHTTP(w, r)

		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

// GetUserFromContext retrieves the user from the request context
func GetUserFromContext(ctx context.Context) *models.User {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}

// GetSessionFromContext retrieves the session from the request context
func GetSessionFromContext(ctx context.Context) *models.Session {
	session, ok := ctx.Value(SessionContextKey).(*models.Session)
	if !ok {
		return nil
	}
	return session
}
