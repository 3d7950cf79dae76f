package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cadence/internal/models"
	"cadence/internal/service"
)

type fakeValidator struct {
	enabled bool
	user    *models.User
	session *models.Session
	err     error
}

func (f *fakeValidator) Enabled() bool { return f.enabled }

func (f *fakeValidator) ValidateSession(sessionID string) (*models.User, *models.Session, error) {
	return f.user, f.session, f.err
}

func newGate(validator *fakeValidator) http.Handler {
	mw := NewMiddleware(validator, nil, nil)
	return mw.SessionGate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user := GetUserFromContext(r.Context()); user != nil {
			w.Header().Set("X-User", user.Email)
		}
		w.WriteHeader(http.StatusOK)
	}))
}

func signedInValidator() *fakeValidator {
	return &fakeValidator{
		enabled: true,
		user:    &models.User{ID: "user-1", Email: "parent@example.com"},
		session: &models.Session{ID: "sess-1", UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)},
	}
}

func TestSessionGateRedirectsUnauthenticatedFromProtectedPath(t *testing.T) {
	tests := []struct {
		name         string
		target       string
		wantLocation string
	}{
		{
			name:         "account page",
			target:       "/account",
			wantLocation: "/login?next=%2Faccount",
		},
		{
			name:         "nested dashboard path",
			target:       "/dashboard/children",
			wantLocation: "/login?next=%2Fdashboard%2Fchildren",
		},
		{
			name:         "query string preserved",
			target:       "/log?child=abc",
			wantLocation: "/login?next=%2Flog%3Fchild%3Dabc",
		},
	}

	gate := newGate(&fakeValidator{enabled: true, err: service.ErrSessionNotFound})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", tt.target, nil)
			w := httptest.NewRecorder()

			gate.ServeHTTP(w, r)

			if w.Code != http.StatusFound {
				t.Fatalf("expected 302, got %d", w.Code)
			}
			if got := w.Header().Get("Location"); got != tt.wantLocation {
				t.Fatalf("expected redirect to %q, got %q", tt.wantLocation, got)
			}
		})
	}
}

func TestSessionGateAllowsUnauthenticatedOnPublicPath(t *testing.T) {
	gate := newGate(&fakeValidator{enabled: true})

	r := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()

	gate.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestSessionGateMarksLoginNonCacheable(t *testing.T) {
	gate := newGate(&fakeValidator{enabled: true})

	r := httptest.NewRequest("GET", "/login?error=Oops.", nil)
	w := httptest.NewRecorder()

	gate.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := w.Header().Get("Cache-Control"); got != "no-store" {
		t.Fatalf("expected Cache-Control no-store, got %q", got)
	}
}

func TestSessionGateBouncesAuthenticatedOffLogin(t *testing.T) {
	tests := []struct {
		name         string
		target       string
		wantLocation string
	}{
		{
			name:         "no next falls back to log",
			target:       "/login",
			wantLocation: "/log",
		},
		{
			name:         "safe next wins",
			target:       "/login?next=%2Fdashboard",
			wantLocation: "/dashboard",
		},
		{
			name:         "unsafe next ignored",
			target:       "/login?next=%2F%2Fevil.com",
			wantLocation: "/log",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := newGate(signedInValidator())

			r := httptest.NewRequest("GET", tt.target, nil)
			r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "sess-1"})
			w := httptest.NewRecorder()

			gate.ServeHTTP(w, r)

			if w.Code != http.StatusFound {
				t.Fatalf("expected 302, got %d", w.Code)
			}
			if got := w.Header().Get("Location"); got != tt.wantLocation {
				t.Fatalf("expected redirect to %q, got %q", tt.wantLocation, got)
			}
		})
	}
}

func TestSessionGatePassesUserAndRefreshesCookie(t *testing.T) {
	gate := newGate(signedInValidator())

	r := httptest.NewRequest("GET", "/log", nil)
	r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "sess-1"})
	w := httptest.NewRecorder()

	gate.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := w.Header().Get("X-User"); got != "parent@example.com" {
		t.Fatalf("expected user in context, got %q", got)
	}

	var sessionCookie *http.Cookie
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == SessionCookieName {
			sessionCookie = cookie
		}
	}
	if sessionCookie == nil {
		t.Fatal("expected session cookie to be re-set")
	}
	if sessionCookie.Value != "sess-1" {
		t.Fatalf("expected cookie value sess-1, got %q", sessionCookie.Value)
	}
	if !sessionCookie.HttpOnly {
		t.Fatal("expected session cookie to be HttpOnly")
	}
}

func TestSessionGateClearsInvalidCookie(t *testing.T) {
	gate := newGate(&fakeValidator{enabled: true, err: service.ErrSessionExpired})

	r := httptest.NewRequest("GET", "/account", nil)
	r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "stale"})
	w := httptest.NewRecorder()

	gate.ServeHTTP(w, r)

	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}

	cleared := false
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == SessionCookieName && cookie.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatal("expected stale session cookie to be cleared")
	}
}

func TestSessionGateFailsOpenWhenAuthDisabled(t *testing.T) {
	gate := newGate(&fakeValidator{enabled: false})

	r := httptest.NewRequest("GET", "/dashboard", nil)
	w := httptest.NewRecorder()

	gate.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected protected path to be allowed when auth is disabled, got %d", w.Code)
	}
	if got := w.Header().Get("X-User"); got != "" {
		t.Fatalf("expected no user in context, got %q", got)
	}
}
