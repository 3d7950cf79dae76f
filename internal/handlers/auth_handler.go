package handlers

import (
	"errors"
	"html/template"
	"log"
	"net/http"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"cadence/internal/authpath"
	"cadence/internal/security"
	"cadence/internal/service"
	"cadence/internal/validation"
)

// fallbackAuthErrorMessage is shown whenever a sign-in attempt fails for a
// reason the user cannot act on
const fallbackAuthErrorMessage = "Sign-in link is invalid or has expired."

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	authService  *service.AuthService
	emailService *service.EmailService
	templates    *template.Template
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService, emailService *service.EmailService, templates *template.Template) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		emailService: emailService,
		templates:    templates,
	}
}

// ShowLogin renders the login page. The gate has already redirected
// authenticated users away, so anyone reaching here has no session.
func (h *AuthHandler) ShowLogin(w http.ResponseWriter, r *http.Request) {
	h.renderLogin(w, r, map[string]interface{}{
		"Error": r.URL.Query().Get("error"),
	})
}

// Login handles password sign-in form submission
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, ErrInvalidFormData, http.StatusBadRequest)
		return
	}

	email := r.FormValue("email")
	password := r.FormValue("password")
	next := authpath.ToSafeInternalPath(r.FormValue("next"), "")

	session, _, err := h.authService.SignInWithPassword(email, password)
	if err != nil {
		message := "Something went wrong. Please try again."
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			message = "Invalid email or password."
		case errors.Is(err, service.ErrEmailNotConfirmed):
			message = "Please confirm your email before signing in."
		case errors.Is(err, service.ErrAuthDisabled):
			message = "Auth configuration is missing."
		default:
			log.Printf("Password sign-in failed for %s: %v", email, err)
		}
		h.renderLogin(w, r, map[string]interface{}{
			"Error": message,
			"Email": email,
			"Next":  next,
		})
		return
	}

	http.SetCookie(w, security.CreateSessionCookie(r, SessionCookieName, session.ID, session.ExpiresAt))
	http.Redirect(w, r, authpath.PostAuthDestination(next, ""), http.StatusSeeOther)
}

// SendMagicLink emails a single-use sign-in link. The response never reveals
// whether the address had an account before this request.
func (h *AuthHandler) SendMagicLink(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, ErrInvalidFormData, http.StatusBadRequest)
		return
	}

	email := r.FormValue("email")
	next := authpath.ToSafeInternalPath(r.FormValue("next"), "")

	if err := validation.ValidateEmail(email); err != nil {
		h.renderLogin(w, r, map[string]interface{}{
			"Error": "Please enter a valid email address.",
			"Email": email,
			"Next":  next,
		})
		return
	}

	if err := h.authService.SendMagicLink(r.Context(), h.emailService, email, next); err != nil {
		if errors.Is(err, service.ErrAuthDisabled) {
			h.renderLogin(w, r, map[string]interface{}{"Error": "Auth configuration is missing."})
			return
		}
		log.Printf("Failed to send magic link to %s: %v", email, err)
	}

	h.renderLogin(w, r, map[string]interface{}{
		"Notice": "Check your email for a sign-in link.",
		"Email":  email,
	})
}

// RequestPasswordReset emails a recovery link
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, ErrInvalidFormData, http.StatusBadRequest)
		return
	}

	email := r.FormValue("email")

	if err := validation.ValidateEmail(email); err != nil {
		h.renderLogin(w, r, map[string]interface{}{
			"Error": "Please enter a valid email address.",
			"Email": email,
		})
		return
	}

	if err := h.authService.RequestPasswordReset(r.Context(), h.emailService, email); err != nil {
		if errors.Is(err, service.ErrAuthDisabled) {
			h.renderLogin(w, r, map[string]interface{}{"Error": "Auth configuration is missing."})
			return
		}
		log.Printf("Failed to send recovery email to %s: %v", email, err)
	}

	h.renderLogin(w, r, map[string]interface{}{
		"Notice": "If that address has an account, a reset link is on its way.",
		"Email":  email,
	})
}

// Callback exchanges a one-time code for a session. All sign-in flows,
// magic link, recovery, and OAuth, converge here.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	next := authpath.ToSafeInternalPath(query.Get("next"), "")
	linkType := query.Get("type")

	if providerErr := query.Get("error"); providerErr != "" {
		message := toSentenceCase(query.Get("error_description"))
		h.redirectToLoginWithError(w, r, message, next)
		return
	}

	code := query.Get("code")
	if code == "" {
		h.redirectToLoginWithError(w, r, fallbackAuthErrorMessage, next)
		return
	}

	session, _, err := h.authService.ExchangeCodeForSession(code)
	if err != nil {
		message := "Something went wrong. Please try again."
		switch {
		case errors.Is(err, service.ErrCodeInvalid):
			message = fallbackAuthErrorMessage
		case errors.Is(err, service.ErrAuthDisabled):
			message = "Auth configuration is missing."
		default:
			log.Printf("Code exchange failed: %v", err)
		}
		h.redirectToLoginWithError(w, r, message, next)
		return
	}

	http.SetCookie(w, security.CreateSessionCookie(r, SessionCookieName, session.ID, session.ExpiresAt))
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, authpath.PostAuthDestination(next, linkType), http.StatusSeeOther)
}

// Logout handles logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		_ = h.authService.SignOut(cookie.Value)
	}

	http.SetCookie(w, security.CreateDeleteCookie(r, SessionCookieName))
	http.SetCookie(w, security.CreateDeleteCookie(r, ActiveChildCookieName))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// UpdatePassword sets a new password for the signed-in user. Recovery links
// land on the account page, which posts here.
func (h *AuthHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		http.Redirect(w, r, authpath.LoginPath, http.StatusFound)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, ErrInvalidFormData, http.StatusBadRequest)
		return
	}

	password := r.FormValue("password")
	if err := validation.ValidatePassword(password); err != nil {
		http.Redirect(w, r, authpath.RecoveryPostAuthPath+"?error="+url.QueryEscape(err.Error()), http.StatusSeeOther)
		return
	}

	if err := h.authService.UpdatePassword(user.ID, password); err != nil {
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Failed to update password", err)
		return
	}

	http.Redirect(w, r, authpath.RecoveryPostAuthPath+"?notice="+url.QueryEscape("Password updated."), http.StatusSeeOther)
}

func (h *AuthHandler) redirectToLoginWithError(w http.ResponseWriter, r *http.Request, message, next string) {
	values := url.Values{"error": []string{message}}
	if next != "" {
		values.Set("next", next)
	}
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, authpath.LoginPath+"?"+values.Encode(), http.StatusSeeOther)
}

func (h *AuthHandler) renderLogin(w http.ResponseWriter, r *http.Request, data map[string]interface{}) {
	if data == nil {
		data = map[string]interface{}{}
	}
	data["Title"] = "Sign in - Cadence"
	if _, ok := data["Email"]; !ok {
		data["Email"] = ""
	}
	if _, ok := data["Next"]; !ok {
		data["Next"] = authpath.ToSafeInternalPath(r.URL.Query().Get("next"), "")
	}

	if err := h.templates.ExecuteTemplate(w, "login.tmpl", data); err != nil {
		log.Printf("Error rendering login template: %v", err)
		http.Error(w, ErrInternalServerError, http.StatusInternalServerError)
	}
}

// toSentenceCase turns a provider error description into a displayable
// sentence. Plus signs survive some redirect encodings as literal characters,
// so they are folded back to spaces before trimming.
func toSentenceCase(description string) string {
	text := strings.TrimSpace(strings.ReplaceAll(description, "+", " "))
	if text == "" {
		return fallbackAuthErrorMessage
	}

	first, size := utf8.DecodeRuneInString(text)
	text = string(unicode.ToUpper(first)) + text[size:]

	if !strings.HasSuffix(text, ".") {
		text += "."
	}
	return text
}
