package handlers

import (
	"html/template"
	"log"
	"net/http"

	"cadence/internal/authpath"
	"cadence/internal/models"
	"cadence/internal/security"
	"cadence/internal/service"
)

// PageHandler renders the server-side pages. Protected pages run bootstrap
// before anything else so a first-time visit always lands in a usable
// family.
type PageHandler struct {
	bootstrap     *service.BootstrapService
	familyService *service.FamilyService
	csrf          *security.CSRFGenerator
	templates     *template.Template
}

// NewPageHandler creates a new page handler
func NewPageHandler(bootstrap *service.BootstrapService, familyService *service.FamilyService, csrf *security.CSRFGenerator, templates *template.Template) *PageHandler {
	return &PageHandler{
		bootstrap:     bootstrap,
		familyService: familyService,
		csrf:          csrf,
		templates:     templates,
	}
}

// Home renders the landing page, or sends signed-in users to the log
func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	if GetUserFromContext(r.Context()) != nil {
		http.Redirect(w, r, authpath.DefaultPostAuthPath, http.StatusSeeOther)
		return
	}

	h.render(w, "home.tmpl", map[string]interface{}{
		"Title": "Cadence",
	})
}

// Log renders the activity logging page
func (h *PageHandler) Log(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	if _, err := h.bootstrap.EnsureBootstrap(user.ID, user.Email); err != nil {
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Bootstrap failed", err)
		return
	}

	children, err := h.familyService.ListChildren(user.ID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Failed to list children", err)
		return
	}

	activeChildID := ""
	if cookie, err := r.Cookie(ActiveChildCookieName); err == nil {
		activeChildID = cookie.Value
	}

	// The cookie is a hint; fall back to the first child when it does not
	// resolve inside this family
	var activeChild *models.Child
	for i := range children {
		if children[i].ID == activeChildID {
			activeChild = &children[i]
			break
		}
	}
	if activeChild == nil && len(children) > 0 {
		activeChild = &children[0]
	}

	var activities []models.Activity
	if activeChild != nil {
		activities, err = h.familyService.ListRecentActivities(user.ID, activeChild.ID, service.DefaultRecentActivityLimit)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Failed to list activities", err)
			return
		}
	}

	h.render(w, "log.tmpl", map[string]interface{}{
		"Title":       "Log - Cadence",
		"User":        user,
		"Children":    children,
		"ActiveChild": activeChild,
		"Activities":  activities,
	})
}

// Dashboard renders the per-child activity overview
func (h *PageHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	if _, err := h.bootstrap.EnsureBootstrap(user.ID, user.Email); err != nil {
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Bootstrap failed", err)
		return
	}

	children, err := h.familyService.ListChildren(user.ID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Failed to list children", err)
		return
	}

	type childActivities struct {
		Child      models.Child
		Activities []models.Activity
	}

	var sections []childActivities
	for _, child := range children {
		activities, err := h.familyService.ListRecentActivities(user.ID, child.ID, service.DefaultRecentActivityLimit)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Failed to list activities", err)
			return
		}
		sections = append(sections, childActivities{Child: child, Activities: activities})
	}

	h.render(w, "dashboard.tmpl", map[string]interface{}{
		"Title":    "Dashboard - Cadence",
		"User":     user,
		"Sections": sections,
	})
}

// Account renders the account page, where recovery links land to set a new
// password
func (h *PageHandler) Account(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	if _, err := h.bootstrap.EnsureBootstrap(user.ID, user.Email); err != nil {
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Bootstrap failed", err)
		return
	}

	family, members, err := h.bootstrap.GetCurrentFamily(user.ID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "Failed to load family", err)
		return
	}

	csrfToken := ""
	if session := GetSessionFromContext(r.Context()); session != nil {
		if token, err := h.csrf.GenerateToken(session.ID); err == nil {
			csrfToken = token
		}
	}

	h.render(w, "account.tmpl", map[string]interface{}{
		"Title":     "Account - Cadence",
		"User":      user,
		"Family":    family,
		"Members":   members,
		"CSRFToken": csrfToken,
		"Error":     r.URL.Query().Get("error"),
		"Notice":    r.URL.Query().Get("notice"),
	})
}

func (h *PageHandler) render(w http.ResponseWriter, name string, data map[string]interface{}) {
	if err := h.templates.ExecuteTemplate(w, name, data); err != nil {
		log.Printf("Error rendering %s: %v", name, err)
		http.Error(w, ErrInternalServerError, http.StatusInternalServerError)
	}
}
