package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"cadence/internal/security"
	"cadence/internal/service"
	"cadence/internal/validation"
)

// APIHandler serves the JSON endpoints used by the logging UI. Every
// operation is scoped through FamilyService, so a request can only ever
// touch rows in the caller's own family.
type APIHandler struct {
	familyService *service.FamilyService
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(familyService *service.FamilyService) *APIHandler {
	return &APIHandler{familyService: familyService}
}

type createChildRequest struct {
	Name      string `json:"name"`
	BirthYear *int   `json:"birthYear"`
}

// CreateChild handles POST /api/children
func (h *APIHandler) CreateChild(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	var req createChildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, ErrInvalidRequestBody)
		return
	}

	child, err := h.familyService.CreateChild(user.ID, service.CreateChildInput{
		Name:      req.Name,
		BirthYear: req.BirthYear,
	})
	if err != nil {
		h.respondServiceError(w, "Failed to create child", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"child": child})
}

// ListChildren handles GET /api/children
func (h *APIHandler) ListChildren(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	children, err := h.familyService.ListChildren(user.ID)
	if err != nil {
		h.respondServiceError(w, "Failed to list children", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"children": children})
}

type createActivityRequest struct {
	ChildID         string  `json:"childId"`
	Subject         string  `json:"subject"`
	OccurredAt      string  `json:"occurredAt"`
	DurationMinutes *int    `json:"durationMinutes"`
	Notes           *string `json:"notes"`
}

// CreateActivity handles POST /api/activities
func (h *APIHandler) CreateActivity(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	var req createActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, ErrInvalidRequestBody)
		return
	}

	occurredAt := time.Now()
	if req.OccurredAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.OccurredAt)
		if err != nil {
			respondJSONError(w, http.StatusBadRequest, "occurredAt must be an RFC 3339 timestamp")
			return
		}
		occurredAt = parsed
	}

	activity, err := h.familyService.CreateActivity(user.ID, service.CreateActivityInput{
		ChildID:         req.ChildID,
		Subject:         req.Subject,
		OccurredAt:      occurredAt,
		DurationMinutes: req.DurationMinutes,
		Notes:           req.Notes,
	})
	if err != nil {
		h.respondServiceError(w, "Failed to create activity", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"activity": activity})
}

type setActiveChildRequest struct {
	ChildID string `json:"childId"`
}

// SetActiveChild handles POST /api/active-child. The cookie it sets is a UI
// default only; nothing reads it for authorization, so the child is still
// verified against the caller's family before it is accepted.
func (h *APIHandler) SetActiveChild(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	var req setActiveChildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, ErrInvalidRequestBody)
		return
	}

	child, err := h.familyService.AssertChildInCurrentFamily(user.ID, req.ChildID)
	if err != nil {
		h.respondServiceError(w, "Failed to set active child", err)
		return
	}

	http.SetCookie(w, security.CreatePlainCookie(r, ActiveChildCookieName, child.ID))
	respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

// respondServiceError maps service failures to the API error contract:
// validation and ownership failures are the client's fault (400), anything
// else is ours (500 with a generic body).
func (h *APIHandler) respondServiceError(w http.ResponseWriter, logMsg string, err error) {
	switch {
	case validation.IsValidationError(err):
		respondJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrChildNotFound):
		respondJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNoFamily):
		respondJSONError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("%s: %v", logMsg, err)
		respondJSONError(w, http.StatusInternalServerError, "something went wrong")
	}
}
