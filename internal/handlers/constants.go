package handlers

const (
	SessionCookieName     = "session_id"
	ActiveChildCookieName = "active_child_id"

	ErrInvalidFormData     = "Invalid form data"
	ErrInvalidRequestBody  = "Invalid request body"
	ErrInternalServerError = "Internal server error"
)
