package validation

import (
	"fmt"
	"regexp"
	"strings"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Field constraints enforced before any write
const (
	NameMaxLen     = 120
	SubjectMaxLen  = 120
	NotesMaxLen    = 2000
	BirthYearMin   = 1900
	BirthYearMax   = 2100
	DurationMinute = 1
	DurationMax    = 1440
)

// ValidationError represents a field-level validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsValidationError reports whether err is a field-level validation error
func IsValidationError(err error) bool {
	_, ok := err.(ValidationError)
	return ok
}

// ValidateEmail checks if an email address is valid
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ValidationError{Field: "email", Message: "email is required"}
	}
	if !emailRegex.MatchString(email) {
		return ValidationError{Field: "email", Message: "invalid email format"}
	}
	return nil
}

// ValidatePassword checks if a password meets requirements
func ValidatePassword(password string) error {
	if password == "" {
		return ValidationError{Field: "password", Message: "password is required"}
	}
	if len(password) < 8 {
		return ValidationError{Field: "password", Message: "password must be at least 8 characters"}
	}
	return nil
}

// ValidateChildName checks a child's display name (1-120 chars after trim)
func ValidateChildName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ValidationError{Field: "name", Message: "name is required"}
	}
	if len(name) > NameMaxLen {
		return ValidationError{Field: "name", Message: fmt.Sprintf("name must be at most %d characters", NameMaxLen)}
	}
	return nil
}

// ValidateBirthYear checks an optional birth year (1900-2100)
func ValidateBirthYear(year *int) error {
	if year == nil {
		return nil
	}
	if *year < BirthYearMin || *year > BirthYearMax {
		return ValidationError{Field: "birthYear", Message: fmt.Sprintf("birth year must be between %d and %d", BirthYearMin, BirthYearMax)}
	}
	return nil
}

// ValidateSubject checks an activity subject (1-120 chars after trim)
func ValidateSubject(subject string) error {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return ValidationError{Field: "subject", Message: "subject is required"}
	}
	if len(subject) > SubjectMaxLen {
		return ValidationError{Field: "subject", Message: fmt.Sprintf("subject must be at most %d characters", SubjectMaxLen)}
	}
	return nil
}

// ValidateDurationMinutes checks an optional activity duration (1-1440)
func ValidateDurationMinutes(minutes *int) error {
	if minutes == nil {
		return nil
	}
	if *minutes < DurationMinute || *minutes > DurationMax {
		return ValidationError{Field: "durationMinutes", Message: fmt.Sprintf("duration must be between %d and %d minutes", DurationMinute, DurationMax)}
	}
	return nil
}

// NormalizeNotes trims optional notes and collapses empty notes to nil
func NormalizeNotes(notes *string) (*string, error) {
	if notes == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*notes)
	if trimmed == "" {
		return nil, nil
	}
	if len(trimmed) > NotesMaxLen {
		return nil, ValidationError{Field: "notes", Message: fmt.Sprintf("notes must be at most %d characters", NotesMaxLen)}
	}
	return &trimmed, nil
}
