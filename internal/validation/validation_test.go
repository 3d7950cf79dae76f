package validation

import (
	"strings"
	"testing"
)

func TestValidateChildName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "valid name", input: "Ada", wantErr: false},
		{name: "empty name", input: "", wantErr: true},
		{name: "whitespace only", input: "   ", wantErr: true},
		{name: "max length", input: strings.Repeat("a", 120), wantErr: false},
		{name: "too long", input: strings.Repeat("a", 121), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChildName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateChildName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateBirthYear(t *testing.T) {
	year := func(y int) *int { return &y }

	tests := []struct {
		name    string
		input   *int
		wantErr bool
	}{
		{name: "nil is allowed", input: nil, wantErr: false},
		{name: "lower bound", input: year(1900), wantErr: false},
		{name: "upper bound", input: year(2100), wantErr: false},
		{name: "below range", input: year(1899), wantErr: true},
		{name: "above range", input: year(2101), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBirthYear(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateBirthYear() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateDurationMinutes(t *testing.T) {
	minutes := func(m int) *int { return &m }

	tests := []struct {
		name    string
		input   *int
		wantErr bool
	}{
		{name: "nil is allowed", input: nil, wantErr: false},
		{name: "one minute", input: minutes(1), wantErr: false},
		{name: "full day", input: minutes(1440), wantErr: false},
		{name: "zero", input: minutes(0), wantErr: true},
		{name: "negative", input: minutes(-5), wantErr: true},
		{name: "over a day", input: minutes(1441), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDurationMinutes(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDurationMinutes() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeNotes(t *testing.T) {
	str := func(s string) *string { return &s }

	tests := []struct {
		name    string
		input   *string
		want    *string
		wantErr bool
	}{
		{name: "nil passes through", input: nil, want: nil},
		{name: "empty collapses to nil", input: str(""), want: nil},
		{name: "whitespace collapses to nil", input: str("   \n"), want: nil},
		{name: "trimmed", input: str("  practiced scales  "), want: str("practiced scales")},
		{name: "too long", input: str(strings.Repeat("x", 2001)), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeNotes(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeNotes() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			switch {
			case got == nil && tt.want != nil, got != nil && tt.want == nil:
				t.Errorf("NormalizeNotes() = %v, want %v", got, tt.want)
			case got != nil && *got != *tt.want:
				t.Errorf("NormalizeNotes() = %q, want %q", *got, *tt.want)
			}
		})
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := ValidationError{Field: "name", Message: "name is required"}
	if err.Error() != "name: name is required" {
		t.Errorf("unexpected error string: %q", err.Error())
	}
	if !IsValidationError(err) {
		t.Error("IsValidationError should report true for ValidationError")
	}
}
