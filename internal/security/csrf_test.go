package security

import "testing"

func TestCSRFTokenRoundTrip(t *testing.T) {
	g := NewCSRFGenerator("test-secret")

	token, err := g.GenerateToken("session-1")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	if !g.ValidateToken("session-1", token) {
		t.Error("token should validate for the session it was issued to")
	}
	if g.ValidateToken("session-2", token) {
		t.Error("token should not validate for a different session")
	}
	if g.ValidateToken("session-1", "tampered") {
		t.Error("tampered token should not validate")
	}
	if g.ValidateToken("", token) {
		t.Error("empty session should never validate")
	}
}

func TestCSRFGenerateRequiresSession(t *testing.T) {
	g := NewCSRFGenerator("test-secret")
	if _, err := g.GenerateToken(""); err == nil {
		t.Error("GenerateToken should fail for an empty session ID")
	}
}
