package authpath

import "strings"

// Route constants shared by the session gate, the auth callback, and the
// login handlers. LoginPath is a distinguished route: it is never protected.
const (
	LoginPath            = "/login"
	DefaultPostAuthPath  = "/log"
	RecoveryPostAuthPath = "/account"
)

// protectedRoutePrefixes is the canonical protected set. A path is protected
// when it equals a prefix or sits underneath it.
var protectedRoutePrefixes = []string{"/log", "/dashboard", "/account"}

// IsSafeInternalPath reports whether path can be used as a redirect target
// without leaving the origin. Rejects protocol-relative URLs ("//evil.com")
// and backslash variants some browsers normalize into forward slashes.
func IsSafeInternalPath(path string) bool {
	if !strings.HasPrefix(path, "/") {
		return false
	}
	if strings.HasPrefix(path, "//") {
		return false
	}
	if strings.Contains(path, "\\") {
		return false
	}
	return true
}

// ToSafeInternalPath returns path if it is a safe internal path, otherwise
// fallback. Empty input always yields the fallback.
func ToSafeInternalPath(path, fallback string) string {
	if path == "" {
		return fallback
	}
	if !IsSafeInternalPath(path) {
		return fallback
	}
	return path
}

// IsProtectedPath reports whether pathname requires an authenticated session.
// The decision is a pure function of the path; query strings never matter.
func IsProtectedPath(pathname string) bool {
	for _, prefix := range protectedRoutePrefixes {
		if pathname == prefix || strings.HasPrefix(pathname, prefix+"/") {
			return true
		}
	}
	return false
}

// PostAuthDestination computes where to land after a successful code
// exchange. An explicit safe next wins; a recovery link without one goes to
// the account page so the user can set a new password.
func PostAuthDestination(next, linkType string) string {
	if next != "" && IsSafeInternalPath(next) {
		return next
	}
	if linkType == "recovery" {
		return RecoveryPostAuthPath
	}
	return DefaultPostAuthPath
}
