package realtime

import "strings"

// Scope returns the canonical key for a two-party conversation. Both
// participants compute the identical key regardless of who is sender or
// receiver in any given exchange.
func Scope(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return "dm:" + a + ":" + b
}

// IsDM reports whether scope names a two-party conversation.
func IsDM(scope string) bool {
	return strings.HasPrefix(scope, "dm:")
}

// ScopeMembers splits a DM scope back into its two participant IDs.
func ScopeMembers(scope string) (string, string, bool) {
	if !IsDM(scope) {
		return "", "", false
	}
	parts := strings.Split(scope, ":")
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}
