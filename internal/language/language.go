// Package language provides language tag normalization and display names.
package language

// Normalize folds near-duplicate dialect tags into their canonical code.
// The backend reports Bosnian separately even though the recognition
// models treat it as Croatian, so "bs" collapses to "hr". Every other
// tag, including the empty tag, passes through unchanged.
func Normalize(tag string) string {
	if tag == "bs" {
		return "hr"
	}
	return tag
}

// Name returns the English display name for an ISO 639-1 code, or the
// code itself when unknown.
func Name(code string) string {
	if n, ok := names[code]; ok {
		return n
	}
	return code
}
