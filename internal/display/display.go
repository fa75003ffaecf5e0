// Package display provides human-readable names for machine codes.
//
// Rule: code is for machines, words are for humans.
// Use these functions in CLI output and tables. Keep raw codes for JSON
// fields, map keys, and equality comparisons.
package display

// --- Bug statuses ---

var statuses = map[string]string{
	"pending":          "Pending",
	"verified":         "Verified",
	"not_reproducible": "Not reproducible",
	"fixed":            "Fixed",
}

// Status returns the human-readable name for a bug status.
// Unknown codes are returned as-is.
func Status(code string) string {
	if name, ok := statuses[code]; ok {
		return name
	}
	return code
}

// StatusWithCode returns "Not reproducible (not_reproducible)" format.
func StatusWithCode(code string) string {
	if name, ok := statuses[code]; ok {
		return name + " (" + code + ")"
	}
	return code
}

// --- Transitions ---

var transitions = map[string]string{
	"verified":         "Verified",
	"not_reproducible": "Not reproducible",
	"regression":       "Regression",
	"fix_confirmed":    "Fix confirmed",
	"ignored":          "Ignored",
}

// Transition returns the human-readable name for a transition kind.
// "fix_confirmed" -> "Fix confirmed".
func Transition(kind string) string {
	if name, ok := transitions[kind]; ok {
		return name
	}
	return kind
}

// --- Target failures ---

var failures = map[string]string{
	"timeout":      "Timed out",
	"agent":        "Agent error",
	"disconnected": "Device disconnected",
	"cancelled":    "Cancelled",
}

// Failure returns the human-readable name for a target failure kind.
func Failure(kind string) string {
	if name, ok := failures[kind]; ok {
		return name
	}
	return kind
}
