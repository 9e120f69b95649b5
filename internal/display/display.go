// Package display provides human-readable names for machine codes.
//
// Rule: code is for machines, words are for humans.
// Use these functions in CLI output and Markdown summaries.
// Keep raw codes for JSON fields, map keys, and equality comparisons.
package display

import "strings"

// --- Contexts ---

var contexts = map[string]string{
	"all_rust":  "All Rust",
	"safe_rust": "Safe Rust",
}

// Context returns the human-readable name for a context code.
// Unknown codes are returned as-is.
func Context(code string) string {
	if name, ok := contexts[code]; ok {
		return name
	}
	return code
}

// --- Review scopes ---

var scopes = map[string]string{
	"categorization":       "Categorization",
	"match_removal":        "Removed Match",
	"match_addition":       "Added Match",
	"specificity":          "Specificity Loss",
	"reference_divergence": "Reference Divergence",
}

// Scope returns the human-readable name for an override scope.
func Scope(code string) string {
	if name, ok := scopes[code]; ok {
		return name
	}
	return code
}

// ScopeWithTarget returns "Removed Match (m2)" for targeted scopes and the
// plain scope name otherwise.
func ScopeWithTarget(code, target string) string {
	if target == "" {
		return Scope(code)
	}
	return Scope(code) + " (" + target + ")"
}

// --- Flags ---

var flags = map[string]string{
	"applicability_changed":   "Applicability Changed",
	"category_changed":        "Category Changed",
	"rationale_changed":       "Rationale Changed",
	"matches_added":           "Matches Added",
	"matches_removed":         "Matches Removed",
	"specificity_decreased":   "Specificity Decreased",
	"diverges_from_reference": "Diverges From Reference",
	"multi_dimension_outlier": "Multi-Dimension Outlier",
	"pattern_outlier":         "Pattern Outlier",
}

// Flag returns the human-readable name for a diff flag.
func Flag(code string) string {
	if name, ok := flags[code]; ok {
		return name
	}
	return code
}

// FlagList converts flag codes to a comma-separated list of names.
// An empty list reads "none".
func FlagList(codes []string) string {
	if len(codes) == 0 {
		return "none"
	}
	names := make([]string, len(codes))
	for i, c := range codes {
		names[i] = Flag(c)
	}
	return strings.Join(names, ", ")
}

// --- Review ---

var states = map[string]string{
	"pending":        "Pending",
	"partial":        "Partially Reviewed",
	"fully_reviewed": "Fully Reviewed",
}

// ReviewState returns the human-readable name for a review state.
func ReviewState(code string) string {
	if name, ok := states[code]; ok {
		return name
	}
	return code
}

var verdicts = map[string]string{
	"accept": "Accepted",
	"reject": "Rejected",
	"n_a":    "Not Applicable",
}

// Verdict returns the human-readable name for an override decision.
func Verdict(code string) string {
	if name, ok := verdicts[code]; ok {
		return name
	}
	return code
}
