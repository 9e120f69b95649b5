package guideline

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Context is one of the two independent applicability scopes.
type Context string

const (
	AllRust  Context = "all_rust"
	SafeRust Context = "safe_rust"
)

// Contexts lists every context in canonical order.
var Contexts = []Context{AllRust, SafeRust}

// ParseContext validates a context name.
func ParseContext(s string) (Context, error) {
	c := Context(normalizeToken(s))
	for _, known := range Contexts {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown context %q", s)
}

// Applicability answers "does this guideline apply in this context".
type Applicability string

const (
	Yes     Applicability = "yes"
	No      Applicability = "no"
	Partial Applicability = "partial"
)

// Applicable reports whether a is yes or partial.
func (a Applicability) Applicable() bool { return a == Yes || a == Partial }

// Category is the adjusted guideline category. The zero value means null.
type Category string

const (
	CategoryMandatory  Category = "mandatory"
	CategoryRequired   Category = "required"
	CategoryAdvisory   Category = "advisory"
	CategoryDisapplied Category = "disapplied"
	CategoryImplicit   Category = "implicit"
	CategoryNA         Category = "n_a"
)

// MarshalJSON writes the null category as JSON null.
func (c Category) MarshalJSON() ([]byte, error) {
	if c == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(c))
}

// UnmarshalJSON reads JSON null as the null category.
func (c *Category) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*c = Category(s)
	return nil
}

// RationaleKind explains how a guideline maps onto the language.
type RationaleKind string

const (
	DirectMapping   RationaleKind = "direct_mapping"
	PartialMapping  RationaleKind = "partial_mapping"
	RustAlternative RationaleKind = "rust_alternative"
	RustPrevents    RationaleKind = "rust_prevents"
	NoEquivalent    RationaleKind = "no_equivalent"
)

// Confidence is the classifier's self-reported confidence.
type Confidence string

const (
	High   Confidence = "high"
	Medium Confidence = "medium"
	Low    Confidence = "low"
)

var (
	applicabilities = []Applicability{Yes, No, Partial}
	categories      = []Category{CategoryMandatory, CategoryRequired, CategoryAdvisory, CategoryDisapplied, CategoryImplicit, CategoryNA}
	rationaleKinds  = []RationaleKind{DirectMapping, PartialMapping, RustAlternative, RustPrevents, NoEquivalent}
	confidences     = []Confidence{High, Medium, Low}
)

// aliases maps vocabulary used by external classifications onto ours.
var aliases = map[string]string{
	"not_applicable": "n_a",
	"n/a":            "n_a",
	"na":             "n_a",
	"yes_partial":    "partial",
	"partially":      "partial",
}

// normalizeToken lower-cases, trims, and folds separators to underscores.
func normalizeToken(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	if a, ok := aliases[s]; ok {
		return a
	}
	return s
}

// ParseApplicability accepts exactly one of yes, no, partial.
func ParseApplicability(s string) (Applicability, error) {
	return parseEnum(s, applicabilities, "applicability", false)
}

// NormalizeApplicability folds external vocabularies ("Yes", "Partial")
// before parsing. Unknown values are still an error.
func NormalizeApplicability(s string) (Applicability, error) {
	return parseEnum(s, applicabilities, "applicability", true)
}

// ParseCategory accepts a known category; the empty string is null.
func ParseCategory(s string) (Category, error) {
	if s == "" {
		return "", nil
	}
	return parseEnum(s, categories, "category", false)
}

// NormalizeCategory is ParseCategory with vocabulary folding.
func NormalizeCategory(s string) (Category, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	return parseEnum(s, categories, "category", true)
}

// ParseRationaleKind accepts a known rationale kind.
func ParseRationaleKind(s string) (RationaleKind, error) {
	return parseEnum(s, rationaleKinds, "rationale_kind", false)
}

// ParseConfidence accepts high, medium or low.
func ParseConfidence(s string) (Confidence, error) {
	return parseEnum(s, confidences, "confidence", false)
}

func parseEnum[T ~string](s string, allowed []T, what string, normalize bool) (T, error) {
	v := s
	if normalize {
		v = normalizeToken(s)
	}
	for _, a := range allowed {
		if T(v) == a {
			return a, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("unknown %s %q", what, s)
}
