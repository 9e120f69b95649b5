// Package guideline holds the classification record model: a guideline
// classified independently in each Context, with supporting Matches,
// plus an optional authoritative Reference classification.
//
// Records arrive as schema.Documents in any version of the lineage; Decode
// turns them into typed records and Encode writes the latest shape.
package guideline

import "sort"

// Match is a candidate piece of supporting content. Category 0 marks a
// generic container (a heading); any other value marks a specific, citable
// paragraph.
type Match struct {
	ID            string  `json:"id"`
	Category      int     `json:"category"`
	Title         string  `json:"title,omitempty"`
	Score         float64 `json:"score"`
	Justification string  `json:"justification,omitempty"`
}

// Specific reports whether m points at citable content.
func (m Match) Specific() bool { return m.Category != 0 }

// ContextClassification is the classification of a guideline in one context.
type ContextClassification struct {
	Applicability     Applicability `json:"applicability"`
	Category          Category      `json:"category"`
	RationaleKind     RationaleKind `json:"rationale_kind"`
	Confidence        Confidence    `json:"confidence"`
	Accepted          []Match       `json:"accepted_matches"`
	Rejected          []Match       `json:"rejected_matches"`
	Verified          bool          `json:"verified"`
	Notes             string        `json:"notes"`
	AcceptedCount     int           `json:"accepted_count"`
	SpecificCount     int           `json:"specific_count"`
	SpecificityWaiver *string       `json:"specificity_waiver"`
	Provenance        []string      `json:"provenance"`
}

// SpecificAccepted returns the accepted matches that are specific.
func (c *ContextClassification) SpecificAccepted() []Match {
	if c == nil {
		return nil
	}
	var out []Match
	for _, m := range c.Accepted {
		if m.Specific() {
			out = append(out, m)
		}
	}
	return out
}

// normalize sorts match sets and refreshes the derived counts.
func (c *ContextClassification) normalize() {
	SortMatches(c.Accepted)
	SortMatches(c.Rejected)
	if c.Accepted == nil {
		c.Accepted = []Match{}
	}
	if c.Rejected == nil {
		c.Rejected = []Match{}
	}
	if c.Provenance == nil {
		c.Provenance = []string{}
	}
	c.AcceptedCount = len(c.Accepted)
	c.SpecificCount = len(c.SpecificAccepted())
}

// ReferenceContext is the authoritative classification for one context.
// Empty fields mean the reference says nothing about them.
type ReferenceContext struct {
	Applicability Applicability `json:"applicability"`
	Category      Category      `json:"category"`
}

// Reference is a read-only external classification of a guideline.
type Reference struct {
	Source   string            `json:"source,omitempty"`
	AllRust  *ReferenceContext `json:"all_rust"`
	SafeRust *ReferenceContext `json:"safe_rust"`
}

// Context returns the reference for c, or nil. Safe on a nil Reference.
func (r *Reference) Context(c Context) *ReferenceContext {
	if r == nil {
		return nil
	}
	switch c {
	case AllRust:
		return r.AllRust
	case SafeRust:
		return r.SafeRust
	}
	return nil
}

// Record is a guideline classified in every context.
type Record struct {
	SchemaVersion string                 `json:"schema_version"`
	ID            string                 `json:"id"`
	Title         string                 `json:"title,omitempty"`
	Type          string                 `json:"type,omitempty"`
	Batch         *int                   `json:"batch"`
	AllRust       *ContextClassification `json:"all_rust"`
	SafeRust      *ContextClassification `json:"safe_rust"`
	Reference     *Reference             `json:"reference"`
}

// Scaffold returns an empty record for a guideline with no persisted history.
func Scaffold(id string) *Record {
	return &Record{
		ID:       id,
		AllRust:  &ContextClassification{},
		SafeRust: &ContextClassification{},
	}
}

// Context returns the classification for c, never nil.
func (r *Record) Context(c Context) *ContextClassification {
	var cc *ContextClassification
	switch c {
	case AllRust:
		cc = r.AllRust
	case SafeRust:
		cc = r.SafeRust
	}
	if cc == nil {
		return &ContextClassification{}
	}
	return cc
}

// SetContext replaces the classification for c.
func (r *Record) SetContext(c Context, cc *ContextClassification) {
	switch c {
	case AllRust:
		r.AllRust = cc
	case SafeRust:
		r.SafeRust = cc
	}
}

// ReviewSummary records how the final record passed the review gate.
type ReviewSummary struct {
	State        string `json:"state"`
	Bypassed     bool   `json:"bypassed"`
	BypassReason string `json:"bypass_reason,omitempty"`
}

// FinalRecord is the merged, audited output of one review cycle.
type FinalRecord struct {
	Record
	Review ReviewSummary `json:"review"`
}

// SortMatches orders matches by id in place.
func SortMatches(ms []Match) {
	sort.SliceStable(ms, func(i, j int) bool { return ms[i].ID < ms[j].ID })
}

// MatchIDs returns the ids of ms in their current order.
func MatchIDs(ms []Match) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.ID
	}
	return out
}
