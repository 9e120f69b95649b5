// Package diff compares a baseline classification with a proposed one and
// with an authoritative reference. It only reports structural differences;
// whether a difference is right or wrong is for a reviewer to decide.
//
// Match identity is the match id alone. Editing a justification is not a
// change, and a match whose category was corrected under a new id shows up
// as one removal plus one unrelated addition.
package diff

import (
	"sort"

	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/guideline"
)

// Field names a compared classification field.
type Field string

const (
	FieldApplicability Field = "applicability"
	FieldCategory      Field = "category"
	FieldRationale     Field = "rationale_kind"
)

// CategorizationFields are compared between baseline and proposed.
var CategorizationFields = []Field{FieldApplicability, FieldCategory, FieldRationale}

// ReferenceFields are compared between proposed and the reference.
var ReferenceFields = []Field{FieldApplicability, FieldCategory}

// FieldDelta is the before/after value of one field.
type FieldDelta struct {
	Field   Field  `json:"field"`
	Before  string `json:"before"`
	After   string `json:"after"`
	Changed bool   `json:"changed"`
}

// ReferenceStatus says whether a reference value could be compared at all.
type ReferenceStatus string

const (
	ReferenceCompared ReferenceStatus = "compared"
	// ReferenceIncomparable means the reference is absent or null for the
	// field. It never counts as divergence.
	ReferenceIncomparable ReferenceStatus = "incomparable"
)

// ReferenceDelta compares one proposed field against the reference.
type ReferenceDelta struct {
	Field     Field           `json:"field"`
	Proposed  string          `json:"proposed"`
	Reference string          `json:"reference"`
	Status    ReferenceStatus `json:"status"`
	Diverges  bool            `json:"diverges"`
}

// ComparisonResult is the structural comparison of one context.
type ComparisonResult struct {
	Context guideline.Context `json:"context"`
	Fields  []FieldDelta      `json:"fields"`

	// Retained holds proposed's copies, so edited justifications survive.
	Retained []guideline.Match `json:"retained"`
	// Removed holds baseline's copies.
	Removed []guideline.Match `json:"removed"`
	// Added holds proposed's copies.
	Added []guideline.Match `json:"added"`

	BaselineSpecific int `json:"baseline_specific"`
	ProposedSpecific int `json:"proposed_specific"`
	// LostSpecific lists baseline specific matches absent from proposed.
	LostSpecific []guideline.Match `json:"lost_specific"`

	Reference []ReferenceDelta `json:"reference"`
}

// Field returns the delta for f.
func (r ComparisonResult) Field(f Field) FieldDelta {
	for _, d := range r.Fields {
		if d.Field == f {
			return d
		}
	}
	return FieldDelta{Field: f}
}

// ReferenceField returns the reference delta for f.
func (r ComparisonResult) ReferenceField(f Field) ReferenceDelta {
	for _, d := range r.Reference {
		if d.Field == f {
			return d
		}
	}
	return ReferenceDelta{Field: f, Status: ReferenceIncomparable}
}

// Divergence holds one flag per reference field.
type Divergence struct {
	Applicability bool `json:"applicability"`
	Category      bool `json:"category"`
}

// Any reports whether any field diverges.
func (d Divergence) Any() bool { return d.Applicability || d.Category }

// Field returns the flag for f.
func (d Divergence) Field(f Field) bool {
	switch f {
	case FieldApplicability:
		return d.Applicability
	case FieldCategory:
		return d.Category
	}
	return false
}

// DiffFlags are the per-context outlier flags.
type DiffFlags struct {
	ApplicabilityChanged  bool       `json:"applicability_changed"`
	CategoryChanged       bool       `json:"category_changed"`
	RationaleChanged      bool       `json:"rationale_changed"`
	MatchesAdded          bool       `json:"matches_added"`
	MatchesRemoved        bool       `json:"matches_removed"`
	SpecificityDecreased  bool       `json:"specificity_decreased"`
	DivergesFromReference Divergence `json:"diverges_from_reference"`
}

// CategorizationChanged reports whether any categorization field changed.
func (f DiffFlags) CategorizationChanged() bool {
	return f.ApplicabilityChanged || f.CategoryChanged || f.RationaleChanged
}

// Count returns how many independent flags are set.
func (f DiffFlags) Count() int {
	n := 0
	for _, b := range []bool{
		f.ApplicabilityChanged, f.CategoryChanged, f.RationaleChanged,
		f.MatchesAdded, f.MatchesRemoved, f.SpecificityDecreased,
		f.DivergesFromReference.Applicability, f.DivergesFromReference.Category,
	} {
		if b {
			n++
		}
	}
	return n
}

// Names lists the JSON names of the set flags in declaration order.
func (f DiffFlags) Names() []string {
	var out []string
	add := func(set bool, name string) {
		if set {
			out = append(out, name)
		}
	}
	add(f.ApplicabilityChanged, "applicability_changed")
	add(f.CategoryChanged, "category_changed")
	add(f.RationaleChanged, "rationale_changed")
	add(f.MatchesAdded, "matches_added")
	add(f.MatchesRemoved, "matches_removed")
	add(f.SpecificityDecreased, "specificity_decreased")
	add(f.DivergesFromReference.Any(), "diverges_from_reference")
	return out
}

// ComputeComparison compares one context. baseline and reference may be nil;
// a nil baseline is an empty classification and a nil reference is
// incomparable. The function is pure.
func ComputeComparison(ctx guideline.Context, baseline, proposed *guideline.ContextClassification, reference *guideline.ReferenceContext) (ComparisonResult, DiffFlags) {
	if baseline == nil {
		baseline = &guideline.ContextClassification{}
	}
	if proposed == nil {
		proposed = &guideline.ContextClassification{}
	}
	res := ComparisonResult{Context: ctx}
	var flags DiffFlags

	// Field diff.
	res.Fields = []FieldDelta{
		delta(FieldApplicability, string(baseline.Applicability), string(proposed.Applicability)),
		delta(FieldCategory, string(baseline.Category), string(proposed.Category)),
		delta(FieldRationale, string(baseline.RationaleKind), string(proposed.RationaleKind)),
	}
	flags.ApplicabilityChanged = res.Fields[0].Changed
	flags.CategoryChanged = res.Fields[1].Changed
	flags.RationaleChanged = res.Fields[2].Changed

	// Match-set diff, by id only.
	res.Retained, res.Removed, res.Added = partition(baseline.Accepted, proposed.Accepted)
	flags.MatchesAdded = len(res.Added) > 0
	flags.MatchesRemoved = len(res.Removed) > 0

	// Specificity.
	baseSpec := baseline.SpecificAccepted()
	propSpec := proposed.SpecificAccepted()
	res.BaselineSpecific = len(baseSpec)
	res.ProposedSpecific = len(propSpec)
	res.LostSpecific = minus(baseSpec, propSpec)
	flags.SpecificityDecreased = len(res.LostSpecific) > 0 && len(propSpec) < len(baseSpec)

	// Reference divergence.
	res.Reference = []ReferenceDelta{
		compareReference(FieldApplicability, string(proposed.Applicability), refValue(reference, FieldApplicability), guideline.NormalizeApplicability),
		compareReference(FieldCategory, string(proposed.Category), refValue(reference, FieldCategory), guideline.NormalizeCategory),
	}
	flags.DivergesFromReference = Divergence{
		Applicability: res.Reference[0].Diverges,
		Category:      res.Reference[1].Diverges,
	}
	return res, flags
}

func delta(f Field, before, after string) FieldDelta {
	return FieldDelta{Field: f, Before: before, After: after, Changed: before != after}
}

func refValue(ref *guideline.ReferenceContext, f Field) string {
	if ref == nil {
		return ""
	}
	switch f {
	case FieldApplicability:
		return string(ref.Applicability)
	case FieldCategory:
		return string(ref.Category)
	}
	return ""
}

// compareReference normalizes both vocabularies before comparing. A value
// that fails to normalize is compared verbatim; decoding has already
// rejected unknown values on both sides.
func compareReference[T ~string](f Field, proposed, reference string, norm func(string) (T, error)) ReferenceDelta {
	d := ReferenceDelta{Field: f, Proposed: proposed, Reference: reference}
	if reference == "" {
		d.Status = ReferenceIncomparable
		return d
	}
	d.Status = ReferenceCompared
	p, r := proposed, reference
	if v, err := norm(proposed); err == nil {
		p = string(v)
	}
	if v, err := norm(reference); err == nil {
		r = string(v)
	}
	d.Diverges = p != r
	return d
}

// partition splits matches into retained (proposed copies), removed
// (baseline copies) and added (proposed copies). Each output is sorted by id.
func partition(baseline, proposed []guideline.Match) (retained, removed, added []guideline.Match) {
	inBase := idSet(baseline)
	inProp := idSet(proposed)
	for _, m := range proposed {
		if inBase[m.ID] {
			retained = append(retained, m)
		} else {
			added = append(added, m)
		}
	}
	for _, m := range baseline {
		if !inProp[m.ID] {
			removed = append(removed, m)
		}
	}
	sortByID(retained)
	sortByID(removed)
	sortByID(added)
	return retained, removed, added
}

func minus(a, b []guideline.Match) []guideline.Match {
	inB := idSet(b)
	var out []guideline.Match
	for _, m := range a {
		if !inB[m.ID] {
			out = append(out, m)
		}
	}
	sortByID(out)
	return out
}

func idSet(ms []guideline.Match) map[string]bool {
	out := make(map[string]bool, len(ms))
	for _, m := range ms {
		out[m.ID] = true
	}
	return out
}

func sortByID(ms []guideline.Match) {
	sort.SliceStable(ms, func(i, j int) bool { return ms[i].ID < ms[j].ID })
}
