package diff

import (
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/guideline"
)

// MultiDimensionThreshold is the number of independent flags, summed over
// both contexts, at which a guideline counts as a multi-dimension outlier.
const MultiDimensionThreshold = 2

// ContextComparison pairs a context's comparison with its flags.
type ContextComparison struct {
	Result ComparisonResult `json:"result"`
	Flags  DiffFlags        `json:"flags"`
}

// GuidelineComparison is the comparison of a whole guideline.
type GuidelineComparison struct {
	GuidelineID string              `json:"guideline_id"`
	Contexts    []ContextComparison `json:"contexts"`

	MultiDimensionOutlier bool     `json:"multi_dimension_outlier"`
	PatternOutlier        bool     `json:"pattern_outlier"`
	PatternDeviations     []string `json:"pattern_deviations,omitempty"`
}

// Context returns the comparison for c.
func (g *GuidelineComparison) Context(c guideline.Context) (ContextComparison, bool) {
	for _, cc := range g.Contexts {
		if cc.Result.Context == c {
			return cc, true
		}
	}
	return ContextComparison{}, false
}

// FlagCount sums flags across contexts.
func (g *GuidelineComparison) FlagCount() int {
	n := 0
	for _, cc := range g.Contexts {
		n += cc.Flags.Count()
	}
	return n
}

// Compare compares baseline and proposed using the reference carried by
// proposed, falling back to baseline's. See CompareWithReference.
func Compare(baseline, proposed *guideline.Record, exp *Expectations) (*GuidelineComparison, error) {
	return CompareWithReference(baseline, proposed, EffectiveReference(baseline, proposed), exp)
}

// EffectiveReference picks the reference a cycle compares against.
func EffectiveReference(baseline, proposed *guideline.Record) *guideline.Reference {
	if proposed != nil && proposed.Reference != nil {
		return proposed.Reference
	}
	if baseline != nil {
		return baseline.Reference
	}
	return nil
}

// CompareWithReference runs ComputeComparison for every context and sets
// the guideline-level outlier flags. A nil baseline is a scaffolded empty
// record. exp may be nil, in which case no pattern outlier is reported.
func CompareWithReference(baseline, proposed *guideline.Record, ref *guideline.Reference, exp *Expectations) (*GuidelineComparison, error) {
	if proposed == nil {
		return nil, guideline.Malformed("", "proposed", "missing proposed record")
	}
	if baseline == nil {
		baseline = guideline.Scaffold(proposed.ID)
	}
	if baseline.ID != proposed.ID {
		return nil, guideline.Malformed(proposed.ID, "id", "baseline is for guideline %q", baseline.ID)
	}

	out := &GuidelineComparison{GuidelineID: proposed.ID}
	for _, c := range guideline.Contexts {
		res, flags := ComputeComparison(c, baseline.Context(c), proposed.Context(c), ref.Context(c))
		out.Contexts = append(out.Contexts, ContextComparison{Result: res, Flags: flags})
	}
	out.MultiDimensionOutlier = out.FlagCount() >= MultiDimensionThreshold
	if exp != nil {
		out.PatternDeviations = exp.Deviations(proposed)
		out.PatternOutlier = len(out.PatternDeviations) > 0
	}
	return out, nil
}
