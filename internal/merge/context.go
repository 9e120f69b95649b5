package merge

import (
	"fmt"

	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/diff"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/guideline"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/override"
)

// Provenance tags.
const (
	tagSpecificityRestore = "specificity:restore"
	tagBypassed           = "review:bypassed"
)

// contextMerge merges one context.
type contextMerge struct {
	id         string
	ctx        guideline.Context
	base, prop *guideline.ContextClassification
	ref        *guideline.ReferenceContext
	cmp        diff.ContextComparison
	snap       override.Snapshot
	bypassed   bool

	provenance []string
	missing    bool
}

func (m *contextMerge) decision(scope override.Scope, target string) (override.Decision, bool) {
	d, ok := m.snap.Lookup(override.Key{GuidelineID: m.id, Context: m.ctx, Scope: scope, TargetID: target})
	if !ok {
		m.missing = true
		return d, false
	}
	tag := string(scope)
	if target != "" {
		tag += ":" + target
	}
	m.provenance = append(m.provenance, tag+":"+string(d.Verdict))
	if d.ViaBulk {
		m.provenance = append(m.provenance, "bulk:"+target)
	}
	return d, true
}

func (m *contextMerge) run() *guideline.ContextClassification {
	out := &guideline.ContextClassification{
		Applicability: m.prop.Applicability,
		Category:      m.prop.Category,
		RationaleKind: m.prop.RationaleKind,
		Confidence:    m.prop.Confidence,
		Notes:         m.prop.Notes,
		Verified:      true,
	}
	flags := m.cmp.Flags
	res := m.cmp.Result

	// Categorization. Unchanged fields are equal under either branch.
	if flags.CategorizationChanged() {
		if d, ok := m.decision(override.ScopeCategorization, ""); ok && d.Verdict != override.Accept {
			out.Applicability = m.base.Applicability
			out.Category = m.base.Category
			out.RationaleKind = m.base.RationaleKind
		}
	}

	// Match set, keyed by id.
	accepted := make(map[string]guideline.Match, len(res.Retained)+len(res.Removed)+len(res.Added))
	for _, mt := range res.Retained {
		accepted[mt.ID] = mt
	}
	dropped := make(map[string]guideline.Match)
	for _, mt := range res.Removed {
		if d, ok := m.decision(override.ScopeMatchRemoval, mt.ID); ok && d.Verdict == override.Reject {
			accepted[mt.ID] = mt
			continue
		}
		dropped[mt.ID] = mt
	}
	for _, mt := range res.Added {
		d, ok := m.decision(override.ScopeMatchAddition, mt.ID)
		if (ok && d.Verdict == override.Accept) || (!ok && m.bypassed) {
			accepted[mt.ID] = mt
			continue
		}
		dropped[mt.ID] = mt
	}

	// Specificity safety net, applied alongside the per-id decisions.
	if flags.SpecificityDecreased {
		if d, ok := m.decision(override.ScopeSpecificity, ""); ok && d.Verdict == override.Reject {
			for _, mt := range m.base.SpecificAccepted() {
				if _, have := accepted[mt.ID]; !have {
					accepted[mt.ID] = mt
				}
			}
			m.provenance = append(m.provenance, tagSpecificityRestore)
		}
	}

	// Reference override runs last and wins over categorization.
	if flags.DivergesFromReference.Any() {
		if d, ok := m.decision(override.ScopeReferenceDivergence, ""); ok && d.Verdict == override.Reject {
			if flags.DivergesFromReference.Applicability {
				out.Applicability = m.ref.Applicability
				m.provenance = append(m.provenance, fmt.Sprintf("reference:%s", diff.FieldApplicability))
			}
			if flags.DivergesFromReference.Category {
				out.Category = m.ref.Category
				m.provenance = append(m.provenance, fmt.Sprintf("reference:%s", diff.FieldCategory))
			}
		}
	}

	if m.missing && m.bypassed {
		m.provenance = append(m.provenance, tagBypassed)
	}

	out.Accepted = sortedMatches(accepted)
	out.Rejected = m.rejected(accepted, dropped)
	out.AcceptedCount = len(out.Accepted)
	out.SpecificCount = len(out.SpecificAccepted())
	out.SpecificityWaiver = m.waiver(out)
	out.Provenance = m.provenance
	if out.Provenance == nil {
		out.Provenance = []string{}
	}
	return out
}

// rejected is proposed's rejected set plus every match the merge dropped,
// minus anything that ended up accepted.
func (m *contextMerge) rejected(accepted, dropped map[string]guideline.Match) []guideline.Match {
	out := make(map[string]guideline.Match, len(m.prop.Rejected)+len(dropped))
	for _, mt := range m.prop.Rejected {
		out[mt.ID] = mt
	}
	for id, mt := range dropped {
		if _, ok := out[id]; !ok {
			out[id] = mt
		}
	}
	for id := range accepted {
		delete(out, id)
	}
	return sortedMatches(out)
}

// waiver carries an existing specificity waiver forward only while the
// context still lacks specific matches.
func (m *contextMerge) waiver(out *guideline.ContextClassification) *string {
	if out.SpecificCount > 0 || !out.Applicability.Applicable() {
		return nil
	}
	w := m.prop.SpecificityWaiver
	if w == nil {
		w = m.base.SpecificityWaiver
	}
	if w == nil {
		return nil
	}
	v := *w
	return &v
}

func sortedMatches(set map[string]guideline.Match) []guideline.Match {
	out := make([]guideline.Match, 0, len(set))
	for _, mt := range set {
		out = append(out, mt)
	}
	guideline.SortMatches(out)
	return out
}
