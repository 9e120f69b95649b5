package format

import (
	"fmt"
	"strings"

	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/batch"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/diff"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/display"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/merge"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/override"
)

// Comparison renders one row per context: field deltas, match counts and
// the flags raised. Guideline-level outlier flags follow the table.
func Comparison(g *diff.GuidelineComparison, m Mode) string {
	tb := NewTable(m)
	tb.Header("Context", "Applicability", "Category", "Rationale", "Matches (+/-/=)", "Specific", "Flags")
	for _, cc := range g.Contexts {
		r := cc.Result
		tb.Row(
			display.Context(string(r.Context)),
			fieldCell(r.Field(diff.FieldApplicability)),
			fieldCell(r.Field(diff.FieldCategory)),
			fieldCell(r.Field(diff.FieldRationale)),
			fmt.Sprintf("+%d/-%d/=%d", len(r.Added), len(r.Removed), len(r.Retained)),
			fmt.Sprintf("%d→%d", r.BaselineSpecific, r.ProposedSpecific),
			display.FlagList(cc.Flags.Names()),
		)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", g.GuidelineID)
	b.WriteString(tb.String())
	b.WriteString("\n")
	if g.MultiDimensionOutlier {
		fmt.Fprintf(&b, "%s: %d flags\n", display.Flag("multi_dimension_outlier"), g.FlagCount())
	}
	if g.PatternOutlier {
		fmt.Fprintf(&b, "%s: %s\n", display.Flag("pattern_outlier"), strings.Join(g.PatternDeviations, "; "))
	}
	return b.String()
}

func fieldCell(fd diff.FieldDelta) string {
	if !fd.Changed {
		return OrNull(fd.After)
	}
	return OrNull(fd.Before) + " → " + OrNull(fd.After)
}

// Items renders flagged items with the decision recorded for each, if any.
func Items(items []override.Item, snap override.Snapshot, m Mode) string {
	tb := NewTable(m)
	tb.Header("Context", "Item", "Summary", "Decision")
	for _, it := range items {
		verdict := "-"
		if d, ok := snap.Lookup(it.Key); ok {
			verdict = display.Verdict(string(d.Verdict))
			if d.ViaBulk {
				verdict += " (bulk)"
			}
		}
		tb.Row(
			display.Context(string(it.Context)),
			display.ScopeWithTarget(string(it.Scope), it.TargetID),
			Truncate(it.Summary, 60),
			verdict,
		)
	}
	return tb.String()
}

// Progress renders review progress for several guidelines with a totals footer.
func Progress(ps []override.Progress, m Mode) string {
	tb := NewTable(m)
	tb.Header("Guideline", "State", "Decided")
	decided, total, done := 0, 0, 0
	for _, p := range ps {
		tb.Row(p.GuidelineID, display.ReviewState(string(p.State)), Fraction(p.Decided, p.Total))
		decided += p.Decided
		total += p.Total
		if p.State == override.FullyReviewed {
			done++
		}
	}
	tb.Footer(fmt.Sprintf("%d guidelines", len(ps)), fmt.Sprintf("%d reviewed", done), Fraction(decided, total))
	tb.Columns(ColumnConfig{Number: 3, Align: AlignRight})
	return tb.String()
}

// MergeSummary renders the outcome of a batch merge.
func MergeSummary(out []batch.Outcome, m Mode) string {
	tb := NewTable(m)
	tb.Header("Guideline", "Merged", "Detail")
	merged := 0
	for _, o := range out {
		detail := ""
		switch {
		case o.Err == nil:
			merged++
			if o.Final.Review.Bypassed {
				detail = "bypassed: " + o.Final.Review.BypassReason
			}
		case merge.IsIncompleteReview(o.Err):
			detail = "review incomplete"
		default:
			detail = o.Err.Error()
		}
		tb.Row(o.ID, BoolMark(o.Err == nil), Truncate(detail, 70))
	}
	tb.Footer("TOTAL", Fraction(merged, len(out)), "")
	return tb.String()
}
