package format_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/batch"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/diff"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/format"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/guideline"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/merge"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/override"
)

func TestASCII_BasicTable(t *testing.T) {
	tb := format.NewTable(format.ASCII)
	tb.Header("ID", "State")
	tb.Row("Rule 10.1", "pending")
	out := tb.String()

	if !strings.Contains(out, "Rule 10.1") {
		t.Errorf("expected row in output:\n%s", out)
	}
	if !strings.Contains(out, "───") {
		t.Errorf("expected box-drawing characters in ASCII output:\n%s", out)
	}
	if tb.Len() != 1 {
		t.Errorf("Len = %d", tb.Len())
	}
}

func TestMarkdown_WithFooter(t *testing.T) {
	tb := format.NewTable(format.ParseMode("md"))
	tb.Header("Guideline", "Decided")
	tb.Row("Rule 1.1", "2/3")
	tb.Footer("TOTAL", "2/3")
	out := tb.String()

	if !strings.Contains(out, "| Guideline") || !strings.Contains(out, "---") {
		t.Errorf("expected markdown table:\n%s", out)
	}
	if !strings.Contains(out, "TOTAL") {
		t.Errorf("expected footer:\n%s", out)
	}
}

func comparison() *diff.GuidelineComparison {
	return &diff.GuidelineComparison{
		GuidelineID: "Rule 10.1",
		Contexts: []diff.ContextComparison{{
			Result: diff.ComparisonResult{
				Context: guideline.AllRust,
				Fields: []diff.FieldDelta{
					{Field: diff.FieldApplicability, Before: "yes", After: "yes"},
					{Field: diff.FieldCategory, Before: "", After: "advisory", Changed: true},
					{Field: diff.FieldRationale, Before: "direct_mapping", After: "direct_mapping"},
				},
				Retained:         []guideline.Match{{ID: "m1", Category: -2}},
				Removed:          []guideline.Match{{ID: "m2", Category: -1}},
				BaselineSpecific: 2,
				ProposedSpecific: 1,
			},
			Flags: diff.DiffFlags{CategoryChanged: true, MatchesRemoved: true, SpecificityDecreased: true},
		}},
		MultiDimensionOutlier: true,
	}
}

func TestComparison(t *testing.T) {
	out := format.Comparison(comparison(), format.ASCII)
	for _, want := range []string{
		"Rule 10.1", "All Rust", "null → advisory", "+0/-1/=1", "2→1",
		"Category Changed", "Specificity Decreased", "Multi-Dimension Outlier: 3 flags",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestItems_ShowsDecisions(t *testing.T) {
	g := comparison()
	st := override.NewStore()
	st.Register(g)
	if err := st.RecordDecision(override.Decision{
		Key:     override.Key{GuidelineID: g.GuidelineID, Context: guideline.AllRust, Scope: override.ScopeMatchRemoval, TargetID: "m2"},
		Verdict: override.Reject,
	}); err != nil {
		t.Fatal(err)
	}
	snap := st.Snapshot(g.GuidelineID)
	out := format.Items(snap.Items, snap, format.ASCII)
	if !strings.Contains(out, "Removed Match (m2)") || !strings.Contains(out, "Rejected") {
		t.Errorf("expected decided removal in:\n%s", out)
	}
	if !strings.Contains(out, "Categorization") {
		t.Errorf("expected categorization item in:\n%s", out)
	}
}

func TestProgress_Footer(t *testing.T) {
	out := format.Progress([]override.Progress{
		{GuidelineID: "Rule 1.1", State: override.FullyReviewed, Total: 2, Decided: 2},
		{GuidelineID: "Rule 1.2", State: override.Partial, Total: 3, Decided: 1},
	}, format.ASCII)
	for _, want := range []string{"Fully Reviewed", "Partially Reviewed", "2 guidelines", "1 reviewed", "3/5"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestMergeSummary(t *testing.T) {
	ok := &guideline.FinalRecord{Review: guideline.ReviewSummary{State: "fully_reviewed", Bypassed: true, BypassReason: "deadline"}}
	out := format.MergeSummary([]batch.Outcome{
		{ID: "Rule 1.1", Final: ok},
		{ID: "Rule 1.2", Err: &merge.IncompleteReviewError{GuidelineID: "Rule 1.2"}},
		{ID: "Rule 1.3", Err: errors.New("boom")},
	}, format.Markdown)
	for _, want := range []string{"bypassed: deadline", "review incomplete", "boom", "1/3"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"hello", 10, "hello"},
		{"hello world", 8, "hello..."},
		{"abcdef", 3, "abc"},
	}
	for _, tc := range tests {
		if got := format.Truncate(tc.in, tc.maxLen); got != tc.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tc.in, tc.maxLen, got, tc.want)
		}
	}
}

func TestBoolMarkAndOrNull(t *testing.T) {
	if format.BoolMark(true) != "✓" || format.BoolMark(false) != "✗" {
		t.Error("BoolMark")
	}
	if format.OrNull("") != "null" || format.OrNull("yes") != "yes" {
		t.Error("OrNull")
	}
}
