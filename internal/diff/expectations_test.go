package diff

import (
	"strings"
	"testing"

	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/guideline"
)

const table = `
expectations:
  - batch: 2
    contexts:
      safe_rust:
        applicability: [no]
        rationale_kind: [rust_prevents]
  - batch: 2
    type: directive
    contexts:
      safe_rust:
        applicability: [no, partial]
`

func batch(n int) *int { return &n }

func TestExpectations_PatternOutlier(t *testing.T) {
	exp, err := ParseExpectations([]byte(table))
	if err != nil {
		t.Fatalf("ParseExpectations: %v", err)
	}

	rule := &guideline.Record{
		ID: "Rule 18.1", Type: "rule", Batch: batch(2),
		AllRust:  classification(guideline.Yes),
		SafeRust: classification(guideline.Yes),
	}
	rule.SafeRust.RationaleKind = guideline.RustPrevents

	g, err := Compare(rule, rule, exp)
	if err != nil {
		t.Fatal(err)
	}
	if !g.PatternOutlier {
		t.Fatal("safe_rust=yes in a batch expecting no should be a pattern outlier")
	}
	if len(g.PatternDeviations) != 1 || !strings.Contains(g.PatternDeviations[0], "safe_rust.applicability=yes") {
		t.Errorf("deviations = %v", g.PatternDeviations)
	}
}

func TestExpectations_TypeSpecificEntryWins(t *testing.T) {
	exp, err := ParseExpectations([]byte(table))
	if err != nil {
		t.Fatal(err)
	}
	dir := &guideline.Record{
		ID: "Dir 4.6", Type: "directive", Batch: batch(2),
		AllRust:  classification(guideline.Yes),
		SafeRust: classification(guideline.Partial),
	}
	if got := exp.Deviations(dir); len(got) != 0 {
		t.Errorf("directive entry allows partial and no rationale constraint; got %v", got)
	}
}

func TestExpectations_NoEntryNoOutlier(t *testing.T) {
	exp, err := ParseExpectations([]byte(table))
	if err != nil {
		t.Fatal(err)
	}
	rec := &guideline.Record{ID: "R", Batch: batch(5), AllRust: classification(guideline.No), SafeRust: classification(guideline.No)}
	if got := exp.Deviations(rec); got != nil {
		t.Errorf("unknown batch deviations = %v", got)
	}
	rec.Batch = nil
	if got := exp.Deviations(rec); got != nil {
		t.Errorf("no batch deviations = %v", got)
	}
}

func TestParseExpectations_RejectsUnknownValues(t *testing.T) {
	bad := []string{
		"expectations:\n  - batch: 1\n    contexts:\n      unsafe_rust: {}\n",
		"expectations:\n  - batch: 1\n    contexts:\n      all_rust:\n        applicability: [maybe]\n",
		"expectations:\n  - batch: 1\n    contexts:\n      all_rust:\n        rationale_kind: [guess]\n",
	}
	for _, in := range bad {
		if _, err := ParseExpectations([]byte(in)); err == nil {
			t.Errorf("expected error for:\n%s", in)
		}
	}
}
