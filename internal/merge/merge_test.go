package merge

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/diff"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/guideline"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/override"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/schema"
)

func match(id string, cat int) guideline.Match {
	return guideline.Match{ID: id, Category: cat, Score: 0.6}
}

func cls(app guideline.Applicability, ms ...guideline.Match) *guideline.ContextClassification {
	return &guideline.ContextClassification{
		Applicability: app,
		Category:      guideline.CategoryRequired,
		RationaleKind: guideline.DirectMapping,
		Confidence:    guideline.Medium,
		Accepted:      ms,
	}
}

func scenarioA() (base, prop *guideline.Record) {
	base = &guideline.Record{ID: "Rule 10.1",
		AllRust:  cls(guideline.Yes, match("m1", -2), match("m2", 0)),
		SafeRust: cls(guideline.Yes, match("m1", -2))}
	prop = &guideline.Record{ID: "Rule 10.1",
		AllRust:  cls(guideline.Yes, match("m1", -2), match("m3", 0)),
		SafeRust: cls(guideline.Yes, match("m1", -2))}
	return base, prop
}

func registered(t *testing.T, base, prop *guideline.Record) *override.Store {
	t.Helper()
	g, err := diff.Compare(base, prop, nil)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	s := override.NewStore()
	s.Register(g)
	return s
}

func decide(t *testing.T, s *override.Store, id string, c guideline.Context, scope override.Scope, target string, v override.Verdict) {
	t.Helper()
	err := s.RecordDecision(override.Decision{
		Key:     override.Key{GuidelineID: id, Context: c, Scope: scope, TargetID: target},
		Verdict: v,
	})
	if err != nil {
		t.Fatalf("RecordDecision: %v", err)
	}
}

func TestMerge_ScenarioAIncomplete(t *testing.T) {
	base, prop := scenarioA()
	s := registered(t, base, prop)

	_, err := Merge(base, prop, s, nil)
	if !IsIncompleteReview(err) {
		t.Fatalf("err = %v, want IncompleteReviewError", err)
	}
	ir := err.(*IncompleteReviewError)
	if ir.State != override.Pending || len(ir.Missing) != 2 || ir.GuidelineID != "Rule 10.1" {
		t.Errorf("error = %+v", ir)
	}
}

func TestMerge_ScenarioB(t *testing.T) {
	base, prop := scenarioA()
	s := registered(t, base, prop)
	decide(t, s, "Rule 10.1", guideline.AllRust, override.ScopeMatchRemoval, "m2", override.Reject)
	decide(t, s, "Rule 10.1", guideline.AllRust, override.ScopeMatchAddition, "m3", override.Accept)

	final, err := Merge(base, prop, s, nil)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	all := final.Context(guideline.AllRust)
	if got, want := guideline.MatchIDs(all.Accepted), []string{"m1", "m2", "m3"}; !cmp.Equal(got, want) {
		t.Errorf("accepted = %v, want %v", got, want)
	}
	if len(all.Rejected) != 0 {
		t.Errorf("rejected = %v, want empty", guideline.MatchIDs(all.Rejected))
	}
	if !all.Verified || all.AcceptedCount != 3 || all.SpecificCount != 1 {
		t.Errorf("verified=%v accepted_count=%d specific_count=%d", all.Verified, all.AcceptedCount, all.SpecificCount)
	}
	wantProv := []string{"match_removal:m2:reject", "match_addition:m3:accept"}
	if !cmp.Equal(all.Provenance, wantProv) {
		t.Errorf("provenance = %v, want %v", all.Provenance, wantProv)
	}
	if final.SchemaVersion != string(schema.Latest) {
		t.Errorf("schema_version = %q", final.SchemaVersion)
	}
	if final.Review.State != string(override.FullyReviewed) || final.Review.Bypassed {
		t.Errorf("review = %+v", final.Review)
	}
}

func TestMerge_DroppedMatchesAreRejected(t *testing.T) {
	base, prop := scenarioA()
	prop.AllRust.Rejected = []guideline.Match{match("m9", 0)}
	s := registered(t, base, prop)
	decide(t, s, "Rule 10.1", guideline.AllRust, override.ScopeMatchRemoval, "m2", override.Accept)
	decide(t, s, "Rule 10.1", guideline.AllRust, override.ScopeMatchAddition, "m3", override.Reject)

	final, err := Merge(base, prop, s, nil)
	if err != nil {
		t.Fatal(err)
	}
	all := final.Context(guideline.AllRust)
	if got := guideline.MatchIDs(all.Accepted); !cmp.Equal(got, []string{"m1"}) {
		t.Errorf("accepted = %v", got)
	}
	if got := guideline.MatchIDs(all.Rejected); !cmp.Equal(got, []string{"m2", "m3", "m9"}) {
		t.Errorf("rejected = %v", got)
	}
}

func TestMerge_Idempotent(t *testing.T) {
	base, prop := scenarioA()
	prop.AllRust.Notes = "re-run with new embeddings"
	s := registered(t, base, prop)
	decide(t, s, "Rule 10.1", guideline.AllRust, override.ScopeMatchRemoval, "m2", override.Reject)
	decide(t, s, "Rule 10.1", guideline.AllRust, override.ScopeMatchAddition, "m3", override.Accept)

	var outs [][]byte
	for i := 0; i < 2; i++ {
		final, err := Merge(base, prop, s, nil)
		if err != nil {
			t.Fatal(err)
		}
		data, err := Encode(final)
		if err != nil {
			t.Fatal(err)
		}
		outs = append(outs, data)
	}
	if !bytes.Equal(outs[0], outs[1]) {
		t.Errorf("merge is not byte-identical:\n%s\n---\n%s", outs[0], outs[1])
	}
}

func TestMerge_ReviewGateForEveryMissingSubset(t *testing.T) {
	base, prop := scenarioA()
	keys := []struct {
		scope  override.Scope
		target string
		v      override.Verdict
	}{
		{override.ScopeMatchRemoval, "m2", override.Reject},
		{override.ScopeMatchAddition, "m3", override.Accept},
	}
	// Every proper subset of decisions must leave the gate closed.
	for mask := 0; mask < (1<<len(keys))-1; mask++ {
		s := registered(t, base, prop)
		for i, k := range keys {
			if mask&(1<<i) != 0 {
				decide(t, s, "Rule 10.1", guideline.AllRust, k.scope, k.target, k.v)
			}
		}
		if _, err := Merge(base, prop, s, nil); !IsIncompleteReview(err) {
			t.Errorf("mask %b: err = %v, want IncompleteReviewError", mask, err)
		}
	}
}

func TestMerge_SpecificityRestoration(t *testing.T) {
	base := &guideline.Record{ID: "Rule 11.3",
		AllRust:  cls(guideline.Yes, match("s1", -2), match("s2", -1), match("g", 0)),
		SafeRust: cls(guideline.No)}
	prop := &guideline.Record{ID: "Rule 11.3",
		AllRust:  cls(guideline.Yes, match("g", 0)),
		SafeRust: cls(guideline.No)}
	s := registered(t, base, prop)

	// Accept both removals, but reject the loss of specificity.
	decide(t, s, "Rule 11.3", guideline.AllRust, override.ScopeMatchRemoval, "s1", override.Accept)
	decide(t, s, "Rule 11.3", guideline.AllRust, override.ScopeMatchRemoval, "s2", override.Accept)
	decide(t, s, "Rule 11.3", guideline.AllRust, override.ScopeSpecificity, "", override.Reject)

	final, err := Merge(base, prop, s, nil)
	if err != nil {
		t.Fatal(err)
	}
	all := final.Context(guideline.AllRust)
	if got, want := len(all.SpecificAccepted()), len(base.AllRust.SpecificAccepted()); got < want {
		t.Errorf("specific after restore = %d, want >= %d", got, want)
	}
	if got := guideline.MatchIDs(all.Accepted); !cmp.Equal(got, []string{"g", "s1", "s2"}) {
		t.Errorf("accepted = %v", got)
	}
	if len(all.Rejected) != 0 {
		t.Errorf("restored matches must not stay rejected: %v", guideline.MatchIDs(all.Rejected))
	}
	if !containsTag(all.Provenance, "specificity:restore") {
		t.Errorf("provenance = %v", all.Provenance)
	}
}

func TestMerge_SpecificityRestoreIsIdempotentWithPerIDRestore(t *testing.T) {
	base := &guideline.Record{ID: "R", AllRust: cls(guideline.Yes, match("s1", -2)), SafeRust: cls(guideline.No)}
	prop := &guideline.Record{ID: "R", AllRust: cls(guideline.Yes), SafeRust: cls(guideline.No)}
	s := registered(t, base, prop)
	decide(t, s, "R", guideline.AllRust, override.ScopeMatchRemoval, "s1", override.Reject)
	decide(t, s, "R", guideline.AllRust, override.ScopeSpecificity, "", override.Reject)

	final, err := Merge(base, prop, s, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := guideline.MatchIDs(final.Context(guideline.AllRust).Accepted); !cmp.Equal(got, []string{"s1"}) {
		t.Errorf("accepted = %v, want [s1] once", got)
	}
}

func TestMerge_ScenarioCReferenceRejectWins(t *testing.T) {
	base := &guideline.Record{ID: "Rule 2.2", AllRust: cls(guideline.Yes), SafeRust: cls(guideline.Yes)}
	prop := &guideline.Record{ID: "Rule 2.2", AllRust: cls(guideline.No), SafeRust: cls(guideline.Yes),
		Reference: &guideline.Reference{Source: "ADD-6", AllRust: &guideline.ReferenceContext{Applicability: guideline.Yes}}}
	s := registered(t, base, prop)
	decide(t, s, "Rule 2.2", guideline.AllRust, override.ScopeCategorization, "", override.Accept)

	if _, err := Merge(base, prop, s, nil); !IsIncompleteReview(err) {
		t.Fatalf("err = %v, want incomplete: reference divergence undecided", err)
	}

	decide(t, s, "Rule 2.2", guideline.AllRust, override.ScopeReferenceDivergence, "", override.Reject)
	final, err := Merge(base, prop, s, nil)
	if err != nil {
		t.Fatal(err)
	}
	all := final.Context(guideline.AllRust)
	if all.Applicability != guideline.Yes {
		t.Errorf("applicability = %q, want the reference value yes", all.Applicability)
	}
	want := []string{"categorization:accept", "reference_divergence:reject", "reference:applicability"}
	if !cmp.Equal(all.Provenance, want) {
		t.Errorf("provenance = %v, want %v", all.Provenance, want)
	}
	if final.Reference == nil || final.Reference.Source != "ADD-6" {
		t.Errorf("reference not carried: %+v", final.Reference)
	}
}

func TestMerge_GateUsesMergedInputsNotRegisteredComparison(t *testing.T) {
	t.Run("explicit reference", func(t *testing.T) {
		base, prop := scenarioA()
		s := registered(t, base, prop)
		decide(t, s, "Rule 10.1", guideline.AllRust, override.ScopeMatchRemoval, "m2", override.Reject)
		decide(t, s, "Rule 10.1", guideline.AllRust, override.ScopeMatchAddition, "m3", override.Accept)
		ref := &guideline.Reference{AllRust: &guideline.ReferenceContext{Applicability: guideline.No}}

		_, err := Merge(base, prop, s, ref)
		if !IsIncompleteReview(err) {
			t.Fatalf("err = %v, want IncompleteReviewError", err)
		}
		ir := err.(*IncompleteReviewError)
		if ir.State != override.Partial || len(ir.Missing) != 1 || ir.Missing[0].Scope != override.ScopeReferenceDivergence {
			t.Errorf("error = %+v", ir)
		}

		decide(t, s, "Rule 10.1", guideline.AllRust, override.ScopeReferenceDivergence, "", override.Reject)
		final, err := Merge(base, prop, s, ref)
		if err != nil {
			t.Fatal(err)
		}
		if got := final.Context(guideline.AllRust).Applicability; got != guideline.No {
			t.Errorf("applicability = %q, want the reference value no", got)
		}
	})

	t.Run("proposed changed after registration", func(t *testing.T) {
		base, prop := scenarioA()
		s := registered(t, base, prop)
		decide(t, s, "Rule 10.1", guideline.AllRust, override.ScopeMatchRemoval, "m2", override.Reject)
		decide(t, s, "Rule 10.1", guideline.AllRust, override.ScopeMatchAddition, "m3", override.Accept)
		prop.AllRust.Accepted = append(prop.AllRust.Accepted, match("m4", -1))

		_, err := Merge(base, prop, s, nil)
		if !IsIncompleteReview(err) {
			t.Fatalf("err = %v, want IncompleteReviewError", err)
		}
		ir := err.(*IncompleteReviewError)
		if len(ir.Missing) != 1 || ir.Missing[0].Scope != override.ScopeMatchAddition || ir.Missing[0].TargetID != "m4" {
			t.Errorf("missing = %+v, want match_addition m4", ir.Missing)
		}
	})
}

func TestMerge_ReferenceIsNormalized(t *testing.T) {
	base := &guideline.Record{ID: "Rule 2.2", AllRust: cls(guideline.Yes), SafeRust: cls(guideline.Yes)}
	prop := &guideline.Record{ID: "Rule 2.2", AllRust: cls(guideline.No), SafeRust: cls(guideline.Yes)}
	s := registered(t, base, prop)
	decide(t, s, "Rule 2.2", guideline.AllRust, override.ScopeCategorization, "", override.Accept)
	decide(t, s, "Rule 2.2", guideline.AllRust, override.ScopeReferenceDivergence, "", override.Reject)

	ref := &guideline.Reference{Source: "ADD-6", AllRust: &guideline.ReferenceContext{Applicability: "Yes", Category: "Required"}}
	final, err := Merge(base, prop, s, ref)
	if err != nil {
		t.Fatal(err)
	}
	if got := final.Context(guideline.AllRust).Applicability; got != guideline.Yes {
		t.Errorf("applicability = %q, want yes", got)
	}
	if got := final.Reference.AllRust; got.Applicability != guideline.Yes || got.Category != guideline.CategoryRequired {
		t.Errorf("reference = %+v, want canonical values", got)
	}
	if err := final.Record.Validate(); err != nil {
		t.Errorf("final record does not validate: %v", err)
	}

	cases := []struct {
		name  string
		ref   guideline.ReferenceContext
		field string
	}{
		{"unknown applicability", guideline.ReferenceContext{Applicability: "maybe"}, "reference.all_rust.applicability"},
		{"unknown category", guideline.ReferenceContext{Applicability: guideline.Yes, Category: "mandatory-ish"}, "reference.all_rust.category"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rc := tc.ref
			_, err := Merge(base, prop, s, &guideline.Reference{AllRust: &rc})
			if !guideline.IsMalformed(err) {
				t.Fatalf("err = %v, want MalformedRecordError", err)
			}
			if got := err.(*guideline.MalformedRecordError).Field; got != tc.field {
				t.Errorf("field = %q, want %q", got, tc.field)
			}
		})
	}
}

func TestMerge_CategorizationRejectKeepsBaseline(t *testing.T) {
	base := &guideline.Record{ID: "R", AllRust: cls(guideline.Yes), SafeRust: cls(guideline.Yes)}
	prop := &guideline.Record{ID: "R", AllRust: cls(guideline.Partial), SafeRust: cls(guideline.Yes)}
	prop.AllRust.RationaleKind = guideline.RustAlternative
	prop.AllRust.Confidence = guideline.Low

	for _, v := range []override.Verdict{override.Reject, override.NA} {
		s := registered(t, base, prop)
		decide(t, s, "R", guideline.AllRust, override.ScopeCategorization, "", v)
		final, err := Merge(base, prop, s, nil)
		if err != nil {
			t.Fatal(err)
		}
		all := final.Context(guideline.AllRust)
		if all.Applicability != guideline.Yes || all.RationaleKind != guideline.DirectMapping {
			t.Errorf("%s: categorization = %s/%s, want baseline", v, all.Applicability, all.RationaleKind)
		}
		if all.Confidence != guideline.Low {
			t.Errorf("%s: confidence = %s, want proposed's", v, all.Confidence)
		}
	}
}

func TestMerge_BypassLogsAndKeepsProposed(t *testing.T) {
	base, prop := scenarioA()
	s := registered(t, base, prop)

	if _, err := Merge(base, prop, s, nil, WithBypass("")); err == nil {
		t.Fatal("bypass without a reason must fail")
	}

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	final, err := Merge(base, prop, s, nil, WithBypass("release freeze"), WithLogger(logger))
	if err != nil {
		t.Fatal(err)
	}
	if !final.Review.Bypassed || final.Review.BypassReason != "release freeze" || final.Review.State != string(override.Pending) {
		t.Errorf("review = %+v", final.Review)
	}
	all := final.Context(guideline.AllRust)
	if got := guideline.MatchIDs(all.Accepted); !cmp.Equal(got, []string{"m1", "m3"}) {
		t.Errorf("accepted = %v, want proposed's [m1 m3]", got)
	}
	if !containsTag(all.Provenance, "review:bypassed") {
		t.Errorf("provenance = %v", all.Provenance)
	}
	if containsTag(final.Context(guideline.SafeRust).Provenance, "review:bypassed") {
		t.Error("safe_rust had nothing to review and must not be tagged")
	}
	if out := buf.String(); !strings.Contains(out, "level=WARN") || !strings.Contains(out, "release freeze") {
		t.Errorf("bypass not logged: %s", out)
	}
}

func TestMerge_BulkDecisionsAreTagged(t *testing.T) {
	base, prop := scenarioA()
	s := registered(t, base, prop)
	if _, err := s.ApplyBulkRule(override.BulkRule{MatchID: "m3",
		ContextApplicability: map[guideline.Context]bool{guideline.AllRust: true, guideline.SafeRust: true}}); err != nil {
		t.Fatal(err)
	}
	decide(t, s, "Rule 10.1", guideline.AllRust, override.ScopeMatchRemoval, "m2", override.Accept)

	final, err := Merge(base, prop, s, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !containsTag(final.Context(guideline.AllRust).Provenance, "bulk:m3") {
		t.Errorf("provenance = %v", final.Context(guideline.AllRust).Provenance)
	}
}

func TestMerge_NAAdditionNotIncluded(t *testing.T) {
	base, prop := scenarioA()
	s := registered(t, base, prop)
	decide(t, s, "Rule 10.1", guideline.AllRust, override.ScopeMatchRemoval, "m2", override.NA)
	decide(t, s, "Rule 10.1", guideline.AllRust, override.ScopeMatchAddition, "m3", override.NA)

	final, err := Merge(base, prop, s, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := guideline.MatchIDs(final.Context(guideline.AllRust).Accepted); !cmp.Equal(got, []string{"m1"}) {
		t.Errorf("accepted = %v, want [m1]", got)
	}
}

func TestMerge_UnregisteredWithoutFlagsIsFinal(t *testing.T) {
	rec := &guideline.Record{ID: "Dir 1.1", AllRust: cls(guideline.Yes, match("a", -1)), SafeRust: cls(guideline.Yes, match("a", -1))}
	final, err := Merge(rec, rec, override.NewStore(), nil)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if final.Review.State != string(override.FullyReviewed) {
		t.Errorf("state = %q", final.Review.State)
	}
}

func TestMerge_WaiverClearedOnceSpecific(t *testing.T) {
	w := "specific-match coverage waived: migrated from schema 2.1 on 2026-01-01 with 0 specific of 1 accepted matches in all_rust; re-verify"
	base := &guideline.Record{ID: "R", AllRust: cls(guideline.Yes, match("g", 0)), SafeRust: cls(guideline.No)}
	base.AllRust.SpecificityWaiver = &w
	prop := &guideline.Record{ID: "R", AllRust: cls(guideline.Yes, match("g", 0)), SafeRust: cls(guideline.No)}

	final, err := Merge(base, prop, override.NewStore(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := final.Context(guideline.AllRust).SpecificityWaiver; got == nil || *got != w {
		t.Errorf("waiver = %v, want carried forward", got)
	}

	prop.AllRust.Accepted = append(prop.AllRust.Accepted, match("s", -2))
	s := registered(t, base, prop)
	decide(t, s, "R", guideline.AllRust, override.ScopeMatchAddition, "s", override.Accept)
	final, err = Merge(base, prop, s, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := final.Context(guideline.AllRust).SpecificityWaiver; got != nil {
		t.Errorf("waiver = %q, want cleared", *got)
	}
}

func containsTag(tags []string, want string) bool {
	for _, t := range tags {
		if t == want {
			return true
		}
	}
	return false
}
