package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/guideline"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/merge"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/override"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/schema"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/workspace"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func parse(t *testing.T, s string) schema.Document {
	t.Helper()
	var d schema.Document
	if err := json.Unmarshal([]byte(s), &d); err != nil {
		t.Fatal(err)
	}
	return d
}

func pair(t *testing.T, id string, baseMatches, propMatches string) workspace.Pair {
	t.Helper()
	tmpl := `{"schema_version":"2.1","id":%q,
	  "all_rust":{"applicability":"yes","category":"required","rationale_kind":"direct_mapping","confidence":"high","accepted_matches":%s,"rejected_matches":[]},
	  "safe_rust":{"applicability":"no","category":null,"rationale_kind":"rust_prevents","confidence":"high","accepted_matches":[],"rejected_matches":[]}}`
	return workspace.Pair{
		ID:       id,
		Baseline: parse(t, fmt.Sprintf(tmpl, id, baseMatches)),
		Proposed: parse(t, fmt.Sprintf(tmpl, id, propMatches)),
	}
}

var fixed = func() time.Time { return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) }

func TestRunner_FailureIsolation(t *testing.T) {
	good := pair(t, "Rule 1.1", `[{"id":"m1","category":-2}]`, `[{"id":"m1","category":-2}]`)
	changed := pair(t, "Rule 1.2", `[{"id":"m1","category":-2},{"id":"m2","category":0}]`, `[{"id":"m1","category":-2},{"id":"m3","category":0}]`)
	bad := pair(t, "Rule 1.3", `[]`, `[]`)
	block, _ := bad.Proposed.Object("all_rust")
	block["applicability"] = "maybe"

	r := &Runner{Workers: 2, Clock: fixed}
	items, err := r.Compare(context.Background(), []workspace.Pair{good, changed, bad})
	if err != nil {
		t.Fatal(err)
	}
	if items[0].Err != nil || items[1].Err != nil {
		t.Fatalf("unexpected errors: %v / %v", items[0].Err, items[1].Err)
	}
	if !guideline.IsMalformed(items[2].Err) {
		t.Fatalf("bad item err = %v, want malformed", items[2].Err)
	}

	st := override.NewStore()
	if n := Register(st, items); n != 2 {
		t.Errorf("registered %d, want 2", n)
	}

	out, err := r.Merge(context.Background(), items, st)
	if err != nil {
		t.Fatal(err)
	}
	if out[0].Err != nil || len(out[0].Encoded) == 0 {
		t.Errorf("unchanged guideline should merge: %+v", out[0])
	}
	if !merge.IsIncompleteReview(out[1].Err) {
		t.Errorf("changed guideline err = %v, want incomplete review", out[1].Err)
	}
	if !guideline.IsMalformed(out[2].Err) {
		t.Errorf("bad guideline err = %v", out[2].Err)
	}
	if out[0].Final.SchemaVersion != string(schema.Latest) {
		t.Errorf("schema_version = %q", out[0].Final.SchemaVersion)
	}
}

func TestRunner_ConcurrentMergeMatchesSerial(t *testing.T) {
	var pairs []workspace.Pair
	for i := 0; i < 20; i++ {
		pairs = append(pairs, pair(t, fmt.Sprintf("Rule %d.1", i),
			`[{"id":"m1","category":-2},{"id":"m2","category":0}]`,
			`[{"id":"m1","category":-2},{"id":"m3","category":-1}]`))
	}

	run := func(workers int) [][]byte {
		r := &Runner{Workers: workers, Clock: fixed}
		items, err := r.Compare(context.Background(), pairs)
		if err != nil {
			t.Fatal(err)
		}
		st := override.NewStore()
		Register(st, items)
		if _, err := st.ApplyBulkRule(override.BulkRule{MatchID: "m3",
			ContextApplicability: map[guideline.Context]bool{guideline.AllRust: true}}); err != nil {
			t.Fatal(err)
		}
		for _, it := range items {
			if err := st.RecordDecision(override.Decision{
				Key:     override.Key{GuidelineID: it.ID, Context: guideline.AllRust, Scope: override.ScopeMatchRemoval, TargetID: "m2"},
				Verdict: override.Reject,
			}); err != nil {
				t.Fatal(err)
			}
		}
		out, err := r.Merge(context.Background(), items, st)
		if err != nil {
			t.Fatal(err)
		}
		var enc [][]byte
		for _, o := range out {
			if o.Err != nil {
				t.Fatalf("%s: %v", o.ID, o.Err)
			}
			enc = append(enc, o.Encoded)
		}
		return enc
	}

	serial, parallel := run(1), run(8)
	for i := range serial {
		if string(serial[i]) != string(parallel[i]) {
			t.Errorf("guideline %d differs between serial and parallel runs", i)
		}
	}
}

func TestRunner_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &Runner{Workers: 2}
	items, err := r.Compare(ctx, []workspace.Pair{pair(t, "Rule 1.1", `[]`, `[]`)})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if !errors.Is(items[0].Err, context.Canceled) {
		t.Errorf("item err = %v", items[0].Err)
	}
}

func TestRunner_NoBaseline(t *testing.T) {
	p := pair(t, "Rule 5.5", `[]`, `[{"id":"x","category":-1}]`)
	p.Baseline = nil
	r := &Runner{Clock: fixed}
	base, prop, err := r.LoadPair(p)
	if err != nil {
		t.Fatal(err)
	}
	if base != nil || prop == nil || prop.AllRust.SpecificCount != 1 {
		t.Errorf("LoadPair = %+v, %+v", base, prop)
	}
}
