package display

import "testing"

func TestContext(t *testing.T) {
	cases := []struct {
		code, want string
	}{
		{"all_rust", "All Rust"},
		{"safe_rust", "Safe Rust"},
		{"unsafe_rust", "unsafe_rust"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := Context(tc.code); got != tc.want {
			t.Errorf("Context(%q) = %q, want %q", tc.code, got, tc.want)
		}
	}
}

func TestScopeWithTarget(t *testing.T) {
	if got := ScopeWithTarget("match_removal", "m2"); got != "Removed Match (m2)" {
		t.Errorf("got %q", got)
	}
	if got := ScopeWithTarget("categorization", ""); got != "Categorization" {
		t.Errorf("got %q", got)
	}
	if got := ScopeWithTarget("other", "x"); got != "other (x)" {
		t.Errorf("got %q", got)
	}
}

func TestFlagList(t *testing.T) {
	cases := []struct {
		codes []string
		want  string
	}{
		{nil, "none"},
		{[]string{"matches_added"}, "Matches Added"},
		{[]string{"category_changed", "specificity_decreased"}, "Category Changed, Specificity Decreased"},
		{[]string{"mystery"}, "mystery"},
	}
	for _, tc := range cases {
		if got := FlagList(tc.codes); got != tc.want {
			t.Errorf("FlagList(%v) = %q, want %q", tc.codes, got, tc.want)
		}
	}
}

func TestReviewStateAndVerdict(t *testing.T) {
	if got := ReviewState("fully_reviewed"); got != "Fully Reviewed" {
		t.Errorf("ReviewState = %q", got)
	}
	if got := ReviewState("partial"); got != "Partially Reviewed" {
		t.Errorf("ReviewState = %q", got)
	}
	if got := Verdict("n_a"); got != "Not Applicable" {
		t.Errorf("Verdict = %q", got)
	}
	if got := Verdict("maybe"); got != "maybe" {
		t.Errorf("Verdict = %q", got)
	}
}
