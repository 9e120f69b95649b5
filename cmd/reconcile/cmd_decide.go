package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/display"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/guideline"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/override"
)

var decideFlags struct {
	guideline string
	context   string
	scope     string
	target    string
	decision  string
	reason    string
}

var decideCmd = &cobra.Command{
	Use:   "decide",
	Short: "Record a decision for one flagged item",
	RunE:  runDecide,
}

func init() {
	f := decideCmd.Flags()
	f.StringVar(&decideFlags.guideline, "guideline", "", "Guideline id (required)")
	f.StringVar(&decideFlags.context, "context", "", "Context: all_rust or safe_rust (required)")
	f.StringVar(&decideFlags.scope, "scope", "", "Scope: categorization, match_removal, match_addition, specificity, reference_divergence (required)")
	f.StringVar(&decideFlags.target, "target", "", "Match id for match_removal and match_addition")
	f.StringVar(&decideFlags.decision, "decision", "", "Decision: accept, reject or n_a (required)")
	f.StringVar(&decideFlags.reason, "reason", "", "Justification")

	for _, name := range []string{"guideline", "context", "scope", "decision"} {
		_ = decideCmd.MarkFlagRequired(name)
	}
}

func runDecide(cmd *cobra.Command, _ []string) error {
	c, err := guideline.ParseContext(decideFlags.context)
	if err != nil {
		return err
	}
	scope, err := override.ParseScope(decideFlags.scope)
	if err != nil {
		return err
	}
	verdict, err := override.ParseVerdict(decideFlags.decision)
	if err != nil {
		return err
	}

	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	d := override.Decision{
		Key:     override.Key{GuidelineID: decideFlags.guideline, Context: c, Scope: scope, TargetID: decideFlags.target},
		Verdict: verdict,
		Reason:  decideFlags.reason,
	}
	if err := s.store.RecordDecision(d); err != nil {
		return err
	}
	p := s.store.Progress(d.GuidelineID)
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s %s; %s (%d/%d decided)\n",
		d.GuidelineID,
		display.ScopeWithTarget(string(scope), d.TargetID),
		display.Verdict(string(verdict)),
		display.ReviewState(string(p.State)), p.Decided, p.Total)
	return nil
}
