package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/guideline"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/override"
)

var bulkFlags struct {
	match    string
	contexts map[string]string
	reason   string
}

var bulkCmd = &cobra.Command{
	Use:   "bulk",
	Short: "Accept a match id across every guideline without an explicit decision",
	RunE:  runBulk,
}

func init() {
	f := bulkCmd.Flags()
	f.StringVar(&bulkFlags.match, "match", "", "Match id (required)")
	f.StringToStringVar(&bulkFlags.contexts, "context", nil, "Per-context switch, e.g. all_rust=true,safe_rust=false (required)")
	f.StringVar(&bulkFlags.reason, "reason", "", "Justification")

	_ = bulkCmd.MarkFlagRequired("match")
	_ = bulkCmd.MarkFlagRequired("context")
}

func parseContextSwitches(in map[string]string) (map[guideline.Context]bool, error) {
	out := make(map[guideline.Context]bool, len(in))
	for name, raw := range in {
		c, err := guideline.ParseContext(name)
		if err != nil {
			return nil, err
		}
		on, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("context %s: %w", name, err)
		}
		out[c] = on
	}
	return out, nil
}

func runBulk(cmd *cobra.Command, _ []string) error {
	switches, err := parseContextSwitches(bulkFlags.contexts)
	if err != nil {
		return err
	}
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	n, err := s.store.ApplyBulkRule(override.BulkRule{
		MatchID:              bulkFlags.match,
		ContextApplicability: switches,
		Reason:               bulkFlags.reason,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Applied %s to %d item(s)\n", bulkFlags.match, n)
	return nil
}
