package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/diff"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/format"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/guideline"
)

var compareFlags struct {
	baseline     string
	proposed     string
	expectations string
	output       string
}

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare a baseline record with a proposed update",
	RunE:  runCompare,
}

func init() {
	f := compareCmd.Flags()
	f.StringVar(&compareFlags.baseline, "baseline", "", "Baseline record file (omit for a new guideline)")
	f.StringVar(&compareFlags.proposed, "proposed", "", "Proposed record file (required)")
	f.StringVar(&compareFlags.expectations, "expectations", "", "Expectation table (YAML); defaults to the configured one")
	f.StringVarP(&compareFlags.output, "output", "o", "table", "Output: table, md or json")

	_ = compareCmd.MarkFlagRequired("proposed")
}

func runCompare(cmd *cobra.Command, _ []string) error {
	var baseline *guideline.Record
	if compareFlags.baseline != "" {
		b, err := loadRecord(compareFlags.baseline)
		if err != nil {
			return err
		}
		baseline = b
	}
	proposed, err := loadRecord(compareFlags.proposed)
	if err != nil {
		return err
	}
	expPath := compareFlags.expectations
	if expPath == "" {
		expPath = cfg.Expectations
	}
	exp, err := loadExpectations(expPath)
	if err != nil {
		return err
	}
	g, err := diff.Compare(baseline, proposed, exp)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if compareFlags.output == "json" {
		data, err := json.MarshalIndent(g, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}
	fmt.Fprint(out, format.Comparison(g, format.ParseMode(compareFlags.output)))
	return nil
}
