package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/format"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/logging"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/merge"
)

var mergeFlags struct {
	bypassReason string
	outDir       string
	output       string
}

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge every reviewed guideline into a final record",
	Long: `Merges the baseline and proposed record of every guideline in the workspace
with the recorded decisions. Guidelines whose review is incomplete are skipped
unless --bypass-reason is given, in which case undecided items keep the
proposed values and the record is marked as bypassed.`,
	RunE: runMerge,
}

func init() {
	f := mergeCmd.Flags()
	f.StringVar(&mergeFlags.bypassReason, "bypass-reason", "", "Finalize incomplete reviews; the reason is logged and recorded")
	f.StringVar(&mergeFlags.outDir, "out", "", "Output directory (overrides output_dir)")
	f.StringVarP(&mergeFlags.output, "output", "o", "table", "Summary output: table or md")
}

func runMerge(cmd *cobra.Command, _ []string) error {
	if mergeFlags.outDir != "" {
		cfg.OutputDir = mergeFlags.outDir
	}
	ctx := cmd.Context()
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	r, err := s.runner()
	if err != nil {
		return err
	}
	var opts []merge.Option
	if mergeFlags.bypassReason != "" {
		opts = append(opts, merge.WithBypass(mergeFlags.bypassReason))
	}
	outcomes, err := r.Merge(ctx, s.items, s.store, opts...)
	if err != nil {
		return err
	}

	logger := logging.New("merge")
	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			continue
		}
		path, err := s.Save(ctx, o.Final, o.Encoded)
		if err != nil {
			return err
		}
		logger.Debug("final record written", "guideline", o.ID, "path", path)
	}
	fmt.Fprint(cmd.OutOrStdout(), format.MergeSummary(outcomes, format.ParseMode(mergeFlags.output)))
	fmt.Fprintln(cmd.OutOrStdout())
	if failed > 0 {
		return fmt.Errorf("merge: %d of %d guideline(s) not merged", failed, len(outcomes))
	}
	return nil
}
