package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/display"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/format"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/override"
)

var statusFlags struct {
	all    bool
	output string
}

var statusCmd = &cobra.Command{
	Use:   "status [guideline-id]",
	Short: "Show review progress for one guideline or all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatus,
}

func init() {
	f := statusCmd.Flags()
	f.BoolVar(&statusFlags.all, "all", false, "Show every guideline in the workspace")
	f.StringVarP(&statusFlags.output, "output", "o", "table", "Output: table or md")
}

func runStatus(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && !statusFlags.all {
		return fmt.Errorf("status: give a guideline id or --all")
	}
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	out := cmd.OutOrStdout()
	mode := format.ParseMode(statusFlags.output)
	if statusFlags.all {
		var ps []override.Progress
		for _, it := range s.items {
			if it.Err != nil {
				fmt.Fprintf(out, "%s: %v\n", it.ID, it.Err)
				continue
			}
			ps = append(ps, s.store.Progress(it.ID))
		}
		fmt.Fprint(out, format.Progress(ps, mode))
		fmt.Fprintln(out)
		return nil
	}

	id := args[0]
	snap := s.store.Snapshot(id)
	if !snap.Registered {
		return fmt.Errorf("status: guideline %q is not in the workspace", id)
	}
	fmt.Fprintf(out, "Guideline: %s\n", id)
	fmt.Fprintf(out, "State:     %s\n", display.ReviewState(string(snap.Progress.State)))
	fmt.Fprintf(out, "Decided:   %s\n", format.Fraction(snap.Progress.Decided, snap.Progress.Total))
	if len(snap.Items) > 0 {
		fmt.Fprint(out, format.Items(snap.Items, snap, mode))
		fmt.Fprintln(out)
	}
	return nil
}
