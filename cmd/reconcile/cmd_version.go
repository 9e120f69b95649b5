package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/schema"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/workspace"
)

var versionCmd = &cobra.Command{
	Use:   "version <file>",
	Short: "Print the schema version of a record file",
	Args:  cobra.ExactArgs(1),
	RunE:  runVersion,
}

func runVersion(cmd *cobra.Command, args []string) error {
	doc, err := workspace.LoadFromPath(args[0])
	if err != nil {
		return err
	}
	v, how := schema.Explain(doc)
	out := cmd.OutOrStdout()
	if !v.Known() {
		fmt.Fprintf(out, "Version: %s (unknown)\n", v)
		return fmt.Errorf("%s: unknown schema version %q", args[0], v)
	}
	fmt.Fprintf(out, "Version: %s\n", v)
	fmt.Fprintf(out, "Family:  %s\n", v.Family())
	fmt.Fprintf(out, "Source:  %s\n", how)
	return nil
}
