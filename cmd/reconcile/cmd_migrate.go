package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/migrate"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/schema"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/workspace"
)

var migrateFlags struct {
	to  string
	out string
}

var migrateCmd = &cobra.Command{
	Use:   "migrate <file>",
	Short: "Upgrade a record file to a newer schema version",
	Args:  cobra.ExactArgs(1),
	RunE:  runMigrate,
}

func init() {
	f := migrateCmd.Flags()
	f.StringVar(&migrateFlags.to, "to", "", "Target schema version (default: target_schema)")
	f.StringVarP(&migrateFlags.out, "out", "o", "", "Write the upgraded record here instead of stdout")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	target := cfg.Target()
	if migrateFlags.to != "" {
		v, err := schema.ParseVersion(migrateFlags.to)
		if err != nil {
			return err
		}
		target = v
	}
	doc, err := workspace.LoadFromPath(args[0])
	if err != nil {
		return err
	}
	up, err := migrate.Migrate(doc, target)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(up, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if migrateFlags.out == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(migrateFlags.out, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", migrateFlags.out, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s -> %s\n", migrateFlags.out, schema.Resolve(doc), target)
	return nil
}
