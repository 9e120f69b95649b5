package main

import (
	"context"

	"github.com/spf13/cobra"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/logging"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/reviewmcp"
	fwmcp "github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/pkg/framework/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the review MCP server over stdio",
	Long: `Starts an MCP server over stdin/stdout exposing the review workflow:
list_guidelines, flagged_items, record_decision, apply_bulk_rule, reset,
merge and events. Decisions are persisted to the decisions database and
merged records are written to the output directory.

The server monitors for parent process death and shuts down when the
client goes away.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	srv := reviewmcp.NewServer(s.store, s.items, version, reviewmcp.WithSink(s))
	fwmcp.WatchParent(ctx, cancel)

	logging.New("mcp").Info("starting reconcile MCP server over stdio (parent watchdog active)",
		"guidelines", len(s.items))
	return srv.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}
