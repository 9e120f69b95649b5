// Package reviewmcp exposes the guideline review workflow as MCP tools: a
// client lists flagged items, records decisions and bulk rules, resets a
// guideline and merges it once review is complete.
package reviewmcp

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/batch"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/guideline"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/logging"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/merge"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/override"
	fwmcp "github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/pkg/framework/mcp"
)

// Sink persists a merged record.
type Sink interface {
	Save(ctx context.Context, f *guideline.FinalRecord, encoded []byte) (string, error)
}

// Option configures a Server.
type Option func(*Server)

// WithSink persists every successful merge.
func WithSink(s Sink) Option { return func(srv *Server) { srv.sink = s } }

// WithLogger replaces the component logger.
func WithLogger(l *slog.Logger) Option { return func(srv *Server) { srv.logger = l } }

// Server serves review tools over one override store.
type Server struct {
	*fwmcp.Server

	store  *override.Store
	events *fwmcp.EventFeed
	sink   Sink
	logger *slog.Logger

	// items is fixed by NewServer and only read afterwards.
	items map[string]batch.Item
}

// NewServer registers every successfully compared item with the store and
// returns a server whose tools operate on them.
func NewServer(st *override.Store, items []batch.Item, version string, opts ...Option) *Server {
	s := &Server{
		Server: fwmcp.NewServer("reconcile", version),
		store:  st,
		events: fwmcp.NewEventFeed(),
		logger: logging.New("reviewmcp"),
		items:  make(map[string]batch.Item, len(items)),
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, it := range items {
		if it.Err == nil && it.Comparison != nil {
			s.items[it.ID] = it
		}
	}
	batch.Register(st, items)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "list_guidelines",
		Description: "List every loaded guideline with its review state and decision progress.",
	}, s.handleListGuidelines)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "flagged_items",
		Description: "List the flagged items of one guideline with the decision recorded for each.",
	}, s.handleFlaggedItems)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "record_decision",
		Description: "Record an accept, reject or n_a decision for one flagged item. The last decision for an item wins.",
	}, s.handleRecordDecision)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "apply_bulk_rule",
		Description: "Accept a match id across all guidelines in the given contexts wherever no explicit decision exists.",
	}, s.handleApplyBulkRule)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "reset",
		Description: "Delete every decision of one guideline so it must be reviewed again.",
	}, s.handleReset)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "merge",
		Description: "Merge one guideline into its final record. Fails while review is incomplete unless bypass_reason is given.",
	}, s.handleMerge)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "events",
		Description: "Read review events (decisions, bulk rules, resets, merges) from a given index onward.",
	}, s.handleEvents)
}

// --- Tool input/output types ---

type listGuidelinesInput struct{}

type progress struct {
	GuidelineID string   `json:"guideline_id"`
	State       string   `json:"state"`
	Total       int      `json:"total"`
	Decided     int      `json:"decided"`
	Missing     []string `json:"missing,omitempty"`
}

func toProgress(p override.Progress) progress {
	out := progress{GuidelineID: p.GuidelineID, State: string(p.State), Total: p.Total, Decided: p.Decided}
	for _, it := range p.Missing {
		out.Missing = append(out.Missing, it.Key.String())
	}
	return out
}

type listGuidelinesOutput struct {
	Guidelines []progress `json:"guidelines"`
	Reviewed   int        `json:"reviewed"`
}

type guidelineInput struct {
	GuidelineID string `json:"guideline_id" jsonschema:"guideline identifier, e.g. Rule 10.1"`
}

type flaggedItem struct {
	Context  string `json:"context"`
	Scope    string `json:"scope"`
	TargetID string `json:"target_id,omitempty"`
	Summary  string `json:"summary"`
	Decision string `json:"decision,omitempty"`
	ViaBulk  bool   `json:"via_bulk,omitempty"`
}

type flaggedItemsOutput struct {
	GuidelineID string        `json:"guideline_id"`
	State       string        `json:"state"`
	Items       []flaggedItem `json:"items"`
}

type recordDecisionInput struct {
	GuidelineID string `json:"guideline_id" jsonschema:"guideline identifier"`
	Context     string `json:"context" jsonschema:"all_rust or safe_rust"`
	Scope       string `json:"scope" jsonschema:"categorization, match_removal, match_addition, specificity or reference_divergence"`
	TargetID    string `json:"target_id,omitempty" jsonschema:"match id; required for match_removal and match_addition"`
	Decision    string `json:"decision" jsonschema:"accept, reject or n_a"`
	Reason      string `json:"reason,omitempty" jsonschema:"free-text justification"`
}

type progressOutput struct {
	Progress progress `json:"progress"`
}

type bulkRuleInput struct {
	MatchID  string          `json:"match_id" jsonschema:"match id to accept"`
	Contexts map[string]bool `json:"contexts" jsonschema:"per-context switch, e.g. {\"all_rust\": true}"`
	Reason   string          `json:"reason,omitempty" jsonschema:"free-text justification"`
}

type bulkRuleOutput struct {
	Applied int `json:"applied"`
}

type mergeInput struct {
	GuidelineID  string `json:"guideline_id" jsonschema:"guideline identifier"`
	BypassReason string `json:"bypass_reason,omitempty" jsonschema:"finalize despite incomplete review; logged and recorded"`
}

type mergeOutput struct {
	GuidelineID string `json:"guideline_id"`
	Bypassed    bool   `json:"bypassed"`
	Path        string `json:"path,omitempty"`
	Record      string `json:"record"`
}

type eventsInput struct {
	Since int `json:"since,omitempty" jsonschema:"return events from this index onward (0-based)"`
}

type eventsOutput struct {
	Events []fwmcp.Event `json:"events"`
	Total  int           `json:"total"`
}

// --- Tool handlers ---

func (s *Server) handleListGuidelines(_ context.Context, _ *sdkmcp.CallToolRequest, _ listGuidelinesInput) (*sdkmcp.CallToolResult, listGuidelinesOutput, error) {
	out := listGuidelinesOutput{Guidelines: []progress{}}
	for _, id := range s.ids() {
		p := s.store.Progress(id)
		if p.State == override.FullyReviewed {
			out.Reviewed++
		}
		out.Guidelines = append(out.Guidelines, toProgress(p))
	}
	return nil, out, nil
}

func (s *Server) handleFlaggedItems(_ context.Context, _ *sdkmcp.CallToolRequest, in guidelineInput) (*sdkmcp.CallToolResult, flaggedItemsOutput, error) {
	if _, err := s.item(in.GuidelineID); err != nil {
		return nil, flaggedItemsOutput{}, err
	}
	snap := s.store.Snapshot(in.GuidelineID)
	out := flaggedItemsOutput{GuidelineID: in.GuidelineID, State: string(snap.Progress.State), Items: []flaggedItem{}}
	for _, it := range snap.Items {
		fi := flaggedItem{Context: string(it.Context), Scope: string(it.Scope), TargetID: it.TargetID, Summary: it.Summary}
		if d, ok := snap.Lookup(it.Key); ok {
			fi.Decision = string(d.Verdict)
			fi.ViaBulk = d.ViaBulk
		}
		out.Items = append(out.Items, fi)
	}
	return nil, out, nil
}

func (s *Server) handleRecordDecision(_ context.Context, _ *sdkmcp.CallToolRequest, in recordDecisionInput) (*sdkmcp.CallToolResult, progressOutput, error) {
	ctx, err := guideline.ParseContext(in.Context)
	if err != nil {
		return nil, progressOutput{}, err
	}
	scope, err := override.ParseScope(in.Scope)
	if err != nil {
		return nil, progressOutput{}, err
	}
	verdict, err := override.ParseVerdict(in.Decision)
	if err != nil {
		return nil, progressOutput{}, err
	}
	d := override.Decision{
		Key:     override.Key{GuidelineID: in.GuidelineID, Context: ctx, Scope: scope, TargetID: in.TargetID},
		Verdict: verdict,
		Reason:  in.Reason,
	}
	if err := s.store.RecordDecision(d); err != nil {
		return nil, progressOutput{}, fmt.Errorf("record_decision: %w", err)
	}
	s.events.Emit("decision", in.GuidelineID, map[string]string{"key": d.Key.String(), "decision": string(verdict)})
	return nil, progressOutput{Progress: toProgress(s.store.Progress(in.GuidelineID))}, nil
}

func (s *Server) handleApplyBulkRule(_ context.Context, _ *sdkmcp.CallToolRequest, in bulkRuleInput) (*sdkmcp.CallToolResult, bulkRuleOutput, error) {
	rule := override.BulkRule{
		MatchID:              in.MatchID,
		ContextApplicability: make(map[guideline.Context]bool, len(in.Contexts)),
		Reason:               in.Reason,
	}
	for name, on := range in.Contexts {
		c, err := guideline.ParseContext(name)
		if err != nil {
			return nil, bulkRuleOutput{}, err
		}
		rule.ContextApplicability[c] = on
	}
	n, err := s.store.ApplyBulkRule(rule)
	if err != nil {
		return nil, bulkRuleOutput{}, fmt.Errorf("apply_bulk_rule: %w", err)
	}
	s.events.Emit("bulk", in.MatchID, map[string]string{"applied": strconv.Itoa(n)})
	return nil, bulkRuleOutput{Applied: n}, nil
}

func (s *Server) handleReset(_ context.Context, _ *sdkmcp.CallToolRequest, in guidelineInput) (*sdkmcp.CallToolResult, progressOutput, error) {
	if _, err := s.item(in.GuidelineID); err != nil {
		return nil, progressOutput{}, err
	}
	if err := s.store.Reset(in.GuidelineID); err != nil {
		return nil, progressOutput{}, fmt.Errorf("reset: %w", err)
	}
	s.events.Emit("reset", in.GuidelineID, nil)
	return nil, progressOutput{Progress: toProgress(s.store.Progress(in.GuidelineID))}, nil
}

func (s *Server) handleMerge(ctx context.Context, _ *sdkmcp.CallToolRequest, in mergeInput) (*sdkmcp.CallToolResult, mergeOutput, error) {
	it, err := s.item(in.GuidelineID)
	if err != nil {
		return nil, mergeOutput{}, err
	}
	opts := []merge.Option{merge.WithLogger(s.logger)}
	if in.BypassReason != "" {
		opts = append(opts, merge.WithBypass(in.BypassReason))
	}
	final, err := merge.Merge(it.Baseline, it.Proposed, s.store, nil, opts...)
	if err != nil {
		return nil, mergeOutput{}, err
	}
	encoded, err := merge.Encode(final)
	if err != nil {
		return nil, mergeOutput{}, err
	}
	out := mergeOutput{GuidelineID: final.ID, Bypassed: final.Review.Bypassed, Record: string(encoded)}
	if s.sink != nil {
		if out.Path, err = s.sink.Save(ctx, final, encoded); err != nil {
			return nil, mergeOutput{}, fmt.Errorf("merge: save %s: %w", final.ID, err)
		}
	}
	s.events.Emit("merge", final.ID, map[string]string{"bypassed": strconv.FormatBool(final.Review.Bypassed)})
	s.logger.Info("guideline merged", slog.String("guideline", final.ID), slog.Bool("bypassed", final.Review.Bypassed))
	return nil, out, nil
}

func (s *Server) handleEvents(_ context.Context, _ *sdkmcp.CallToolRequest, in eventsInput) (*sdkmcp.CallToolResult, eventsOutput, error) {
	evs := s.events.Since(in.Since)
	if evs == nil {
		evs = []fwmcp.Event{}
	}
	return nil, eventsOutput{Events: evs, Total: s.events.Len()}, nil
}

func (s *Server) item(id string) (batch.Item, error) {
	it, ok := s.items[id]
	if !ok {
		return batch.Item{}, fmt.Errorf("unknown guideline %q", id)
	}
	return it, nil
}

func (s *Server) ids() []string {
	out := make([]string, 0, len(s.items))
	for id := range s.items {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
