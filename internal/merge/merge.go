// Package merge combines a baseline record, a proposed update, the review
// decisions recorded for it and the authoritative reference into one final
// record.
package merge

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/diff"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/guideline"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/logging"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/override"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/schema"
)

// Reviewer supplies a consistent view of the decisions for one guideline.
// *override.Store implements it.
type Reviewer interface {
	Snapshot(guidelineID string) override.Snapshot
}

// IncompleteReviewError is returned when a merge is attempted before every
// flagged item of the guideline has a decision.
type IncompleteReviewError struct {
	GuidelineID string
	Field       string
	State       override.ReviewState
	Missing     []override.Key
}

func (e *IncompleteReviewError) Error() string {
	return fmt.Sprintf("guideline %s: %s: review is %s, %d item(s) without a decision",
		e.GuidelineID, e.Field, e.State, len(e.Missing))
}

// IsIncompleteReview reports whether err is, or wraps, an IncompleteReviewError.
func IsIncompleteReview(err error) bool {
	var ir *IncompleteReviewError
	return errors.As(err, &ir)
}

type options struct {
	bypass       bool
	bypassReason string
	logger       *slog.Logger
}

// Option configures a merge.
type Option func(*options)

// WithBypass finalizes the record even if review is incomplete. Items
// without a decision keep the proposed values. The reason is mandatory and
// is logged and written to the record.
func WithBypass(reason string) Option {
	return func(o *options) {
		o.bypass = true
		o.bypassReason = reason
	}
}

// WithLogger sets the logger used for bypass warnings.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// Merge produces the final record for one guideline. baseline may be nil
// (a guideline with no history). reference may be nil, in which case the
// reference carried by proposed, or else baseline, is used.
//
// Merge is a pure function of its inputs and the reviewer's snapshot:
// identical inputs give a byte-identical Encode output.
func Merge(baseline, proposed *guideline.Record, overrides Reviewer, reference *guideline.Reference, opts ...Option) (*guideline.FinalRecord, error) {
	o := options{logger: logging.New("merge")}
	for _, opt := range opts {
		opt(&o)
	}
	if proposed == nil {
		return nil, guideline.Malformed("", "proposed", "missing proposed record")
	}
	if o.bypass && o.bypassReason == "" {
		return nil, fmt.Errorf("merge: guideline %s: bypass requires a reason", proposed.ID)
	}
	if baseline == nil {
		baseline = guideline.Scaffold(proposed.ID)
	}
	if reference == nil {
		reference = diff.EffectiveReference(baseline, proposed)
	}
	reference, err := normalizeReference(proposed.ID, reference)
	if err != nil {
		return nil, err
	}

	g, err := diff.CompareWithReference(baseline, proposed, reference, nil)
	if err != nil {
		return nil, err
	}

	// The gate counts the items of the comparison being merged, not the one
	// registered earlier: the inputs may have changed since.
	snap := overrides.Snapshot(proposed.ID).Against(g)
	state := snap.Progress.State
	if state != override.FullyReviewed {
		missing := missingKeys(snap)
		if !o.bypass {
			return nil, &IncompleteReviewError{
				GuidelineID: proposed.ID,
				Field:       "review",
				State:       state,
				Missing:     missing,
			}
		}
		o.logger.Warn("review gate bypassed",
			slog.String("guideline", proposed.ID),
			slog.String("state", string(state)),
			slog.Int("missing", len(missing)),
			slog.String("reason", o.bypassReason),
		)
	}

	out := &guideline.FinalRecord{
		Record: guideline.Record{
			SchemaVersion: string(schema.Latest),
			ID:            proposed.ID,
			Title:         firstNonEmpty(proposed.Title, baseline.Title),
			Type:          firstNonEmpty(proposed.Type, baseline.Type),
			Batch:         firstBatch(proposed.Batch, baseline.Batch),
			Reference:     reference,
		},
		Review: guideline.ReviewSummary{
			State:        string(state),
			Bypassed:     state != override.FullyReviewed,
			BypassReason: bypassReason(state, o.bypassReason),
		},
	}
	for _, cc := range g.Contexts {
		c := cc.Result.Context
		m := &contextMerge{
			id:       proposed.ID,
			ctx:      c,
			base:     baseline.Context(c),
			prop:     proposed.Context(c),
			ref:      reference.Context(c),
			cmp:      cc,
			snap:     snap,
			bypassed: out.Review.Bypassed,
		}
		out.SetContext(c, m.run())
	}
	return out, nil
}

// Encode renders a final record as canonical JSON.
func Encode(f *guideline.FinalRecord) ([]byte, error) {
	data, err := guideline.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("merge: encode %s: %w", f.ID, err)
	}
	return data, nil
}

func missingKeys(snap override.Snapshot) []override.Key {
	var out []override.Key
	for _, it := range snap.Items {
		if _, ok := snap.Lookup(it.Key); !ok {
			out = append(out, it.Key)
		}
	}
	return out
}

func bypassReason(state override.ReviewState, reason string) string {
	if state == override.FullyReviewed {
		return ""
	}
	return reason
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func firstBatch(a, b *int) *int {
	p := a
	if p == nil {
		p = b
	}
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// normalizeReference returns a copy of r with every value folded to its
// canonical form. An unknown value is a malformed record.
func normalizeReference(id string, r *guideline.Reference) (*guideline.Reference, error) {
	if r == nil {
		return nil, nil
	}
	cp := &guideline.Reference{Source: r.Source}
	for _, c := range guideline.Contexts {
		rc := r.Context(c)
		if rc == nil {
			continue
		}
		field := "reference." + string(c)
		var n guideline.ReferenceContext
		if rc.Applicability != "" {
			a, err := guideline.NormalizeApplicability(string(rc.Applicability))
			if err != nil {
				return nil, guideline.Malformed(id, field+".applicability", "%v", err)
			}
			n.Applicability = a
		}
		cat, err := guideline.NormalizeCategory(string(rc.Category))
		if err != nil {
			return nil, guideline.Malformed(id, field+".category", "%v", err)
		}
		n.Category = cat
		switch c {
		case guideline.AllRust:
			cp.AllRust = &n
		case guideline.SafeRust:
			cp.SafeRust = &n
		}
	}
	return cp, nil
}
