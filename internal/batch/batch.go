// Package batch runs the comparison and merge of many guidelines with a
// bounded worker pool. Guidelines are independent: a failure is recorded on
// that guideline's result and never stops the rest of the batch.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/diff"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/guideline"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/logging"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/merge"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/migrate"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/override"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/schema"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/workspace"
)

// DefaultWorkers is used when Runner.Workers is not positive.
const DefaultWorkers = 4

// Runner runs a batch.
type Runner struct {
	Workers      int
	Expectations *diff.Expectations
	// Clock dates migration waivers; nil means time.Now.
	Clock  func() time.Time
	Logger *slog.Logger
}

// Item is one compared guideline.
type Item struct {
	ID         string
	Baseline   *guideline.Record
	Proposed   *guideline.Record
	Comparison *diff.GuidelineComparison
	Err        error
}

// Outcome is one merged guideline.
type Outcome struct {
	ID      string
	Final   *guideline.FinalRecord
	Encoded []byte
	Err     error
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return logging.New("batch")
}

func (r *Runner) workers() int {
	if r.Workers > 0 {
		return r.Workers
	}
	return DefaultWorkers
}

// LoadPair migrates both documents of a pair to the latest schema and
// decodes them. A nil baseline document yields a nil baseline record.
func (r *Runner) LoadPair(p workspace.Pair) (baseline, proposed *guideline.Record, err error) {
	var opts []migrate.Option
	if r.Clock != nil {
		opts = append(opts, migrate.WithClock(r.Clock))
	}
	load := func(doc schema.Document) (*guideline.Record, error) {
		up, err := migrate.Migrate(doc, schema.Latest, opts...)
		if err != nil {
			return nil, err
		}
		return guideline.Decode(up)
	}
	if p.Baseline != nil {
		if baseline, err = load(p.Baseline); err != nil {
			return nil, nil, fmt.Errorf("baseline: %w", err)
		}
	}
	if proposed, err = load(p.Proposed); err != nil {
		return nil, nil, fmt.Errorf("proposed: %w", err)
	}
	return baseline, proposed, nil
}

// Compare loads and compares every pair. Results keep the input order.
func (r *Runner) Compare(ctx context.Context, pairs []workspace.Pair) ([]Item, error) {
	items := make([]Item, len(pairs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers())
	for i, p := range pairs {
		g.Go(func() error {
			items[i] = r.compareOne(gctx, p)
			return nil
		})
	}
	_ = g.Wait() // errors captured in Item.Err

	failed := 0
	for _, it := range items {
		if it.Err != nil {
			failed++
			r.logger().Error("compare failed", slog.String("guideline", it.ID), slog.Any("error", it.Err))
		}
	}
	r.logger().Info("batch compared", slog.Int("guidelines", len(items)), slog.Int("failed", failed))
	return items, ctx.Err()
}

func (r *Runner) compareOne(ctx context.Context, p workspace.Pair) Item {
	it := Item{ID: p.ID}
	if err := ctx.Err(); err != nil {
		it.Err = err
		return it
	}
	it.Baseline, it.Proposed, it.Err = r.LoadPair(p)
	if it.Err != nil {
		return it
	}
	it.Comparison, it.Err = diff.Compare(it.Baseline, it.Proposed, r.Expectations)
	return it
}

// Register installs every successful comparison in the store.
func Register(st *override.Store, items []Item) int {
	n := 0
	for _, it := range items {
		if it.Err == nil && it.Comparison != nil {
			st.Register(it.Comparison)
			n++
		}
	}
	return n
}

// Merge merges every successfully compared item. Items that failed to
// compare are carried over as failed outcomes.
func (r *Runner) Merge(ctx context.Context, items []Item, rev merge.Reviewer, opts ...merge.Option) ([]Outcome, error) {
	out := make([]Outcome, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers())
	for i, it := range items {
		g.Go(func() error {
			out[i] = r.mergeOne(gctx, it, rev, opts)
			return nil
		})
	}
	_ = g.Wait() // errors captured in Outcome.Err

	merged, incomplete := 0, 0
	for _, o := range out {
		switch {
		case o.Err == nil:
			merged++
		case merge.IsIncompleteReview(o.Err):
			incomplete++
		default:
			r.logger().Error("merge failed", slog.String("guideline", o.ID), slog.Any("error", o.Err))
		}
	}
	r.logger().Info("batch merged",
		slog.Int("guidelines", len(out)),
		slog.Int("merged", merged),
		slog.Int("incomplete", incomplete),
	)
	return out, ctx.Err()
}

func (r *Runner) mergeOne(ctx context.Context, it Item, rev merge.Reviewer, opts []merge.Option) Outcome {
	o := Outcome{ID: it.ID}
	if it.Err != nil {
		o.Err = it.Err
		return o
	}
	if err := ctx.Err(); err != nil {
		o.Err = err
		return o
	}
	o.Final, o.Err = merge.Merge(it.Baseline, it.Proposed, rev, nil, opts...)
	if o.Err != nil {
		return o
	}
	o.Encoded, o.Err = merge.Encode(o.Final)
	return o
}
