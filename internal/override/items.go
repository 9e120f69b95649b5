package override

import (
	"fmt"
	"strings"

	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/diff"
)

// Item is one flagged change that needs a decision.
type Item struct {
	Key
	Summary string `json:"summary"`
}

// FlaggedItems enumerates every reviewable item of a comparison: one
// categorization item per changed context, one item per removed or added
// match, one specificity item per context where specificity decreased, and
// one reference item per diverging context.
func FlaggedItems(g *diff.GuidelineComparison) []Item {
	if g == nil {
		return nil
	}
	var out []Item
	for _, cc := range g.Contexts {
		ctx := cc.Result.Context
		key := func(s Scope, target string) Key {
			return Key{GuidelineID: g.GuidelineID, Context: ctx, Scope: s, TargetID: target}
		}
		if cc.Flags.CategorizationChanged() {
			var parts []string
			for _, fd := range cc.Result.Fields {
				if fd.Changed {
					parts = append(parts, fmt.Sprintf("%s %s→%s", fd.Field, orNull(fd.Before), orNull(fd.After)))
				}
			}
			out = append(out, Item{Key: key(ScopeCategorization, ""), Summary: strings.Join(parts, ", ")})
		}
		for _, mt := range cc.Result.Removed {
			out = append(out, Item{Key: key(ScopeMatchRemoval, mt.ID), Summary: "removed " + describe(mt.ID, mt.Category, mt.Title)})
		}
		for _, mt := range cc.Result.Added {
			out = append(out, Item{Key: key(ScopeMatchAddition, mt.ID), Summary: "added " + describe(mt.ID, mt.Category, mt.Title)})
		}
		if cc.Flags.SpecificityDecreased {
			out = append(out, Item{
				Key:     key(ScopeSpecificity, ""),
				Summary: fmt.Sprintf("specific matches %d→%d", cc.Result.BaselineSpecific, cc.Result.ProposedSpecific),
			})
		}
		if cc.Flags.DivergesFromReference.Any() {
			var parts []string
			for _, rd := range cc.Result.Reference {
				if rd.Diverges {
					parts = append(parts, fmt.Sprintf("%s %s≠%s", rd.Field, orNull(rd.Proposed), rd.Reference))
				}
			}
			out = append(out, Item{Key: key(ScopeReferenceDivergence, ""), Summary: strings.Join(parts, ", ")})
		}
	}
	return out
}

func describe(id string, category int, title string) string {
	s := fmt.Sprintf("%s (category %d)", id, category)
	if title != "" {
		s += " " + title
	}
	return s
}

func orNull(s string) string {
	if s == "" {
		return "null"
	}
	return s
}
