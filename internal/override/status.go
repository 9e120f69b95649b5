package override

import (
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/diff"
)

// Progress is the review progress of one guideline.
type Progress struct {
	GuidelineID string      `json:"guideline_id"`
	State       ReviewState `json:"state"`
	Total       int         `json:"total"`
	Decided     int         `json:"decided"`
	Missing     []Item      `json:"missing,omitempty"`
}

// Snapshot is a consistent view of one guideline: its flagged items, their
// effective decisions and the resulting state, all read under one lock.
type Snapshot struct {
	GuidelineID string
	Registered  bool
	Progress    Progress
	Items       []Item
	Decisions   map[Key]Decision
}

// Lookup returns the effective decision for k.
func (s Snapshot) Lookup(k Key) (Decision, bool) {
	d, ok := s.Decisions[k]
	return d, ok
}

// Status reports whether every flagged item of a guideline has a decision.
// Unregistered guidelines are pending. A guideline with no flagged items is
// fully reviewed.
func (s *Store) Status(guidelineID string) ReviewState {
	return s.Progress(guidelineID).State
}

// Progress reports how many flagged items have decisions and which do not.
func (s *Store) Progress(guidelineID string) Progress {
	return s.Snapshot(guidelineID).Progress
}

// Snapshot returns a consistent view of one guideline.
func (s *Store) Snapshot(guidelineID string) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		GuidelineID: guidelineID,
		Decisions:   make(map[Key]Decision),
		Progress:    Progress{GuidelineID: guidelineID, State: Pending},
	}
	for _, d := range s.decisionsLocked(guidelineID) {
		snap.Decisions[d.Key] = d
	}
	g, ok := s.comparisons[guidelineID]
	if !ok {
		return snap
	}
	snap.Registered = true
	snap.Items = FlaggedItems(g)
	snap.Progress = progressOf(guidelineID, snap.Items, snap.Decisions)
	return snap
}

func progressOf(guidelineID string, items []Item, decisions map[Key]Decision) Progress {
	p := Progress{GuidelineID: guidelineID, Total: len(items)}
	for _, it := range items {
		if _, ok := decisions[it.Key]; ok {
			p.Decided++
		} else {
			p.Missing = append(p.Missing, it)
		}
	}
	switch {
	case p.Decided == p.Total:
		p.State = FullyReviewed
	case p.Decided == 0:
		p.State = Pending
	default:
		p.State = Partial
	}
	return p
}

// Against re-evaluates the snapshot's decisions against the flagged items
// of g. Decisions for items g does not flag are ignored.
func (s Snapshot) Against(g *diff.GuidelineComparison) Snapshot {
	s.Items = FlaggedItems(g)
	s.Progress = progressOf(s.GuidelineID, s.Items, s.Decisions)
	return s
}
