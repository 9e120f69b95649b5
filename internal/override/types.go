// Package override records human review decisions about flagged changes and
// reports whether a guideline has been completely reviewed.
//
// The store is an append-only log. Explicit decisions and decisions
// synthesized by bulk rules live in separate indexes; lookups consult the
// explicit index first, so an explicit decision always beats a bulk one no
// matter which was recorded first.
package override

import (
	"errors"
	"fmt"
	"time"

	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/guideline"
)

// Scope is the kind of change a decision is about.
type Scope string

const (
	ScopeCategorization      Scope = "categorization"
	ScopeMatchRemoval        Scope = "match_removal"
	ScopeMatchAddition       Scope = "match_addition"
	ScopeSpecificity         Scope = "specificity"
	ScopeReferenceDivergence Scope = "reference_divergence"
)

var scopes = []Scope{ScopeCategorization, ScopeMatchRemoval, ScopeMatchAddition, ScopeSpecificity, ScopeReferenceDivergence}

// ParseScope validates a scope token.
func ParseScope(s string) (Scope, error) {
	for _, sc := range scopes {
		if Scope(s) == sc {
			return sc, nil
		}
	}
	return "", fmt.Errorf("unknown scope %q", s)
}

// Targeted reports whether decisions in this scope name a match id.
func (s Scope) Targeted() bool { return s == ScopeMatchRemoval || s == ScopeMatchAddition }

// Verdict is the reviewer's answer. It is opaque to the store.
type Verdict string

const (
	Accept Verdict = "accept"
	Reject Verdict = "reject"
	NA     Verdict = "n_a"
)

// ParseVerdict validates a verdict token.
func ParseVerdict(s string) (Verdict, error) {
	switch v := Verdict(s); v {
	case Accept, Reject, NA:
		return v, nil
	}
	return "", fmt.Errorf("unknown decision %q", s)
}

// Key identifies one reviewable item.
type Key struct {
	GuidelineID string            `json:"guideline_id"`
	Context     guideline.Context `json:"context"`
	Scope       Scope             `json:"scope"`
	TargetID    string            `json:"target_id,omitempty"`
}

func (k Key) String() string {
	s := fmt.Sprintf("%s/%s/%s", k.GuidelineID, k.Context, k.Scope)
	if k.TargetID != "" {
		s += "/" + k.TargetID
	}
	return s
}

func (k Key) less(o Key) bool {
	if k.GuidelineID != o.GuidelineID {
		return k.GuidelineID < o.GuidelineID
	}
	if k.Context != o.Context {
		return k.Context < o.Context
	}
	if k.Scope != o.Scope {
		return k.Scope < o.Scope
	}
	return k.TargetID < o.TargetID
}

// Decision is one override.
type Decision struct {
	Key
	Verdict Verdict `json:"decision"`
	Reason  string  `json:"reason"`
	ViaBulk bool    `json:"via_bulk"`
}

// BulkRule accepts every pending removal or addition of MatchID, in the
// contexts enabled in ContextApplicability.
type BulkRule struct {
	MatchID              string                     `json:"match_id"`
	ContextApplicability map[guideline.Context]bool `json:"context_applicability"`
	Reason               string                     `json:"reason"`
}

// ReviewState summarises review progress for a guideline.
type ReviewState string

const (
	Pending       ReviewState = "pending"
	Partial       ReviewState = "partial"
	FullyReviewed ReviewState = "fully_reviewed"
)

// EntryKind tags a log entry.
type EntryKind string

const (
	KindDecision EntryKind = "decision"
	KindBulk     EntryKind = "bulk"
	KindReset    EntryKind = "reset"
)

// Entry is one line of the decision log. Reset entries carry only the
// guideline id in Decision.GuidelineID.
type Entry struct {
	Seq        int64     `json:"seq"`
	ID         string    `json:"id"`
	Kind       EntryKind `json:"kind"`
	Decision   Decision  `json:"decision"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Log persists entries. Append must be atomic: either every entry of one
// call is stored or none is.
type Log interface {
	Append(entries ...Entry) error
	Entries() ([]Entry, error)
}

// ErrNotRegistered is returned for guidelines with no comparison on record.
var ErrNotRegistered = errors.New("override: guideline not registered")

// UnknownMatchIDError reports a decision naming a match id that is not
// among the removed or added matches of its context.
type UnknownMatchIDError struct {
	GuidelineID string
	Field       string
	Context     guideline.Context
	Scope       Scope
	MatchID     string
}

func (e *UnknownMatchIDError) Error() string {
	return fmt.Sprintf("guideline %s: %s: match %q is not a pending %s in %s",
		e.GuidelineID, e.Field, e.MatchID, e.Scope, e.Context)
}

// IsUnknownMatchID reports whether err is, or wraps, an UnknownMatchIDError.
func IsUnknownMatchID(err error) bool {
	var u *UnknownMatchIDError
	return errors.As(err, &u)
}
