package override

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/diff"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/guideline"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/logging"
)

// Store accumulates decisions for one review cycle. It is safe for
// concurrent use. All writes, including a whole bulk rule, happen under one
// write lock, so readers never observe a partially applied bulk rule.
type Store struct {
	mu          sync.RWMutex
	log         Log
	seq         int64
	comparisons map[string]*diff.GuidelineComparison
	explicit    map[Key]Decision
	bulk        map[Key]Decision

	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store's logger.
func WithLogger(l *slog.Logger) Option { return func(s *Store) { s.logger = l } }

// WithClock sets the clock used to timestamp log entries.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// NewStore returns an empty store backed by an in-memory log.
func NewStore(opts ...Option) *Store {
	s, _ := Open(&MemLog{}, opts...)
	return s
}

// Open returns a store backed by log, replaying the entries already in it.
func Open(log Log, opts ...Option) (*Store, error) {
	s := &Store{
		log:         log,
		comparisons: make(map[string]*diff.GuidelineComparison),
		explicit:    make(map[Key]Decision),
		bulk:        make(map[Key]Decision),
		logger:      logging.New("override"),
		now:         time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	entries, err := log.Entries()
	if err != nil {
		return nil, fmt.Errorf("override: replay log: %w", err)
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Seq < entries[j].Seq })
	for _, e := range entries {
		s.apply(e)
		if e.Seq > s.seq {
			s.seq = e.Seq
		}
	}
	if len(entries) > 0 {
		s.logger.Debug("decision log replayed", slog.Int("entries", len(entries)))
	}
	return s, nil
}

// Register installs the comparison for a guideline's current cycle. Its
// flagged items define what Status requires and which match ids
// decisions may name. Registering again replaces the comparison but keeps
// recorded decisions.
func (s *Store) Register(g *diff.GuidelineComparison) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comparisons[g.GuidelineID] = g
}

// Comparison returns the registered comparison for a guideline.
func (s *Store) Comparison(guidelineID string) (*diff.GuidelineComparison, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.comparisons[guidelineID]
	return g, ok
}

// Guidelines returns the registered guideline ids, sorted.
func (s *Store) Guidelines() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.comparisons))
	for id := range s.comparisons {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// RecordDecision upserts an explicit decision; the last write for a key
// wins. A match decision naming an id outside the context's removed or
// added set fails immediately with *UnknownMatchIDError.
func (s *Store) RecordDecision(d Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validate(d); err != nil {
		return err
	}
	d.ViaBulk = false
	return s.appendLocked(Entry{Kind: KindDecision, Decision: d})
}

func (s *Store) validate(d Decision) error {
	if d.GuidelineID == "" {
		return fmt.Errorf("override: decision without guideline id")
	}
	if _, err := guideline.ParseContext(string(d.Context)); err != nil {
		return fmt.Errorf("override: guideline %s: context: %w", d.GuidelineID, err)
	}
	if _, err := ParseScope(string(d.Scope)); err != nil {
		return fmt.Errorf("override: guideline %s: scope: %w", d.GuidelineID, err)
	}
	if _, err := ParseVerdict(string(d.Verdict)); err != nil {
		return fmt.Errorf("override: guideline %s: decision: %w", d.GuidelineID, err)
	}
	g, ok := s.comparisons[d.GuidelineID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRegistered, d.GuidelineID)
	}
	if !d.Scope.Targeted() {
		if d.TargetID != "" {
			return fmt.Errorf("override: guideline %s: target_id: scope %s takes no target", d.GuidelineID, d.Scope)
		}
		return nil
	}
	if d.TargetID == "" {
		return fmt.Errorf("override: guideline %s: target_id: scope %s needs a match id", d.GuidelineID, d.Scope)
	}
	cc, _ := g.Context(d.Context)
	set := cc.Result.Removed
	if d.Scope == ScopeMatchAddition {
		set = cc.Result.Added
	}
	for _, m := range set {
		if m.ID == d.TargetID {
			return nil
		}
	}
	return &UnknownMatchIDError{
		GuidelineID: d.GuidelineID,
		Field:       "target_id",
		Context:     d.Context,
		Scope:       d.Scope,
		MatchID:     d.TargetID,
	}
}

// ApplyBulkRule synthesizes an accept decision, tagged ViaBulk, for every
// registered guideline and enabled context where rule.MatchID was removed or
// added and no explicit decision exists. It never touches explicit
// decisions. It returns how many decisions were synthesized.
func (s *Store) ApplyBulkRule(rule BulkRule) (int, error) {
	if rule.MatchID == "" {
		return 0, fmt.Errorf("override: bulk rule without match id")
	}
	for c := range rule.ContextApplicability {
		if _, err := guideline.ParseContext(string(c)); err != nil {
			return 0, fmt.Errorf("override: bulk rule %s: %w", rule.MatchID, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.comparisons))
	for id := range s.comparisons {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var entries []Entry
	for _, id := range ids {
		g := s.comparisons[id]
		for _, c := range guideline.Contexts {
			if !rule.ContextApplicability[c] {
				continue
			}
			cc, _ := g.Context(c)
			for _, k := range bulkTargets(id, c, rule.MatchID, cc.Result) {
				if _, ok := s.explicit[k]; ok {
					continue
				}
				entries = append(entries, Entry{Kind: KindBulk, Decision: Decision{
					Key:     k,
					Verdict: Accept,
					Reason:  rule.Reason,
					ViaBulk: true,
				}})
			}
		}
	}
	if len(entries) == 0 {
		return 0, nil
	}
	if err := s.appendLocked(entries...); err != nil {
		return 0, err
	}
	s.logger.Info("bulk rule applied",
		slog.String("match_id", rule.MatchID),
		slog.Int("synthesized", len(entries)),
	)
	return len(entries), nil
}

func bulkTargets(id string, c guideline.Context, matchID string, res diff.ComparisonResult) []Key {
	var out []Key
	for _, m := range res.Removed {
		if m.ID == matchID {
			out = append(out, Key{GuidelineID: id, Context: c, Scope: ScopeMatchRemoval, TargetID: matchID})
		}
	}
	for _, m := range res.Added {
		if m.ID == matchID {
			out = append(out, Key{GuidelineID: id, Context: c, Scope: ScopeMatchAddition, TargetID: matchID})
		}
	}
	return out
}

// Reset deletes every decision, explicit and bulk, for exactly one
// guideline so it can be reviewed again.
func (s *Store) Reset(guidelineID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(Entry{Kind: KindReset, Decision: Decision{Key: Key{GuidelineID: guidelineID}}})
}

// Lookup returns the effective decision for a key: explicit first, then bulk.
func (s *Store) Lookup(k Key) (Decision, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookupLocked(k)
}

func (s *Store) lookupLocked(k Key) (Decision, bool) {
	if d, ok := s.explicit[k]; ok {
		return d, true
	}
	d, ok := s.bulk[k]
	return d, ok
}

// Decisions returns the effective decisions for a guideline, sorted by key.
func (s *Store) Decisions(guidelineID string) []Decision {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.decisionsLocked(guidelineID)
}

func (s *Store) decisionsLocked(guidelineID string) []Decision {
	eff := make(map[Key]Decision)
	for k, d := range s.bulk {
		if k.GuidelineID == guidelineID {
			eff[k] = d
		}
	}
	for k, d := range s.explicit {
		if k.GuidelineID == guidelineID {
			eff[k] = d
		}
	}
	out := make([]Decision, 0, len(eff))
	for _, d := range eff {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.less(out[j].Key) })
	return out
}

// appendLocked writes entries to the log and, only once that succeeded,
// applies them to the indexes. Callers hold the write lock.
func (s *Store) appendLocked(entries ...Entry) error {
	now := s.now().UTC()
	seq := s.seq
	for i := range entries {
		seq++
		entries[i].Seq = seq
		entries[i].ID = uuid.NewString()
		entries[i].RecordedAt = now
	}
	if err := s.log.Append(entries...); err != nil {
		return fmt.Errorf("override: append log: %w", err)
	}
	s.seq = seq
	for _, e := range entries {
		s.apply(e)
	}
	return nil
}

func (s *Store) apply(e Entry) {
	switch e.Kind {
	case KindDecision:
		s.explicit[e.Decision.Key] = e.Decision
	case KindBulk:
		s.bulk[e.Decision.Key] = e.Decision
	case KindReset:
		id := e.Decision.GuidelineID
		for k := range s.explicit {
			if k.GuidelineID == id {
				delete(s.explicit, k)
			}
		}
		for k := range s.bulk {
			if k.GuidelineID == id {
				delete(s.bulk, k)
			}
		}
	}
}

// MemLog is an in-memory Log.
type MemLog struct {
	mu      sync.Mutex
	entries []Entry
}

// Append implements Log.
func (l *MemLog) Append(entries ...Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entries...)
	return nil
}

// Entries implements Log.
func (l *MemLog) Entries() ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out, nil
}
