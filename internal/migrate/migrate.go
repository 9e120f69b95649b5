// Package migrate upgrades guideline documents forward along the schema
// lineage. Every step only adds keys; nothing present in the input is
// removed or changed, so a value readable at one version stays readable at
// the next (see Lookup for values that moved).
package migrate

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/guideline"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/logging"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/schema"
)

// VersionDowngradeError is returned for a target older than the document.
type VersionDowngradeError struct {
	GuidelineID string
	Field       string
	From, To    schema.Version
}

func (e *VersionDowngradeError) Error() string {
	return fmt.Sprintf("guideline %s: %s: cannot migrate from %s down to %s", e.GuidelineID, e.Field, e.From, e.To)
}

// IsVersionDowngrade reports whether err is, or wraps, a VersionDowngradeError.
func IsVersionDowngrade(err error) bool {
	var d *VersionDowngradeError
	return errors.As(err, &d)
}

type options struct {
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a migration.
type Option func(*options)

// WithClock sets the clock that dates waivers.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// WithLogger sets the migration logger.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// stepEnv is what a step may read besides the document.
type stepEnv struct {
	source schema.Version
	date   string
}

type step func(doc schema.Document, env stepEnv) error

// steps maps each version to the step that produces its successor.
var steps = map[schema.Version]step{
	schema.V1_0: addTitleAndType,
	schema.V1_1: buildContextBlocks,
	schema.V2_0: addCounts,
	schema.V2_1: addReferenceAndBatch,
	schema.V3_0: addSpecificityWaiver,
	schema.V3_1: addProvenance,
}

// Migrate returns a copy of doc upgraded to target. The input is not
// modified. Migrating to the document's own version only writes the explicit
// version tag.
func Migrate(doc schema.Document, target schema.Version, opts ...Option) (schema.Document, error) {
	o := options{now: time.Now, logger: logging.New("migrate")}
	for _, opt := range opts {
		opt(&o)
	}
	id, _ := doc["id"].(string)

	src := schema.Resolve(doc)
	if !src.Known() {
		return nil, guideline.Malformed(id, schema.TagKey, "unknown schema version %q", src)
	}
	if !target.Known() {
		return nil, guideline.Malformed(id, schema.TagKey, "unknown target version %q", target)
	}
	if target.Compare(src) < 0 {
		return nil, &VersionDowngradeError{GuidelineID: id, Field: schema.TagKey, From: src, To: target}
	}

	out := doc.Clone()
	env := stepEnv{source: src, date: o.now().UTC().Format(time.DateOnly)}
	for v := src; v != target; {
		next, ok := v.Next()
		if !ok {
			return nil, fmt.Errorf("migrate: guideline %s: no step after %s", id, v)
		}
		if err := steps[v](out, env); err != nil {
			return nil, err
		}
		o.logger.Debug("migration step",
			slog.String("guideline", id),
			slog.String("from", string(v)),
			slog.String("to", string(next)),
		)
		v = next
	}
	out[schema.TagKey] = string(target)
	return out, nil
}

// setDefault adds key only when it is absent.
func setDefault(m map[string]any, key string, v any) {
	if _, ok := m[key]; !ok {
		m[key] = v
	}
}

// contextBlocks returns the per-context blocks that exist in doc.
func contextBlocks(doc schema.Document) map[guideline.Context]map[string]any {
	out := make(map[guideline.Context]map[string]any, len(guideline.Contexts))
	for _, c := range guideline.Contexts {
		if block, ok := doc.Object(string(c)); ok {
			out[c] = block
		}
	}
	return out
}

func addTitleAndType(doc schema.Document, _ stepEnv) error {
	setDefault(doc, "title", nil)
	setDefault(doc, "type", nil)
	return nil
}

// flatShared lists 1.x top-level keys shared by both contexts.
var flatShared = []string{"category", "rationale_kind", "confidence", "notes"}

func buildContextBlocks(doc schema.Document, _ stepEnv) error {
	for _, c := range guideline.Contexts {
		if _, ok := doc.Object(string(c)); ok {
			continue
		}
		block := map[string]any{
			"applicability": copyValue(doc["applicability_"+string(c)]),
		}
		for _, k := range flatShared {
			block[k] = copyValue(doc[k])
		}
		block["accepted_matches"] = listOrEmpty(doc["accepted_matches"])
		block["rejected_matches"] = listOrEmpty(doc["rejected_matches"])
		block["verified"] = false
		doc[string(c)] = block
	}
	return nil
}

func addCounts(doc schema.Document, _ stepEnv) error {
	for _, block := range contextBlocks(doc) {
		accepted, specific := countMatches(block["accepted_matches"])
		setDefault(block, "accepted_count", accepted)
		setDefault(block, "specific_count", specific)
	}
	return nil
}

func addReferenceAndBatch(doc schema.Document, _ stepEnv) error {
	setDefault(doc, "reference", nil)
	setDefault(doc, "batch", nil)
	return nil
}

// WaiverTemplate is the waiver written when a context fails the specific
// match coverage requirement introduced in 3.1.
const WaiverTemplate = "specific-match coverage waived: migrated from schema %s on %s with %d specific of %d accepted matches in %s; re-verify"

// addSpecificityWaiver fails on an applicability it cannot read. A null
// applicability gets a null waiver and is left for Decode to reject.
func addSpecificityWaiver(doc schema.Document, env stepEnv) error {
	id, _ := doc["id"].(string)
	for _, c := range guideline.Contexts {
		block, ok := doc.Object(string(c))
		if !ok {
			continue
		}
		if _, ok := block["specificity_waiver"]; ok {
			continue
		}
		var a guideline.Applicability
		if raw := block["applicability"]; raw != nil {
			str, ok := raw.(string)
			if !ok {
				return guideline.Malformed(id, string(c)+".applicability", "applicability is %T, not a string", raw)
			}
			v, err := guideline.NormalizeApplicability(str)
			if err != nil {
				return guideline.Malformed(id, string(c)+".applicability", "%v", err)
			}
			a = v
		}
		accepted, specific := countMatches(block["accepted_matches"])
		if !a.Applicable() || specific > 0 {
			block["specificity_waiver"] = nil
			continue
		}
		block["specificity_waiver"] = fmt.Sprintf(WaiverTemplate, env.source, env.date, specific, accepted, c)
	}
	return nil
}

func addProvenance(doc schema.Document, _ stepEnv) error {
	for _, block := range contextBlocks(doc) {
		setDefault(block, "provenance", []any{})
	}
	return nil
}

func countMatches(raw any) (accepted, specific int) {
	list, _ := raw.([]any)
	for _, e := range list {
		accepted++
		obj, ok := e.(map[string]any)
		if !ok {
			continue
		}
		switch n := obj["category"].(type) {
		case float64:
			if n != 0 {
				specific++
			}
		case int:
			if n != 0 {
				specific++
			}
		case int64:
			if n != 0 {
				specific++
			}
		}
	}
	return accepted, specific
}

func listOrEmpty(raw any) any {
	if raw == nil {
		return []any{}
	}
	return copyValue(raw)
}

// copyValue deep-copies through a one-key document so flat values and their
// block copies never alias.
func copyValue(v any) any {
	return schema.Document{"v": v}.Clone()["v"]
}
