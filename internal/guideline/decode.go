package guideline

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/schema"
)

// Flat (1.x) field names.
const (
	flatApplicabilityPrefix = "applicability_"
	fieldAccepted           = "accepted_matches"
	fieldRejected           = "rejected_matches"
)

// Decode turns a document of any known schema version into a typed Record.
// Structural problems and unknown enum values are reported as
// *MalformedRecordError; nothing is silently defaulted.
func Decode(doc schema.Document) (*Record, error) {
	d := &decoder{}
	id := d.str(doc, "id", "id")
	if d.err == nil && id == "" {
		return nil, Malformed("", "id", "missing guideline id")
	}
	d.id = id

	v := schema.Resolve(doc)
	if !v.Known() {
		return nil, Malformed(id, schema.TagKey, "unknown schema version %q", v)
	}

	rec := &Record{
		SchemaVersion: string(v),
		ID:            id,
		Title:         d.str(doc, "title", "title"),
		Type:          d.str(doc, "type", "type"),
		Batch:         d.optInt(doc, "batch", "batch"),
	}

	if v.Family() == schema.FamilyFlat {
		for _, c := range Contexts {
			rec.SetContext(c, d.flatContext(doc, c))
		}
	} else {
		for _, c := range Contexts {
			block, ok := doc[string(c)].(map[string]any)
			if !ok {
				d.fail(string(c), "missing or not an object")
				break
			}
			rec.SetContext(c, d.context(block, string(c)))
		}
	}
	if raw, ok := doc["reference"]; ok && raw != nil {
		rec.Reference = d.reference(raw)
	}

	if d.err != nil {
		return nil, d.err
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	for _, c := range Contexts {
		rec.Context(c).normalize()
	}
	return rec, nil
}

// Validate checks enum vocabularies and match-set invariants.
func (r *Record) Validate() error {
	for _, c := range Contexts {
		cc := r.Context(c)
		p := string(c)
		if _, err := ParseApplicability(string(cc.Applicability)); err != nil {
			return Malformed(r.ID, p+".applicability", "%v", err)
		}
		if _, err := ParseCategory(string(cc.Category)); err != nil {
			return Malformed(r.ID, p+".category", "%v", err)
		}
		if cc.RationaleKind != "" {
			if _, err := ParseRationaleKind(string(cc.RationaleKind)); err != nil {
				return Malformed(r.ID, p+".rationale_kind", "%v", err)
			}
		}
		if cc.Confidence != "" {
			if _, err := ParseConfidence(string(cc.Confidence)); err != nil {
				return Malformed(r.ID, p+".confidence", "%v", err)
			}
		}
		if err := checkMatchSets(r.ID, p, cc); err != nil {
			return err
		}
		if ref := r.Reference.Context(c); ref != nil {
			if ref.Applicability != "" {
				if _, err := ParseApplicability(string(ref.Applicability)); err != nil {
					return Malformed(r.ID, "reference."+p+".applicability", "%v", err)
				}
			}
			if _, err := ParseCategory(string(ref.Category)); err != nil {
				return Malformed(r.ID, "reference."+p+".category", "%v", err)
			}
		}
	}
	return nil
}

func checkMatchSets(id, path string, cc *ContextClassification) error {
	accepted := make(map[string]bool, len(cc.Accepted))
	for _, m := range cc.Accepted {
		if m.ID == "" {
			return Malformed(id, path+"."+fieldAccepted, "match without id")
		}
		if accepted[m.ID] {
			return Malformed(id, path+"."+fieldAccepted, "duplicate match id %q", m.ID)
		}
		accepted[m.ID] = true
	}
	rejected := make(map[string]bool, len(cc.Rejected))
	for _, m := range cc.Rejected {
		if m.ID == "" {
			return Malformed(id, path+"."+fieldRejected, "match without id")
		}
		if rejected[m.ID] {
			return Malformed(id, path+"."+fieldRejected, "duplicate match id %q", m.ID)
		}
		if accepted[m.ID] {
			return Malformed(id, path+"."+fieldRejected, "match %q is both accepted and rejected", m.ID)
		}
		rejected[m.ID] = true
	}
	return nil
}

// decoder reads loosely typed documents, keeping the first failure.
type decoder struct {
	id  string
	err error
}

func (d *decoder) fail(field, format string, args ...any) {
	if d.err == nil {
		d.err = Malformed(d.id, field, format, args...)
	}
}

func (d *decoder) str(m map[string]any, key, path string) string {
	raw, ok := m[key]
	if !ok || raw == nil {
		return ""
	}
	s, ok := raw.(string)
	if !ok {
		d.fail(path, "want string, got %T", raw)
		return ""
	}
	return s
}

func (d *decoder) optStr(m map[string]any, key, path string) *string {
	if raw, ok := m[key]; !ok || raw == nil {
		return nil
	}
	s := d.str(m, key, path)
	return &s
}

func (d *decoder) boolean(m map[string]any, key, path string) bool {
	raw, ok := m[key]
	if !ok || raw == nil {
		return false
	}
	b, ok := raw.(bool)
	if !ok {
		d.fail(path, "want bool, got %T", raw)
	}
	return b
}

func (d *decoder) optInt(m map[string]any, key, path string) *int {
	raw, ok := m[key]
	if !ok || raw == nil {
		return nil
	}
	n, ok := toInt(raw)
	if !ok {
		d.fail(path, "want integer, got %v", raw)
		return nil
	}
	return &n
}

func (d *decoder) strings(m map[string]any, key, path string) []string {
	raw, ok := m[key]
	if !ok || raw == nil {
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		d.fail(path, "want list, got %T", raw)
		return nil
	}
	out := make([]string, 0, len(list))
	for i, e := range list {
		s, ok := e.(string)
		if !ok {
			d.fail(fmt.Sprintf("%s[%d]", path, i), "want string, got %T", e)
			return nil
		}
		out = append(out, s)
	}
	return out
}

func (d *decoder) matches(m map[string]any, key, path string) []Match {
	raw, ok := m[key]
	if !ok || raw == nil {
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		d.fail(path, "want list, got %T", raw)
		return nil
	}
	out := make([]Match, 0, len(list))
	for i, e := range list {
		p := fmt.Sprintf("%s[%d]", path, i)
		obj, ok := e.(map[string]any)
		if !ok {
			d.fail(p, "want object, got %T", e)
			return nil
		}
		mt := Match{
			ID:            d.str(obj, "id", p+".id"),
			Title:         d.str(obj, "title", p+".title"),
			Justification: d.str(obj, "justification", p+".justification"),
		}
		if c := d.optInt(obj, "category", p+".category"); c != nil {
			mt.Category = *c
		}
		if raw, ok := obj["score"]; ok && raw != nil {
			f, ok := toFloat(raw)
			if !ok {
				d.fail(p+".score", "want number, got %T", raw)
			}
			mt.Score = f
		}
		out = append(out, mt)
	}
	return out
}

func (d *decoder) context(block map[string]any, path string) *ContextClassification {
	cc := &ContextClassification{
		Applicability:     Applicability(d.str(block, "applicability", path+".applicability")),
		Category:          Category(d.str(block, "category", path+".category")),
		RationaleKind:     RationaleKind(d.str(block, "rationale_kind", path+".rationale_kind")),
		Confidence:        Confidence(d.str(block, "confidence", path+".confidence")),
		Accepted:          d.matches(block, fieldAccepted, path+"."+fieldAccepted),
		Rejected:          d.matches(block, fieldRejected, path+"."+fieldRejected),
		Verified:          d.boolean(block, "verified", path+".verified"),
		Notes:             d.str(block, "notes", path+".notes"),
		SpecificityWaiver: d.optStr(block, "specificity_waiver", path+".specificity_waiver"),
		Provenance:        d.strings(block, "provenance", path+".provenance"),
	}
	return cc
}

// flatContext reads the 1.x layout, where only applicability is per context
// and everything else is shared.
func (d *decoder) flatContext(doc schema.Document, c Context) *ContextClassification {
	key := flatApplicabilityPrefix + string(c)
	return &ContextClassification{
		Applicability: Applicability(d.str(doc, key, key)),
		Category:      Category(d.str(doc, "category", "category")),
		RationaleKind: RationaleKind(d.str(doc, "rationale_kind", "rationale_kind")),
		Confidence:    Confidence(d.str(doc, "confidence", "confidence")),
		Accepted:      d.matches(doc, fieldAccepted, fieldAccepted),
		Rejected:      d.matches(doc, fieldRejected, fieldRejected),
		Notes:         d.str(doc, "notes", "notes"),
	}
}

func (d *decoder) reference(raw any) *Reference {
	obj, ok := raw.(map[string]any)
	if !ok {
		d.fail("reference", "want object, got %T", raw)
		return nil
	}
	ref := &Reference{Source: d.str(obj, "source", "reference.source")}
	for _, c := range Contexts {
		p := "reference." + string(c)
		rawCtx, ok := obj[string(c)]
		if !ok || rawCtx == nil {
			continue
		}
		block, ok := rawCtx.(map[string]any)
		if !ok {
			d.fail(p, "want object, got %T", rawCtx)
			return nil
		}
		rc := &ReferenceContext{}
		if s := d.str(block, "applicability", p+".applicability"); s != "" {
			a, err := NormalizeApplicability(s)
			if err != nil {
				d.fail(p+".applicability", "%v", err)
			}
			rc.Applicability = a
		}
		cat, err := NormalizeCategory(d.str(block, "category", p+".category"))
		if err != nil {
			d.fail(p+".category", "%v", err)
		}
		rc.Category = cat
		switch c {
		case AllRust:
			ref.AllRust = rc
		case SafeRust:
			ref.SafeRust = rc
		}
	}
	return ref
}

// Encode writes r in the latest schema shape, with match sets sorted and
// derived counts refreshed. The input is not modified.
func Encode(r *Record) (schema.Document, error) {
	cp := r.clone()
	cp.SchemaVersion = string(schema.Latest)
	for _, c := range Contexts {
		cc := cp.Context(c)
		cc.normalize()
		cp.SetContext(c, cc)
	}
	data, err := json.Marshal(cp)
	if err != nil {
		return nil, fmt.Errorf("guideline: encode %s: %w", r.ID, err)
	}
	var doc schema.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("guideline: encode %s: %w", r.ID, err)
	}
	return doc, nil
}

// Marshal renders v as canonical indented JSON. Struct field order is fixed
// and map keys are sorted by encoding/json, so equal values give equal bytes.
func Marshal(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func (r *Record) clone() *Record {
	cp := *r
	if r.Batch != nil {
		b := *r.Batch
		cp.Batch = &b
	}
	for _, c := range Contexts {
		cp.SetContext(c, r.Context(c).Clone())
	}
	if r.Reference != nil {
		ref := *r.Reference
		if r.Reference.AllRust != nil {
			a := *r.Reference.AllRust
			ref.AllRust = &a
		}
		if r.Reference.SafeRust != nil {
			s := *r.Reference.SafeRust
			ref.SafeRust = &s
		}
		cp.Reference = &ref
	}
	return &cp
}

// Clone returns a deep copy of c.
func (c *ContextClassification) Clone() *ContextClassification {
	if c == nil {
		return &ContextClassification{}
	}
	cp := *c
	cp.Accepted = append([]Match(nil), c.Accepted...)
	cp.Rejected = append([]Match(nil), c.Rejected...)
	cp.Provenance = append([]string(nil), c.Provenance...)
	if c.SpecificityWaiver != nil {
		w := *c.SpecificityWaiver
		cp.SpecificityWaiver = &w
	}
	return &cp
}

func toInt(raw any) (int, bool) {
	switch n := raw.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}

func toFloat(raw any) (float64, bool) {
	switch n := raw.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
