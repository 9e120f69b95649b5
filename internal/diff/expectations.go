package diff

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/guideline"
)

// ContextExpectation lists the values a batch is expected to land on in one
// context. An empty list places no constraint.
type ContextExpectation struct {
	Applicability  []string `yaml:"applicability,omitempty"`
	RationaleKinds []string `yaml:"rationale_kind,omitempty"`
}

// Expectation applies to every guideline of a batch, optionally narrowed by
// guideline type.
type Expectation struct {
	Batch    int                           `yaml:"batch"`
	Type     string                        `yaml:"type,omitempty"`
	Contexts map[string]ContextExpectation `yaml:"contexts"`
}

// Expectations is the externally supplied table that drives pattern_outlier.
type Expectations struct {
	Entries []Expectation `yaml:"expectations"`
}

// LoadExpectations reads an expectation table from a YAML file.
func LoadExpectations(path string) (*Expectations, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("diff: read expectations: %w", err)
	}
	return ParseExpectations(data)
}

// ParseExpectations parses and validates an expectation table. Unknown
// contexts and enum values are rejected.
func ParseExpectations(data []byte) (*Expectations, error) {
	var e Expectations
	if err := yaml.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("diff: parse expectations: %w", err)
	}
	for i, ent := range e.Entries {
		for name, ce := range ent.Contexts {
			if _, err := guideline.ParseContext(name); err != nil {
				return nil, fmt.Errorf("diff: expectations[%d]: %w", i, err)
			}
			for _, a := range ce.Applicability {
				if _, err := guideline.ParseApplicability(a); err != nil {
					return nil, fmt.Errorf("diff: expectations[%d].%s: %w", i, name, err)
				}
			}
			for _, r := range ce.RationaleKinds {
				if _, err := guideline.ParseRationaleKind(r); err != nil {
					return nil, fmt.Errorf("diff: expectations[%d].%s: %w", i, name, err)
				}
			}
		}
	}
	return &e, nil
}

// lookup returns the most specific entry for the record: a type-specific
// entry beats a batch-wide one.
func (e *Expectations) lookup(rec *guideline.Record) (Expectation, bool) {
	if e == nil || rec.Batch == nil {
		return Expectation{}, false
	}
	var fallback *Expectation
	for i := range e.Entries {
		ent := &e.Entries[i]
		if ent.Batch != *rec.Batch {
			continue
		}
		if ent.Type != "" && ent.Type == rec.Type {
			return *ent, true
		}
		if ent.Type == "" && fallback == nil {
			fallback = ent
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return Expectation{}, false
}

// Deviations lists every observed value of rec that falls outside the
// expectation for its batch. No matching entry means no deviations.
func (e *Expectations) Deviations(rec *guideline.Record) []string {
	ent, ok := e.lookup(rec)
	if !ok {
		return nil
	}
	var out []string
	for _, c := range guideline.Contexts {
		ce, ok := ent.Contexts[string(c)]
		if !ok {
			continue
		}
		cc := rec.Context(c)
		if len(ce.Applicability) > 0 && !slices.Contains(ce.Applicability, string(cc.Applicability)) {
			out = append(out, fmt.Sprintf("%s.applicability=%s not in %v", c, cc.Applicability, ce.Applicability))
		}
		if len(ce.RationaleKinds) > 0 && !slices.Contains(ce.RationaleKinds, string(cc.RationaleKind)) {
			out = append(out, fmt.Sprintf("%s.rationale_kind=%s not in %v", c, cc.RationaleKind, ce.RationaleKinds))
		}
	}
	return out
}
