package schema

// rule maps a structural predicate to the version it implies.
type rule struct {
	Name    string
	Match   func(Document) bool
	Version Version
}

// detectionTable is evaluated top to bottom; the first match wins. Order runs
// from the most specific shape to the least specific one.
var detectionTable = []rule{
	{Name: "reference block", Match: hasObject("reference"), Version: V3_0},
	{Name: "per-context blocks", Match: hasAnyObject("all_rust", "safe_rust"), Version: V2_0},
	{Name: "flat fields", Match: hasAnyKey("applicability_all_rust", "applicability_safe_rust"), Version: V1_0},
}

// Resolve returns the structural version of doc. An explicit schema_version
// tag always wins, even when it names a version outside the lineage; callers
// that need a usable version check Known. Without a tag the detection table
// decides, falling back to Oldest. Resolve never fails.
func Resolve(doc Document) Version {
	v, _ := Explain(doc)
	return v
}

// Explain is Resolve plus the reason for the answer, for diagnostics.
func Explain(doc Document) (Version, string) {
	if raw, ok := doc[TagKey]; ok {
		if v, ok := tagValue(raw); ok {
			return v, "explicit tag"
		}
	}
	for _, r := range detectionTable {
		if r.Match(doc) {
			return r.Version, r.Name
		}
	}
	return Oldest, "fallback"
}

// IsFamily reports whether doc resolves to a version in family f.
func IsFamily(doc Document, f Family) bool {
	return Resolve(doc).Family() == f
}

func hasObject(key string) func(Document) bool {
	return func(d Document) bool {
		_, ok := d[key].(map[string]any)
		return ok
	}
}

func hasAnyObject(keys ...string) func(Document) bool {
	return func(d Document) bool {
		for _, k := range keys {
			if _, ok := d[k].(map[string]any); ok {
				return true
			}
		}
		return false
	}
}

func hasAnyKey(keys ...string) func(Document) bool {
	return func(d Document) bool {
		for _, k := range keys {
			if _, ok := d[k]; ok {
				return true
			}
		}
		return false
	}
}
