// Package schema identifies the structural version of a guideline record.
//
// Records have been written in several shapes over time. Each shape is a
// point version ("2.1"); point versions that share an identical block layout
// belong to one Family so callers can branch on layout instead of on every
// version number.
package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// Document is a record in its serialized key-value form, as decoded from
// JSON or YAML before any typing.
type Document map[string]any

// Version is a schema point version such as "3.1".
type Version string

const (
	V1_0 Version = "1.0"
	V1_1 Version = "1.1"
	V2_0 Version = "2.0"
	V2_1 Version = "2.1"
	V3_0 Version = "3.0"
	V3_1 Version = "3.1"
	V3_2 Version = "3.2"

	// Latest is the version produced by merges and the default migration target.
	Latest = V3_2

	// Oldest is what a record resolves to when nothing about it is recognisable.
	Oldest = V1_0
)

// Family groups versions with identical block layout.
type Family string

const (
	FamilyFlat       Family = "flat"
	FamilyPerContext Family = "per_context"
	FamilyReference  Family = "reference"
)

// TagKey is the document key holding an explicit version tag.
const TagKey = "schema_version"

// lineage lists every known version, oldest first.
var lineage = []Version{V1_0, V1_1, V2_0, V2_1, V3_0, V3_1, V3_2}

var families = map[Version]Family{
	V1_0: FamilyFlat,
	V1_1: FamilyFlat,
	V2_0: FamilyPerContext,
	V2_1: FamilyPerContext,
	V3_0: FamilyReference,
	V3_1: FamilyReference,
	V3_2: FamilyReference,
}

// Lineage returns all known versions, oldest first.
func Lineage() []Version {
	out := make([]Version, len(lineage))
	copy(out, lineage)
	return out
}

// Known reports whether v is part of the lineage.
func (v Version) Known() bool {
	_, ok := families[v]
	return ok
}

// Family returns the family of v, or "" for an unknown version.
func (v Version) Family() Family { return families[v] }

func (v Version) index() int {
	for i, l := range lineage {
		if l == v {
			return i
		}
	}
	return -1
}

// Compare returns -1, 0 or +1 when v is older than, equal to, or newer than o.
// Both versions must be Known; unknown versions compare by their numeric parts.
func (v Version) Compare(o Version) int {
	vi, oi := v.index(), o.index()
	if vi >= 0 && oi >= 0 {
		return cmpInt(vi, oi)
	}
	vMaj, vMin := splitVersion(v)
	oMaj, oMin := splitVersion(o)
	if c := cmpInt(vMaj, oMaj); c != 0 {
		return c
	}
	return cmpInt(vMin, oMin)
}

// Next returns the version that directly follows v in the lineage.
func (v Version) Next() (Version, bool) {
	i := v.index()
	if i < 0 || i == len(lineage)-1 {
		return "", false
	}
	return lineage[i+1], true
}

// ParseVersion accepts "3.1", "v3.1", "3" (meaning "3.0") and rejects
// anything outside the lineage.
func ParseVersion(s string) (Version, error) {
	v := normalizeTag(s)
	if !v.Known() {
		return "", fmt.Errorf("schema: unknown version %q", s)
	}
	return v, nil
}

func normalizeTag(s string) Version {
	s = strings.TrimPrefix(strings.TrimSpace(s), "v")
	if s != "" && !strings.Contains(s, ".") {
		s += ".0"
	}
	return Version(s)
}

// tagValue converts a raw schema_version value to a Version. YAML decodes
// an unquoted 3.1 as a float and 3 as an int, so both are accepted.
func tagValue(raw any) (Version, bool) {
	switch t := raw.(type) {
	case string:
		if strings.TrimSpace(t) == "" {
			return "", false
		}
		return normalizeTag(t), true
	case float64:
		return normalizeTag(strconv.FormatFloat(t, 'f', -1, 64)), true
	case int:
		return normalizeTag(strconv.Itoa(t)), true
	case int64:
		return normalizeTag(strconv.FormatInt(t, 10)), true
	default:
		return "", false
	}
}

func splitVersion(v Version) (int, int) {
	major, minor, _ := strings.Cut(string(v), ".")
	ma, _ := strconv.Atoi(major)
	mi, _ := strconv.Atoi(minor)
	return ma, mi
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
