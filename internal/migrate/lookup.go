package migrate

import (
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/guideline"
	"github.com/PLeVasseur/safety-critical-rust-codebase-mining-sub000/internal/schema"
)

// Logical field names readable through Lookup.
const (
	FieldID                = "id"
	FieldTitle             = "title"
	FieldType              = "type"
	FieldBatch             = "batch"
	FieldReference         = "reference"
	FieldApplicability     = "applicability"
	FieldCategory          = "category"
	FieldRationaleKind     = "rationale_kind"
	FieldConfidence        = "confidence"
	FieldAccepted          = "accepted_matches"
	FieldRejected          = "rejected_matches"
	FieldNotes             = "notes"
	FieldVerified          = "verified"
	FieldAcceptedCount     = "accepted_count"
	FieldSpecificCount     = "specific_count"
	FieldSpecificityWaiver = "specificity_waiver"
	FieldProvenance        = "provenance"
)

// topLevel fields live at the document root in every family.
var topLevel = map[string]bool{
	FieldID: true, FieldTitle: true, FieldType: true, FieldBatch: true, FieldReference: true,
}

// ContextFields are the per-context logical fields, in document order.
var ContextFields = []string{
	FieldApplicability, FieldCategory, FieldRationaleKind, FieldConfidence,
	FieldAccepted, FieldRejected, FieldNotes, FieldVerified,
	FieldAcceptedCount, FieldSpecificCount, FieldSpecificityWaiver, FieldProvenance,
}

// TopLevelFields are the document-level logical fields.
var TopLevelFields = []string{FieldID, FieldTitle, FieldType, FieldBatch, FieldReference}

// Lookup reads a logical field at any schema version. Top-level fields are
// read from the root. Context fields are read from the context block from 2.0
// on. In 1.x they are read from the flat layout, where applicability lives in
// applicability_<context> and the remaining fields are shared by both
// contexts. ctx is ignored for top-level fields.
func Lookup(doc schema.Document, field string, ctx guideline.Context) (any, bool) {
	if topLevel[field] {
		v, ok := doc[field]
		return v, ok
	}
	if schema.Resolve(doc).Family() == schema.FamilyFlat {
		key := field
		if field == FieldApplicability {
			key = "applicability_" + string(ctx)
		}
		v, ok := doc[key]
		return v, ok
	}
	block, ok := doc.Object(string(ctx))
	if !ok {
		return nil, false
	}
	v, ok := block[field]
	return v, ok
}
