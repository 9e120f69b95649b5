package guideline

import (
	"errors"
	"fmt"
)

// MalformedRecordError reports input that is structurally invalid for its
// detected schema version. It is fatal for that one guideline only.
type MalformedRecordError struct {
	GuidelineID string
	Field       string
	Reason      string
}

func (e *MalformedRecordError) Error() string {
	id := e.GuidelineID
	if id == "" {
		id = "<unknown>"
	}
	return fmt.Sprintf("guideline %s: malformed field %s: %s", id, e.Field, e.Reason)
}

// Malformed builds a MalformedRecordError.
func Malformed(id, field, format string, args ...any) *MalformedRecordError {
	return &MalformedRecordError{GuidelineID: id, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsMalformed reports whether err is, or wraps, a MalformedRecordError.
func IsMalformed(err error) bool {
	var m *MalformedRecordError
	return errors.As(err, &m)
}
