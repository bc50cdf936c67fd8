package data

import "fmt"

// WarningKind classifies a recoverable data inconsistency.
type WarningKind int

const (
	// WarnMissingField means a record has no value for a field without a declared default.
	WarnMissingField WarningKind = iota
	// WarnCoercion means a value could not be converted to the field's resolved type.
	WarnCoercion
	// WarnUnresolvedRef means a reference field names an id that no lookup table knows.
	WarnUnresolvedRef
	// WarnTruncated means a tuple had more components than the field holds.
	WarnTruncated
)

func (k WarningKind) String() string {
	switch k {
	case WarnMissingField:
		return "missing field"
	case WarnCoercion:
		return "coercion failure"
	case WarnUnresolvedRef:
		return "unresolved reference"
	case WarnTruncated:
		return "truncated tuple"
	default:
		return "unknown"
	}
}

// Warning reports a per-record data inconsistency. The record is still packed, with a
// default or zero value substituted for the offending field.
type Warning struct {
	// Record is the index of the record in its sequence.
	Record int
	// Field is the layout field name.
	Field string
	Kind  WarningKind
	// Message carries the offending value or the underlying error.
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("record %d field %q: %s: %s", w.Record, w.Field, w.Kind, w.Message)
}
