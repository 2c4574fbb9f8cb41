// Package types provides type definitions for structured data used throughout the content pipeline.
//
//nolint:revive // types is a standard Go package name pattern
package types

import "fmt"

// Kind is the coarse container kind a decoded JSON value is checked against.
type Kind int

// Kind constants. The zero value is reserved for JSON null and never matches.
const (
	KindObject Kind = iota + 1
	KindSequence
	KindScalar
)

func (k Kind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindSequence:
		return "sequence"
	case KindScalar:
		return "scalar"
	default:
		return "null"
	}
}

// ParseKind maps one of the tags "object", "sequence" or "scalar" to its Kind.
func ParseKind(tag string) (Kind, error) {
	switch tag {
	case "object":
		return KindObject, nil
	case "sequence":
		return KindSequence, nil
	case "scalar":
		return KindScalar, nil
	}
	return 0, fmt.Errorf("unknown kind %q (want object, sequence or scalar)", tag)
}

// KindOf reports the kind of a value produced by encoding/json decoding into any.
func KindOf(v any) Kind {
	switch v.(type) {
	case nil:
		return 0
	case map[string]any:
		return KindObject
	case []any:
		return KindSequence
	default:
		return KindScalar
	}
}

// Shape maps a top-level field name to the kind its value must have.
type Shape map[string]Kind

// SubtaskSpec is one named, independently retried generation request.
// A run's specs are fixed before the first key is processed.
type SubtaskSpec struct {
	Name       string
	FormatHint string // data-format section of the system instruction
	Intro      string // product/task description appended after the hint
	Root       Kind   // kind of the whole response
	Fields     Shape  // optional kinds of the response's own fields, Root must be KindObject
}

// ExpectedShape is the shape the envelope {Name: response} must satisfy.
func (s SubtaskSpec) ExpectedShape() Shape {
	return Shape{s.Name: s.Root}
}

// SubtaskStatus is the outcome of one attempt or of a whole subtask.
type SubtaskStatus string

// Status constants. SchemaInvalid and TransportError describe single attempts;
// a finished subtask is either Success or Exhausted.
const (
	StatusSuccess        SubtaskStatus = "success"
	StatusSchemaInvalid  SubtaskStatus = "schema_invalid"
	StatusExhausted      SubtaskStatus = "exhausted"
	StatusTransportError SubtaskStatus = "transport_error"
)

// SubtaskResult is produced once per (key, subtask) pair and never mutated.
type SubtaskResult struct {
	Name     string
	Status   SubtaskStatus
	Value    any             // decoded response, set only on success
	Attempts int             // number of model calls made
	Failures []SubtaskStatus // per failed attempt, in order
	Err      error           // last failure when exhausted
}

// OK reports whether the subtask produced an accepted value.
func (r SubtaskResult) OK() bool {
	return r.Status == StatusSuccess
}
