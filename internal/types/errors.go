package types

import (
	"errors"
	"fmt"
)

// SchemaError reports a decoded response that does not match its expected shape.
type SchemaError struct {
	Subtask string
	Reasons []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema mismatch for %s: %v", e.Subtask, e.Reasons)
}

// DecodeError reports a response that is not parseable JSON.
type DecodeError struct {
	Message string
	Cause   error
}

func (e *DecodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("decode error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("decode error: %s", e.Message)
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// TransportError reports a network or API level failure.
type TransportError struct {
	Message    string
	StatusCode int
	Cause      error
}

func (e *TransportError) Error() string {
	msg := "transport error: " + e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// BlockedContentError reports a content-policy rejection by the model.
type BlockedContentError struct {
	Reason string
	Cause  error
}

func (e *BlockedContentError) Error() string {
	return fmt.Sprintf("content blocked: %s", e.Reason)
}

func (e *BlockedContentError) Unwrap() error {
	return e.Cause
}

// ConfigurationError reports missing credentials or an invalid preset.
// It is fatal and never retried.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// PersistenceError reports a failed write of durable state.
type PersistenceError struct {
	Path  string
	Cause error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Path, e.Cause)
}

func (e *PersistenceError) Unwrap() error {
	return e.Cause
}

// AttemptStatus maps a failed attempt's error to the status recorded for it.
func AttemptStatus(err error) SubtaskStatus {
	var se *SchemaError
	if errors.As(err, &se) {
		return StatusSchemaInvalid
	}
	var de *DecodeError
	if errors.As(err, &de) {
		return StatusSchemaInvalid
	}
	return StatusTransportError
}

// IsConfiguration reports whether err is a ConfigurationError.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
