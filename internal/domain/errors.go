package domain

import "fmt"

// ValidationError reports a malformed rule, condition, or action at save time.
// Index is -1 when the error is not tied to a list element.
type ValidationError struct {
	Field  string
	Reason string
	Index  int
}

func (e *ValidationError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("invalid %s[%d]: %s", e.Field, e.Index, e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// UpstreamError wraps a collaborator failure. Fatal failures (embedding,
// generation) abort the turn; degraded failures (classification, arbitration,
// image search) are logged and defaulted.
type UpstreamError struct {
	Collaborator string
	Fatal        bool
	Err          error
}

func (e *UpstreamError) Error() string {
	mode := "degraded"
	if e.Fatal {
		mode = "fatal"
	}
	return fmt.Sprintf("%s collaborator %s: %v", e.Collaborator, mode, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// ParseError reports structured generation output that could not be parsed.
// It is never fatal; the confidence gate handles it.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse structured output: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
