package models

import (
	"errors"
	"fmt"
)

// AdapterErrorKind classifies failures of the AI extraction adapter.
// None of them are fatal to a pipeline run.
type AdapterErrorKind string

const (
	AdapterErrNetwork   AdapterErrorKind = "network"
	AdapterErrTimeout   AdapterErrorKind = "timeout"
	AdapterErrMalformed AdapterErrorKind = "malformed_response"
)

// AdapterError is returned by the AI adapter when a fallback call fails.
// The orchestrator converts it into a low-confidence issue and keeps the
// deterministic result.
type AdapterError struct {
	Kind  AdapterErrorKind
	Field string
	Err   error
}

func (e *AdapterError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ai adapter (%s, field %s): %v", e.Kind, e.Field, e.Err)
	}
	return fmt.Sprintf("ai adapter (%s, field %s)", e.Kind, e.Field)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// AsAdapterError unwraps err to an *AdapterError if there is one.
func AsAdapterError(err error) (*AdapterError, bool) {
	var ae *AdapterError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// PageLoadError is terminal: the page-loading collaborator could not
// produce usable markup. The pipeline does not retry.
type PageLoadError struct {
	URL string
	Err error
}

func (e *PageLoadError) Error() string {
	return fmt.Sprintf("load page %s: %v", e.URL, e.Err)
}

func (e *PageLoadError) Unwrap() error {
	return e.Err
}

// IncompleteListingError is terminal: the page yielded none of the
// essential fields, so emitting a record would be misleading.
type IncompleteListingError struct {
	Missing []string
}

func (e *IncompleteListingError) Error() string {
	return fmt.Sprintf("listing unusable, essential fields missing: %v", e.Missing)
}
