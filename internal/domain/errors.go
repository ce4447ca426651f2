package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/containerd/errdefs"
)

// ErrNotFound is returned when a drawing record or its stored image is absent.
var ErrNotFound = fmt.Errorf("not found: %w", errdefs.ErrNotFound)

// ErrSubmitInFlight is returned when a submission is attempted while another
// one is still being transmitted.
var ErrSubmitInFlight = fmt.Errorf("submission already in flight: %w", errdefs.ErrConflict)

// ErrInvalidMode is returned for a session mode other than challenge or practice.
var ErrInvalidMode = fmt.Errorf("invalid mode: %w", errdefs.ErrInvalidArgument)

// ValidationError collects per-field violations of malformed input.
type ValidationError struct {
	Fields map[string][]string
}

// NewValidationError returns an empty ValidationError.
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string][]string)}
}

// Add records a message against field.
func (v *ValidationError) Add(field, message string) {
	if v.Fields == nil {
		v.Fields = make(map[string][]string)
	}
	v.Fields[field] = append(v.Fields[field], message)
}

// HasErrors reports whether any violation was recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Fields) > 0
}

// OrNil returns v when it holds violations and nil otherwise.
func (v *ValidationError) OrNil() error {
	if v.HasErrors() {
		return v
	}
	return nil
}

func (v *ValidationError) Error() string {
	if len(v.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(v.Fields))
	for k := range v.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// First message only, like the summary line of a 422 response.
	first := v.Fields[keys[0]][0]
	if n := len(keys) - 1; n > 0 {
		return fmt.Sprintf("%s (and %d more error(s))", first, n)
	}
	return first
}

func (v *ValidationError) Unwrap() error { return errdefs.ErrInvalidArgument }

// EncodingError reports that a raster surface could not be serialized.
type EncodingError struct {
	Reason string
	Err    error
}

func (e *EncodingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("encode drawing: %s: %v", e.Reason, e.Err)
	}
	return "encode drawing: " + e.Reason
}

func (e *EncodingError) Unwrap() []error {
	if e.Err != nil {
		return []error{errdefs.ErrDataLoss, e.Err}
	}
	return []error{errdefs.ErrDataLoss}
}

// TransportError reports a network failure or an unexpected server status.
// Status is zero when no response was received.
type TransportError struct {
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	var b strings.Builder
	b.WriteString("transport")
	if e.Status != 0 {
		fmt.Fprintf(&b, ": status %d", e.Status)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *TransportError) Unwrap() []error {
	if e.Err != nil {
		return []error{errdefs.ErrUnavailable, e.Err}
	}
	return []error{errdefs.ErrUnavailable}
}

// UserMessage returns the text shown to the user for err.
func UserMessage(err error) string {
	var verr *ValidationError
	var eerr *EncodingError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr):
		return verr.Error()
	case errors.As(err, &eerr):
		return "Could not prepare the drawing for upload. Please try again."
	case errors.Is(err, ErrSubmitInFlight):
		return "A submission is already in progress."
	case errdefs.IsNotFound(err):
		return "The requested drawing could not be found."
	default:
		return "Could not reach the server. Please try again."
	}
}
