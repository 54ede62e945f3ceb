package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrNotFound            = errors.New("not found")
	ErrStageFailure        = errors.New("stage failure")
	ErrCorruptInput        = errors.New("corrupt input")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrTimeout             = errors.New("timeout")
	ErrConfiguration       = errors.New("configuration error")
)

// Kind names a marker for API responses and task records.
type Kind string

const (
	KindInvalidInput        Kind = "invalid_input"
	KindNotFound            Kind = "not_found"
	KindStageFailure        Kind = "stage_failure"
	KindCorruptInput        Kind = "corrupt_input"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindTimeout             Kind = "timeout"
	KindConfiguration       Kind = "configuration"
	KindInternal            Kind = "internal"
)

var markerKinds = []struct {
	marker error
	kind   Kind
}{
	{ErrInvalidInput, KindInvalidInput},
	{ErrNotFound, KindNotFound},
	{ErrCorruptInput, KindCorruptInput},
	{ErrUpstreamUnavailable, KindUpstreamUnavailable},
	{ErrTimeout, KindTimeout},
	{ErrConfiguration, KindConfiguration},
	{ErrStageFailure, KindStageFailure},
}

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrStageFailure
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

type hintError struct {
	err  error
	hint string
}

func (e *hintError) Error() string { return e.err.Error() }
func (e *hintError) Unwrap() error { return e.err }

// WithHint attaches an operator-facing remediation hint to err.
func WithHint(err error, hint string) error {
	hint = strings.TrimSpace(hint)
	if err == nil || hint == "" {
		return err
	}
	return &hintError{err: err, hint: hint}
}

// KindOf classifies err by its marker. Unmarked errors are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, mk := range markerKinds {
		if errors.Is(err, mk.marker) {
			return mk.kind
		}
	}
	if errors.Is(err, contextDeadline) {
		return KindTimeout
	}
	return KindInternal
}

// ErrorDetails is the flattened view of a classified error.
type ErrorDetails struct {
	Kind    Kind
	Message string
	Hint    string
}

// Details extracts kind, message and hint from err.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	details := ErrorDetails{Kind: KindOf(err), Message: strings.TrimSpace(err.Error())}
	var h *hintError
	if errors.As(err, &h) {
		details.Hint = h.hint
	}
	return details
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

// MarkerFor returns the sentinel of kind, or nil for internal and unknown
// kinds.
func MarkerFor(kind Kind) error {
	for _, mk := range markerKinds {
		if mk.kind == kind {
			return mk.marker
		}
	}
	return nil
}
