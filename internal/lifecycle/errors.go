package lifecycle

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Sentinel errors forming the lifecycle failure taxonomy. Callers
// discriminate with errors.Is.
var (
	// ErrNotFound covers unknown ids, tokens and leads. Not retryable with
	// the same argument.
	ErrNotFound = eris.New("not found")
	// ErrTokenExpired marks a verification token past its window. The
	// caller must request reissue via a new submission.
	ErrTokenExpired = eris.New("token expired")
	// ErrInconsistent marks an index/record mismatch detected during a
	// cascade operation. Logged; the operation completes best-effort.
	ErrInconsistent = eris.New("inconsistent state")
	// ErrUnavailable marks an unreachable store. Surfaced as-is; the core
	// performs no automatic retry.
	ErrUnavailable = eris.New("store unavailable")
)

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports malformed or missing required input. Safe to
// retry after fixing the input.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("%s: %s", f.Field, f.Message)
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// AsValidation extracts a ValidationError from an error chain.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}

// unavailable tags a store failure with ErrUnavailable while keeping the
// original chain intact.
func unavailable(err error) error {
	return errors.Join(ErrUnavailable, err)
}
