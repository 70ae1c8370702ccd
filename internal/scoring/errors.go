package scoring

import (
	"errors"
	"fmt"
)

var (
	// ErrDivisionUndefined indicates an answer key whose questions are worth zero points in total.
	ErrDivisionUndefined = errors.New("total possible points is zero")
	// ErrOutOfRangeScore indicates a score outside the accepted [0,100] band.
	ErrOutOfRangeScore = errors.New("score out of range")
	// ErrMalformedKey indicates an answer key that cannot be graded against.
	ErrMalformedKey = errors.New("malformed answer key")
	// ErrMalformedAttempt indicates an attempt that does not fit its answer key.
	ErrMalformedAttempt = errors.New("malformed quiz attempt")
	// ErrInvalidSelection indicates unusable selection parameters or input rows.
	ErrInvalidSelection = errors.New("invalid selection parameters")
)

// ValidationError reports malformed input rejected at the scoring boundary.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %s", e.Err, e.Reason)
	}
	return fmt.Sprintf("%v: %s: %s", e.Err, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func invalid(cause error, field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...), Err: cause}
}
