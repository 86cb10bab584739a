package pipeline

import (
	"errors"
	"fmt"
)

// ValidationError reports a request that cannot be processed. It is
// raised before any row is enriched.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s %q: %s", e.Field, e.Value, e.Reason)
}

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
