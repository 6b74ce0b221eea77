package coverage

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("coverage report not found")
	ErrAlreadyIngested = errors.New("coverage already ingested for analysis")
)

// ParseError is a user-facing description of why a report was rejected.
type ParseError struct {
	Format  Format
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Format == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Format, e.Message)
}

func (e *ParseError) Unwrap() error { return e.Err }

func parseErrorf(format Format, cause error, msg string, args ...any) error {
	return &ParseError{Format: format, Message: fmt.Sprintf(msg, args...), Err: cause}
}
