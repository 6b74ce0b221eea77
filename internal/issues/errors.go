package issues

import "errors"

var (
	ErrNotFound      = errors.New("issue not found")
	ErrInvalidStatus = errors.New("invalid issue status")
)

// ReportError describes why an analyzer report was rejected.
type ReportError struct {
	Message string
	Err     error
}

func (e *ReportError) Error() string { return "invalid issue report: " + e.Message }

func (e *ReportError) Unwrap() error { return e.Err }
