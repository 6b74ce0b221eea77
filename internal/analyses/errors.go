package analyses

import "errors"

var (
	ErrNotFound          = errors.New("analysis not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidTransition = errors.New("invalid analysis status transition")
	ErrNotReady          = errors.New("analysis has no metrics yet")
)

// Error codes recorded on FAILED analyses.
const (
	ErrorCodeEnqueue  = "ENQUEUE_FAILED"
	ErrorCodeAnalyzer = "ANALYZER_ERROR"
	ErrorCodeReport   = "INVALID_REPORT"
	ErrorCodeStorage  = "STORAGE_ERROR"
	ErrorCodeInternal = "INTERNAL_ERROR"
)
