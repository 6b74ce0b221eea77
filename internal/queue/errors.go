package queue

import "errors"

var (
	// ErrJobQueueNotConfigured is returned when no queue backend is wired.
	ErrJobQueueNotConfigured = errors.New("job queue not configured")
	// ErrUnknownKind is returned for jobs with no registered handler.
	ErrUnknownKind = errors.New("unknown job kind")

	errEmptyPayload = errors.New("empty job payload")
)

// PermanentError marks a handler failure that must not be retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	if e.Err == nil {
		return "permanent failure"
	}
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so the runner fails the job without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err was marked permanent.
func IsPermanent(err error) bool {
	var perm *PermanentError
	return errors.As(err, &perm)
}
