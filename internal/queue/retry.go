package queue

import "time"

const (
	DefaultMaxAttempts = 3
	DefaultBackoffBase = 5 * time.Second
	maxBackoffShift    = 20
)

// RetryPolicy bounds how often a job is attempted and how long it waits between attempts.
type RetryPolicy struct {
	MaxAttempts int
	BackoffBase time.Duration
}

// DefaultRetryPolicy returns three attempts with a five second base delay.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultMaxAttempts, BackoffBase: DefaultBackoffBase}
}

// Normalize fills zero or negative fields with defaults.
func (p RetryPolicy) Normalize() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BackoffBase < 0 {
		p.BackoffBase = 0
	}
	return p
}

// Delay returns base * 2^(attempt-1) for the attempt that just failed.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	shift := attempt - 1
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}
	return p.BackoffBase * time.Duration(1<<uint(shift))
}

// policyFor returns the policy stamped on the job, falling back to def.
func policyFor(job Job, def RetryPolicy) RetryPolicy {
	p := def
	if job.MaxAttempts > 0 {
		p.MaxAttempts = job.MaxAttempts
	}
	if job.BackoffBaseMs > 0 {
		p.BackoffBase = time.Duration(job.BackoffBaseMs) * time.Millisecond
	}
	return p.Normalize()
}
