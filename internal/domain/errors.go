package domain

import "errors"

var (
	// ErrJobNotFound is returned when a job cannot be found in the database
	ErrJobNotFound = errors.New("job not found")

	// ErrContactNotFound is returned when a contact id does not exist
	ErrContactNotFound = errors.New("contact not found")

	// ErrKeywordNotFound is returned when a keyword id does not exist
	ErrKeywordNotFound = errors.New("keyword not found")

	// ErrNoDefaultPersona is returned when the catalog has no fallback persona
	ErrNoDefaultPersona = errors.New("catalog has no default persona")

	// ErrJobNotCancellable is returned when cancelling a terminal job
	ErrJobNotCancellable = errors.New("job is not in a cancellable state")

	// ErrJobNotRetryable is returned when retrying a job that has not failed
	ErrJobNotRetryable = errors.New("job is not in a retryable state")

	// ErrJobCancelled signals that a running scan observed a cancellation
	// request between batches
	ErrJobCancelled = errors.New("job cancelled")

	// ErrJobLost signals that the job no longer belongs to this worker;
	// another worker adopted it after a missed heartbeat
	ErrJobLost = errors.New("job no longer owned by this worker")
)

// RetryableError wraps transient errors; a job failing with one goes
// back to PENDING while attempts remain.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}
