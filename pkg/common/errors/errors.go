package errors

import "errors"

// Common error types used across the goloop library

var (
	// ErrClosed indicates that an operation was attempted on a closed resource
	ErrClosed = errors.New("resource is closed")

	// ErrTimeout indicates that an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrCancelled indicates that an operation was cancelled before producing a result
	ErrCancelled = errors.New("operation cancelled")

	// ErrUnsupported indicates that an operation is not supported by the receiver
	ErrUnsupported = errors.New("operation not supported")

	// ErrCapacityExceeded indicates that a capacity limit was exceeded
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrInvalidConfiguration indicates invalid configuration parameters
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// IsRetryable returns true if the error indicates a condition that might
// be resolved by retrying the operation
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsTerminal returns true if the error indicates a condition that will not
// change no matter how often the operation is retried
func IsTerminal(err error) bool {
	return errors.Is(err, ErrClosed) || errors.Is(err, ErrUnsupported) || errors.Is(err, ErrCancelled)
}
