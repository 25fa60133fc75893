package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrSubmission is returned when a work request could not be posted.
	ErrSubmission = errors.New("transport: submission failed")

	// ErrCompletion is returned when a work request completed with an error.
	ErrCompletion = errors.New("transport: completion error")

	// ErrInvalidArgument is returned for undersized buffers and bad ranges.
	ErrInvalidArgument = errors.New("transport: invalid argument")

	// ErrClosed is returned when using a closed queue pair, connection or pool.
	ErrClosed = errors.New("transport: closed")

	// ErrBadRKey is the detail of a StatusBadRKey completion.
	ErrBadRKey = errors.New("transport: remote key mismatch")

	// ErrOutOfBounds is the detail of a StatusOutOfBounds completion.
	ErrOutOfBounds = errors.New("transport: remote address out of bounds")
)

// OpError describes a failed one-sided operation.
type OpError struct {
	Op     Op
	Offset uint64
	Length int
	cause  error // ErrSubmission or ErrCompletion, wrapping detail
}

func (e *OpError) Error() string {
	return fmt.Sprintf("transport: %s of %d bytes at offset %d: %v", e.Op, e.Length, e.Offset, e.cause)
}

func (e *OpError) Unwrap() error {
	return e.cause
}

func submissionError(op Op, off uint64, n int, err error) *OpError {
	return &OpError{Op: op, Offset: off, Length: n, cause: fmt.Errorf("%w: %w", ErrSubmission, err)}
}

func completionError(op Op, off uint64, n int, c Completion) *OpError {
	detail := c.Err
	if detail == nil {
		detail = errors.New(c.Status.String())
	}
	return &OpError{Op: op, Offset: off, Length: n, cause: fmt.Errorf("%w: %w", ErrCompletion, detail)}
}

func statusErr(s Status) error {
	switch s {
	case StatusBadRKey:
		return ErrBadRKey
	case StatusOutOfBounds:
		return ErrOutOfBounds
	default:
		return errors.New(s.String())
	}
}
