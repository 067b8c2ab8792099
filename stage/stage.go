// Package stage defines the stage function contract and the built-in
// stage implementations for the analysis pipeline.
package stage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Input is the structured input handed to a stage function: the raw user
// text for the first stage, the prior stage's artifact payload otherwise.
type Input struct {
	SessionID string
	UserInput string
	Prior     json.RawMessage
}

// Result is the structured output of a successful stage invocation. The
// payload becomes the stage's artifact.
type Result struct {
	Payload json.RawMessage
}

// ProgressFunc reports a mid-execution checkpoint. Implementations must
// tolerate being called from the worker goroutine at any point before
// the stage function returns.
type ProgressFunc func(progress float64, message string)

// Func is a single unit of pipeline work. Failures must be classified
// with Retryable or Fatal; an unclassified error is treated as fatal.
type Func func(ctx context.Context, in Input, progress ProgressFunc) (*Result, error)

// RetryableError marks a transient failure worth retrying with backoff.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return "retryable: " + e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// FatalError marks a permanent failure that must not be retried.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return "fatal: " + e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }

// Retryable wraps err as transient.
func Retryable(err error) error {
	return &RetryableError{Err: err}
}

// Retryablef wraps a formatted error as transient.
func Retryablef(format string, args ...any) error {
	return &RetryableError{Err: fmt.Errorf(format, args...)}
}

// Fatal wraps err as permanent.
func Fatal(err error) error {
	return &FatalError{Err: err}
}

// Fatalf wraps a formatted error as permanent.
func Fatalf(format string, args ...any) error {
	return &FatalError{Err: fmt.Errorf(format, args...)}
}

// IsRetryable reports whether err is classified as transient.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}
