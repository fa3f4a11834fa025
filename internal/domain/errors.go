package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration signals a bad setting, e.g. chunk overlap >= chunk size.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrValidation signals malformed input such as mismatched batch lengths.
	ErrValidation = errors.New("validation error")
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrModelUnavailable signals that the embedding backend cannot be loaded or invoked.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrGenerationFailed signals a text-generation backend error or an empty answer.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrStorage signals a failed vector storage operation.
	ErrStorage = errors.New("storage error")
	// ErrTimeout signals that an external call exceeded its deadline.
	ErrTimeout = errors.New("timeout")
)

// StageError records which pipeline stage failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// NewStageError wraps err with the stage name.
func NewStageError(stage string, err error) error {
	return &StageError{Stage: stage, Err: err}
}
