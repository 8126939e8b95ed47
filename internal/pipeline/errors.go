// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrCancelled is returned when the operator cancels at the server gate.
	// It is a clean exit.
	ErrCancelled = errors.New("deployment cancelled by operator")
	// ErrValidationFailed is returned when any pack file is malformed.
	ErrValidationFailed = errors.New("pack validation failed")
)

// StageError reports the stage a run halted in.
type StageError struct {
	Stage StageName
	Err   error
}

// Error implements error.
func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error { return e.Err }
