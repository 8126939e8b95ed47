// SPDX-License-Identifier: MPL-2.0

// Package types holds small value types shared by the CLI and its packages.
package types

import (
	"errors"
	"fmt"
	"strconv"
)

const (
	// ExitOK is returned for a completed or operator-cancelled deployment.
	ExitOK ExitCode = 0
	// ExitFailure is returned when a stage fails, including validation.
	ExitFailure ExitCode = 1
	// ExitConfig is returned when the configuration cannot be loaded.
	ExitConfig ExitCode = 2
	// ExitInterrupted is returned when the run is interrupted by a signal.
	ExitInterrupted ExitCode = 130
)

// ErrInvalidExitCode is the sentinel error wrapped by InvalidExitCodeError.
var ErrInvalidExitCode = errors.New("invalid exit code")

type (
	// ExitCode represents a process exit status code.
	// Exit codes are in the range 0-255 on POSIX systems.
	// The zero value (0) means success.
	ExitCode int

	// InvalidExitCodeError is returned when an ExitCode is outside the
	// valid range (0-255).
	InvalidExitCodeError struct {
		Value ExitCode
	}
)

// Error implements the error interface.
func (e *InvalidExitCodeError) Error() string {
	return fmt.Sprintf("invalid exit code %d (must be in range 0-255)", e.Value)
}

// Unwrap returns ErrInvalidExitCode so callers can use errors.Is for programmatic detection.
func (e *InvalidExitCodeError) Unwrap() error { return ErrInvalidExitCode }

// Validate returns an error if the ExitCode is outside the valid range (0-255).
func (c ExitCode) Validate() error {
	if c < 0 || c > 255 {
		return &InvalidExitCodeError{Value: c}
	}
	return nil
}

// IsSuccess returns true if the exit code indicates successful execution.
func (c ExitCode) IsSuccess() bool { return c == ExitOK }

// String returns the decimal string representation of the ExitCode.
func (c ExitCode) String() string { return strconv.Itoa(int(c)) }
