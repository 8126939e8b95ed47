// SPDX-License-Identifier: MPL-2.0

package lifecycle

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// StateNotRunning is terminal: no host process was found.
	StateNotRunning State = iota
	// StateRunning indicates the host is up and no decision has been made.
	StateRunning
	// StateWarningIssued indicates a countdown is in progress.
	StateWarningIssued
	// StateCancelled is terminal: the operator aborted the run.
	StateCancelled
	// StateStoppedImmediate is terminal: the host was terminated without warning.
	StateStoppedImmediate
	// StateWarnedThenStopped is terminal: the host was terminated after a countdown.
	StateWarnedThenStopped
)

const (
	// ActionProceed continues the pipeline.
	ActionProceed Action = iota
	// ActionPrompt asks the operator for a choice.
	ActionPrompt
	// ActionAbort ends the run without side effects.
	ActionAbort
	// ActionStop terminates the host, waits the settle delay and proceeds.
	ActionStop
	// ActionCountdown runs the warning countdown, then behaves like ActionStop.
	ActionCountdown
)

const (
	// ChoiceNone means no decision has been made yet.
	ChoiceNone Choice = iota
	// ChoiceCancel aborts the run.
	ChoiceCancel
	// ChoiceStop terminates the host immediately.
	ChoiceStop
	// ChoiceCountdown terminates the host after the warning countdown.
	ChoiceCountdown
)

var (
	// ErrInvalidState is returned when a State value is not defined.
	ErrInvalidState = errors.New("invalid lifecycle state")
	// ErrInvalidChoice is returned for operator input that names no choice.
	ErrInvalidChoice = errors.New("invalid choice")
)

type (
	// State is the observed state of the host process during the gate.
	State int

	// Action is what the controller must do next.
	Action int

	// Choice is an operator decision.
	Choice int

	// InvalidStateError wraps ErrInvalidState.
	InvalidStateError struct {
		Value State
	}

	// InvalidChoiceError wraps ErrInvalidChoice.
	InvalidChoiceError struct {
		Input string
	}
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateNotRunning:
		return "not-running"
	case StateRunning:
		return "running"
	case StateWarningIssued:
		return "running-with-warning-issued"
	case StateCancelled:
		return "cancelled"
	case StateStoppedImmediate:
		return "stopped-immediate"
	case StateWarnedThenStopped:
		return "warned-then-stopped"
	default:
		return "unknown"
	}
}

// Validate returns an error wrapping ErrInvalidState for undefined values.
func (s State) Validate() error {
	switch s {
	case StateNotRunning, StateRunning, StateWarningIssued, StateCancelled, StateStoppedImmediate, StateWarnedThenStopped:
		return nil
	default:
		return &InvalidStateError{Value: s}
	}
}

// IsTerminal reports whether the gate is finished in this state.
func (s State) IsTerminal() bool {
	switch s {
	case StateNotRunning, StateCancelled, StateStoppedImmediate, StateWarnedThenStopped:
		return true
	default:
		return false
	}
}

// Proceeds reports whether the pipeline continues after this state.
func (s State) Proceeds() bool {
	return s == StateNotRunning || s == StateStoppedImmediate || s == StateWarnedThenStopped
}

// String returns the action name.
func (a Action) String() string {
	switch a {
	case ActionProceed:
		return "proceed"
	case ActionPrompt:
		return "prompt"
	case ActionAbort:
		return "abort"
	case ActionStop:
		return "stop"
	case ActionCountdown:
		return "countdown"
	default:
		return "unknown"
	}
}

// String returns the canonical choice keyword.
func (c Choice) String() string {
	switch c {
	case ChoiceNone:
		return ""
	case ChoiceCancel:
		return "cancel"
	case ChoiceStop:
		return "stop"
	case ChoiceCountdown:
		return "countdown"
	default:
		return "unknown"
	}
}

// Label is the text shown for the choice in prompts.
func (c Choice) Label() string {
	switch c {
	case ChoiceCancel:
		return "Cancel deployment"
	case ChoiceStop:
		return "Stop server now"
	case ChoiceCountdown:
		return "Warn players, then stop"
	default:
		return c.String()
	}
}

// Choices lists the selectable choices in menu order.
func Choices() []Choice {
	return []Choice{ChoiceCancel, ChoiceStop, ChoiceCountdown}
}

// Error implements error.
func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid lifecycle state %d", e.Value)
}

// Unwrap returns ErrInvalidState.
func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// Error implements error.
func (e *InvalidChoiceError) Error() string {
	return fmt.Sprintf("invalid choice %q (expected 1/cancel, 2/stop or 3/countdown)", e.Input)
}

// Unwrap returns ErrInvalidChoice.
func (e *InvalidChoiceError) Unwrap() error { return ErrInvalidChoice }

// ParseChoice reads an operator answer. It accepts the menu number, the
// keyword, its first letter or the menu label, case-insensitively.
func ParseChoice(text string) (Choice, error) {
	s := strings.ToLower(strings.TrimSpace(text))
	switch s {
	case "1", "c", "cancel", "n", "no", "abort":
		return ChoiceCancel, nil
	case "2", "s", "stop", "stop now", "kill":
		return ChoiceStop, nil
	case "3", "w", "warn", "countdown", "warned countdown":
		return ChoiceCountdown, nil
	}
	for _, c := range Choices() {
		if s != "" && s == strings.ToLower(c.Label()) {
			return c, nil
		}
	}
	return ChoiceNone, &InvalidChoiceError{Input: text}
}

// Decide is the gate's transition function. Given whether the host is
// running and the operator's choice so far, it returns the resulting state
// and the action the controller must take.
func Decide(running bool, choice Choice) (State, Action) {
	if !running {
		return StateNotRunning, ActionProceed
	}
	switch choice {
	case ChoiceCancel:
		return StateCancelled, ActionAbort
	case ChoiceStop:
		return StateStoppedImmediate, ActionStop
	case ChoiceCountdown:
		return StateWarnedThenStopped, ActionCountdown
	default:
		return StateRunning, ActionPrompt
	}
}
