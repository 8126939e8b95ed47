// SPDX-License-Identifier: MPL-2.0

package cmd

import "github.com/questsystem/packdeploy/pkg/types"

// ExitError carries a process exit code out of a RunE handler. When Err is
// set its message has already been printed; Execute only exits with Code.
type ExitError struct {
	Code types.ExitCode
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return "exit status " + e.Code.String()
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }
