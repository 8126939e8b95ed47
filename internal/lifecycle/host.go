// SPDX-License-Identifier: MPL-2.0

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/questsystem/packdeploy/pkg/platform"

	"github.com/shirou/gopsutil/v4/process"
)

// ErrNotFound is returned by Kill when no process matched.
var ErrNotFound = errors.New("no matching process")

type (
	// Host queries and terminates host processes by executable name.
	Host interface {
		// Running reports whether a process named name exists.
		Running(ctx context.Context, name string) (bool, error)
		// Kill forcibly terminates every process named name and returns how
		// many were signalled.
		Kill(ctx context.Context, name string) (int, error)
		// Supported reports whether the host can actually control processes.
		Supported() bool
	}

	// ProcessHost controls processes through the operating system's
	// process table.
	ProcessHost struct{}

	// NoopHost never finds a process.
	NoopHost struct{}
)

// NewHost returns the process capability for the running platform.
func NewHost() Host {
	return HostFor(runtime.GOOS)
}

// HostFor returns the process capability for goos. Process control is only
// offered on Windows.
func HostFor(goos string) Host {
	if goos == platform.Windows {
		return ProcessHost{}
	}
	return NoopHost{}
}

// Running implements Host.
func (ProcessHost) Running(ctx context.Context, name string) (bool, error) {
	procs, err := matching(ctx, name)
	if err != nil {
		return false, err
	}
	return len(procs) > 0, nil
}

// Kill implements Host.
func (ProcessHost) Kill(ctx context.Context, name string) (int, error) {
	procs, err := matching(ctx, name)
	if err != nil {
		return 0, err
	}
	if len(procs) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	var errs []error
	killed := 0
	for _, p := range procs {
		if err := p.KillWithContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("pid %d: %w", p.Pid, err))
			continue
		}
		killed++
	}
	return killed, errors.Join(errs...)
}

// Supported implements Host.
func (ProcessHost) Supported() bool { return true }

// Running implements Host.
func (NoopHost) Running(context.Context, string) (bool, error) { return false, nil }

// Kill implements Host.
func (NoopHost) Kill(context.Context, string) (int, error) { return 0, nil }

// Supported implements Host.
func (NoopHost) Supported() bool { return false }

func matching(ctx context.Context, name string) ([]*process.Process, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	var out []*process.Process
	for _, p := range procs {
		pname, err := p.NameWithContext(ctx)
		if err != nil {
			// Processes may exit or deny access while we iterate.
			continue
		}
		if strings.EqualFold(pname, name) {
			out = append(out, p)
		}
	}
	return out, nil
}
