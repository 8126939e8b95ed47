// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"time"

	"github.com/questsystem/packdeploy/internal/cache"
	"github.com/questsystem/packdeploy/internal/depsync"
	"github.com/questsystem/packdeploy/internal/identity"
	"github.com/questsystem/packdeploy/internal/lifecycle"
	"github.com/questsystem/packdeploy/internal/publish"
	"github.com/questsystem/packdeploy/internal/validate"
)

const (
	StageLifecycle   StageName = "lifecycle"
	StageValidate    StageName = "validate"
	StageRotate      StageName = "rotate"
	StageSync        StageName = "sync"
	StagePublish     StageName = "publish"
	StageDescriptors StageName = "descriptors"
	StageCache       StageName = "cache"
)

type (
	// StageName identifies a pipeline stage.
	StageName string

	// Summary collects what every completed stage produced. It is returned
	// even when a run fails, so the failure can be reported in context.
	Summary struct {
		Lifecycle   *lifecycle.Outcome
		Reports     []*validate.Report
		Behavior    *identity.Rotation
		Resource    *identity.Rotation
		Dependency  *depsync.Result
		Published   []*publish.Result
		Descriptors []string
		Cache       *cache.Result

		// WorldDir is the publish root, relative to the project when possible.
		WorldDir string
		// Warnings are non-fatal conditions worth showing the operator.
		Warnings []string

		Completed []StageName
		Failed    StageName
		Durations map[StageName]time.Duration
		Duration  time.Duration
	}
)

// Stages returns the stage order.
func Stages() []StageName {
	return []StageName{
		StageLifecycle, StageValidate, StageRotate, StageSync,
		StagePublish, StageDescriptors, StageCache,
	}
}

// Cancelled reports whether the operator cancelled the run.
func (s *Summary) Cancelled() bool {
	return s.Lifecycle != nil && s.Lifecycle.State == lifecycle.StateCancelled
}

// CacheStatus renders the cache outcome as Yes, No (not found) or N/A.
func (s *Summary) CacheStatus() string {
	switch {
	case s.Cache == nil:
		return "N/A (not run)"
	case s.Cache.Skipped != "":
		if s.Cache.Skipped == cache.SkipUnsupported {
			return "N/A (non-Windows)"
		}
		return "N/A (" + s.Cache.Skipped + ")"
	case s.Cache.Cleared:
		return "Yes"
	default:
		return "No (not found)"
	}
}

// FilesValidated returns the total number of files checked.
func (s *Summary) FilesValidated() int {
	n := 0
	for _, r := range s.Reports {
		n += len(r.Files)
	}
	return n
}
