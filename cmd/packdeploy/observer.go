// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/questsystem/packdeploy/internal/depsync"
	"github.com/questsystem/packdeploy/internal/identity"
	"github.com/questsystem/packdeploy/internal/lifecycle"
	"github.com/questsystem/packdeploy/internal/pipeline"
	"github.com/questsystem/packdeploy/internal/validate"
)

var stageTitles = map[pipeline.StageName]string{
	pipeline.StageLifecycle:   "Checking server",
	pipeline.StageValidate:    "Validating packs",
	pipeline.StageRotate:      "Bumping versions and UUIDs",
	pipeline.StageSync:        "Updating resource pack dependency",
	pipeline.StagePublish:     "Publishing packs",
	pipeline.StageDescriptors: "Updating world pack lists",
	pipeline.StageCache:       "Clearing host cache",
}

// consoleObserver prints a line per step of every stage.
type consoleObserver struct {
	w    io.Writer
	root string
}

func newConsoleObserver(w io.Writer, projectRoot string) *consoleObserver {
	return &consoleObserver{w: w, root: projectRoot}
}

// OnStageStart implements pipeline.Observer.
func (o *consoleObserver) OnStageStart(stage pipeline.StageName) {
	fmt.Fprintln(o.w, stageStyle.Render(stageTitles[stage]))
}

// OnStageComplete implements pipeline.Observer.
func (o *consoleObserver) OnStageComplete(stage pipeline.StageName, d time.Duration, sum *pipeline.Summary, err error) {
	switch stage {
	case pipeline.StageLifecycle:
		o.lifecycle(sum.Lifecycle)
	case pipeline.StageValidate:
		printReports(o.w, o.root, sum.Reports)
	case pipeline.StageRotate:
		o.rotation(sum.Behavior)
		o.rotation(sum.Resource)
	case pipeline.StageSync:
		o.dependency(sum.Dependency)
	case pipeline.StagePublish:
		for _, r := range sum.Published {
			fmt.Fprintf(o.w, "%s %s → %s (%d files)\n", successIcon,
				relPath(o.root, r.Source), pathStyle.Render(relPath(o.root, r.Dest)), r.Files)
		}
	case pipeline.StageDescriptors:
		for _, path := range sum.Descriptors {
			fmt.Fprintf(o.w, "%s Updated %s\n", successIcon, pathStyle.Render(path))
		}
	case pipeline.StageCache:
		o.cache(sum)
	}

	if err != nil && !errors.Is(err, pipeline.ErrCancelled) {
		fmt.Fprintf(o.w, "%s %s failed after %s\n", errorIcon, stage, d.Round(time.Millisecond))
	}
}

func (o *consoleObserver) lifecycle(out *lifecycle.Outcome) {
	if out == nil {
		return
	}
	switch out.State {
	case lifecycle.StateNotRunning:
		fmt.Fprintf(o.w, "%s Server is not running\n", successIcon)
	case lifecycle.StateCancelled:
		fmt.Fprintf(o.w, "%s Cancelled by operator\n", warningIcon)
	case lifecycle.StateStoppedImmediate, lifecycle.StateWarnedThenStopped:
		fmt.Fprintf(o.w, "%s Server stopped (%s, %d process(es))\n", successIcon, out.Choice.Label(), out.Killed)
	}
}

func (o *consoleObserver) rotation(r *identity.Rotation) {
	if r == nil {
		return
	}
	fmt.Fprintf(o.w, "%s %s: %s → %s\n", successIcon,
		relPath(o.root, r.Path), r.OldVersion, SuccessStyle.Render(r.NewVersion.String()))
	fmt.Fprintf(o.w, "  %s\n", VerboseStyle.Render(fmt.Sprintf("uuid %s → %s (+%d module(s))", r.OldUUID, r.NewUUID, r.Modules)))
}

func (o *consoleObserver) dependency(res *depsync.Result) {
	if res == nil {
		return
	}
	switch res.Outcome {
	case depsync.OutcomeUpdated:
		fmt.Fprintf(o.w, "%s Dependency entry %d now references the behavior pack\n", successIcon, res.Index)
	case depsync.OutcomeMissing:
		fmt.Fprintf(o.w, "%s No dependency entry references the behavior pack; left unchanged\n", warningIcon)
	case depsync.OutcomeAmbiguous:
		fmt.Fprintf(o.w, "%s %d dependency entries could reference the behavior pack; left unchanged\n",
			warningIcon, res.Candidates)
	}
}

func (o *consoleObserver) cache(sum *pipeline.Summary) {
	res := sum.Cache
	if res == nil {
		return
	}
	switch {
	case res.Skipped != "":
		fmt.Fprintf(o.w, "%s Skipped: %s\n", infoIcon, res.Skipped)
		return
	case len(res.Removed) == 0 && len(res.Failures) == 0:
		fmt.Fprintf(o.w, "%s No cache folders found\n", warningIcon)
	}
	for _, path := range res.Removed {
		fmt.Fprintf(o.w, "%s Cleared %s\n", successIcon, pathStyle.Render(path))
	}
	for _, f := range res.Failures {
		fmt.Fprintf(o.w, "%s Could not clear %s: %v\n", warningIcon, f.Path, f.Err)
	}
}

// printReports lists every checked file with its verdict, then a count per pack.
func printReports(w io.Writer, root string, reports []*validate.Report) {
	for _, r := range reports {
		invalid := make(map[string]validate.FileError, len(r.Invalid))
		for _, fe := range r.Invalid {
			invalid[fe.Path] = fe
		}

		for _, path := range r.Files {
			if fe, bad := invalid[path]; bad {
				fmt.Fprintf(w, "%s %s\n", errorIcon, relPath(root, path))
				fmt.Fprintf(w, "  %s\n", ErrorStyle.Render(describe(fe)))
				delete(invalid, path)
				continue
			}
			fmt.Fprintf(w, "%s %s\n", successIcon, relPath(root, path))
		}
		// Problems not tied to a walked file, such as a missing manifest.
		for _, fe := range r.Invalid {
			if _, pending := invalid[fe.Path]; pending {
				fmt.Fprintf(w, "%s %s: %s\n", errorIcon, relPath(root, fe.Path), ErrorStyle.Render(describe(fe)))
			}
		}

		verdict := SuccessStyle.Render("valid")
		if !r.Valid() {
			verdict = ErrorStyle.Render(fmt.Sprintf("%d invalid", len(r.Invalid)))
		}
		fmt.Fprintf(w, "%s %s: %d JSON file(s) checked, %s\n", infoIcon, r.Pack.Name, len(r.Files), verdict)
	}
}

func describe(fe validate.FileError) string {
	if fe.Line > 0 {
		return fmt.Sprintf("line %d, column %d: %v", fe.Line, fe.Column, fe.Err)
	}
	return fe.Err.Error()
}
