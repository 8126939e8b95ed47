// SPDX-License-Identifier: MPL-2.0

package report

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/questsystem/packdeploy/internal/cache"
	"github.com/questsystem/packdeploy/internal/depsync"
	"github.com/questsystem/packdeploy/internal/identity"
	"github.com/questsystem/packdeploy/internal/pipeline"
	"github.com/questsystem/packdeploy/pkg/manifest"
)

func sampleSummary() *pipeline.Summary {
	return &pipeline.Summary{
		Behavior:   &identity.Rotation{NewUUID: "bp-new", NewVersion: manifest.Version{2, 0, 2}},
		Resource:   &identity.Rotation{NewUUID: "rp-new", NewVersion: manifest.Version{1, 2, 4}},
		Dependency: &depsync.Result{Outcome: depsync.OutcomeUpdated},
		Cache:      &cache.Result{Cleared: true},
		WorldDir:   "worlds/Super Quester World",
		Completed:  pipeline.Stages(),
	}
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Format{"": FormatText, "TEXT": FormatText, "markdown": FormatMarkdown, "table": FormatText} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("json"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("ParseFormat(json) error = %v", err)
	}
}

func TestWrite_Text(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := Write(&buf, sampleSummary(), nil, Options{Format: FormatText}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"BP Version", "2.0.2", "RP Version", "1.2.4", "worlds/Super Quester World", "Yes", "updated"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWrite_TextSilentOnFailure(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := Write(&buf, sampleSummary(), errors.New("boom"), Options{Format: FormatText}); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Errorf("output = %q, want empty", buf.String())
	}
}

func TestMarkdown(t *testing.T) {
	t.Parallel()

	sum := sampleSummary()
	sum.Warnings = []string{"could not clear x"}
	md := Markdown(sum, nil)
	for _, want := range []string{"# Deployment complete", "| BP Version | 2.0.2 |", "| Cache cleared | Yes |", "## Warnings", "- could not clear x"} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}

	cancelled := Markdown(&pipeline.Summary{}, pipeline.ErrCancelled)
	if !strings.Contains(cancelled, "cancelled") || strings.Contains(cancelled, "| Item |") {
		t.Errorf("cancelled markdown = %q", cancelled)
	}

	failed := &pipeline.Summary{
		Failed:    pipeline.StagePublish,
		Completed: []pipeline.StageName{pipeline.StageLifecycle, pipeline.StageValidate, pipeline.StageRotate, pipeline.StageSync},
	}
	err := &pipeline.StageError{Stage: pipeline.StagePublish, Err: fmt.Errorf("disk full")}
	md = Markdown(failed, err)
	for _, want := range []string{"failed at stage `publish`", "disk full", "- rotate", "not rolled back"} {
		if !strings.Contains(md, want) {
			t.Errorf("failure markdown missing %q:\n%s", want, md)
		}
	}
}

func TestWrite_MarkdownPlain(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := Write(&buf, sampleSummary(), nil, Options{Format: FormatMarkdown}); err != nil {
		t.Fatal(err)
	}
	if buf.String() != Markdown(sampleSummary(), nil) {
		t.Error("unstyled markdown should be written verbatim")
	}
}

func TestWrite_MarkdownStyled(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := Write(&buf, sampleSummary(), nil, Options{Format: FormatMarkdown, Styled: true, Width: 80}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Deployment") {
		t.Errorf("styled output = %q", buf.String())
	}
}

func TestWriteStatus(t *testing.T) {
	t.Parallel()

	st := &pipeline.Status{
		Behavior: pipeline.PackStatus{Name: "Behavior Pack", UUID: "bp", Version: manifest.Version{2, 0, 1}, Modules: 2},
		Resource: pipeline.PackStatus{Name: "Resource Pack", UUID: "rp", Version: manifest.Version{1, 2, 3}, Modules: 1},
		Bound:    true,
		Binding:  "bound to 2.0.1",
	}
	var buf bytes.Buffer
	WriteStatus(&buf, st, "not running")

	out := buf.String()
	for _, want := range []string{"PACK", "Behavior Pack", "2.0.1", "Resource Pack", "ok (bound to 2.0.1)", "not running"} {
		if !strings.Contains(out, want) {
			t.Errorf("status missing %q:\n%s", want, out)
		}
	}
}
