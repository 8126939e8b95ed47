// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestActionableError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      *ActionableError
		expected string
	}{
		{
			name:     "operation only",
			err:      &ActionableError{Operation: "load manifest"},
			expected: "failed to load manifest",
		},
		{
			name:     "operation with resource",
			err:      &ActionableError{Operation: "load manifest", Resource: "packs/BP/manifest.json"},
			expected: "failed to load manifest: packs/BP/manifest.json",
		},
		{
			name:     "operation with cause",
			err:      &ActionableError{Operation: "parse config", Cause: errors.New("syntax error at line 5")},
			expected: "failed to parse config: syntax error at line 5",
		},
		{
			name: "full context",
			err: &ActionableError{
				Operation: "publish pack",
				Resource:  "worlds/W/behavior_packs/BP",
				Cause:     errors.New("permission denied"),
			},
			expected: "failed to publish pack: worlds/W/behavior_packs/BP: permission denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestActionableError_ErrorsIs(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("sentinel")
	err := NewErrorContext().
		WithOperation("validate packs").
		Wrap(fmt.Errorf("wrapped: %w", sentinel)).
		BuildError()

	if !errors.Is(err, sentinel) {
		t.Error("errors.Is should find the wrapped sentinel")
	}
	var ae *ActionableError
	if !errors.As(err, &ae) {
		t.Fatal("errors.As should find the ActionableError")
	}
}

func TestActionableError_Format(t *testing.T) {
	t.Parallel()

	err := &ActionableError{
		Operation:   "load configuration",
		Resource:    "packdeploy.cue",
		Suggestions: []string{"Check CUE syntax", "Run 'packdeploy config show'"},
		Cause:       fmt.Errorf("outer: %w", errors.New("inner")),
	}

	plain := err.Format(false)
	for _, want := range []string{"failed to load configuration: packdeploy.cue", "• Check CUE syntax", "• Run 'packdeploy config show'"} {
		if !strings.Contains(plain, want) {
			t.Errorf("Format(false) missing %q:\n%s", want, plain)
		}
	}
	if strings.Contains(plain, "Cause chain") {
		t.Error("Format(false) should not include the cause chain")
	}

	verbose := err.Format(true)
	for _, want := range []string{"Cause chain:", "1. outer: inner", "2. inner"} {
		if !strings.Contains(verbose, want) {
			t.Errorf("Format(true) missing %q:\n%s", want, verbose)
		}
	}
}

func TestErrorContext_Build(t *testing.T) {
	t.Parallel()

	if NewErrorContext().WithResource("x").Build() != nil {
		t.Error("Build() without an operation should return nil")
	}
	if NewErrorContext().BuildError() != nil {
		t.Error("BuildError() without an operation should return nil")
	}

	ae := NewErrorContext().
		WithOperation("stop server").
		WithResource("bedrock_server.exe").
		WithSuggestion("Stop it manually").
		WithSuggestion("Retry").
		WithIssue(ServerControlFailedId).
		Build()
	if ae.Operation != "stop server" || ae.Resource != "bedrock_server.exe" {
		t.Errorf("Build() = %+v", ae)
	}
	if len(ae.Suggestions) != 2 {
		t.Errorf("Suggestions = %v", ae.Suggestions)
	}
	if ae.Issue != ServerControlFailedId {
		t.Errorf("Issue = %d", ae.Issue)
	}
}

func TestActionableError_Guidance(t *testing.T) {
	t.Parallel()

	ae := &ActionableError{Operation: "validate packs", Issue: ValidationFailedId}
	if g := ae.Guidance("notty"); !strings.Contains(g, "validation failed") {
		t.Errorf("Guidance() = %q", g)
	}
	if g := (&ActionableError{Operation: "x"}).Guidance("notty"); g != "" {
		t.Errorf("Guidance() without issue = %q", g)
	}
}

func TestActionableError_SuggestAndPrint(t *testing.T) {
	t.Parallel()

	ae := NewErrorContext().
		WithOperation("deploy packs").
		WithResource("stage validate").
		WithIssue(ValidationFailedId).
		Wrap(errors.New("2 invalid file(s)")).
		Build()
	ae.Suggest("Completed stages were not rolled back: %v", []string{"lifecycle"})

	var plain strings.Builder
	ae.Print(&plain, "Error: ", false)
	want := "Error: failed to deploy packs: stage validate: 2 invalid file(s)\n\n  • Completed stages were not rolled back: [lifecycle]\n"
	if plain.String() != want {
		t.Errorf("Print(false) = %q, want %q", plain.String(), want)
	}

	var verbose strings.Builder
	ae.Print(&verbose, "", true)
	if !strings.Contains(verbose.String(), "Cause chain:") {
		t.Errorf("Print(true) lacks the cause chain:\n%s", verbose.String())
	}
}

func TestErrorContext_BuildCopiesSuggestions(t *testing.T) {
	t.Parallel()

	ctx := NewErrorContext().WithOperation("publish pack").WithSuggestion("a")
	first := ctx.Build()
	first.Suggest("b")
	if second := ctx.Build(); len(second.Suggestions) != 1 {
		t.Errorf("builder shares suggestions with built errors: %v", second.Suggestions)
	}
}
