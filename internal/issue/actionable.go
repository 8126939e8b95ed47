// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

type (
	// ActionableError is a user-facing failure: what packdeploy was doing,
	// which file or stage it concerned, and what the operator can do next.
	//
	//	err := issue.NewErrorContext().
	//		WithOperation("load manifest").
	//		WithResource("packs/QuestSystemBP/manifest.json").
	//		WithSuggestion("Run 'packdeploy validate' for details").
	//		Wrap(cause).
	//		Build()
	ActionableError struct {
		// Operation is a verb phrase such as "deploy packs".
		Operation string
		// Resource names the file, path or stage involved. Optional.
		Resource    string
		Suggestions []string
		Cause       error
		// Issue links a catalog entry with longer guidance. Optional.
		Issue Id
	}

	// ErrorContext builds an ActionableError incrementally.
	ErrorContext struct {
		err ActionableError
	}
)

// NewErrorContext creates a new ErrorContext builder.
func NewErrorContext() *ErrorContext {
	return &ErrorContext{}
}

// Error returns "failed to <operation>[: <resource>][: <cause>]".
func (e *ActionableError) Error() string {
	parts := []string{"failed to " + e.Operation}
	if e.Resource != "" {
		parts = append(parts, e.Resource)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

// Unwrap returns the cause for errors.Is and errors.As.
func (e *ActionableError) Unwrap() error {
	return e.Cause
}

// Suggest appends a formatted suggestion.
func (e *ActionableError) Suggest(format string, args ...any) {
	e.Suggestions = append(e.Suggestions, fmt.Sprintf(format, args...))
}

// Format renders the message followed by one bullet per suggestion. Verbose
// output also lists every error in the cause chain.
func (e *ActionableError) Format(verbose bool) string {
	var b strings.Builder
	b.WriteString(e.Error())

	if len(e.Suggestions) > 0 {
		b.WriteString("\n")
		for _, s := range e.Suggestions {
			b.WriteString("\n  • ")
			b.WriteString(s)
		}
	}

	if verbose && e.Cause != nil {
		b.WriteString("\n\nCause chain:")
		for i, err := 1, e.Cause; err != nil; i, err = i+1, errors.Unwrap(err) {
			fmt.Fprintf(&b, "\n  %d. %s", i, err)
		}
	}
	return b.String()
}

// Guidance renders the linked catalog issue, or returns "" when there is none.
func (e *ActionableError) Guidance(stylePath string) string {
	iss := Get(e.Issue)
	if iss == nil {
		return ""
	}
	out, err := iss.Render(stylePath)
	if err != nil {
		return string(iss.MarkdownMsg())
	}
	return out
}

// Print writes prefix and the formatted error to w. Verbose output appends
// the catalog guidance.
func (e *ActionableError) Print(w io.Writer, prefix string, verbose bool) {
	fmt.Fprintln(w, prefix+e.Format(verbose))
	if verbose {
		fmt.Fprint(w, e.Guidance("auto"))
	}
}

// WithOperation sets the operation being performed.
func (c *ErrorContext) WithOperation(op string) *ErrorContext {
	c.err.Operation = op
	return c
}

// WithResource sets the file, path or stage involved.
func (c *ErrorContext) WithResource(res string) *ErrorContext {
	c.err.Resource = res
	return c
}

// WithSuggestion adds a suggestion. It may be called repeatedly.
func (c *ErrorContext) WithSuggestion(sug string) *ErrorContext {
	c.err.Suggestions = append(c.err.Suggestions, sug)
	return c
}

// WithIssue links the error to a catalog issue.
func (c *ErrorContext) WithIssue(id Id) *ErrorContext {
	c.err.Issue = id
	return c
}

// Wrap sets the underlying cause.
func (c *ErrorContext) Wrap(err error) *ErrorContext {
	c.err.Cause = err
	return c
}

// Build returns the ActionableError, or nil when no operation was set.
func (c *ErrorContext) Build() *ActionableError {
	if c.err.Operation == "" {
		return nil
	}
	ae := c.err
	ae.Suggestions = append([]string(nil), c.err.Suggestions...)
	return &ae
}

// BuildError is Build for return statements; it never yields a typed nil.
func (c *ErrorContext) BuildError() error {
	if ae := c.Build(); ae != nil {
		return ae
	}
	return nil
}
