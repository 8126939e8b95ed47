// SPDX-License-Identifier: MPL-2.0

package report

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/questsystem/packdeploy/internal/identity"
	"github.com/questsystem/packdeploy/internal/pipeline"

	"github.com/charmbracelet/glamour"
)

const (
	// FormatText renders aligned tables.
	FormatText Format = "text"
	// FormatMarkdown renders Markdown, styled through glamour when Styled.
	FormatMarkdown Format = "markdown"
)

// ErrUnknownFormat is returned for an unsupported output format.
var ErrUnknownFormat = errors.New("unknown output format")

type (
	// Format selects how a summary is rendered.
	Format string

	// Options controls rendering.
	Options struct {
		Format Format
		// Styled enables terminal styling for Markdown output.
		Styled bool
		// Width wraps styled Markdown; zero keeps the renderer default.
		Width int
	}
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatText, FormatMarkdown:
		return f, nil
	case "", "table":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w %q (expected text or markdown)", ErrUnknownFormat, s)
	}
}

// Pairs returns the summary as label/value pairs.
func Pairs(sum *pipeline.Summary) [][2]string {
	pairs := [][2]string{
		{"BP Version", version(sum.Behavior)},
		{"RP Version", version(sum.Resource)},
		{"BP UUID", uuid(sum.Behavior)},
		{"RP UUID", uuid(sum.Resource)},
	}
	if sum.Dependency != nil {
		pairs = append(pairs, [2]string{"RP dependency", string(sum.Dependency.Outcome)})
	}
	pairs = append(pairs,
		[2]string{"Files validated", fmt.Sprint(sum.FilesValidated())},
		[2]string{"Packs deployed to", sum.WorldDir},
		[2]string{"Cache cleared", sum.CacheStatus()},
		[2]string{"Duration", sum.Duration.Round(time.Millisecond).String()},
	)
	return pairs
}

// Markdown returns the summary as a Markdown document. runErr, when not nil,
// is reported together with the stages that had already completed.
func Markdown(sum *pipeline.Summary, runErr error) string {
	var b strings.Builder
	switch {
	case runErr == nil:
		b.WriteString("# Deployment complete\n\n")
	case errors.Is(runErr, pipeline.ErrCancelled):
		b.WriteString("# Deployment cancelled\n\nNo files were modified.\n\n")
		return b.String()
	default:
		fmt.Fprintf(&b, "# Deployment failed at stage `%s`\n\n", sum.Failed)
		fmt.Fprintf(&b, "> %s\n\n", strings.ReplaceAll(runErr.Error(), "\n", "\n> "))
		if len(sum.Completed) > 0 {
			b.WriteString("Completed stages (not rolled back):\n\n")
			for _, s := range sum.Completed {
				fmt.Fprintf(&b, "- %s\n", s)
			}
			b.WriteString("\n")
		}
		return b.String()
	}

	b.WriteString("| Item | Value |\n|---|---|\n")
	for _, p := range Pairs(sum) {
		fmt.Fprintf(&b, "| %s | %s |\n", p[0], p[1])
	}
	if len(sum.Warnings) > 0 {
		b.WriteString("\n## Warnings\n\n")
		for _, w := range sum.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}
	return b.String()
}

// Write renders the summary to w. Text output covers successful runs only;
// failures are reported by the caller.
func Write(w io.Writer, sum *pipeline.Summary, runErr error, opts Options) error {
	switch opts.Format {
	case FormatMarkdown:
		md := Markdown(sum, runErr)
		if !opts.Styled {
			_, err := io.WriteString(w, md)
			return err
		}
		out, err := renderMarkdown(md, opts.Width)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, out)
		return err
	case FormatText, "":
		if runErr != nil {
			return nil
		}
		KeyValues(w, Pairs(sum))
		return nil
	default:
		return fmt.Errorf("%w %q", ErrUnknownFormat, opts.Format)
	}
}

func renderMarkdown(md string, width int) (string, error) {
	rendererOpts := []glamour.TermRendererOption{glamour.WithAutoStyle()}
	if width > 0 {
		rendererOpts = append(rendererOpts, glamour.WithWordWrap(width))
	}
	renderer, err := glamour.NewTermRenderer(rendererOpts...)
	if err != nil {
		return "", fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	return renderer.Render(md)
}

func version(r *identity.Rotation) string {
	if r == nil {
		return "-"
	}
	return r.NewVersion.String()
}

func uuid(r *identity.Rotation) string {
	if r == nil {
		return "-"
	}
	return r.NewUUID
}
