// SPDX-License-Identifier: MPL-2.0

package lifecycle

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/huh"
)

var (
	// ErrAborted is returned when the operator interrupts a prompt.
	ErrAborted = errors.New("aborted")
	// ErrNoInput is returned when the input stream ends before an answer.
	ErrNoInput = errors.New("no input")
)

type (
	// MenuItem is one entry of the operator menu.
	MenuItem struct {
		Choice Choice
		Label  string
	}

	// Prompter asks the operator a question and returns the raw answer.
	Prompter interface {
		Ask(ctx context.Context, question string, items []MenuItem) (string, error)
	}

	// TextPrompter reads line answers from a stream. It serves pipes and
	// non-terminal sessions.
	TextPrompter struct {
		in  *bufio.Reader
		out io.Writer
		// pending carries the read still in flight from an abandoned Ask.
		pending chan lineResult
	}

	lineResult struct {
		line string
		err  error
	}

	// SelectPrompter shows an arrow-key menu on a terminal.
	SelectPrompter struct {
		Stdin  io.Reader
		Stdout io.Writer
	}
)

// NewTextPrompter creates a TextPrompter reading from in and writing the
// menu to out.
func NewTextPrompter(in io.Reader, out io.Writer) *TextPrompter {
	return &TextPrompter{in: bufio.NewReader(in), out: out}
}

// Ask implements Prompter. It returns ctx's error as soon as ctx is done,
// even while the read is blocked.
func (p *TextPrompter) Ask(ctx context.Context, question string, items []MenuItem) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	fmt.Fprintln(p.out, question)
	for i, item := range items {
		fmt.Fprintf(p.out, "  %d) %s\n", i+1, item.Label)
	}
	fmt.Fprint(p.out, "> ")

	if p.pending == nil {
		ch := make(chan lineResult, 1)
		go func() {
			line, err := p.in.ReadString('\n')
			ch <- lineResult{line: line, err: err}
		}()
		p.pending = ch
	}

	var res lineResult
	select {
	case <-ctx.Done():
		fmt.Fprintln(p.out)
		return "", ctx.Err()
	case res = <-p.pending:
		p.pending = nil
	}

	if res.err != nil && (res.line == "" || !errors.Is(res.err, io.EOF)) {
		if errors.Is(res.err, io.EOF) {
			return "", ErrNoInput
		}
		return "", fmt.Errorf("failed to read answer: %w", res.err)
	}
	return strings.TrimSpace(res.line), nil
}

// Ask implements Prompter. The answer is the chosen item's keyword.
func (p *SelectPrompter) Ask(ctx context.Context, question string, items []MenuItem) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	opts := make([]huh.Option[string], len(items))
	for i, item := range items {
		opts[i] = huh.NewOption(item.Label, item.Choice.String())
	}

	var answer string
	sel := huh.NewSelect[string]().
		Title(question).
		Options(opts...).
		Value(&answer)

	form := huh.NewForm(huh.NewGroup(sel)).
		WithShowHelp(false)
	if p.Stdin != nil {
		form = form.WithInput(p.Stdin)
	}
	if p.Stdout != nil {
		form = form.WithOutput(p.Stdout)
	}

	if err := form.RunWithContext(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if errors.Is(err, huh.ErrUserAborted) {
			return "", ErrAborted
		}
		return "", err
	}
	return answer, nil
}
