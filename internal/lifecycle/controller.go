// SPDX-License-Identifier: MPL-2.0

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

const (
	// DefaultProcessName is the dedicated server executable.
	DefaultProcessName = "bedrock_server.exe"
	// DefaultSettleDelay is how long to wait after terminating the host.
	DefaultSettleDelay = 3 * time.Second
	// DefaultWarningTemplate is the relay-ready warning. {seconds} is
	// replaced with the time remaining.
	DefaultWarningTemplate = "say Server restarting in {seconds} seconds for an update"

	question = "The server is running. How do you want to continue?"
)

// ErrNoPrompter is returned when a decision is needed but no prompter is set.
var ErrNoPrompter = errors.New("server is running and no operator prompt is available")

type (
	// Clock waits for durations to elapse.
	Clock interface {
		After(d time.Duration) <-chan time.Time
	}

	// Config controls the gate.
	Config struct {
		ProcessName string
		SettleDelay time.Duration
		// Countdown is the decreasing checkpoint schedule, ending at zero.
		Countdown       []time.Duration
		WarningTemplate string
		// Choice preselects the decision; ChoiceNone prompts.
		Choice Choice
	}

	// Outcome is the result of a gate.
	Outcome struct {
		State   State
		Running bool
		Choice  Choice
		// Trace lists every state passed through, in order.
		Trace []State
		// Killed is the number of processes terminated.
		Killed int
		// Warnings are the lines emitted during the countdown.
		Warnings []string
		// Rejected counts answers that had to be re-prompted.
		Rejected int
	}

	// Controller runs the gate.
	Controller struct {
		cfg      Config
		host     Host
		prompter Prompter
		clock    Clock
		out      io.Writer
		logger   *log.Logger
	}

	// Option configures a Controller.
	Option func(*Controller)

	realClock struct{}
)

// DefaultCountdown returns the checkpoint schedule 30,20,10,5,3,2,1,0 seconds.
func DefaultCountdown() []time.Duration {
	secs := []int{30, 20, 10, 5, 3, 2, 1, 0}
	out := make([]time.Duration, len(secs))
	for i, s := range secs {
		out[i] = time.Duration(s) * time.Second
	}
	return out
}

// DefaultConfig returns the gate defaults.
func DefaultConfig() Config {
	return Config{
		ProcessName:     DefaultProcessName,
		SettleDelay:     DefaultSettleDelay,
		Countdown:       DefaultCountdown(),
		WarningTemplate: DefaultWarningTemplate,
	}
}

// WithPrompter sets the operator prompt.
func WithPrompter(p Prompter) Option {
	return func(c *Controller) { c.prompter = p }
}

// WithClock replaces the wall clock.
func WithClock(clk Clock) Option {
	return func(c *Controller) { c.clock = clk }
}

// WithOutput sets where operator-facing lines are written.
func WithOutput(w io.Writer) Option {
	return func(c *Controller) { c.out = w }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// NewController creates a Controller for host.
func NewController(cfg Config, host Host, opts ...Option) *Controller {
	c := &Controller{
		cfg:    cfg,
		host:   host,
		clock:  realClock{},
		out:    io.Discard,
		logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cfg.ProcessName == "" {
		c.cfg.ProcessName = DefaultProcessName
	}
	if c.cfg.WarningTemplate == "" {
		c.cfg.WarningTemplate = DefaultWarningTemplate
	}
	if c.cfg.Countdown == nil {
		c.cfg.Countdown = DefaultCountdown()
	}
	return c
}

// Gate detects the host process and, if it is running, obtains a decision
// and carries it out. A returned Outcome whose State does not proceed means
// the run must stop without side effects.
func (c *Controller) Gate(ctx context.Context) (*Outcome, error) {
	running, err := c.host.Running(ctx, c.cfg.ProcessName)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", c.cfg.ProcessName, err)
	}

	out := &Outcome{Running: running, Choice: c.cfg.Choice}
	state, action := Decide(running, out.Choice)
	out.Trace = append(out.Trace, state)

	for action == ActionPrompt {
		if out.Choice, err = c.ask(ctx, out); err != nil {
			return nil, err
		}
		state, action = Decide(running, out.Choice)
		out.Trace = append(out.Trace, state)
	}
	out.State = state

	c.logger.Debug("lifecycle decision", "state", state, "action", action)

	switch action {
	case ActionProceed, ActionAbort:
		return out, nil
	case ActionCountdown:
		out.Trace = append(out.Trace[:len(out.Trace)-1], StateWarningIssued, state)
		if err := c.countdown(ctx, out); err != nil {
			return nil, err
		}
	}

	if err := c.stop(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Controller) ask(ctx context.Context, out *Outcome) (Choice, error) {
	if c.prompter == nil {
		return ChoiceNone, ErrNoPrompter
	}
	answer, err := c.prompter.Ask(ctx, question, c.menu())
	if errors.Is(err, ErrAborted) {
		return ChoiceCancel, nil
	}
	if err != nil {
		return ChoiceNone, err
	}

	choice, err := ParseChoice(answer)
	if err != nil {
		out.Rejected++
		fmt.Fprintf(c.out, "%v\n", err)
		return ChoiceNone, nil
	}
	return choice, nil
}

// menu labels every choice, naming the configured countdown length.
func (c *Controller) menu() []MenuItem {
	choices := Choices()
	items := make([]MenuItem, len(choices))
	for i, choice := range choices {
		items[i] = MenuItem{Choice: choice, Label: choice.Label()}
		if choice == ChoiceCountdown && len(c.cfg.Countdown) > 0 {
			items[i].Label = fmt.Sprintf("%s (%s countdown)", choice.Label(), c.cfg.Countdown[0])
		}
	}
	return items
}

// countdown emits a warning at every checkpoint and waits the difference
// between consecutive checkpoints.
func (c *Controller) countdown(ctx context.Context, out *Outcome) error {
	for i, cp := range c.cfg.Countdown {
		line := c.warning(cp)
		out.Warnings = append(out.Warnings, line)
		fmt.Fprintf(c.out, "[%s] %s\n", cp, line)

		var wait time.Duration
		if i+1 < len(c.cfg.Countdown) {
			wait = cp - c.cfg.Countdown[i+1]
		} else {
			wait = cp
		}
		if err := c.sleep(ctx, wait); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) stop(ctx context.Context, out *Outcome) error {
	killed, err := c.host.Kill(ctx, c.cfg.ProcessName)
	out.Killed = killed
	switch {
	case errors.Is(err, ErrNotFound):
		c.logger.Info("server already exited", "process", c.cfg.ProcessName)
	case err != nil:
		return fmt.Errorf("failed to stop %s: %w", c.cfg.ProcessName, err)
	default:
		c.logger.Info("server stopped", "process", c.cfg.ProcessName, "count", killed)
	}
	return c.sleep(ctx, c.cfg.SettleDelay)
}

func (c *Controller) warning(remaining time.Duration) string {
	secs := strconv.Itoa(int(remaining / time.Second))
	return strings.ReplaceAll(c.cfg.WarningTemplate, "{seconds}", secs)
}

func (c *Controller) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.clock.After(d):
		return nil
	}
}

func (realClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}
