// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/questsystem/packdeploy/internal/cache"
	"github.com/questsystem/packdeploy/internal/lifecycle"
	"github.com/questsystem/packdeploy/pkg/platform"
)

const (
	// OutputText renders the summary as a table.
	OutputText OutputFormat = "text"
	// OutputMarkdown renders the summary as Markdown.
	OutputMarkdown OutputFormat = "markdown"
)

var (
	// ErrInvalidOutputFormat is returned when an OutputFormat value is not recognized.
	ErrInvalidOutputFormat = errors.New("invalid output format")
	// ErrInvalidCountdown is returned when the countdown schedule is not strictly decreasing.
	ErrInvalidCountdown = errors.New("invalid countdown schedule")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// OutputFormat selects how the deployment summary is printed.
	OutputFormat string

	// InvalidOutputFormatError is returned when an OutputFormat value is not recognized.
	// It wraps ErrInvalidOutputFormat for errors.Is() compatibility.
	InvalidOutputFormatError struct {
		Value OutputFormat
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors from all sub-components.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// ProjectRoot is the directory holding packs/ and worlds/.
		ProjectRoot string `json:"project_root" mapstructure:"project_root"`
		// WorldDir is the world the packs are published into.
		WorldDir    string           `json:"world_dir" mapstructure:"world_dir"`
		Packs       PacksConfig      `json:"packs" mapstructure:"packs"`
		Cache       CacheConfig      `json:"cache" mapstructure:"cache"`
		Server      ServerConfig     `json:"server" mapstructure:"server"`
		Dependency  DependencyConfig `json:"dependency" mapstructure:"dependency"`
		MetricsFile string           `json:"metrics_file" mapstructure:"metrics_file"`
		UI          UIConfig         `json:"ui" mapstructure:"ui"`
	}

	// PacksConfig locates the two pack sources.
	PacksConfig struct {
		Behavior PackSource `json:"behavior" mapstructure:"behavior"`
		Resource PackSource `json:"resource" mapstructure:"resource"`
	}

	// PackSource is one pack's source tree.
	PackSource struct {
		Source string `json:"source" mapstructure:"source"`
		// Name is shown in validation output.
		Name string `json:"name" mapstructure:"name"`
	}

	// CacheConfig controls host cache invalidation.
	CacheConfig struct {
		Enabled bool `json:"enabled" mapstructure:"enabled"`
		// Roots replaces the built-in search roots when non-empty.
		Roots []CacheRoot `json:"roots" mapstructure:"roots"`
		// Targets replaces the built-in target folder names when non-empty.
		Targets []string `json:"targets" mapstructure:"targets"`
	}

	// CacheRoot mirrors cache.Root.
	CacheRoot struct {
		Base    string `json:"base" mapstructure:"base"`
		Pattern string `json:"pattern" mapstructure:"pattern"`
	}

	// ServerConfig controls the host process gate.
	ServerConfig struct {
		ProcessName string        `json:"process_name" mapstructure:"process_name"`
		SettleDelay time.Duration `json:"settle_delay" mapstructure:"settle_delay"`
		// Countdown is the checkpoint schedule in seconds.
		Countdown       []int  `json:"countdown" mapstructure:"countdown"`
		WarningTemplate string `json:"warning_template" mapstructure:"warning_template"`
		// Choice preselects the operator decision; empty prompts.
		Choice string `json:"choice" mapstructure:"choice"`
	}

	// DependencyConfig controls the dependency synchronizer.
	DependencyConfig struct {
		Strict bool `json:"strict" mapstructure:"strict"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		// Verbose enables debug logging
		Verbose bool `json:"verbose" mapstructure:"verbose"`
		// Output selects the summary format
		Output OutputFormat `json:"output" mapstructure:"output"`
	}
)

// String returns the string representation of the OutputFormat.
func (f OutputFormat) String() string { return string(f) }

// Validate returns nil if the OutputFormat is one of the defined formats,
// or a validation error if it is not. The zero value means text.
func (f OutputFormat) Validate() error {
	switch f {
	case "", OutputText, OutputMarkdown:
		return nil
	default:
		return &InvalidOutputFormatError{Value: f}
	}
}

// Error implements the error interface for InvalidOutputFormatError.
func (e *InvalidOutputFormatError) Error() string {
	return fmt.Sprintf("invalid output format %q (valid: text, markdown)", e.Value)
}

// Unwrap returns ErrInvalidOutputFormat for errors.Is() compatibility.
func (e *InvalidOutputFormatError) Unwrap() error { return ErrInvalidOutputFormat }

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig and the field errors for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

// Validate checks the constraints the CUE schema cannot express, including
// values that arrived through environment overrides.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.ProjectRoot) == "" {
		errs = append(errs, errors.New("project_root must not be empty"))
	}
	if strings.TrimSpace(c.WorldDir) == "" {
		errs = append(errs, errors.New("world_dir must not be empty"))
	}
	if strings.TrimSpace(c.Packs.Behavior.Source) == "" {
		errs = append(errs, errors.New("packs.behavior.source must not be empty"))
	}
	if strings.TrimSpace(c.Packs.Resource.Source) == "" {
		errs = append(errs, errors.New("packs.resource.source must not be empty"))
	}
	for key, src := range map[string]string{
		"packs.behavior.source": c.Packs.Behavior.Source,
		"packs.resource.source": c.Packs.Resource.Source,
	} {
		if name := filepath.Base(src); platform.IsReservedName(name) {
			errs = append(errs, fmt.Errorf("%s: %q is a reserved folder name on Windows", key, name))
		}
	}
	for _, target := range c.Cache.Targets {
		if platform.IsReservedName(target) {
			errs = append(errs, fmt.Errorf("cache.targets: %q is a reserved folder name on Windows", target))
		}
	}
	if c.Server.SettleDelay < 0 {
		errs = append(errs, fmt.Errorf("server.settle_delay must not be negative, got %s", c.Server.SettleDelay))
	}
	if err := validateCountdown(c.Server.Countdown); err != nil {
		errs = append(errs, err)
	}
	if _, err := lifecycle.ParseChoice(c.Server.Choice); c.Server.Choice != "" && err != nil {
		errs = append(errs, fmt.Errorf("server.choice: %w", err))
	}
	if err := c.UI.Output.Validate(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// validateCountdown requires a non-empty, strictly decreasing schedule of
// non-negative checkpoints that ends at zero.
func validateCountdown(secs []int) error {
	if len(secs) == 0 {
		return fmt.Errorf("%w: server.countdown must not be empty", ErrInvalidCountdown)
	}
	for i, s := range secs {
		if s < 0 {
			return fmt.Errorf("%w: server.countdown[%d] is negative", ErrInvalidCountdown, i)
		}
		if i > 0 && s >= secs[i-1] {
			return fmt.Errorf("%w: server.countdown[%d]=%d does not decrease", ErrInvalidCountdown, i, s)
		}
	}
	if secs[len(secs)-1] != 0 {
		return fmt.Errorf("%w: server.countdown must end at 0", ErrInvalidCountdown)
	}
	return nil
}

// Resolve returns a copy with project_root made absolute against base and
// every other relative path made absolute against project_root.
func (c *Config) Resolve(base string) *Config {
	out := *c
	out.Cache.Roots = slices.Clone(c.Cache.Roots)
	out.Cache.Targets = slices.Clone(c.Cache.Targets)
	out.Server.Countdown = slices.Clone(c.Server.Countdown)

	out.ProjectRoot = absUnder(base, c.ProjectRoot)
	out.WorldDir = absUnder(out.ProjectRoot, c.WorldDir)
	out.Packs.Behavior.Source = absUnder(out.ProjectRoot, c.Packs.Behavior.Source)
	out.Packs.Resource.Source = absUnder(out.ProjectRoot, c.Packs.Resource.Source)
	if c.MetricsFile != "" {
		out.MetricsFile = absUnder(out.ProjectRoot, c.MetricsFile)
	}
	return &out
}

func absUnder(base, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(base, path)
}

// GateConfig converts the server section into the lifecycle gate settings.
func (s ServerConfig) GateConfig() (lifecycle.Config, error) {
	cfg := lifecycle.Config{
		ProcessName:     s.ProcessName,
		SettleDelay:     s.SettleDelay,
		WarningTemplate: s.WarningTemplate,
	}
	for _, sec := range s.Countdown {
		cfg.Countdown = append(cfg.Countdown, time.Duration(sec)*time.Second)
	}
	if s.Choice != "" {
		choice, err := lifecycle.ParseChoice(s.Choice)
		if err != nil {
			return lifecycle.Config{}, err
		}
		cfg.Choice = choice
	}
	return cfg, nil
}

// InvalidatorConfig converts the cache section, falling back to the
// built-in roots under home and the built-in targets.
func (c CacheConfig) InvalidatorConfig(home string) cache.Config {
	cfg := cache.Config{Targets: slices.Clone(c.Targets)}
	for _, r := range c.Roots {
		cfg.Roots = append(cfg.Roots, cache.Root{Base: r.Base, Pattern: r.Pattern})
	}
	if len(cfg.Roots) == 0 {
		cfg.Roots = cache.DefaultRoots(home)
	}
	if len(cfg.Targets) == 0 {
		cfg.Targets = cache.DefaultTargets()
	}
	return cfg
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	gate := lifecycle.DefaultConfig()
	countdown := make([]int, len(gate.Countdown))
	for i, d := range gate.Countdown {
		countdown[i] = int(d / time.Second)
	}

	return &Config{
		ProjectRoot: ".",
		WorldDir:    filepath.Join("worlds", "Super Quester World"),
		Packs: PacksConfig{
			Behavior: PackSource{Source: filepath.Join("packs", "QuestSystemBP"), Name: "Behavior Pack"},
			Resource: PackSource{Source: filepath.Join("packs", "QuestSystemRP"), Name: "Resource Pack"},
		},
		Cache: CacheConfig{
			Enabled: true,
			Roots:   []CacheRoot{},
			Targets: []string{},
		},
		Server: ServerConfig{
			ProcessName:     gate.ProcessName,
			SettleDelay:     gate.SettleDelay,
			Countdown:       countdown,
			WarningTemplate: gate.WarningTemplate,
		},
		UI: UIConfig{
			Output: OutputText,
		},
	}
}
