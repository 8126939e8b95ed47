// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/questsystem/packdeploy/internal/cache"
	"github.com/questsystem/packdeploy/internal/config"
	"github.com/questsystem/packdeploy/internal/lifecycle"
	"github.com/questsystem/packdeploy/internal/pipeline"
	"github.com/questsystem/packdeploy/internal/validate"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
	"golang.org/x/term"
)

type (
	// App wires CLI services and shared dependencies. It is the composition root for
	// the CLI layer: every Cobra command handler receives an App reference.
	App struct {
		Config      config.Provider
		FS          afero.Fs
		Host        lifecycle.Host
		Invalidator InvalidatorFactory
		Prompter    lifecycle.Prompter
		Clock       lifecycle.Clock
		Home        func() (string, error)

		stdin  io.Reader
		stdout io.Writer
		stderr io.Writer
		flags  globalFlags
	}

	// Dependencies defines the injection points for building an App. Nil fields are
	// replaced with production defaults by NewApp. Tests can supply fakes to
	// isolate the filesystem and the host process.
	Dependencies struct {
		Config      config.Provider
		FS          afero.Fs
		Host        lifecycle.Host
		Invalidator InvalidatorFactory
		// Prompter overrides terminal detection when set.
		Prompter lifecycle.Prompter
		Clock    lifecycle.Clock
		Home     func() (string, error)
		Stdin    io.Reader
		Stdout   io.Writer
		Stderr   io.Writer
	}

	// InvalidatorFactory builds the cache invalidator for a resolved cache config.
	InvalidatorFactory func(fs afero.Fs, cfg cache.Config, logger *log.Logger) cache.Invalidator

	globalFlags struct {
		configPath string
		project    string
		verbose    bool
	}
)

// NewApp creates an App, filling unset dependencies with production defaults.
func NewApp(deps Dependencies) *App {
	app := &App{
		Config:      deps.Config,
		FS:          deps.FS,
		Host:        deps.Host,
		Invalidator: deps.Invalidator,
		Prompter:    deps.Prompter,
		Clock:       deps.Clock,
		Home:        deps.Home,
		stdin:       deps.Stdin,
		stdout:      deps.Stdout,
		stderr:      deps.Stderr,
	}
	if app.Config == nil {
		app.Config = config.NewProvider()
	}
	if app.FS == nil {
		app.FS = afero.NewOsFs()
	}
	if app.Host == nil {
		app.Host = lifecycle.NewHost()
	}
	if app.Invalidator == nil {
		app.Invalidator = cache.New
	}
	if app.Home == nil {
		app.Home = os.UserHomeDir
	}
	if app.stdin == nil {
		app.stdin = os.Stdin
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.stderr == nil {
		app.stderr = os.Stderr
	}
	return app
}

// loadConfig resolves the configuration for the global flags.
func (a *App) loadConfig(ctx context.Context) (*config.Loaded, error) {
	return a.Config.Load(ctx, config.LoadOptions{
		ConfigFilePath: a.flags.configPath,
		ProjectDir:     a.flags.project,
	})
}

// logger returns the structured logger, at debug level when verbose.
func (a *App) logger(verbose bool) *log.Logger {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(a.stderr, log.Options{
		Prefix:          "packdeploy",
		Level:           level,
		ReportTimestamp: verbose,
	})
}

// verbose reports whether debug output was requested by flag or config.
func (a *App) verbose(cfg *config.Config) bool {
	return a.flags.verbose || (cfg != nil && cfg.UI.Verbose)
}

// prompter picks an arrow-key menu on a terminal and a numbered text menu
// otherwise.
func (a *App) prompter() lifecycle.Prompter {
	if a.Prompter != nil {
		return a.Prompter
	}
	in, inOK := a.stdin.(*os.File)
	out, outOK := a.stdout.(*os.File)
	if inOK && outOK && term.IsTerminal(int(in.Fd())) && term.IsTerminal(int(out.Fd())) {
		return &lifecycle.SelectPrompter{Stdin: in, Stdout: out}
	}
	return lifecycle.NewTextPrompter(a.stdin, a.stdout)
}

// styled reports whether stdout is a terminal that can take styled output.
func (a *App) styled() bool {
	f, ok := a.stdout.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// pipelineConfig maps the resolved configuration onto the pipeline layout.
func pipelineConfig(cfg *config.Config, skipCache bool) pipeline.Config {
	return pipeline.Config{
		ProjectRoot: cfg.ProjectRoot,
		Behavior: validate.Pack{
			Name: packName(cfg.Packs.Behavior, "Behavior Pack"),
			Root: cfg.Packs.Behavior.Source,
		},
		Resource: validate.Pack{
			Name: packName(cfg.Packs.Resource, "Resource Pack"),
			Root: cfg.Packs.Resource.Source,
		},
		WorldDir:         cfg.WorldDir,
		StrictDependency: cfg.Dependency.Strict,
		SkipCache:        skipCache || !cfg.Cache.Enabled,
	}
}

func packName(p config.PackSource, fallback string) string {
	if p.Name != "" {
		return p.Name
	}
	return fallback
}

// relPath renders path relative to root when it lies beneath it.
func relPath(root, path string) string {
	if root == "" {
		return path
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return filepath.ToSlash(rel)
}
