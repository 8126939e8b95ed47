// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for packdeploy.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/questsystem/packdeploy/internal/issue"
	"github.com/questsystem/packdeploy/pkg/types"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the command tree. Running the root command without a
// subcommand deploys.
func NewRootCommand(app *App) *cobra.Command {
	var opts deployOptions

	rootCmd := &cobra.Command{
		Use:   "packdeploy",
		Short: "Deploy a behavior pack and resource pack into a world",
		Long: TitleStyle.Render("packdeploy") + SubtitleStyle.Render(" - Deploy paired add-on packs into a world") + `

packdeploy validates both packs, bumps their versions, regenerates their
UUIDs, re-binds the resource pack to the behavior pack, publishes both into
the world directory and clears the host's cache folders.

` + SubtitleStyle.Render("Examples:") + `
  packdeploy                     Deploy with settings from packdeploy.cue
  packdeploy deploy --choice stop
                                 Stop a running server without asking
  packdeploy validate            Check every JSON file of both packs
  packdeploy status              Show pack identities and the dependency binding
  packdeploy config show         Show the resolved configuration`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeploy(cmd, app, opts)
		},
	}
	rootCmd.SetIn(app.stdin)
	rootCmd.SetOut(app.stdout)
	rootCmd.SetErr(app.stderr)

	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&app.flags.verbose, "verbose", "v", false, "enable verbose output")
	pf.StringVar(&app.flags.configPath, "config", "", "config file (default is <project>/packdeploy.cue)")
	pf.StringVar(&app.flags.project, "project", "", "project directory (default is the working directory)")

	bindDeployFlags(rootCmd, &opts)

	rootCmd.AddCommand(newDeployCommand(app))
	rootCmd.AddCommand(newValidateCommand(app))
	rootCmd.AddCommand(newStatusCommand(app))
	rootCmd.AddCommand(newConfigCommand(app))

	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute builds the root command and runs it. This is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})

	// Pass version via fang.WithVersion() since fang overrides rootCmd.Version
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(int(exitErr.Code))
		}
		os.Exit(int(types.ExitFailure))
	}
}

// reportConfigError prints a configuration failure and returns the exit error
// for it. In verbose mode the catalog guidance is rendered too.
func reportConfigError(w io.Writer, err error, verbose bool) error {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		ae.Print(w, ErrorStyle.Render("Error: "), verbose)
	} else {
		fmt.Fprintln(w, ErrorStyle.Render("Error: ")+err.Error())
	}
	return &ExitError{Code: types.ExitConfig, Err: err}
}
