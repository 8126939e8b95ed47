// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"runtime"

	"github.com/questsystem/packdeploy/internal/issue"
	"github.com/questsystem/packdeploy/internal/lifecycle"
	"github.com/questsystem/packdeploy/internal/pipeline"
	"github.com/questsystem/packdeploy/internal/report"
	"github.com/questsystem/packdeploy/pkg/types"

	"github.com/spf13/cobra"
)

// newStatusCommand creates the `packdeploy status` command.
func newStatusCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show pack identities, the dependency binding and the server state",
		Long: `Show both manifests' header uuid and version, whether the resource pack's
dependency references the behavior pack's current identity, and whether the
server process is running.

Exits with status 1 when the dependency binding is broken.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, app)
		},
	}
}

func runStatus(cmd *cobra.Command, app *App) error {
	stdout := cmd.OutOrStdout()
	stderr := cmd.ErrOrStderr()

	loaded, err := app.loadConfig(cmd.Context())
	if err != nil {
		return reportConfigError(stderr, err, app.flags.verbose)
	}
	cfg := loaded.Config
	verbose := app.verbose(cfg)

	st, err := pipeline.Inspect(app.FS, pipelineConfig(cfg, true))
	if err != nil {
		ae := issue.NewErrorContext().
			WithOperation("inspect packs").
			WithSuggestion("Check packs.behavior.source and packs.resource.source").
			WithIssue(issue.PackNotFoundId).
			Wrap(err).
			Build()
		ae.Print(stderr, ErrorStyle.Render("Error: "), verbose)
		return &ExitError{Code: types.ExitFailure, Err: ae}
	}

	fmt.Fprintln(stdout, TitleStyle.Render("Pack Status"))
	report.WriteStatus(stdout, st, serverState(cmd.Context(), app.Host, cfg.Server.ProcessName))

	if !st.Bound {
		fmt.Fprintf(stderr, "%s Run 'packdeploy deploy' to re-bind the resource pack\n", warningIcon)
		return &ExitError{Code: types.ExitFailure}
	}
	return nil
}

// serverState describes the host process in one phrase.
func serverState(ctx context.Context, host lifecycle.Host, name string) string {
	if !host.Supported() {
		return fmt.Sprintf("unknown (process control is not supported on %s)", runtime.GOOS)
	}
	running, err := host.Running(ctx, name)
	switch {
	case err != nil:
		return fmt.Sprintf("unknown (%v)", err)
	case running:
		return name + " is running"
	default:
		return name + " is not running"
	}
}
