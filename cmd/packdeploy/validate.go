// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/questsystem/packdeploy/internal/issue"
	"github.com/questsystem/packdeploy/internal/pipeline"
	"github.com/questsystem/packdeploy/internal/validate"
	"github.com/questsystem/packdeploy/internal/watch"
	"github.com/questsystem/packdeploy/pkg/types"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// newValidateCommand creates the `packdeploy validate` command.
func newValidateCommand(app *App) *cobra.Command {
	var watchMode bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate every JSON file of both packs",
		Long: `Validate every JSON file of both packs without modifying anything.

Each file must hold exactly one well-formed JSON document, and each pack's
manifest.json must carry a header uuid and version and module identities.

Exits with status 1 when any file is invalid. With --watch, both packs are
validated again whenever one of their JSON files changes, until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, app, watchMode)
		},
	}
	cmd.Flags().BoolVarP(&watchMode, "watch", "w", false, "validate again whenever a pack JSON file changes")
	return cmd
}

func runValidate(cmd *cobra.Command, app *App, watchMode bool) error {
	stdout := cmd.OutOrStdout()
	stderr := cmd.ErrOrStderr()

	loaded, err := app.loadConfig(cmd.Context())
	if err != nil {
		return reportConfigError(stderr, err, app.flags.verbose)
	}
	verbose := app.verbose(loaded.Config)
	pcfg := pipelineConfig(loaded.Config, true)

	v, err := validate.New(app.FS, validate.WithLogger(app.logger(verbose)))
	if err != nil {
		return &ExitError{Code: types.ExitFailure, Err: err}
	}

	reports, ok := validateOnce(stdout, v, pcfg)
	if watchMode {
		return watchPacks(cmd, pcfg, func() { validateOnce(stdout, v, pcfg) }, app.logger(verbose))
	}
	if ok {
		return nil
	}

	ae := issue.NewErrorContext().
		WithOperation("validate packs").
		WithSuggestion("Fix the files marked ✗ above and run 'packdeploy validate' again").
		WithIssue(issue.ValidationFailedId).
		Wrap(validationErrors(reports)).
		Build()
	ae.Print(stderr, ErrorStyle.Render("Error: "), verbose)
	return &ExitError{Code: types.ExitFailure, Err: ae}
}

// validateOnce validates both packs and prints the per-file verdicts.
func validateOnce(w io.Writer, v *validate.Validator, pcfg pipeline.Config) ([]*validate.Report, bool) {
	reports, ok := v.ValidateAll(pcfg.Behavior, pcfg.Resource)
	fmt.Fprintln(w, TitleStyle.Render("Pack Validation"))
	printReports(w, pcfg.ProjectRoot, reports)
	if ok {
		fmt.Fprintf(w, "\n%s %s\n", successIcon, SuccessStyle.Render("All packs are valid"))
	}
	return reports, ok
}

// watchPacks re-runs revalidate after JSON files in either pack change and
// returns when the command context is cancelled.
func watchPacks(cmd *cobra.Command, pcfg pipeline.Config, revalidate func(), logger *log.Logger) error {
	w, err := watch.New(watch.Config{
		Roots:    []string{pcfg.Behavior.Root, pcfg.Resource.Root},
		Patterns: []string{"**/*.json"},
		Logger:   logger,
		OnChange: func(_ context.Context, changed []string) error {
			fmt.Fprintln(cmd.OutOrStdout())
			for _, path := range changed {
				fmt.Fprintf(cmd.OutOrStdout(), "%s changed: %s\n", infoIcon, relPath(pcfg.ProjectRoot, path))
			}
			revalidate()
			return nil
		},
	})
	if err != nil {
		return &ExitError{Code: types.ExitFailure, Err: err}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\n%s %s\n", infoIcon, VerboseStyle.Render("Watching both packs for changes (Ctrl+C to stop)"))
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := w.Run(ctx); err != nil {
		return &ExitError{Code: types.ExitFailure, Err: err}
	}
	return nil
}

func validationErrors(reports []*validate.Report) error {
	invalid := 0
	for _, r := range reports {
		invalid += len(r.Invalid)
	}
	return fmt.Errorf("%d invalid file(s)", invalid)
}
