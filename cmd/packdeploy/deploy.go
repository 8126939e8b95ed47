// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/questsystem/packdeploy/internal/issue"
	"github.com/questsystem/packdeploy/internal/lifecycle"
	"github.com/questsystem/packdeploy/internal/metrics"
	"github.com/questsystem/packdeploy/internal/pipeline"
	"github.com/questsystem/packdeploy/internal/report"
	"github.com/questsystem/packdeploy/pkg/types"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

type deployOptions struct {
	choice      string
	yesStop     bool
	skipCache   bool
	output      string
	metricsFile string
}

// newDeployCommand creates the `packdeploy deploy` command.
func newDeployCommand(app *App) *cobra.Command {
	var opts deployOptions

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Run the full deployment pipeline",
		Long: `Run the full deployment pipeline:

  1. check the server process and ask what to do if it is running
  2. validate every JSON file of both packs (nothing is modified on failure)
  3. bump the patch version and regenerate every UUID of both manifests
  4. point the resource pack's dependency at the behavior pack's new identity
  5. replace the published copies in the world and rewrite its pack lists
  6. clear the host cache folders (Windows only)

A failure after step 2 stops the run; completed steps are not rolled back.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeploy(cmd, app, opts)
		},
	}
	bindDeployFlags(cmd, &opts)
	return cmd
}

func bindDeployFlags(cmd *cobra.Command, opts *deployOptions) {
	f := cmd.Flags()
	f.StringVar(&opts.choice, "choice", "", "decision when the server is running: cancel, stop or countdown")
	f.BoolVar(&opts.yesStop, "yes-stop", false, "stop a running server without asking (same as --choice stop)")
	f.BoolVar(&opts.skipCache, "skip-cache", false, "do not clear host cache folders")
	f.StringVar(&opts.output, "output", "", "summary format: text or markdown")
	f.StringVar(&opts.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile")
	cmd.MarkFlagsMutuallyExclusive("choice", "yes-stop")
}

func runDeploy(cmd *cobra.Command, app *App, opts deployOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	stdout := cmd.OutOrStdout()
	stderr := cmd.ErrOrStderr()

	loaded, err := app.loadConfig(ctx)
	if err != nil {
		return reportConfigError(stderr, err, app.flags.verbose)
	}
	cfg := loaded.Config
	verbose := app.verbose(cfg)
	logger := app.logger(verbose)
	if loaded.Path != "" {
		logger.Debug("configuration loaded", "path", loaded.Path)
	}

	output := string(cfg.UI.Output)
	if opts.output != "" {
		output = opts.output
	}
	format, err := report.ParseFormat(output)
	if err != nil {
		return reportConfigError(stderr, err, verbose)
	}

	gateCfg, err := cfg.Server.GateConfig()
	if err != nil {
		return reportConfigError(stderr, err, verbose)
	}
	switch {
	case opts.yesStop:
		gateCfg.Choice = lifecycle.ChoiceStop
	case opts.choice != "":
		if gateCfg.Choice, err = lifecycle.ParseChoice(opts.choice); err != nil {
			return reportConfigError(stderr, err, verbose)
		}
	}

	gateOpts := []lifecycle.Option{
		lifecycle.WithPrompter(app.prompter()),
		lifecycle.WithOutput(stdout),
		lifecycle.WithLogger(logger),
	}
	if app.Clock != nil {
		gateOpts = append(gateOpts, lifecycle.WithClock(app.Clock))
	}
	gate := lifecycle.NewController(gateCfg, app.Host, gateOpts...)

	home, err := app.Home()
	if err != nil {
		logger.Warn("home directory unknown; default cache roots disabled", "err", err)
	}
	invalidator := app.Invalidator(app.FS, cfg.Cache.InvalidatorConfig(home), logger)

	metricsFile := cfg.MetricsFile
	if opts.metricsFile != "" {
		metricsFile = opts.metricsFile
	}
	var recorder metrics.Recorder = metrics.NoopRecorder{}
	if metricsFile != "" {
		recorder = metrics.NewPrometheusRecorder(prometheus.NewRegistry(), metricsFile)
	}

	pcfg := pipelineConfig(cfg, opts.skipCache)
	p, err := pipeline.New(pcfg, app.FS, gate, invalidator,
		pipeline.WithRecorder(recorder),
		pipeline.WithObserver(newConsoleObserver(stdout, pcfg.ProjectRoot)),
		pipeline.WithLogger(logger),
	)
	if err != nil {
		return &ExitError{Code: types.ExitFailure, Err: err}
	}

	sum, runErr := p.Run(ctx)

	if err := recorder.Flush(); err != nil {
		logger.Warn("failed to write metrics", "path", metricsFile, "err", err)
	}

	fmt.Fprintln(stdout)
	if err := report.Write(stdout, sum, runErr, report.Options{
		Format: format,
		Styled: app.styled(),
	}); err != nil {
		logger.Warn("failed to render summary", "err", err)
	}

	switch {
	case runErr == nil:
		for _, w := range sum.Warnings {
			fmt.Fprintf(stdout, "%s %s\n", warningIcon, w)
		}
		fmt.Fprintf(stdout, "\n%s %s\n", successIcon, SuccessStyle.Render("Deployment complete"))
		return nil
	case errors.Is(runErr, pipeline.ErrCancelled):
		fmt.Fprintf(stdout, "%s Deployment cancelled; nothing was modified.\n", infoIcon)
		return nil
	default:
		return reportRunFailure(stderr, sum, runErr, verbose)
	}
}

// reportRunFailure prints which stage failed and which already completed,
// then returns the exit error for the run.
func reportRunFailure(w io.Writer, sum *pipeline.Summary, runErr error, verbose bool) error {
	code := types.ExitFailure
	if errors.Is(runErr, context.Canceled) {
		code = types.ExitInterrupted
	}

	ae := issue.NewErrorContext().
		WithOperation("deploy packs").
		WithResource("stage " + string(sum.Failed)).
		WithIssue(stageIssue(sum.Failed, runErr)).
		Wrap(runErr).
		Build()
	if len(sum.Completed) > 0 {
		ae.Suggest("Completed stages were not rolled back: %v", sum.Completed)
	}
	if errors.Is(runErr, pipeline.ErrValidationFailed) {
		ae.Suggest("Fix the files marked %s above; no manifest was modified", errorIcon)
	}

	ae.Print(w, ErrorStyle.Render("Error: "), verbose)
	return &ExitError{Code: code, Err: ae}
}

// stageIssue maps a failed stage to the catalog entry explaining it.
func stageIssue(stage pipeline.StageName, err error) issue.Id {
	switch stage {
	case pipeline.StageLifecycle:
		return issue.ServerControlFailedId
	case pipeline.StageValidate:
		return issue.ValidationFailedId
	case pipeline.StageRotate:
		if errors.Is(err, fs.ErrNotExist) {
			return issue.PackNotFoundId
		}
		return issue.ManifestInvalidId
	case pipeline.StageSync:
		return issue.DependencyUnboundId
	case pipeline.StagePublish, pipeline.StageDescriptors:
		return issue.PublishFailedId
	case pipeline.StageCache:
		return issue.CacheClearFailedId
	default:
		return 0
	}
}
