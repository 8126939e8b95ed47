// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/questsystem/packdeploy/internal/cache"
	"github.com/questsystem/packdeploy/internal/depsync"
	"github.com/questsystem/packdeploy/internal/identity"
	"github.com/questsystem/packdeploy/internal/lifecycle"
	"github.com/questsystem/packdeploy/internal/metrics"
	"github.com/questsystem/packdeploy/internal/publish"
	"github.com/questsystem/packdeploy/internal/validate"
	"github.com/questsystem/packdeploy/pkg/manifest"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
)

const (
	behaviorPacksDir = "behavior_packs"
	resourcePacksDir = "resource_packs"
)

type (
	// Config is everything a run needs to know about the project layout.
	Config struct {
		ProjectRoot string
		Behavior    validate.Pack
		Resource    validate.Pack
		WorldDir    string
		// StrictDependency turns a missing or ambiguous dependency entry into
		// a stage failure instead of a warning.
		StrictDependency bool
		SkipCache        bool
	}

	// Gate decides whether the run may proceed past a running host.
	Gate interface {
		Gate(ctx context.Context) (*lifecycle.Outcome, error)
	}

	// Observer is notified around every stage.
	Observer interface {
		OnStageStart(stage StageName)
		OnStageComplete(stage StageName, d time.Duration, sum *Summary, err error)
	}

	// Pipeline wires the stage components together.
	Pipeline struct {
		cfg         Config
		fs          afero.Fs
		gate        Gate
		invalidator cache.Invalidator
		validator   *validate.Validator
		store       *manifest.Store
		publisher   *publish.Publisher
		recorder    metrics.Recorder
		observer    Observer
		newToken    identity.TokenSource
		logger      *log.Logger
	}

	// Option configures a Pipeline.
	Option func(*Pipeline)

	stageDef struct {
		name StageName
		fn   func(ctx context.Context, sum *Summary) error
	}

	noopObserver struct{}
)

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// WithObserver sets the stage observer.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithTokenSource replaces the identity token source.
func WithTokenSource(src identity.TokenSource) Option {
	return func(p *Pipeline) { p.newToken = src }
}

// New creates a Pipeline over fs. gate and invalidator are the platform
// capabilities; pass a no-op gate and cache.Noop where they do not apply.
func New(cfg Config, fs afero.Fs, gate Gate, invalidator cache.Invalidator, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		cfg:         cfg,
		fs:          fs,
		gate:        gate,
		invalidator: invalidator,
		recorder:    metrics.NoopRecorder{},
		observer:    noopObserver{},
		logger:      log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(p)
	}

	v, err := validate.New(fs, validate.WithLogger(p.logger))
	if err != nil {
		return nil, err
	}
	p.validator = v
	p.store = manifest.NewStore(fs)
	p.publisher = publish.New(fs, p.logger)
	return p, nil
}

// Run executes every stage in order. The returned Summary is never nil.
// Operator cancellation returns ErrCancelled; any other failure is a
// *StageError naming the stage.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	sum := &Summary{
		WorldDir:  p.relative(p.cfg.WorldDir),
		Durations: make(map[StageName]time.Duration),
	}

	stages := []stageDef{
		{StageLifecycle, p.stageLifecycle},
		{StageValidate, p.stageValidate},
		{StageRotate, p.stageRotate},
		{StageSync, p.stageSync},
		{StagePublish, p.stagePublish},
		{StageDescriptors, p.stageDescriptors},
		{StageCache, p.stageCache},
	}

	err := p.runStages(ctx, sum, stages)
	sum.Duration = time.Since(start)
	p.recorder.ObserveRunDuration(sum.Duration)

	switch {
	case errors.Is(err, ErrCancelled):
		p.recorder.IncRunOutcome(metrics.ResultCanceled)
	case err != nil:
		p.recorder.IncRunOutcome(metrics.ResultFailed)
	case len(sum.Warnings) > 0:
		p.recorder.IncRunOutcome(metrics.ResultWarning)
	default:
		p.recorder.IncRunOutcome(metrics.ResultSuccess)
	}
	return sum, err
}

// runStages executes stages in order, recording timing and stopping on the
// first error.
func (p *Pipeline) runStages(ctx context.Context, sum *Summary, stages []stageDef) error {
	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			sum.Failed = st.name
			p.recorder.IncStageResult(string(st.name), metrics.ResultCanceled)
			return &StageError{Stage: st.name, Err: err}
		}

		p.observer.OnStageStart(st.name)
		p.logger.Debug("stage start", "stage", st.name)

		t0 := time.Now()
		err := st.fn(ctx, sum)
		dur := time.Since(t0)

		sum.Durations[st.name] = dur
		p.recorder.ObserveStageDuration(string(st.name), dur)
		p.observer.OnStageComplete(st.name, dur, sum, err)

		switch {
		case errors.Is(err, ErrCancelled):
			p.recorder.IncStageResult(string(st.name), metrics.ResultCanceled)
			return err
		case err != nil:
			sum.Failed = st.name
			p.recorder.IncStageResult(string(st.name), metrics.ResultFailed)
			p.logger.Error("stage failed", "stage", st.name, "err", err)
			return &StageError{Stage: st.name, Err: err}
		}

		p.recorder.IncStageResult(string(st.name), metrics.ResultSuccess)
		sum.Completed = append(sum.Completed, st.name)
		p.logger.Debug("stage complete", "stage", st.name, "duration", dur)
	}
	return nil
}

func (p *Pipeline) stageLifecycle(ctx context.Context, sum *Summary) error {
	out, err := p.gate.Gate(ctx)
	if err != nil {
		return err
	}
	sum.Lifecycle = out
	if !out.State.Proceeds() {
		return ErrCancelled
	}
	return nil
}

func (p *Pipeline) stageValidate(_ context.Context, sum *Summary) error {
	reports, ok := p.validator.ValidateAll(p.cfg.Behavior, p.cfg.Resource)
	sum.Reports = reports
	for _, r := range reports {
		p.recorder.AddFilesValidated(r.Pack.Name, len(r.Files))
	}
	if ok {
		return nil
	}

	errs := []error{ErrValidationFailed}
	for _, r := range reports {
		if err := r.Err(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Pipeline) stageRotate(_ context.Context, sum *Summary) error {
	opts := []identity.Option{identity.WithLogger(p.logger)}
	if p.newToken != nil {
		opts = append(opts, identity.WithTokenSource(p.newToken))
	}
	// One rotator for both packs keeps every token of the run distinct.
	rot := identity.NewRotator(p.store, opts...)

	var err error
	if sum.Behavior, err = rot.Rotate(manifest.PathIn(p.cfg.Behavior.Root)); err != nil {
		return fmt.Errorf("%s: %w", p.cfg.Behavior.Name, err)
	}
	if sum.Resource, err = rot.Rotate(manifest.PathIn(p.cfg.Resource.Root)); err != nil {
		return fmt.Errorf("%s: %w", p.cfg.Resource.Name, err)
	}

	p.recorder.SetPackVersion(p.cfg.Behavior.Name, sum.Behavior.NewVersion.Patch())
	p.recorder.SetPackVersion(p.cfg.Resource.Name, sum.Resource.NewVersion.Patch())
	return nil
}

func (p *Pipeline) stageSync(_ context.Context, sum *Summary) error {
	syncer := depsync.New(p.store, p.logger)
	res, err := syncer.Sync(manifest.PathIn(p.cfg.Resource.Root), depsync.Target{
		OldUUID: sum.Behavior.OldUUID,
		NewUUID: sum.Behavior.NewUUID,
		Version: sum.Behavior.NewVersion,
	})
	if err != nil {
		return err
	}
	sum.Dependency = res

	if res.Outcome == depsync.OutcomeUpdated {
		return nil
	}
	if p.cfg.StrictDependency {
		return res.Err()
	}
	sum.Warnings = append(sum.Warnings, fmt.Sprintf(
		"%s does not reference %s (%s); the host may fail to pair the packs",
		p.cfg.Resource.Name, p.cfg.Behavior.Name, res.Outcome))
	return nil
}

func (p *Pipeline) stagePublish(_ context.Context, sum *Summary) error {
	targets := []struct {
		pack validate.Pack
		dir  string
	}{
		{p.cfg.Behavior, behaviorPacksDir},
		{p.cfg.Resource, resourcePacksDir},
	}
	for _, t := range targets {
		dest := filepath.Join(p.cfg.WorldDir, t.dir, filepath.Base(t.pack.Root))
		res, err := p.publisher.PublishPackage(t.pack.Root, dest)
		if err != nil {
			return fmt.Errorf("%s: %w", t.pack.Name, err)
		}
		if len(res.Linked) > 0 {
			p.logger.Info("copied symlink targets", "pack", t.pack.Name, "links", len(res.Linked))
		}
		sum.Published = append(sum.Published, res)
	}
	return nil
}

func (p *Pipeline) stageDescriptors(_ context.Context, sum *Summary) error {
	bp, err := p.store.Load(manifest.PathIn(p.cfg.Behavior.Root))
	if err != nil {
		return err
	}
	rp, err := p.store.Load(manifest.PathIn(p.cfg.Resource.Root))
	if err != nil {
		return err
	}
	paths, err := p.publisher.WriteDescriptors(p.cfg.WorldDir, bp.Header, rp.Header)
	if err != nil {
		return err
	}
	for _, path := range paths {
		sum.Descriptors = append(sum.Descriptors, p.relative(path))
	}
	return nil
}

func (p *Pipeline) stageCache(ctx context.Context, sum *Summary) error {
	if p.cfg.SkipCache {
		sum.Cache = &cache.Result{Skipped: "disabled"}
		return nil
	}
	res, err := p.invalidator.Invalidate(ctx)
	if err != nil {
		return err
	}
	sum.Cache = res
	p.recorder.AddCacheRemoved(len(res.Removed))
	for _, f := range res.Failures {
		sum.Warnings = append(sum.Warnings, fmt.Sprintf("could not clear %s: %v", f.Path, f.Err))
	}
	return nil
}

func (p *Pipeline) relative(path string) string {
	if p.cfg.ProjectRoot == "" {
		return path
	}
	rel, err := filepath.Rel(p.cfg.ProjectRoot, path)
	if err != nil {
		return path
	}
	return rel
}

func (noopObserver) OnStageStart(StageName)                                    {}
func (noopObserver) OnStageComplete(StageName, time.Duration, *Summary, error) {}
