// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/questsystem/packdeploy/internal/cache"
	"github.com/questsystem/packdeploy/internal/depsync"
	"github.com/questsystem/packdeploy/internal/lifecycle"
	"github.com/questsystem/packdeploy/internal/publish"
	"github.com/questsystem/packdeploy/internal/testutil"
	"github.com/questsystem/packdeploy/internal/validate"
	"github.com/questsystem/packdeploy/pkg/manifest"

	"github.com/spf13/afero"
)

type (
	fakeGate struct {
		state lifecycle.State
		calls int
	}

	fakeInvalidator struct {
		calls int
		res   *cache.Result
	}

	recordingObserver struct {
		started   []StageName
		completed []StageName
	}
)

func (g *fakeGate) Gate(context.Context) (*lifecycle.Outcome, error) {
	g.calls++
	return &lifecycle.Outcome{State: g.state, Running: g.state != lifecycle.StateNotRunning}, nil
}

func (f *fakeInvalidator) Invalidate(context.Context) (*cache.Result, error) {
	f.calls++
	if f.res != nil {
		return f.res, nil
	}
	return &cache.Result{Cleared: true, Removed: []string{"/cache/minecraftpe"}}, nil
}

func (o *recordingObserver) OnStageStart(s StageName) { o.started = append(o.started, s) }

func (o *recordingObserver) OnStageComplete(s StageName, _ time.Duration, _ *Summary, _ error) {
	o.completed = append(o.completed, s)
}

type fixture struct {
	fs      afero.Fs
	project testutil.Project
	cfg     Config
	gate    *fakeGate
	inv     *fakeInvalidator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fs := afero.NewMemMapFs()
	proj := testutil.NewProject(t, fs, "/project")
	return &fixture{
		fs:      fs,
		project: proj,
		cfg: Config{
			ProjectRoot: proj.Root,
			Behavior:    validate.Pack{Name: "Behavior Pack", Root: proj.Behavior},
			Resource:    validate.Pack{Name: "Resource Pack", Root: proj.Resource},
			WorldDir:    proj.World,
		},
		gate: &fakeGate{state: lifecycle.StateNotRunning},
		inv:  &fakeInvalidator{},
	}
}

func (f *fixture) run(t *testing.T, opts ...Option) (*Summary, error) {
	t.Helper()
	p, err := New(f.cfg, f.fs, f.gate, f.inv, opts...)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return p.Run(context.Background())
}

// snapshot returns every file under root with its content.
func snapshot(t *testing.T, fs afero.Fs, root string) map[string]string {
	t.Helper()
	files := make(map[string]string)
	err := afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		files[path] = testutil.ReadFile(t, fs, path)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return files
}

func TestRun_FullDeployment(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	obs := &recordingObserver{}
	sum, err := f.run(t, WithObserver(obs))
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if !slices.Equal(sum.Completed, Stages()) {
		t.Errorf("Completed = %v, want %v", sum.Completed, Stages())
	}
	if !slices.Equal(obs.started, Stages()) || !slices.Equal(obs.completed, Stages()) {
		t.Errorf("observer saw %v / %v", obs.started, obs.completed)
	}

	store := manifest.NewStore(f.fs)
	bp, err := store.Load(manifest.PathIn(f.project.Behavior))
	if err != nil {
		t.Fatal(err)
	}
	rp, err := store.Load(manifest.PathIn(f.project.Resource))
	if err != nil {
		t.Fatal(err)
	}

	if bp.Header.Version != (manifest.Version{2, 0, 2}) || rp.Header.Version != (manifest.Version{1, 2, 4}) {
		t.Errorf("versions = %v, %v", bp.Header.Version, rp.Header.Version)
	}
	if bp.Header.UUID == testutil.BehaviorUUID || rp.Header.UUID == testutil.ResourceUUID {
		t.Error("header uuids were not rotated")
	}

	// The resource pack's dependency is bound to the behavior pack's new identity.
	dep := rp.Dependencies[0]
	if dep.UUID != bp.Header.UUID || dep.Version.Triple != bp.Header.Version {
		t.Errorf("dependency = %s@%s, want %s@%s", dep.UUID, dep.Version, bp.Header.UUID, bp.Header.Version)
	}
	if sum.Dependency.Outcome != depsync.OutcomeUpdated {
		t.Errorf("dependency outcome = %s", sum.Dependency.Outcome)
	}

	// Published copies match the rotated sources.
	published := filepath.Join(f.project.World, "behavior_packs", "QuestSystemBP", "manifest.json")
	if got, want := testutil.ReadFile(t, f.fs, published), testutil.ReadFile(t, f.fs, manifest.PathIn(f.project.Behavior)); got != want {
		t.Error("published behavior manifest differs from source")
	}
	if _, err := f.fs.Stat(filepath.Join(f.project.World, "resource_packs", "QuestSystemRP", "texts", "en_US.lang")); err != nil {
		t.Errorf("resource pack not published: %v", err)
	}

	pub := publish.New(f.fs, nil)
	descs, err := pub.ReadDescriptors(filepath.Join(f.project.World, publish.BehaviorDescriptorFile))
	if err != nil {
		t.Fatal(err)
	}
	if len(descs) != 1 || descs[0].PackID != bp.Header.UUID || descs[0].Version != bp.Header.Version {
		t.Errorf("behavior descriptor = %+v", descs)
	}

	if f.inv.calls != 1 || sum.CacheStatus() != "Yes" {
		t.Errorf("cache calls = %d status = %s", f.inv.calls, sum.CacheStatus())
	}
	if sum.WorldDir != filepath.Join("worlds", "Super Quester World") {
		t.Errorf("WorldDir = %q", sum.WorldDir)
	}
	if sum.FilesValidated() != 4 {
		t.Errorf("FilesValidated() = %d, want 4", sum.FilesValidated())
	}
}

func TestRun_ValidationGateBlocksEveryMutation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	testutil.WriteFiles(t, f.fs, map[string]string{
		filepath.Join(f.project.Resource, "ui", "broken.json"): `{"controls": [}`,
	})
	before := snapshot(t, f.fs, f.project.Root)

	sum, err := f.run(t)
	if !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("Run() error = %v, want ErrValidationFailed", err)
	}
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageValidate {
		t.Errorf("error = %v, want a validate StageError", err)
	}
	if sum.Failed != StageValidate {
		t.Errorf("Failed = %s", sum.Failed)
	}

	after := snapshot(t, f.fs, f.project.Root)
	if len(before) != len(after) {
		t.Errorf("file count changed: %d -> %d", len(before), len(after))
	}
	for path, content := range before {
		if after[path] != content {
			t.Errorf("%s was modified", path)
		}
	}
	if f.inv.calls != 0 {
		t.Error("cache invalidated despite validation failure")
	}
}

func TestRun_CancelTouchesNothing(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.gate.state = lifecycle.StateCancelled
	before := snapshot(t, f.fs, f.project.Root)

	sum, err := f.run(t)
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("Run() error = %v, want ErrCancelled", err)
	}
	if !sum.Cancelled() {
		t.Error("Cancelled() = false")
	}
	if sum.Reports != nil {
		t.Error("validator ran after cancellation")
	}
	if len(sum.Completed) != 0 {
		t.Errorf("Completed = %v", sum.Completed)
	}

	after := snapshot(t, f.fs, f.project.Root)
	for path, content := range before {
		if after[path] != content {
			t.Errorf("%s was modified", path)
		}
	}
	if f.inv.calls != 0 {
		t.Error("cache invalidated after cancellation")
	}
}

func TestRun_SuccessiveRunsIncrease(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	first, err := f.run(t)
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.run(t)
	if err != nil {
		t.Fatal(err)
	}

	if first.Behavior.NewVersion.Patch() != 2 || second.Behavior.NewVersion.Patch() != 3 {
		t.Errorf("behavior patches = %d, %d", first.Behavior.NewVersion.Patch(), second.Behavior.NewVersion.Patch())
	}
	if first.Resource.NewVersion.Patch() != 4 || second.Resource.NewVersion.Patch() != 5 {
		t.Errorf("resource patches = %d, %d", first.Resource.NewVersion.Patch(), second.Resource.NewVersion.Patch())
	}
	if first.Behavior.NewUUID == second.Behavior.NewUUID || first.Resource.NewUUID == second.Resource.NewUUID {
		t.Error("identity reused across runs")
	}
	if second.Behavior.OldUUID != first.Behavior.NewUUID {
		t.Error("second run did not start from the first run's identity")
	}
	if second.Dependency.Outcome != depsync.OutcomeUpdated {
		t.Errorf("second run dependency outcome = %s", second.Dependency.Outcome)
	}
}

func TestRun_MissingDependency(t *testing.T) {
	t.Parallel()

	rpNoDep := strings.Replace(testutil.ResourceManifest,
		`{"uuid": "a1b2c3d4-e5f6-4a7b-8c9d-0e1f2a3b4c5d", "version": [2, 0, 1]}`,
		`{"module_name": "@minecraft/server-ui", "version": "1.2.0"}`, 1)

	t.Run("warns by default", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		testutil.WriteFiles(t, f.fs, map[string]string{manifest.PathIn(f.project.Resource): rpNoDep})

		sum, err := f.run(t)
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
		if sum.Dependency.Outcome != depsync.OutcomeMissing {
			t.Errorf("outcome = %s", sum.Dependency.Outcome)
		}
		if len(sum.Warnings) != 1 || !strings.Contains(sum.Warnings[0], "missing") {
			t.Errorf("Warnings = %v", sum.Warnings)
		}
	})

	t.Run("fails when strict", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.cfg.StrictDependency = true
		testutil.WriteFiles(t, f.fs, map[string]string{manifest.PathIn(f.project.Resource): rpNoDep})

		sum, err := f.run(t)
		if !errors.Is(err, depsync.ErrDependencyMissing) {
			t.Fatalf("Run() error = %v, want ErrDependencyMissing", err)
		}
		if sum.Failed != StageSync {
			t.Errorf("Failed = %s", sum.Failed)
		}
		// No rollback: the rotation already happened.
		if !slices.Contains(sum.Completed, StageRotate) || slices.Contains(sum.Completed, StagePublish) {
			t.Errorf("Completed = %v", sum.Completed)
		}
		if exists, _ := afero.DirExists(f.fs, filepath.Join(f.project.World, "behavior_packs")); exists {
			t.Error("published after a failed stage")
		}
	})
}

func TestRun_CacheVariants(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		skip      bool
		res       *cache.Result
		want      string
		wantCalls int
		wantWarn  int
	}{
		{"skipped by config", true, nil, "N/A (disabled)", 0, 0},
		{"unsupported platform", false, &cache.Result{Skipped: cache.SkipUnsupported}, "N/A (non-Windows)", 1, 0},
		{"nothing found", false, &cache.Result{}, "No (not found)", 1, 0},
		{"partial failure", false, &cache.Result{Failures: []cache.Failure{{Path: "/c/minecraftpe", Err: errors.New("in use")}}}, "No (not found)", 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			f.cfg.SkipCache = tt.skip
			f.inv.res = tt.res

			sum, err := f.run(t)
			if err != nil {
				t.Fatal(err)
			}
			if got := sum.CacheStatus(); got != tt.want {
				t.Errorf("CacheStatus() = %q, want %q", got, tt.want)
			}
			if f.inv.calls != tt.wantCalls {
				t.Errorf("invalidator calls = %d, want %d", f.inv.calls, tt.wantCalls)
			}
			if len(sum.Warnings) != tt.wantWarn {
				t.Errorf("Warnings = %v", sum.Warnings)
			}
		})
	}
}

func TestRun_CancelledContext(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	p, err := New(f.cfg, f.fs, f.gate, f.inv)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := p.Run(ctx)
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageLifecycle || !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v", err)
	}
	if f.gate.calls != 0 || sum.Failed != StageLifecycle {
		t.Errorf("gate calls = %d failed = %s", f.gate.calls, sum.Failed)
	}
}
