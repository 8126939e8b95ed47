// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/questsystem/packdeploy/internal/cache"
	"github.com/questsystem/packdeploy/internal/config"
	"github.com/questsystem/packdeploy/internal/issue"
	"github.com/questsystem/packdeploy/internal/lifecycle"
	"github.com/questsystem/packdeploy/internal/pipeline"
	"github.com/questsystem/packdeploy/internal/publish"
	"github.com/questsystem/packdeploy/internal/testutil"
	"github.com/questsystem/packdeploy/pkg/types"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
)

const projectRoot = "/proj"

type (
	staticProvider struct {
		loaded *config.Loaded
		err    error
	}

	fakeHost struct {
		running bool
		killed  int
	}

	harness struct {
		app     *App
		fs      afero.Fs
		host    *fakeHost
		project testutil.Project
		stdout  *bytes.Buffer
		stderr  *bytes.Buffer
	}
)

func (p staticProvider) Load(context.Context, config.LoadOptions) (*config.Loaded, error) {
	return p.loaded, p.err
}

func (h *fakeHost) Running(context.Context, string) (bool, error) { return h.running, nil }

func (h *fakeHost) Kill(context.Context, string) (int, error) {
	h.killed++
	h.running = false
	return 1, nil
}

func (h *fakeHost) Supported() bool { return true }

func newHarness(t *testing.T, stdin string) *harness {
	t.Helper()

	fs := afero.NewMemMapFs()
	project := testutil.NewProject(t, fs, projectRoot)

	cfg := config.DefaultConfig()
	cfg.Server.SettleDelay = 0
	h := &harness{
		fs:      fs,
		host:    &fakeHost{},
		project: project,
		stdout:  &bytes.Buffer{},
		stderr:  &bytes.Buffer{},
	}
	h.app = NewApp(Dependencies{
		Config: staticProvider{loaded: &config.Loaded{Config: cfg.Resolve(projectRoot)}},
		FS:     fs,
		Host:   h.host,
		Invalidator: func(afero.Fs, cache.Config, *log.Logger) cache.Invalidator {
			return cache.Noop{Reason: cache.SkipUnsupported}
		},
		Home:   func() (string, error) { return "/home/player", nil },
		Stdin:  strings.NewReader(stdin),
		Stdout: h.stdout,
		Stderr: h.stderr,
	})
	return h
}

func (h *harness) run(args ...string) error {
	root := NewRootCommand(h.app)
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

func exitCode(t *testing.T, err error) types.ExitCode {
	t.Helper()
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("error %v is not an *ExitError", err)
	}
	return exitErr.Code
}

func TestDeploy_FullRun(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "")
	if err := h.run("deploy"); err != nil {
		t.Fatalf("deploy failed: %v\nstderr:\n%s", err, h.stderr)
	}

	out := h.stdout.String()
	for _, want := range []string{
		"Server is not running",
		"packs/QuestSystemBP/manifest.json",
		"packs/QuestSystemRP/textures/item_texture.json",
		"2.0.2",
		"1.2.4",
		"Dependency entry",
		"world_behavior_packs.json",
		"N/A (non-Windows)",
		"Deployment complete",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	for _, p := range []string{
		filepath.Join(h.project.World, "behavior_packs", "QuestSystemBP", "manifest.json"),
		filepath.Join(h.project.World, "resource_packs", "QuestSystemRP", "texts", "en_US.lang"),
		filepath.Join(h.project.World, publish.BehaviorDescriptorFile),
		filepath.Join(h.project.World, publish.ResourceDescriptorFile),
	} {
		if ok, _ := afero.Exists(h.fs, p); !ok {
			t.Errorf("%s was not written", p)
		}
	}
}

func TestRoot_DeploysByDefault(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "")
	if err := h.run("--skip-cache"); err != nil {
		t.Fatalf("root command failed: %v", err)
	}
	if !strings.Contains(h.stdout.String(), "Deployment complete") {
		t.Errorf("root command should deploy:\n%s", h.stdout)
	}
	if !strings.Contains(h.stdout.String(), "N/A (disabled)") {
		t.Errorf("--skip-cache should be reported:\n%s", h.stdout)
	}
}

func TestDeploy_CancelLeavesProjectUntouched(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "")
	h.host.running = true
	if err := h.run("deploy", "--choice", "cancel"); err != nil {
		t.Fatalf("cancel should exit 0, got %v", err)
	}

	if !strings.Contains(h.stdout.String(), "nothing was modified") {
		t.Errorf("output should confirm cancellation:\n%s", h.stdout)
	}
	if got := testutil.ReadFile(t, h.fs, filepath.Join(h.project.Behavior, "manifest.json")); got != testutil.BehaviorManifest {
		t.Error("behavior manifest was modified by a cancelled run")
	}
	if h.host.killed != 0 {
		t.Error("cancel must not stop the server")
	}
	published := filepath.Join(h.project.World, "behavior_packs", "QuestSystemBP")
	if ok, _ := afero.Exists(h.fs, published); ok {
		t.Error("a cancelled run must not publish")
	}
}

func TestDeploy_StopFromPrompt(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "bogus\n2\n")
	h.host.running = true
	if err := h.run("deploy"); err != nil {
		t.Fatalf("deploy failed: %v\nstderr:\n%s", err, h.stderr)
	}
	if h.host.killed != 1 {
		t.Errorf("killed = %d, want 1", h.host.killed)
	}
	if !strings.Contains(h.stdout.String(), "Server stopped") {
		t.Errorf("output should report the stop:\n%s", h.stdout)
	}
}

func TestDeploy_YesStop(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "")
	h.host.running = true
	if err := h.run("deploy", "--yes-stop"); err != nil {
		t.Fatalf("deploy failed: %v", err)
	}
	if h.host.killed != 1 {
		t.Errorf("killed = %d, want 1", h.host.killed)
	}
}

func TestDeploy_ValidationFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "")
	bad := filepath.Join(h.project.Behavior, "entities", "broken.json")
	testutil.WriteFiles(t, h.fs, map[string]string{bad: `{"format_version": `})

	err := h.run("deploy")
	if code := exitCode(t, err); code != types.ExitFailure {
		t.Errorf("exit code = %d, want %d", code, types.ExitFailure)
	}
	if !errors.Is(err, pipeline.ErrValidationFailed) {
		t.Errorf("error should wrap ErrValidationFailed: %v", err)
	}
	if !strings.Contains(h.stdout.String(), "packs/QuestSystemBP/entities/broken.json") {
		t.Errorf("offending file should be listed:\n%s", h.stdout)
	}
	if !strings.Contains(h.stderr.String(), "stage validate") {
		t.Errorf("failure should name the stage:\n%s", h.stderr)
	}
	if got := testutil.ReadFile(t, h.fs, filepath.Join(h.project.Behavior, "manifest.json")); got != testutil.BehaviorManifest {
		t.Error("behavior manifest was modified despite validation failure")
	}
}

func TestDeploy_MarkdownOutput(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "")
	if err := h.run("deploy", "--output", "markdown"); err != nil {
		t.Fatalf("deploy failed: %v", err)
	}
	if !strings.Contains(h.stdout.String(), "# Deployment complete") {
		t.Errorf("markdown summary missing:\n%s", h.stdout)
	}
}

func TestDeploy_MetricsFile(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "")
	path := filepath.Join(t.TempDir(), "deploy.prom")
	if err := h.run("deploy", "--metrics-file", path); err != nil {
		t.Fatalf("deploy failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("metrics file not written: %v", err)
	}
	if !strings.Contains(string(data), "packdeploy_") {
		t.Errorf("metrics file has no packdeploy metrics:\n%s", data)
	}
}

func TestDeploy_BadFlags(t *testing.T) {
	t.Parallel()

	for _, args := range [][]string{
		{"deploy", "--choice", "later"},
		{"deploy", "--output", "yaml"},
	} {
		h := newHarness(t, "")
		if code := exitCode(t, h.run(args...)); code != types.ExitConfig {
			t.Errorf("%v: exit code = %d, want %d", args, code, types.ExitConfig)
		}
	}
}

func TestConfigErrorExitCode(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "")
	h.app.Config = staticProvider{err: issue.NewErrorContext().
		WithOperation("load configuration").
		WithSuggestion("Check the file").
		Wrap(errors.New("boom")).
		BuildError()}

	for _, args := range [][]string{{"deploy"}, {"validate"}, {"status"}, {"config", "show"}} {
		h.stderr.Reset()
		if code := exitCode(t, h.run(args...)); code != types.ExitConfig {
			t.Errorf("%v: exit code = %d, want %d", args, code, types.ExitConfig)
		}
		if !strings.Contains(h.stderr.String(), "Check the file") {
			t.Errorf("%v: suggestions missing from:\n%s", args, h.stderr)
		}
	}
}

func TestValidateCommand(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "")
	if err := h.run("validate"); err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if !strings.Contains(h.stdout.String(), "All packs are valid") {
		t.Errorf("output:\n%s", h.stdout)
	}

	testutil.WriteFiles(t, h.fs, map[string]string{
		filepath.Join(h.project.Resource, "textures", "terrain_texture.json"): `{} {}`,
	})
	err := h.run("validate")
	if code := exitCode(t, err); code != types.ExitFailure {
		t.Errorf("exit code = %d, want %d", code, types.ExitFailure)
	}
	var ae *issue.ActionableError
	if !errors.As(err, &ae) || ae.Issue != issue.ValidationFailedId {
		t.Errorf("error should link the validation issue: %v", err)
	}
}

func TestStatusCommand(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "")
	if err := h.run("status"); err != nil {
		t.Fatalf("status failed on a bound fixture: %v\n%s", err, h.stderr)
	}
	out := h.stdout.String()
	for _, want := range []string{testutil.BehaviorUUID, "2.0.1", "ok", "is not running"} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}

	// Rotating the behavior pack alone breaks the binding.
	testutil.WriteFiles(t, h.fs, map[string]string{
		filepath.Join(h.project.Behavior, "manifest.json"): strings.Replace(
			testutil.BehaviorManifest, testutil.BehaviorUUID, "00000000-0000-4000-8000-000000000000", 1),
	})
	if code := exitCode(t, h.run("status")); code != types.ExitFailure {
		t.Errorf("exit code = %d, want %d", code, types.ExitFailure)
	}
}

func TestConfigShow(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "")
	if err := h.run("config", "show"); err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	for _, want := range []string{"project_root:", "countdown:", "[30, 20, 10, 5, 3, 2, 1, 0]"} {
		if !strings.Contains(h.stdout.String(), want) {
			t.Errorf("config show missing %q:\n%s", want, h.stdout)
		}
	}
	if !strings.Contains(h.stderr.String(), "(using defaults)") {
		t.Errorf("config source line missing:\n%s", h.stderr)
	}
}

func TestConfigInit(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "")
	dir := t.TempDir()
	if err := h.run("--project", dir, "config", "init"); err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, config.FileName())); err != nil {
		t.Fatalf("config file not created: %v", err)
	}
	if err := h.run("--project", dir, "config", "init"); err != nil {
		t.Fatalf("second config init failed: %v", err)
	}
	if !strings.Contains(h.stdout.String(), "already exists") {
		t.Errorf("second init should not overwrite:\n%s", h.stdout)
	}
}

func TestStageIssue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		stage pipeline.StageName
		err   error
		want  issue.Id
	}{
		{pipeline.StageLifecycle, nil, issue.ServerControlFailedId},
		{pipeline.StageValidate, nil, issue.ValidationFailedId},
		{pipeline.StageRotate, os.ErrNotExist, issue.PackNotFoundId},
		{pipeline.StageRotate, errors.New("bad"), issue.ManifestInvalidId},
		{pipeline.StageSync, nil, issue.DependencyUnboundId},
		{pipeline.StageDescriptors, nil, issue.PublishFailedId},
		{pipeline.StageCache, nil, issue.CacheClearFailedId},
		{"", nil, 0},
	}
	for _, tt := range tests {
		if got := stageIssue(tt.stage, tt.err); got != tt.want {
			t.Errorf("stageIssue(%q, %v) = %d, want %d", tt.stage, tt.err, got, tt.want)
		}
	}
}

func TestRelPath(t *testing.T) {
	t.Parallel()

	root := filepath.FromSlash("/proj")
	tests := []struct{ path, want string }{
		{filepath.FromSlash("/proj/packs/BP/manifest.json"), "packs/BP/manifest.json"},
		{filepath.FromSlash("/elsewhere/file.json"), filepath.FromSlash("/elsewhere/file.json")},
	}
	for _, tt := range tests {
		if got := relPath(root, tt.path); got != tt.want {
			t.Errorf("relPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
	if got := relPath("", "x"); got != "x" {
		t.Errorf("relPath with empty root = %q", got)
	}
}

func TestPrompterSelection(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "")
	if _, ok := h.app.prompter().(*lifecycle.TextPrompter); !ok {
		t.Errorf("non-terminal input should use the text prompter, got %T", h.app.prompter())
	}
	h.app.Prompter = &lifecycle.SelectPrompter{}
	if _, ok := h.app.prompter().(*lifecycle.SelectPrompter); !ok {
		t.Error("an injected prompter should win")
	}
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestValidateWatch(t *testing.T) {
	t.Parallel()

	fs := afero.NewOsFs()
	project := testutil.NewProject(t, fs, t.TempDir())
	cfg := config.DefaultConfig()
	stdout := &lockedBuffer{}
	app := NewApp(Dependencies{
		Config: staticProvider{loaded: &config.Loaded{Config: cfg.Resolve(project.Root)}},
		FS:     fs,
		Host:   &fakeHost{},
		Stdin:  strings.NewReader(""),
		Stdout: stdout,
		Stderr: &lockedBuffer{},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		root := NewRootCommand(app)
		root.SetArgs([]string{"validate", "--watch"})
		done <- root.ExecuteContext(ctx)
	}()

	waitFor := func(want string) {
		t.Helper()
		deadline := time.Now().Add(5 * time.Second)
		for !strings.Contains(stdout.String(), want) {
			if time.Now().After(deadline) {
				cancel()
				t.Fatalf("output never contained %q:\n%s", want, stdout.String())
			}
			time.Sleep(20 * time.Millisecond)
		}
	}

	waitFor("Watching both packs")
	testutil.WriteFiles(t, fs, map[string]string{
		filepath.Join(project.Behavior, "entities", "quest_npc.json"): `{"broken": `,
	})
	waitFor("changed: packs/QuestSystemBP/entities/quest_npc.json")
	waitFor("1 invalid")

	cancel()
	if err := <-done; err != nil {
		t.Errorf("watch mode should exit cleanly on interrupt, got %v", err)
	}
}

func TestGetVersionString(t *testing.T) {
	// Mutates package-level version variables; not parallel.
	origVersion, origCommit, origDate := Version, Commit, BuildDate
	t.Cleanup(func() { Version, Commit, BuildDate = origVersion, origCommit, origDate })

	Version = "dev"
	if got := getVersionString(); got != "dev (built from source)" {
		t.Errorf("getVersionString() = %q", got)
	}

	Version, Commit, BuildDate = "v1.4.0", "abc1234", "2026-10-01"
	if got := getVersionString(); got != "v1.4.0 (commit: abc1234, built: 2026-10-01)" {
		t.Errorf("getVersionString() = %q", got)
	}
}
