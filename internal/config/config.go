// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/questsystem/packdeploy/internal/issue"
	"github.com/questsystem/packdeploy/pkg/cueutil"
	"github.com/questsystem/packdeploy/pkg/platform"

	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "packdeploy"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "packdeploy"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment overrides, e.g. PACKDEPLOY_DEPENDENCY_STRICT.
	EnvPrefix = "PACKDEPLOY"
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the user configuration directory for packdeploy using
// platform-specific conventions: Windows uses %APPDATA%, macOS uses
// ~/Library/Application Support, and Linux/others use $XDG_CONFIG_HOME
// (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string

	switch runtime.GOOS {
	case platform.Windows:
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case platform.Darwin:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// FileName returns the config file's base name.
func FileName() string {
	return ConfigFileName + "." + ConfigFileExt
}

// loadWithOptions performs option-driven config loading without mutating
// package-level state. The returned config is validated and resolved.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	if err := opts.Validate(); err != nil {
		return nil, "", err
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolvedPath, err := locate(opts)
	if err != nil {
		return nil, "", err
	}
	if resolvedPath != "" {
		if err := loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(resolvedPath).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithSuggestion("Run 'packdeploy config show' to see the default configuration").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Check PACKDEPLOY_* environment variables for stray values").
			WithSuggestion("The countdown must decrease strictly and end at 0").
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(err).
			BuildError()
	}

	base := opts.ProjectDir
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, "", fmt.Errorf("failed to get working directory: %w", err)
		}
		base = wd
	}

	return cfg.Resolve(base), resolvedPath, nil
}

// setDefaults registers every key so that AutomaticEnv can override it.
func setDefaults(v *viper.Viper, defaults *Config) {
	v.SetDefault("project_root", defaults.ProjectRoot)
	v.SetDefault("world_dir", defaults.WorldDir)
	v.SetDefault("packs.behavior.source", defaults.Packs.Behavior.Source)
	v.SetDefault("packs.behavior.name", defaults.Packs.Behavior.Name)
	v.SetDefault("packs.resource.source", defaults.Packs.Resource.Source)
	v.SetDefault("packs.resource.name", defaults.Packs.Resource.Name)
	v.SetDefault("cache.enabled", defaults.Cache.Enabled)
	v.SetDefault("cache.roots", defaults.Cache.Roots)
	v.SetDefault("cache.targets", defaults.Cache.Targets)
	v.SetDefault("server.process_name", defaults.Server.ProcessName)
	v.SetDefault("server.settle_delay", defaults.Server.SettleDelay)
	v.SetDefault("server.countdown", defaults.Server.Countdown)
	v.SetDefault("server.warning_template", defaults.Server.WarningTemplate)
	v.SetDefault("server.choice", defaults.Server.Choice)
	v.SetDefault("dependency.strict", defaults.Dependency.Strict)
	v.SetDefault("metrics_file", defaults.MetricsFile)
	v.SetDefault("ui.verbose", defaults.UI.Verbose)
	v.SetDefault("ui.output", string(defaults.UI.Output))
}

// locate picks the config file: the explicit path (which must exist), then
// the project directory, then the user configuration directory. An empty
// result means defaults only.
func locate(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Check that the file exists and is readable").
				WithSuggestion("Run 'packdeploy config init' to create one").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	projectDir := opts.ProjectDir
	if projectDir == "" {
		projectDir = "."
	}
	if p := filepath.Join(projectDir, FileName()); fileExists(p) {
		return p, nil
	}

	cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
	if err != nil {
		return "", err
	}
	if p := filepath.Join(cfgDir, FileName()); fileExists(p) {
		return p, nil
	}
	return "", nil
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}

	return ConfigDir()
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	schema, err := cueutil.NewSchema(configSchema, "#Config")
	if err != nil {
		return err
	}

	configMap, err := schema.DecodeCUE(data, path)
	if err != nil {
		return err
	}

	// Merge into Viper (preserves defaults, allows env overrides)
	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}

	return nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// WriteDefault writes the default configuration to path unless a file is
// already there. It reports whether a file was written.
func WriteDefault(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return false, fmt.Errorf("failed to write config file: %w", err)
	}

	return true, nil
}

// GenerateCUE generates a CUE representation of the configuration
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// packdeploy configuration\n")
	sb.WriteString("// Relative paths are resolved against project_root.\n\n")

	fmt.Fprintf(&sb, "project_root: %q\n", filepath.ToSlash(cfg.ProjectRoot))
	fmt.Fprintf(&sb, "world_dir:    %q\n", filepath.ToSlash(cfg.WorldDir))

	sb.WriteString("\npacks: {\n")
	writePack(&sb, "behavior", cfg.Packs.Behavior)
	writePack(&sb, "resource", cfg.Packs.Resource)
	sb.WriteString("}\n")

	sb.WriteString("\ncache: {\n")
	fmt.Fprintf(&sb, "\tenabled: %v\n", cfg.Cache.Enabled)
	if len(cfg.Cache.Roots) > 0 {
		sb.WriteString("\troots: [\n")
		for _, r := range cfg.Cache.Roots {
			if r.Pattern != "" {
				fmt.Fprintf(&sb, "\t\t{base: %q, pattern: %q},\n", filepath.ToSlash(r.Base), filepath.ToSlash(r.Pattern))
			} else {
				fmt.Fprintf(&sb, "\t\t{base: %q},\n", filepath.ToSlash(r.Base))
			}
		}
		sb.WriteString("\t]\n")
	}
	if len(cfg.Cache.Targets) > 0 {
		quoted := make([]string, len(cfg.Cache.Targets))
		for i, t := range cfg.Cache.Targets {
			quoted[i] = fmt.Sprintf("%q", t)
		}
		fmt.Fprintf(&sb, "\ttargets: [%s]\n", strings.Join(quoted, ", "))
	}
	sb.WriteString("}\n")

	sb.WriteString("\nserver: {\n")
	fmt.Fprintf(&sb, "\tprocess_name:     %q\n", cfg.Server.ProcessName)
	fmt.Fprintf(&sb, "\tsettle_delay:     %q\n", formatDuration(cfg.Server.SettleDelay))
	secs := make([]string, len(cfg.Server.Countdown))
	for i, s := range cfg.Server.Countdown {
		secs[i] = fmt.Sprint(s)
	}
	fmt.Fprintf(&sb, "\tcountdown:        [%s]\n", strings.Join(secs, ", "))
	fmt.Fprintf(&sb, "\twarning_template: %q\n", cfg.Server.WarningTemplate)
	if cfg.Server.Choice != "" {
		fmt.Fprintf(&sb, "\tchoice:           %q\n", cfg.Server.Choice)
	}
	sb.WriteString("}\n")

	sb.WriteString("\ndependency: {\n")
	fmt.Fprintf(&sb, "\tstrict: %v\n", cfg.Dependency.Strict)
	sb.WriteString("}\n")

	if cfg.MetricsFile != "" {
		fmt.Fprintf(&sb, "\nmetrics_file: %q\n", filepath.ToSlash(cfg.MetricsFile))
	}

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tverbose: %v\n", cfg.UI.Verbose)
	output := cfg.UI.Output
	if output == "" {
		output = OutputText
	}
	fmt.Fprintf(&sb, "\toutput:  %q\n", output)
	sb.WriteString("}\n")

	return sb.String()
}

func writePack(sb *strings.Builder, key string, p PackSource) {
	fmt.Fprintf(sb, "\t%s: {\n", key)
	fmt.Fprintf(sb, "\t\tsource: %q\n", filepath.ToSlash(p.Source))
	if p.Name != "" {
		fmt.Fprintf(sb, "\t\tname:   %q\n", p.Name)
	}
	sb.WriteString("\t}\n")
}

// formatDuration renders d in the unit form the schema accepts.
func formatDuration(d time.Duration) string {
	switch {
	case d%time.Minute == 0 && d != 0:
		return fmt.Sprintf("%dm", d/time.Minute)
	case d%time.Second == 0:
		return fmt.Sprintf("%ds", d/time.Second)
	default:
		return fmt.Sprintf("%dms", d/time.Millisecond)
	}
}
