// SPDX-License-Identifier: MPL-2.0

package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/questsystem/packdeploy/pkg/platform"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
)

// SkipUnsupported is the skip reason reported outside Windows.
const SkipUnsupported = "cache clearing is only supported on Windows"

type (
	// Invalidator removes host cache directories.
	Invalidator interface {
		Invalidate(ctx context.Context) (*Result, error)
	}

	// Root is a cache search root. With an empty Pattern, Base itself is the
	// folder holding the targets; otherwise every match of Pattern under Base
	// is.
	Root struct {
		Base    string
		Pattern string
	}

	// Config lists where to look and what to remove.
	Config struct {
		Roots   []Root
		Targets []string
	}

	// Failure records a target that could not be removed.
	Failure struct {
		Path string
		Err  error
	}

	// Result is the outcome of one invalidation.
	Result struct {
		// Cleared reports whether at least one directory was removed.
		Cleared bool
		Removed []string
		// Failures are logged and never fail the run.
		Failures []Failure
		// Skipped is non-empty when the invalidator did nothing by design.
		Skipped string
	}

	// FSInvalidator clears cache targets found under its roots.
	FSInvalidator struct {
		fs     afero.Fs
		cfg    Config
		logger *log.Logger
	}

	// Noop is the invalidator for unsupported platforms.
	Noop struct {
		Reason string
	}
)

// DefaultTargets are the folders removed inside every cache root.
func DefaultTargets() []string {
	return []string{"minecraftpe", "development_behavior_packs", "development_resource_packs"}
}

// DefaultRoots returns the known install locations beneath home: the launcher
// install with a per-user folder, then the UWP package store.
func DefaultRoots(home string) []Root {
	return []Root{
		{
			Base:    filepath.Join(home, "AppData", "Roaming", "Minecraft Bedrock"),
			Pattern: filepath.Join("Users", "*", "games", "com.mojang"),
		},
		{
			Base: filepath.Join(home, "AppData", "Local", "Packages",
				"Microsoft.MinecraftUWP_8wekyb3d8bbwe", "LocalState", "games", "com.mojang"),
		},
	}
}

// New returns the invalidator for the running platform.
func New(fs afero.Fs, cfg Config, logger *log.Logger) Invalidator {
	return ForPlatform(runtime.GOOS, fs, cfg, logger)
}

// ForPlatform returns the invalidator for goos.
func ForPlatform(goos string, fs afero.Fs, cfg Config, logger *log.Logger) Invalidator {
	if goos != platform.Windows {
		return Noop{Reason: SkipUnsupported}
	}
	return NewFSInvalidator(fs, cfg, logger)
}

// NewFSInvalidator creates an invalidator over fs. A nil logger discards
// output; empty targets fall back to DefaultTargets.
func NewFSInvalidator(fs afero.Fs, cfg Config, logger *log.Logger) *FSInvalidator {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if len(cfg.Targets) == 0 {
		cfg.Targets = DefaultTargets()
	}
	return &FSInvalidator{fs: fs, cfg: cfg, logger: logger}
}

// Invalidate implements Invalidator.
func (n Noop) Invalidate(context.Context) (*Result, error) {
	return &Result{Skipped: n.Reason}, nil
}

// Invalidate removes every existing target under every root. Removal errors
// are collected in the result; only cancellation is returned as an error.
func (c *FSInvalidator) Invalidate(ctx context.Context) (*Result, error) {
	res := &Result{}
	for _, root := range c.cfg.Roots {
		folders, err := c.folders(root)
		if err != nil {
			c.logger.Warn("could not search cache root", "path", root.Base, "err", err)
			continue
		}
		for _, folder := range folders {
			for _, target := range c.cfg.Targets {
				if err := ctx.Err(); err != nil {
					return res, err
				}
				c.remove(res, filepath.Join(folder, target))
			}
		}
	}

	res.Cleared = len(res.Removed) > 0
	if !res.Cleared {
		c.logger.Warn("no cache folders found in any known location")
	}
	return res, nil
}

// folders resolves a root to the directories holding cache targets.
func (c *FSInvalidator) folders(root Root) ([]string, error) {
	if !c.isDir(root.Base) {
		return nil, nil
	}
	if root.Pattern == "" {
		return []string{root.Base}, nil
	}

	matches, err := afero.Glob(c.fs, filepath.Join(root.Base, root.Pattern))
	if err != nil {
		return nil, fmt.Errorf("bad pattern %q: %w", root.Pattern, err)
	}
	dirs := matches[:0]
	for _, m := range matches {
		if c.isDir(m) {
			dirs = append(dirs, m)
		}
	}
	return dirs, nil
}

func (c *FSInvalidator) remove(res *Result, path string) {
	if _, err := c.fs.Stat(path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			res.Failures = append(res.Failures, Failure{Path: path, Err: err})
			c.logger.Warn("could not inspect cache folder", "path", path, "err", err)
		}
		return
	}
	if err := c.fs.RemoveAll(path); err != nil {
		res.Failures = append(res.Failures, Failure{Path: path, Err: err})
		c.logger.Warn("could not clear cache folder", "path", path, "err", err)
		return
	}
	res.Removed = append(res.Removed, path)
	c.logger.Info("cleared cache", "path", path)
}

func (c *FSInvalidator) isDir(path string) bool {
	info, err := c.fs.Stat(path)
	return err == nil && info.IsDir()
}
