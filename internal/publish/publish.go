// SPDX-License-Identifier: MPL-2.0

package publish

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
)

var (
	// ErrOverlap is returned when the source and destination trees nest.
	ErrOverlap = errors.New("source and destination overlap")
	// ErrSymlinkLoop is returned when a linked directory points back into its own ancestry.
	ErrSymlinkLoop = errors.New("symlink loop")
)

type (
	// Result describes one published pack.
	Result struct {
		Source string
		Dest   string
		// Files is the number of regular files copied, including link targets.
		Files int
		// Linked lists source paths that were symlinks and had their targets copied.
		Linked []string
		// Replaced reports whether a previous copy was removed.
		Replaced bool
	}

	// Publisher copies packs into a world directory.
	Publisher struct {
		fs     afero.Fs
		logger *log.Logger
	}
)

// New creates a Publisher. A nil logger discards output.
func New(fs afero.Fs, logger *log.Logger) *Publisher {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Publisher{fs: fs, logger: logger}
}

// PublishPackage removes dest wholesale and copies the src tree into it.
// Symlinks in src are followed and their targets copied. Nothing is merged
// with a previous copy.
func (p *Publisher) PublishPackage(src, dest string) (*Result, error) {
	src = filepath.Clean(src)
	dest = filepath.Clean(dest)
	if nested(src, dest) || nested(dest, src) {
		return nil, fmt.Errorf("%w: %s and %s", ErrOverlap, src, dest)
	}

	info, err := p.fs.Stat(src)
	if err != nil {
		return nil, fmt.Errorf("failed to stat pack source: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("pack source %s is not a directory", src)
	}

	res := &Result{Source: src, Dest: dest}
	if _, err := p.fs.Stat(dest); err == nil {
		if err := p.fs.RemoveAll(dest); err != nil {
			return nil, fmt.Errorf("failed to remove previous copy %s: %w", dest, err)
		}
		res.Replaced = true
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat destination: %w", err)
	}

	if err := p.fs.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create destination parent: %w", err)
	}

	if err = p.copyDir(res, src, dest); err != nil {
		return nil, fmt.Errorf("failed to copy %s to %s: %w", src, dest, err)
	}

	p.logger.Debug("published pack", "path", dest, "files", res.Files, "replaced", res.Replaced)
	return res, nil
}

// copyDir recursively copies a directory, following symlinks.
func (p *Publisher) copyDir(res *Result, src, dst string) error {
	srcInfo, err := p.fs.Stat(src)
	if err != nil {
		return err
	}
	if err := p.fs.MkdirAll(dst, srcInfo.Mode().Perm()|0o700); err != nil {
		return err
	}

	entries, err := afero.ReadDir(p.fs, src)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())

		if entry.Mode()&os.ModeSymlink != 0 {
			if entry, err = p.follow(srcPath); err != nil {
				return err
			}
			res.Linked = append(res.Linked, srcPath)
		}

		if entry.IsDir() {
			if err := p.copyDir(res, srcPath, dstPath); err != nil {
				return err
			}
			continue
		}
		if !entry.Mode().IsRegular() {
			p.logger.Warn("skipping irregular file", "path", srcPath, "mode", entry.Mode())
			continue
		}
		if err := p.copyFile(srcPath, dstPath, entry.Mode().Perm()); err != nil {
			return err
		}
		res.Files++
	}
	return nil
}

// follow stats the target of the link at path. A directory link whose
// target contains the link itself is rejected.
func (p *Publisher) follow(path string) (os.FileInfo, error) {
	info, err := p.fs.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("broken symlink %s: %w", path, err)
	}
	if !info.IsDir() {
		return info, nil
	}
	reader, ok := p.fs.(afero.LinkReader)
	if !ok {
		return info, nil
	}
	target, err := reader.ReadlinkIfPossible(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read symlink %s: %w", path, err)
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(path), target)
	}
	if nested(filepath.Clean(target), path) {
		return nil, fmt.Errorf("%w: %s points to %s", ErrSymlinkLoop, path, target)
	}
	return info, nil
}

func (p *Publisher) copyFile(src, dst string, perm os.FileMode) error {
	in, err := p.fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := p.fs.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// nested reports whether child equals parent or lies beneath it.
func nested(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
