// SPDX-License-Identifier: MPL-2.0

package validate

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/questsystem/packdeploy/pkg/cueutil"
	"github.com/questsystem/packdeploy/pkg/manifest"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
)

//go:embed manifest_schema.cue
var manifestSchema string

var (
	// ErrPackNotFound is reported when a pack root does not exist or is not a directory.
	ErrPackNotFound = errors.New("pack directory not found")
	// ErrTrailingData is reported when a JSON document is followed by more content.
	ErrTrailingData = errors.New("unexpected data after top-level value")
	// ErrManifestMissing is reported when a pack has no manifest.json at its root.
	ErrManifestMissing = errors.New("missing manifest.json")
)

type (
	// Pack names a pack tree to validate.
	Pack struct {
		// Name is a display name, e.g. "Behavior Pack".
		Name string
		// Root is the pack's source directory.
		Root string
	}

	// FileError describes one offending file.
	FileError struct {
		// Path is the file path as walked (rooted at the pack root).
		Path string
		// Line and Column locate a syntax error (1-based), zero when unknown.
		Line   int
		Column int
		Err    error
	}

	// Report is the verdict for one pack.
	Report struct {
		Pack Pack
		// Files lists every JSON file that was checked, in walk order.
		Files   []string
		Invalid []FileError
	}

	// Validator walks pack trees and checks their JSON files.
	Validator struct {
		fs     afero.Fs
		schema *cueutil.Schema
		logger *log.Logger
	}

	// Option configures a Validator.
	Option func(*Validator)
)

// WithLogger sets the logger used for per-file debug output.
func WithLogger(l *log.Logger) Option {
	return func(v *Validator) { v.logger = l }
}

// New creates a Validator reading from fs.
func New(fs afero.Fs, opts ...Option) (*Validator, error) {
	schema, err := cueutil.NewSchema(manifestSchema, "#Manifest")
	if err != nil {
		return nil, err
	}
	v := &Validator{
		fs:     fs,
		schema: schema,
		logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Error implements the error interface.
func (e FileError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %v", e.Path, e.Line, e.Column, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e FileError) Unwrap() error { return e.Err }

// Valid reports whether every checked file passed.
func (r *Report) Valid() bool { return len(r.Invalid) == 0 }

// Err returns nil for a valid report, or a joined error of every offending file.
func (r *Report) Err() error {
	if r.Valid() {
		return nil
	}
	errs := make([]error, len(r.Invalid))
	for i, fe := range r.Invalid {
		errs[i] = fe
	}
	return errors.Join(errs...)
}

// IsJSONFile reports whether name has a .json extension (case-insensitive).
func IsJSONFile(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".json")
}

// ValidatePackage checks every JSON file under pack.Root. Unreadable or
// malformed files are recorded in the report rather than returned as errors,
// so one bad file never hides another.
func (v *Validator) ValidatePackage(pack Pack) *Report {
	report := &Report{Pack: pack}

	info, err := v.fs.Stat(pack.Root)
	if err != nil || !info.IsDir() {
		report.Invalid = append(report.Invalid, FileError{Path: pack.Root, Err: ErrPackNotFound})
		return report
	}

	var files []string
	walkErr := afero.Walk(v.fs, pack.Root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			report.Invalid = append(report.Invalid, FileError{Path: path, Err: err})
			return nil
		}
		if info.IsDir() || !IsJSONFile(info.Name()) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if walkErr != nil {
		report.Invalid = append(report.Invalid, FileError{Path: pack.Root, Err: walkErr})
	}
	sort.Strings(files)
	report.Files = files

	for _, path := range files {
		if fe, ok := v.checkFile(path); !ok {
			v.logger.Debug("invalid json", "pack", pack.Name, "path", path, "err", fe.Err)
			report.Invalid = append(report.Invalid, fe)
			continue
		}
		v.logger.Debug("valid json", "pack", pack.Name, "path", path)
	}

	manifestPath := manifest.PathIn(pack.Root)
	exists, err := afero.Exists(v.fs, manifestPath)
	switch {
	case err != nil:
		report.Invalid = append(report.Invalid, FileError{Path: manifestPath, Err: err})
	case !exists:
		report.Invalid = append(report.Invalid, FileError{Path: manifestPath, Err: ErrManifestMissing})
	case !report.hasInvalid(manifestPath):
		if fe, ok := v.checkManifest(manifestPath); !ok {
			report.Invalid = append(report.Invalid, fe)
		}
	}

	return report
}

// ValidateAll validates each pack and reports whether all of them passed.
// Every pack is validated even when an earlier one fails, so the operator
// sees the full list of offending files in one run.
func (v *Validator) ValidateAll(packs ...Pack) ([]*Report, bool) {
	reports := make([]*Report, 0, len(packs))
	ok := true
	for _, p := range packs {
		r := v.ValidatePackage(p)
		if !r.Valid() {
			ok = false
		}
		reports = append(reports, r)
	}
	return reports, ok
}

func (v *Validator) checkFile(path string) (FileError, bool) {
	data, err := afero.ReadFile(v.fs, path)
	if err != nil {
		return FileError{Path: path, Err: err}, false
	}
	if err := checkJSON(data); err != nil {
		fe := FileError{Path: path, Err: err}
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			fe.Line, fe.Column = position(data, syntaxErr.Offset)
		}
		return fe, false
	}
	return FileError{}, true
}

func (v *Validator) checkManifest(path string) (FileError, bool) {
	data, err := afero.ReadFile(v.fs, path)
	if err != nil {
		return FileError{Path: path, Err: err}, false
	}
	if err := v.schema.ValidateJSON(data, path); err != nil {
		return FileError{Path: path, Err: err}, false
	}
	m, err := manifest.Parse(data)
	if err != nil {
		return FileError{Path: path, Err: err}, false
	}
	for i, dep := range m.Dependencies {
		if !dep.HasUUID() && dep.ModuleName == "" {
			return FileError{Path: path, Err: fmt.Errorf("dependencies[%d]: needs either uuid or module_name", i)}, false
		}
	}
	return FileError{}, true
}

func (r *Report) hasInvalid(path string) bool {
	for _, fe := range r.Invalid {
		if fe.Path == path {
			return true
		}
	}
	return false
}

// checkJSON parses data as exactly one JSON value.
func checkJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	var v any
	if err := dec.Decode(&v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty document")
		}
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return ErrTrailingData
	}
	return nil
}

// position converts a byte offset into a 1-based line and column.
func position(data []byte, offset int64) (line, col int) {
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	line, col = 1, 1
	for _, b := range data[:offset] {
		if b == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
