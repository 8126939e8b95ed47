// SPDX-License-Identifier: MPL-2.0

package validate

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

const validManifest = `{
  "format_version": 2,
  "header": {"name": "BP", "uuid": "a1b2c3d4-e5f6-4a7b-8c9d-0e1f2a3b4c5d", "version": [1, 0, 0]},
  "modules": [{"type": "data", "uuid": "11111111-2222-4333-8444-555555555555", "version": [1, 0, 0]}],
  "dependencies": [{"module_name": "@minecraft/server", "version": "1.8.0"}]
}`

func writeFiles(t *testing.T, fs afero.Fs, files map[string]string) {
	t.Helper()
	for path, content := range files {
		if err := afero.WriteFile(fs, path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
}

func newValidator(t *testing.T, fs afero.Fs) *Validator {
	t.Helper()
	v, err := New(fs)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return v
}

func TestValidatePackage_Valid(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/packs/BP/manifest.json":             validManifest,
		"/packs/BP/entities/quest_giver.json": `{"format_version": "1.20.0", "minecraft:entity": {}}`,
		"/packs/BP/items/Scroll.JSON":         `[]`,
		"/packs/BP/scripts/main.js":           `this is { not json`,
		"/packs/BP/textures/readme.txt":       `ignored`,
	})

	report := newValidator(t, fs).ValidatePackage(Pack{Name: "Behavior Pack", Root: "/packs/BP"})

	if !report.Valid() {
		t.Fatalf("expected valid report, got %v", report.Err())
	}
	if len(report.Files) != 3 {
		t.Errorf("checked %d files, want 3: %v", len(report.Files), report.Files)
	}
}

func TestValidatePackage_SyntaxErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		content  string
		wantLine int
		wantErr  error
	}{
		{name: "missing comma", content: "{\n  \"a\": 1\n  \"b\": 2\n}", wantLine: 3},
		{name: "trailing comma", content: "{\n  \"a\": [1, 2,]\n}", wantLine: 2},
		{name: "trailing data", content: `{"a": 1} {"b": 2}`, wantErr: ErrTrailingData},
		{name: "truncated", content: `{"a": `},
		{name: "empty file", content: ``},
		{name: "comment", content: "// note\n{}", wantLine: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fs := afero.NewMemMapFs()
			writeFiles(t, fs, map[string]string{
				"/rp/manifest.json":   validManifest,
				"/rp/texts/bad.json":  tt.content,
				"/rp/texts/good.json": `{}`,
			})

			report := newValidator(t, fs).ValidatePackage(Pack{Name: "RP", Root: "/rp"})

			if report.Valid() {
				t.Fatal("expected invalid report")
			}
			if len(report.Invalid) != 1 {
				t.Fatalf("Invalid = %v, want exactly one entry", report.Invalid)
			}
			fe := report.Invalid[0]
			if fe.Path != filepath.Join("/rp", "texts", "bad.json") {
				t.Errorf("Path = %q", fe.Path)
			}
			if tt.wantLine != 0 && fe.Line != tt.wantLine {
				t.Errorf("Line = %d, want %d (%v)", fe.Line, tt.wantLine, fe.Err)
			}
			if tt.wantErr != nil && !errors.Is(fe, tt.wantErr) {
				t.Errorf("error = %v, want %v", fe.Err, tt.wantErr)
			}
		})
	}
}

func TestValidatePackage_ManifestSchema(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		manifest  string
		errSubstr string
	}{
		{
			name:      "bad header uuid",
			manifest:  `{"header": {"uuid": "not-a-uuid", "version": [1, 0, 0]}}`,
			errSubstr: "header.uuid",
		},
		{
			name:      "two component version",
			manifest:  `{"header": {"uuid": "a1b2c3d4-e5f6-4a7b-8c9d-0e1f2a3b4c5d", "version": [1, 0]}}`,
			errSubstr: "header.version",
		},
		{
			name:      "module without version",
			manifest:  `{"header": {"uuid": "a1b2c3d4-e5f6-4a7b-8c9d-0e1f2a3b4c5d", "version": [1, 0, 0]}, "modules": [{"uuid": "11111111-2222-4333-8444-555555555555"}]}`,
			errSubstr: "modules[0].version",
		},
		{
			name:      "dependency without target",
			manifest:  `{"header": {"uuid": "a1b2c3d4-e5f6-4a7b-8c9d-0e1f2a3b4c5d", "version": [1, 0, 0]}, "dependencies": [{"version": [1, 0, 0]}]}`,
			errSubstr: "dependencies[0]",
		},
		{
			name:      "no header",
			manifest:  `{"format_version": 2}`,
			errSubstr: "header",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fs := afero.NewMemMapFs()
			writeFiles(t, fs, map[string]string{"/bp/manifest.json": tt.manifest})

			report := newValidator(t, fs).ValidatePackage(Pack{Name: "BP", Root: "/bp"})
			if report.Valid() {
				t.Fatal("expected schema violation")
			}
			if msg := report.Err().Error(); !strings.Contains(msg, tt.errSubstr) {
				t.Errorf("error %q does not mention %q", msg, tt.errSubstr)
			}
		})
	}
}

func TestValidatePackage_MalformedManifestReportedOnce(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{"/bp/manifest.json": `{"header": `})

	report := newValidator(t, fs).ValidatePackage(Pack{Name: "BP", Root: "/bp"})
	if len(report.Invalid) != 1 {
		t.Errorf("Invalid = %v, want one entry", report.Invalid)
	}
}

func TestValidatePackage_MissingManifest(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{"/bp/items/a.json": `{}`})

	report := newValidator(t, fs).ValidatePackage(Pack{Name: "BP", Root: "/bp"})
	if !errors.Is(report.Err(), ErrManifestMissing) {
		t.Errorf("Err() = %v, want ErrManifestMissing", report.Err())
	}
}

func TestValidatePackage_MissingRoot(t *testing.T) {
	t.Parallel()

	report := newValidator(t, afero.NewMemMapFs()).ValidatePackage(Pack{Name: "BP", Root: "/does/not/exist"})
	if !errors.Is(report.Err(), ErrPackNotFound) {
		t.Errorf("Err() = %v, want ErrPackNotFound", report.Err())
	}
}

func TestValidateAll_ContinuesAfterFailure(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/bp/manifest.json": validManifest,
		"/bp/broken.json":   `{`,
		"/rp/manifest.json": validManifest,
		"/rp/broken.json":   `[`,
	})

	reports, ok := newValidator(t, fs).ValidateAll(
		Pack{Name: "BP", Root: "/bp"},
		Pack{Name: "RP", Root: "/rp"},
	)
	if ok {
		t.Fatal("ValidateAll() should fail")
	}
	if len(reports) != 2 || reports[0].Valid() || reports[1].Valid() {
		t.Errorf("both packs should be reported invalid: %+v", reports)
	}
}

func TestValidatePackage_ReadOnly(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{"/bp/manifest.json": validManifest})
	ro := afero.NewReadOnlyFs(fs)

	report := newValidator(t, ro).ValidatePackage(Pack{Name: "BP", Root: "/bp"})
	if !report.Valid() {
		t.Errorf("validation through a read-only fs failed: %v", report.Err())
	}
}

func TestPosition(t *testing.T) {
	t.Parallel()

	data := []byte("ab\ncd\nef")
	tests := []struct {
		offset    int64
		line, col int
	}{
		{0, 1, 1},
		{2, 1, 3},
		{3, 2, 1},
		{7, 3, 2},
		{100, 3, 3},
	}
	for _, tt := range tests {
		line, col := position(data, tt.offset)
		if line != tt.line || col != tt.col {
			t.Errorf("position(%d) = %d:%d, want %d:%d", tt.offset, line, col, tt.line, tt.col)
		}
	}
}

func TestIsJSONFile(t *testing.T) {
	t.Parallel()

	for name, want := range map[string]bool{
		"manifest.json": true,
		"UPPER.JSON":    true,
		"lang.lang":     false,
		"json":          false,
		"a.json.bak":    false,
	} {
		if got := IsJSONFile(name); got != want {
			t.Errorf("IsJSONFile(%q) = %v, want %v", name, got, want)
		}
	}
}
