// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

// Store loads and persists manifests on a filesystem.
type Store struct {
	fs afero.Fs
}

// NewStore creates a Store backed by fs.
func NewStore(fs afero.Fs) *Store {
	return &Store{fs: fs}
}

// PathIn returns the manifest path for a pack rooted at packRoot.
func PathIn(packRoot string) string {
	return filepath.Join(packRoot, FileName)
}

// Load reads and decodes the manifest at path.
func (s *Store) Load(path string) (*Manifest, error) {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	return m, nil
}

// Save encodes m and writes it to path atomically.
func (s *Store) Save(path string, m *Manifest) error {
	data, err := m.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode manifest %s: %w", path, err)
	}
	return WriteFileAtomic(s.fs, path, data)
}

// WriteFileAtomic writes data to a sibling temporary file and renames it over
// path, so readers never observe a half-written file.
func WriteFileAtomic(fs afero.Fs, path string, data []byte) error {
	tmpPath := path + ".tmp"
	if err := afero.WriteFile(fs, tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := fs.Rename(tmpPath, path); err != nil {
		_ = fs.Remove(tmpPath) // Best-effort cleanup
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}

func indent(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
