// SPDX-License-Identifier: MPL-2.0

package publish

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/questsystem/packdeploy/pkg/manifest"

	"github.com/spf13/afero"
)

const (
	// BehaviorDescriptorFile registers behavior packs with a world.
	BehaviorDescriptorFile = "world_behavior_packs.json"
	// ResourceDescriptorFile registers resource packs with a world.
	ResourceDescriptorFile = "world_resource_packs.json"
)

// Descriptor is one entry of a world registration file.
type Descriptor struct {
	PackID  string           `json:"pack_id"`
	Version manifest.Version `json:"version"`
}

// DescriptorFor snapshots a manifest header.
func DescriptorFor(h manifest.Header) Descriptor {
	return Descriptor{PackID: h.UUID, Version: h.Version}
}

// WriteDescriptors regenerates both world registration files from the
// current headers, discarding whatever they held before. It returns the
// written paths, behavior first.
func (p *Publisher) WriteDescriptors(worldDir string, bp, rp manifest.Header) ([]string, error) {
	if err := p.fs.MkdirAll(worldDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create world directory: %w", err)
	}

	entries := []struct {
		name   string
		header manifest.Header
	}{
		{BehaviorDescriptorFile, bp},
		{ResourceDescriptorFile, rp},
	}

	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		path := filepath.Join(worldDir, e.name)
		data, err := json.MarshalIndent([]Descriptor{DescriptorFor(e.header)}, "", "  ")
		if err != nil {
			return paths, fmt.Errorf("failed to encode %s: %w", e.name, err)
		}
		data = append(data, '\n')
		if err := manifest.WriteFileAtomic(p.fs, path, data); err != nil {
			return paths, fmt.Errorf("failed to write %s: %w", e.name, err)
		}
		p.logger.Debug("wrote world descriptor", "path", path, "uuid", e.header.UUID, "version", e.header.Version.String())
		paths = append(paths, path)
	}
	return paths, nil
}

// ReadDescriptors decodes a world registration file.
func (p *Publisher) ReadDescriptors(path string) ([]Descriptor, error) {
	data, err := afero.ReadFile(p.fs, path)
	if err != nil {
		return nil, err
	}
	var out []Descriptor
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return out, nil
}
