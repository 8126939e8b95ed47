// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
)

const (
	// BehaviorUUID is the header uuid of the fixture behavior pack.
	BehaviorUUID = "a1b2c3d4-e5f6-4a7b-8c9d-0e1f2a3b4c5d"
	// ResourceUUID is the header uuid of the fixture resource pack.
	ResourceUUID = "0f6a8d3e-4b1c-4f57-9a3e-1c2d3e4f5a6b"

	// BehaviorManifest is a behavior pack manifest at version 2.0.1.
	BehaviorManifest = `{
  "format_version": 2,
  "header": {
    "name": "Quest System BP",
    "description": "Quests & rewards",
    "uuid": "a1b2c3d4-e5f6-4a7b-8c9d-0e1f2a3b4c5d",
    "version": [2, 0, 1],
    "min_engine_version": [1, 21, 0]
  },
  "modules": [
    {"type": "data", "uuid": "11111111-2222-4333-8444-555555555555", "version": [2, 0, 1]},
    {"type": "script", "language": "javascript", "entry": "scripts/main.js", "uuid": "66666666-7777-4888-9999-000000000000", "version": [2, 0, 1]}
  ],
  "dependencies": [
    {"module_name": "@minecraft/server", "version": "1.8.0"}
  ]
}
`

	// ResourceManifest is a resource pack manifest at version 1.2.3 that
	// depends on BehaviorManifest.
	ResourceManifest = `{
  "format_version": 2,
  "header": {
    "name": "Quest System RP",
    "uuid": "0f6a8d3e-4b1c-4f57-9a3e-1c2d3e4f5a6b",
    "version": [1, 2, 3],
    "min_engine_version": [1, 21, 0]
  },
  "modules": [
    {"type": "resources", "uuid": "6b1d0c1e-7e4a-4c55-8a55-2c3b4d5e6f70", "version": [1, 2, 3]}
  ],
  "dependencies": [
    {"uuid": "a1b2c3d4-e5f6-4a7b-8c9d-0e1f2a3b4c5d", "version": [2, 0, 1]}
  ]
}
`
)

// Project is a fixture project layout.
type Project struct {
	Root     string
	Behavior string
	Resource string
	World    string
}

// WriteFiles writes every path/content pair, creating parent directories.
func WriteFiles(t testing.TB, fs afero.Fs, files map[string]string) {
	t.Helper()
	for path, content := range files {
		if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("failed to create %s: %v", filepath.Dir(path), err)
		}
		if err := afero.WriteFile(fs, path, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", path, err)
		}
	}
}

// ReadFile returns the content of path or fails the test.
func ReadFile(t testing.TB, fs afero.Fs, path string) string {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(data)
}

// NewProject lays out a two-pack project with a world directory under root.
func NewProject(t testing.TB, fs afero.Fs, root string) Project {
	t.Helper()
	p := Project{
		Root:     root,
		Behavior: filepath.Join(root, "packs", "QuestSystemBP"),
		Resource: filepath.Join(root, "packs", "QuestSystemRP"),
		World:    filepath.Join(root, "worlds", "Super Quester World"),
	}
	WriteFiles(t, fs, map[string]string{
		filepath.Join(p.Behavior, "manifest.json"):                 BehaviorManifest,
		filepath.Join(p.Behavior, "entities", "quest_npc.json"):    `{"format_version": "1.21.0", "minecraft:entity": {}}`,
		filepath.Join(p.Behavior, "scripts", "main.js"):            `import { world } from "@minecraft/server";`,
		filepath.Join(p.Resource, "manifest.json"):                 ResourceManifest,
		filepath.Join(p.Resource, "textures", "item_texture.json"): `{"resource_pack_name": "quest", "texture_data": {}}`,
		filepath.Join(p.Resource, "texts", "en_US.lang"):           "quest.title=Quests\n",
		filepath.Join(p.World, "level.dat"):                        "binary",
	})
	return p
}
