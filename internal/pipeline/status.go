// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"fmt"

	"github.com/questsystem/packdeploy/internal/validate"
	"github.com/questsystem/packdeploy/pkg/manifest"

	"github.com/spf13/afero"
)

type (
	// PackStatus is the current identity of one pack.
	PackStatus struct {
		Name    string
		Root    string
		UUID    string
		Version manifest.Version
		Modules int
	}

	// Status describes the project as it is on disk.
	Status struct {
		Behavior PackStatus
		Resource PackStatus
		// Bound reports whether the resource pack's dependency references
		// the behavior pack's current uuid and version.
		Bound bool
		// Binding explains Bound in words.
		Binding string
	}
)

// Inspect loads both manifests and checks the dependency binding without
// modifying anything.
func Inspect(fs afero.Fs, cfg Config) (*Status, error) {
	store := manifest.NewStore(fs)

	bp, err := loadStatus(store, cfg.Behavior)
	if err != nil {
		return nil, err
	}
	rpManifest, err := store.Load(manifest.PathIn(cfg.Resource.Root))
	if err != nil {
		return nil, err
	}

	st := &Status{Behavior: bp, Resource: statusOf(cfg.Resource, rpManifest)}
	st.Bound, st.Binding = binding(rpManifest, bp)
	return st, nil
}

func loadStatus(store *manifest.Store, pack validate.Pack) (PackStatus, error) {
	m, err := store.Load(manifest.PathIn(pack.Root))
	if err != nil {
		return PackStatus{}, err
	}
	return statusOf(pack, m), nil
}

func statusOf(pack validate.Pack, m *manifest.Manifest) PackStatus {
	return PackStatus{
		Name:    pack.Name,
		Root:    pack.Root,
		UUID:    m.Header.UUID,
		Version: m.Header.Version,
		Modules: len(m.Modules),
	}
}

func binding(rp *manifest.Manifest, bp PackStatus) (bool, string) {
	var stale []string
	for _, d := range rp.Dependencies {
		if !d.HasUUID() {
			continue
		}
		if d.UUID == bp.UUID {
			if !d.Version.IsText() && d.Version.Triple == bp.Version {
				return true, "bound to " + bp.Version.String()
			}
			return false, fmt.Sprintf("uuid matches but version is %s, want %s", d.Version, bp.Version)
		}
		stale = append(stale, d.UUID)
	}
	if len(stale) == 0 {
		return false, "no uuid dependency entry"
	}
	return false, fmt.Sprintf("references %v, not %s", stale, bp.UUID)
}
