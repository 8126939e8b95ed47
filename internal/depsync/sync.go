// SPDX-License-Identifier: MPL-2.0

package depsync

import (
	"errors"
	"fmt"
	"io"

	"github.com/questsystem/packdeploy/pkg/manifest"

	"github.com/charmbracelet/log"
)

const (
	// OutcomeUpdated means the dependency entry was rewritten and persisted.
	OutcomeUpdated Outcome = "updated"
	// OutcomeMissing means no uuid-bearing dependency entry exists.
	OutcomeMissing Outcome = "missing"
	// OutcomeAmbiguous means several uuid-bearing entries exist and none
	// matches the previous identity.
	OutcomeAmbiguous Outcome = "ambiguous"
)

var (
	// ErrDependencyMissing is reported for OutcomeMissing when strict.
	ErrDependencyMissing = errors.New("dependency on behavior pack not found")
	// ErrDependencyAmbiguous is reported for OutcomeAmbiguous when strict.
	ErrDependencyAmbiguous = errors.New("dependency on behavior pack is ambiguous")
	// ErrInvalidTarget is returned when the target has no new uuid.
	ErrInvalidTarget = errors.New("sync target has no uuid")
)

type (
	// Outcome names what Sync did.
	Outcome string

	// Target is the identity the dependency must point at. OldUUID is the
	// identity the entry is expected to carry before the rewrite.
	Target struct {
		OldUUID string
		NewUUID string
		Version manifest.Version
	}

	// Result describes a Sync call.
	Result struct {
		Path    string
		Outcome Outcome
		// Index is the position of the rewritten entry, or -1.
		Index int
		// Previous is the entry's uuid before the rewrite.
		Previous string
		// Candidates is the number of uuid-bearing entries seen.
		Candidates int
	}

	// Synchronizer rewrites dependency entries through a manifest store.
	Synchronizer struct {
		store  *manifest.Store
		logger *log.Logger
	}
)

// New creates a Synchronizer. A nil logger discards output.
func New(store *manifest.Store, logger *log.Logger) *Synchronizer {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Synchronizer{store: store, logger: logger}
}

// Err converts a non-updated outcome into an error for strict callers.
func (r *Result) Err() error {
	switch r.Outcome {
	case OutcomeMissing:
		return fmt.Errorf("%s: %w", r.Path, ErrDependencyMissing)
	case OutcomeAmbiguous:
		return fmt.Errorf("%s: %w (%d candidates)", r.Path, ErrDependencyAmbiguous, r.Candidates)
	default:
		return nil
	}
}

// Sync loads the manifest at path and points its dependency on the target
// pack at target. The manifest is written only when the outcome is
// OutcomeUpdated; every other outcome leaves the file untouched.
func (s *Synchronizer) Sync(path string, target Target) (*Result, error) {
	if target.NewUUID == "" {
		return nil, ErrInvalidTarget
	}

	m, err := s.store.Load(path)
	if err != nil {
		return nil, err
	}

	res := &Result{Path: path, Index: -1}
	res.Index, res.Candidates = locate(m.Dependencies, target)

	switch {
	case res.Index >= 0:
		res.Outcome = OutcomeUpdated
	case res.Candidates == 0:
		res.Outcome = OutcomeMissing
	default:
		res.Outcome = OutcomeAmbiguous
	}

	if res.Outcome != OutcomeUpdated {
		s.logger.Warn("dependency not rewritten", "path", path, "outcome", res.Outcome, "candidates", res.Candidates)
		return res, nil
	}

	dep := &m.Dependencies[res.Index]
	res.Previous = dep.UUID
	dep.SetTarget(target.NewUUID, target.Version)

	if err := s.store.Save(path, m); err != nil {
		return nil, err
	}

	s.logger.Debug("dependency synchronized",
		"path", path,
		"uuid", target.NewUUID,
		"version", target.Version.String(),
	)
	return res, nil
}

// locate returns the index of the entry to rewrite and the number of
// uuid-bearing entries. An entry already carrying the old or new uuid wins;
// otherwise a lone uuid-bearing entry is taken as the pack dependency.
func locate(deps []manifest.Dependency, target Target) (index, candidates int) {
	index = -1
	lone := -1
	for i := range deps {
		if !deps[i].HasUUID() {
			continue
		}
		candidates++
		lone = i
		id := deps[i].UUID
		if index < 0 && ((target.OldUUID != "" && id == target.OldUUID) || id == target.NewUUID) {
			index = i
		}
	}
	if index < 0 && candidates == 1 {
		index = lone
	}
	return index, candidates
}
