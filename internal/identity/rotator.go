// SPDX-License-Identifier: MPL-2.0

package identity

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/questsystem/packdeploy/pkg/manifest"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// maxTokenAttempts bounds regeneration when a token source repeats itself.
const maxTokenAttempts = 8

// ErrTokenExhausted is returned when the token source keeps producing
// tokens that were already used in this run.
var ErrTokenExhausted = errors.New("could not generate a unique identity token")

type (
	// TokenSource produces identity tokens.
	TokenSource func() string

	// Rotation is the outcome of rotating one manifest. Only the header
	// identity is surfaced; module identities are not referenced downstream.
	Rotation struct {
		Path       string
		OldUUID    string
		NewUUID    string
		OldVersion manifest.Version
		NewVersion manifest.Version
		// Modules is the number of modules rotated alongside the header.
		Modules int
	}

	// Rotator bumps versions and regenerates uuids. A Rotator remembers every
	// token it has seen or issued, so a single instance must be shared by all
	// rotations of one pipeline run.
	Rotator struct {
		store    *manifest.Store
		newToken TokenSource
		seen     map[string]struct{}
		issued   []string
		logger   *log.Logger
	}

	// Option configures a Rotator.
	Option func(*Rotator)
)

// WithTokenSource replaces the default random (version 4) uuid source.
func WithTokenSource(src TokenSource) Option {
	return func(r *Rotator) { r.newToken = src }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Rotator) { r.logger = l }
}

// NewRotator creates a Rotator persisting through store.
func NewRotator(store *manifest.Store, opts ...Option) *Rotator {
	r := &Rotator{
		store:    store,
		newToken: uuid.NewString,
		seen:     make(map[string]struct{}),
		logger:   log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rotate loads the manifest at path, increments the header patch version and
// each module's patch version, assigns fresh uuids to the header and every
// module, and saves the manifest before returning.
//
// Nothing is written if a token cannot be generated.
func (r *Rotator) Rotate(path string) (*Rotation, error) {
	m, err := r.store.Load(path)
	if err != nil {
		return nil, err
	}

	// Tokens the manifest already carries must never come back.
	for _, id := range m.UUIDs() {
		r.seen[id] = struct{}{}
	}

	rot := &Rotation{
		Path:       path,
		OldUUID:    m.Header.UUID,
		OldVersion: m.Header.Version,
		Modules:    len(m.Modules),
	}

	headerToken, err := r.next()
	if err != nil {
		return nil, err
	}
	moduleTokens := make([]string, len(m.Modules))
	for i := range m.Modules {
		if moduleTokens[i], err = r.next(); err != nil {
			return nil, err
		}
	}

	m.Header.Version = m.Header.Version.BumpPatch()
	m.Header.UUID = headerToken
	for i := range m.Modules {
		m.Modules[i].Version = m.Modules[i].Version.BumpPatch()
		m.Modules[i].UUID = moduleTokens[i]
	}

	if err := r.store.Save(path, m); err != nil {
		return nil, err
	}

	rot.NewUUID = m.Header.UUID
	rot.NewVersion = m.Header.Version

	r.logger.Debug("rotated manifest",
		"path", path,
		"version", rot.NewVersion.String(),
		"uuid", rot.NewUUID,
		"modules", rot.Modules,
	)
	return rot, nil
}

// Issued returns every token handed out so far, in issue order.
func (r *Rotator) Issued() []string {
	return slices.Clone(r.issued)
}

func (r *Rotator) next() (string, error) {
	for range maxTokenAttempts {
		tok := r.newToken()
		if tok == "" {
			continue
		}
		if _, dup := r.seen[tok]; dup {
			continue
		}
		r.seen[tok] = struct{}{}
		r.issued = append(r.issued, tok)
		return tok, nil
	}
	return "", fmt.Errorf("%w after %d attempts", ErrTokenExhausted, maxTokenAttempts)
}
