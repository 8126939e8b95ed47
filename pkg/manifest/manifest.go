// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
)

// FileName is the manifest file name at the root of every pack.
const FileName = "manifest.json"

var (
	// ErrMissingHeader is returned when a manifest has no header object.
	ErrMissingHeader = errors.New("manifest has no header")
	// ErrMissingUUID is returned when a header or module has no uuid.
	ErrMissingUUID = errors.New("missing uuid")
)

type (
	// Manifest is a pack's metadata descriptor.
	Manifest struct {
		Header       Header
		Modules      []Module
		Dependencies []Dependency

		hasModules      bool
		hasDependencies bool
		rest            fields
	}

	// Header is the top-level identity and version of a pack.
	Header struct {
		UUID    string
		Version Version
		// Name is read-only here; it is written back from the preserved members.
		Name string

		rest fields
	}

	// Module is one internal module of a pack (data, resources, script...).
	Module struct {
		UUID    string
		Version Version
		Type    string

		rest fields
	}

	// Dependency references another pack by uuid, or a script module by name.
	Dependency struct {
		UUID       string
		ModuleName string
		Version    DependencyVersion

		hasUUID    bool
		hasVersion bool
		rest       fields
	}
)

// Parse decodes manifest JSON.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Encode returns the manifest as two-space indented JSON with a trailing newline.
func (m *Manifest) Encode() ([]byte, error) {
	data, err := marshalNoEscape(m)
	if err != nil {
		return nil, err
	}
	out, err := indent(data)
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// UUIDs returns every uuid the manifest owns: the header's first, followed by
// each module's in order. Dependency uuids are not included.
func (m *Manifest) UUIDs() []string {
	ids := make([]string, 0, len(m.Modules)+1)
	ids = append(ids, m.Header.UUID)
	for _, mod := range m.Modules {
		ids = append(ids, mod.UUID)
	}
	return ids
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Manifest) UnmarshalJSON(data []byte) error {
	obj, err := decodeObject(data)
	if err != nil {
		return err
	}
	found, err := obj.take("header", &m.Header)
	if err != nil {
		return err
	}
	if !found {
		return ErrMissingHeader
	}
	if m.hasModules, err = obj.take("modules", &m.Modules); err != nil {
		return err
	}
	if m.hasDependencies, err = obj.take("dependencies", &m.Dependencies); err != nil {
		return err
	}
	m.rest = obj
	return nil
}

// MarshalJSON implements json.Marshaler.
func (m Manifest) MarshalJSON() ([]byte, error) {
	out, err := m.rest.with("header", m.Header)
	if err != nil {
		return nil, err
	}
	if m.hasModules || len(m.Modules) > 0 {
		if err := out.set("modules", nonNil(m.Modules)); err != nil {
			return nil, err
		}
	}
	if m.hasDependencies || len(m.Dependencies) > 0 {
		if err := out.set("dependencies", nonNil(m.Dependencies)); err != nil {
			return nil, err
		}
	}
	return marshalNoEscape(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (h *Header) UnmarshalJSON(data []byte) error {
	obj, err := decodeObject(data)
	if err != nil {
		return fmt.Errorf("header: %w", err)
	}
	found, err := obj.take("uuid", &h.UUID)
	if err != nil {
		return fmt.Errorf("header: %w", err)
	}
	if !found {
		return fmt.Errorf("header: %w", ErrMissingUUID)
	}
	found, err = obj.take("version", &h.Version)
	if err != nil {
		return fmt.Errorf("header: %w", err)
	}
	if !found {
		return fmt.Errorf("header: %w", &InvalidVersionError{Raw: "<absent>", Reason: "header version is required"})
	}
	if raw, ok := obj.get("name"); ok {
		_ = json.Unmarshal(raw, &h.Name) // names may be localization keys of any shape
	}
	h.rest = obj
	return nil
}

// MarshalJSON implements json.Marshaler.
func (h Header) MarshalJSON() ([]byte, error) {
	out, err := h.rest.with("uuid", h.UUID)
	if err != nil {
		return nil, err
	}
	if err := out.set("version", h.Version); err != nil {
		return nil, err
	}
	return marshalNoEscape(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (mod *Module) UnmarshalJSON(data []byte) error {
	obj, err := decodeObject(data)
	if err != nil {
		return fmt.Errorf("module: %w", err)
	}
	found, err := obj.take("uuid", &mod.UUID)
	if err != nil {
		return fmt.Errorf("module: %w", err)
	}
	if !found {
		return fmt.Errorf("module: %w", ErrMissingUUID)
	}
	found, err = obj.take("version", &mod.Version)
	if err != nil {
		return fmt.Errorf("module %s: %w", mod.UUID, err)
	}
	if !found {
		return fmt.Errorf("module %s: %w", mod.UUID, &InvalidVersionError{Raw: "<absent>", Reason: "module version is required"})
	}
	if raw, ok := obj.get("type"); ok {
		_ = json.Unmarshal(raw, &mod.Type)
	}
	mod.rest = obj
	return nil
}

// MarshalJSON implements json.Marshaler.
func (mod Module) MarshalJSON() ([]byte, error) {
	out, err := mod.rest.with("uuid", mod.UUID)
	if err != nil {
		return nil, err
	}
	if err := out.set("version", mod.Version); err != nil {
		return nil, err
	}
	return marshalNoEscape(out)
}

// HasUUID reports whether the entry carries a uuid member, which is how pack
// dependencies are told apart from script module dependencies.
func (d *Dependency) HasUUID() bool { return d.hasUUID }

// SetTarget points the dependency at the given pack identity.
func (d *Dependency) SetTarget(uuid string, v Version) {
	d.UUID = uuid
	d.hasUUID = true
	d.Version = NewTripleVersion(v)
	d.hasVersion = true
}

// NewPackDependency returns a dependency entry referencing a pack by uuid.
func NewPackDependency(uuid string, v Version) Dependency {
	var d Dependency
	d.SetTarget(uuid, v)
	return d
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Dependency) UnmarshalJSON(data []byte) error {
	obj, err := decodeObject(data)
	if err != nil {
		return fmt.Errorf("dependency: %w", err)
	}
	if d.hasUUID, err = obj.take("uuid", &d.UUID); err != nil {
		return fmt.Errorf("dependency: %w", err)
	}
	if d.hasVersion, err = obj.take("version", &d.Version); err != nil {
		return fmt.Errorf("dependency: %w", err)
	}
	if raw, ok := obj.get("module_name"); ok {
		_ = json.Unmarshal(raw, &d.ModuleName)
	}
	d.rest = obj
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d Dependency) MarshalJSON() ([]byte, error) {
	out := d.rest.clone()
	if d.hasUUID {
		if err := out.set("uuid", d.UUID); err != nil {
			return nil, err
		}
	}
	if d.hasVersion {
		if err := out.set("version", d.Version); err != nil {
			return nil, err
		}
	}
	return marshalNoEscape(out)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
