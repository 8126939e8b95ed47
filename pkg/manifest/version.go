// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidVersion is the sentinel error wrapped by InvalidVersionError.
var ErrInvalidVersion = errors.New("invalid version")

type (
	// Version is a [major, minor, patch] triple as stored in manifests.
	// Patch is advanced by the deploy pipeline; major and minor are
	// operator-controlled.
	Version [3]int

	// InvalidVersionError is returned when a version value is not a
	// triple of non-negative integers.
	InvalidVersionError struct {
		Raw    string
		Reason string
	}

	// DependencyVersion is the version of a dependency entry. Pack
	// dependencies use a triple; script module dependencies use a string
	// such as "1.8.0" or "1.9.0-beta".
	DependencyVersion struct {
		Triple Version
		Text   string
		isText bool
	}
)

// Error implements the error interface.
func (e *InvalidVersionError) Error() string {
	return fmt.Sprintf("invalid version %s: %s", e.Raw, e.Reason)
}

// Unwrap returns ErrInvalidVersion for errors.Is() compatibility.
func (e *InvalidVersionError) Unwrap() error { return ErrInvalidVersion }

// Major returns the major component.
func (v Version) Major() int { return v[0] }

// Minor returns the minor component.
func (v Version) Minor() int { return v[1] }

// Patch returns the patch component.
func (v Version) Patch() int { return v[2] }

// BumpPatch returns a copy of v with the patch component incremented by one.
func (v Version) BumpPatch() Version {
	v[2]++
	return v
}

// Compare returns -1, 0 or +1 depending on whether v sorts before, equal to,
// or after other.
func (v Version) Compare(other Version) int {
	for i := range v {
		switch {
		case v[i] < other[i]:
			return -1
		case v[i] > other[i]:
			return 1
		}
	}
	return 0
}

// Validate returns an error if any component is negative.
func (v Version) Validate() error {
	for _, n := range v {
		if n < 0 {
			return &InvalidVersionError{Raw: v.String(), Reason: "components must be non-negative"}
		}
	}
	return nil
}

// String returns the dotted form, e.g. "1.2.3".
func (v Version) String() string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ".")
}

// MarshalJSON encodes the version as a three element array.
func (v Version) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]int(v))
}

// UnmarshalJSON decodes a three element integer array. Arrays of any other
// length are rejected rather than silently padded or truncated.
func (v *Version) UnmarshalJSON(data []byte) error {
	var parts []int
	if err := json.Unmarshal(data, &parts); err != nil {
		return &InvalidVersionError{Raw: string(data), Reason: "expected an array of integers"}
	}
	if len(parts) != len(v) {
		return &InvalidVersionError{Raw: string(data), Reason: fmt.Sprintf("expected 3 components, got %d", len(parts))}
	}
	copy(v[:], parts)
	return v.Validate()
}

// NewTripleVersion returns a DependencyVersion holding a triple.
func NewTripleVersion(v Version) DependencyVersion {
	return DependencyVersion{Triple: v}
}

// IsText reports whether the version was written as a string.
func (d DependencyVersion) IsText() bool { return d.isText }

// String returns the textual form of the version.
func (d DependencyVersion) String() string {
	if d.isText {
		return d.Text
	}
	return d.Triple.String()
}

// MarshalJSON encodes either the string or the triple form.
func (d DependencyVersion) MarshalJSON() ([]byte, error) {
	if d.isText {
		return json.Marshal(d.Text)
	}
	return d.Triple.MarshalJSON()
}

// UnmarshalJSON accepts either a string or a three element array.
func (d *DependencyVersion) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return &InvalidVersionError{Raw: string(data), Reason: "malformed string"}
		}
		*d = DependencyVersion{Text: s, isText: true}
		return nil
	}
	var v Version
	if err := v.UnmarshalJSON(trimmed); err != nil {
		return err
	}
	*d = DependencyVersion{Triple: v}
	return nil
}
