// SPDX-License-Identifier: MPL-2.0

// Package manifest reads and writes add-on pack manifests (manifest.json).
//
// A manifest carries a header (uuid, version), a list of modules, each with
// its own uuid and version, and a list of dependencies. Dependencies either
// reference another pack by uuid or a script module by module_name.
//
// Fields this package does not model (name, description, min_engine_version,
// metadata, capabilities, ...) are preserved verbatim when a manifest is
// rewritten, so a load/save cycle only changes what the caller changed.
package manifest
