// SPDX-License-Identifier: MPL-2.0

// Package cueutil compiles embedded CUE schemas and checks documents against them.
//
// Two document kinds are supported: CUE files (the packdeploy configuration)
// and JSON files (pack manifests). Both follow the same flow:
//
//  1. Compile the embedded schema once and look up its root definition
//  2. Build the document and unify it with the definition
//  3. Validate, reporting errors with JSON-path style locations
//
// # Usage
//
//	//go:embed manifest_schema.cue
//	var schemaSource string
//
//	schema, err := cueutil.NewSchema(schemaSource, "#Manifest")
//	if err != nil {
//	    return err
//	}
//	if err := schema.ValidateJSON(data, "manifest.json"); err != nil {
//	    return err // includes the failing path, e.g. header.version[2]
//	}
package cueutil
