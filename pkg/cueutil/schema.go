// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cuejson "cuelang.org/go/encoding/json"
)

// DefaultMaxFileSize is the largest document accepted for schema checks (5MB).
const DefaultMaxFileSize int64 = 5 * 1024 * 1024

// Schema is a compiled CUE definition that documents are unified with.
// A Schema is not safe for concurrent use; the pipeline is single-threaded.
type Schema struct {
	ctx        *cue.Context
	definition cue.Value
	name       string
}

// NewSchema compiles source and looks up the definition (e.g. "#Manifest").
func NewSchema(source, definition string) (*Schema, error) {
	ctx := cuecontext.New()

	compiled := ctx.CompileString(source)
	if compiled.Err() != nil {
		return nil, fmt.Errorf("internal error: failed to compile schema: %w", compiled.Err())
	}

	def := compiled.LookupPath(cue.ParsePath(definition))
	if def.Err() != nil {
		return nil, fmt.Errorf("internal error: schema definition %s not found: %w", definition, def.Err())
	}

	return &Schema{ctx: ctx, definition: def, name: definition}, nil
}

// ValidateJSON checks a JSON document against the schema. All fields the
// schema declares as required must be present and concrete.
func (s *Schema) ValidateJSON(data []byte, filename string) error {
	if err := CheckFileSize(data, DefaultMaxFileSize, filename); err != nil {
		return err
	}

	expr, err := cuejson.Extract(filename, data)
	if err != nil {
		return FormatError(err, filename)
	}

	doc := s.ctx.BuildExpr(expr)
	if doc.Err() != nil {
		return FormatError(doc.Err(), filename)
	}

	unified := s.definition.Unify(doc)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return FormatError(err, filename)
	}
	return nil
}

// DecodeCUE unifies a CUE document with the schema and decodes it into a
// generic map. Optional fields may stay unset, so concreteness is not required.
func (s *Schema) DecodeCUE(data []byte, filename string) (map[string]any, error) {
	if err := CheckFileSize(data, DefaultMaxFileSize, filename); err != nil {
		return nil, err
	}

	doc := s.ctx.CompileBytes(data, cue.Filename(filename))
	if doc.Err() != nil {
		return nil, FormatError(doc.Err(), filename)
	}

	unified := s.definition.Unify(doc)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return nil, FormatError(err, filename)
	}

	var out map[string]any
	if err := unified.Decode(&out); err != nil {
		return nil, FormatError(err, filename)
	}
	return out, nil
}
