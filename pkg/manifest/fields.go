// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
)

// fields holds the raw members of a JSON object in source order. Known
// members are taken out while decoding and keep their slot, so setting them
// again on encode writes them back where they were. Unknown members are
// written back untouched.
type fields struct {
	order []string
	vals  map[string]json.RawMessage
}

func decodeObject(data []byte) (fields, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fields{}, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fields{}, fmt.Errorf("expected an object, got %s", bytes.TrimSpace(data))
	}

	obj := fields{vals: make(map[string]json.RawMessage)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fields{}, err
		}
		key, ok := tok.(string)
		if !ok {
			return fields{}, fmt.Errorf("unexpected object key %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fields{}, fmt.Errorf("%s: %w", key, err)
		}
		// Duplicates keep the first slot and the last value, as encoding/json does.
		if _, seen := obj.vals[key]; !seen {
			obj.order = append(obj.order, key)
		}
		obj.vals[key] = raw
	}
	if _, err := dec.Token(); err != nil {
		return fields{}, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fields{}, fmt.Errorf("unexpected data after object")
	}
	return obj, nil
}

// get returns the raw member key.
func (f *fields) get(key string) (json.RawMessage, bool) {
	raw, ok := f.vals[key]
	return raw, ok
}

// take decodes the member key into v and removes it. It reports whether the
// member was present.
func (f *fields) take(key string, v any) (bool, error) {
	raw, ok := f.vals[key]
	if !ok {
		return false, nil
	}
	delete(f.vals, key)
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("%s: %w", key, err)
	}
	return true, nil
}

// with returns a copy of f with key set to the encoding of v.
func (f *fields) with(key string, v any) (fields, error) {
	out := f.clone()
	if err := out.set(key, v); err != nil {
		return fields{}, err
	}
	return out, nil
}

// set stores the encoding of v under key in place. A key never seen before
// is appended.
func (f *fields) set(key string, v any) error {
	raw, err := marshalNoEscape(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if f.vals == nil {
		f.vals = make(map[string]json.RawMessage)
	}
	if !slices.Contains(f.order, key) {
		f.order = append(f.order, key)
	}
	f.vals[key] = raw
	return nil
}

func (f *fields) clone() fields {
	out := fields{
		order: slices.Clone(f.order),
		vals:  make(map[string]json.RawMessage, len(f.vals)+1),
	}
	maps.Copy(out.vals, f.vals)
	return out
}

// MarshalJSON writes the present members in slot order.
func (f fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for _, key := range f.order {
		raw, ok := f.vals[key]
		if !ok {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		name, err := marshalNoEscape(key)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(raw)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// marshalNoEscape encodes v without HTML escaping so that descriptions such
// as "Quests & Rewards" survive a rewrite byte for byte.
func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
