// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"
)

// JSONKeys returns the path of every object member in document order, such
// as "header.uuid" or "modules[1].version".
func JSONKeys(t testing.TB, data []byte) []string {
	t.Helper()

	var keys []string
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := walkJSON(dec, "", &keys); err != nil {
		t.Fatalf("JSONKeys: %v", err)
	}
	return keys
}

func walkJSON(dec *json.Decoder, path string, keys *[]string) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return nil
	}

	switch delim {
	case '{':
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return err
			}
			key := tok.(string)
			if path != "" {
				key = path + "." + key
			}
			*keys = append(*keys, key)
			if err := walkJSON(dec, key, keys); err != nil {
				return err
			}
		}
	case '[':
		for i := 0; dec.More(); i++ {
			if err := walkJSON(dec, fmt.Sprintf("%s[%d]", path, i), keys); err != nil {
				return err
			}
		}
	}
	_, err = dec.Token()
	return err
}
