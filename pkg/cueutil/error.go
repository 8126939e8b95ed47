// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	cueerrors "cuelang.org/go/cue/errors"
)

var (
	// ErrSchemaViolation is the sentinel wrapped by SchemaError.
	ErrSchemaViolation = errors.New("schema violation")
	// ErrTooLarge is returned for documents above the size limit.
	ErrTooLarge = errors.New("document too large")
)

type (
	// Violation is one failed constraint at a JSON-path location such as
	// header.version[2]. Path is empty for document-level problems.
	Violation struct {
		Path    string
		Message string
	}

	// SchemaError lists every constraint a document failed.
	SchemaError struct {
		File       string
		Violations []Violation
	}
)

func (v Violation) String() string {
	if v.Path == "" {
		return v.Message
	}
	return v.Path + ": " + v.Message
}

// Error renders "<file>: <path>: <message>", one line per violation when
// there are several.
func (e *SchemaError) Error() string {
	if len(e.Violations) == 1 {
		return e.File + ": " + e.Violations[0].String()
	}
	lines := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		lines[i] = v.String()
	}
	return fmt.Sprintf("%s: %d schema violations:\n  %s", e.File, len(lines), strings.Join(lines, "\n  "))
}

func (e *SchemaError) Unwrap() error { return ErrSchemaViolation }

// FormatError converts a CUE error into a SchemaError for file. Errors that
// carry no CUE detail are prefixed with the file name and returned wrapped.
func FormatError(err error, file string) error {
	if err == nil {
		return nil
	}
	list := cueerrors.Errors(err)
	if len(list) == 0 {
		return fmt.Errorf("%s: %w", file, err)
	}

	se := &SchemaError{File: file}
	for _, e := range list {
		path := formatPath(cueerrors.Path(e))
		msg := e.Error()
		// CUE often repeats the path at the start of the message.
		if path != "" {
			msg = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(msg, path), ":"))
		}
		se.Violations = append(se.Violations, Violation{Path: path, Message: msg})
	}
	return se
}

// formatPath renders ["modules", "0", "uuid"] as "modules[0].uuid".
func formatPath(path []string) string {
	var b strings.Builder
	for i, part := range path {
		if _, err := strconv.Atoi(part); err == nil && i > 0 {
			fmt.Fprintf(&b, "[%s]", part)
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(part)
	}
	return b.String()
}

// CheckFileSize rejects data larger than maxSize bytes.
func CheckFileSize(data []byte, maxSize int64, file string) error {
	if size := int64(len(data)); size > maxSize {
		return fmt.Errorf("%s: %w: %d bytes exceeds the %d byte limit", file, ErrTooLarge, size, maxSize)
	}
	return nil
}
