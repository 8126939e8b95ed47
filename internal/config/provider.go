// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidLoadOptions is the sentinel error wrapped by InvalidLoadOptionsError.
var ErrInvalidLoadOptions = errors.New("invalid load options")

type (
	// LoadOptions defines explicit configuration loading inputs.
	LoadOptions struct {
		// ConfigFilePath forces loading from a specific config file when set.
		ConfigFilePath string
		// ProjectDir is searched for packdeploy.cue and anchors a relative
		// project_root. Defaults to the working directory.
		ProjectDir string
		// ConfigDirPath overrides the user config directory lookup when set.
		ConfigDirPath string
	}

	// InvalidLoadOptionsError is returned when LoadOptions has invalid fields.
	// It wraps ErrInvalidLoadOptions for errors.Is() compatibility.
	InvalidLoadOptionsError struct {
		FieldErrors []error
	}

	// Provider loads configuration from explicit options.
	Provider interface {
		Load(ctx context.Context, opts LoadOptions) (*Loaded, error)
	}

	// Loaded is a resolved configuration and the file it came from.
	Loaded struct {
		Config *Config
		// Path is empty when only defaults and environment were used.
		Path string
	}

	fileProvider struct{}
)

// Validate rejects whitespace-only paths; empty fields mean "use the default".
func (o LoadOptions) Validate() error {
	var errs []error
	for _, f := range []struct{ name, value string }{
		{"ConfigFilePath", o.ConfigFilePath},
		{"ProjectDir", o.ProjectDir},
		{"ConfigDirPath", o.ConfigDirPath},
	} {
		if f.value != "" && strings.TrimSpace(f.value) == "" {
			errs = append(errs, fmt.Errorf("%s: path must not be whitespace-only", f.name))
		}
	}
	if len(errs) > 0 {
		return &InvalidLoadOptionsError{FieldErrors: errs}
	}
	return nil
}

// Error implements the error interface for InvalidLoadOptionsError.
func (e *InvalidLoadOptionsError) Error() string {
	if len(e.FieldErrors) == 1 {
		return fmt.Sprintf("invalid load options: %v", e.FieldErrors[0])
	}
	return fmt.Sprintf("invalid load options: %d field errors", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidLoadOptions for errors.Is() compatibility.
func (e *InvalidLoadOptionsError) Unwrap() error { return ErrInvalidLoadOptions }

// NewProvider creates a configuration provider.
func NewProvider() Provider {
	return &fileProvider{}
}

// Load reads configuration from the requested source.
func (p *fileProvider) Load(ctx context.Context, opts LoadOptions) (*Loaded, error) {
	cfg, path, err := loadWithOptions(ctx, opts)
	if err != nil {
		return nil, err
	}

	return &Loaded{Config: cfg, Path: path}, nil
}
