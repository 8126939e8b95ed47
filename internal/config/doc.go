// SPDX-License-Identifier: MPL-2.0

// Package config loads packdeploy settings using Viper with CUE as the file format.
//
// A packdeploy.cue file is looked up at an explicit path, then in the project
// directory, then in the user configuration directory. The file is validated
// against the embedded #Config schema (config_schema.cue), merged over the
// defaults, and finally overridden by PACKDEPLOY_* environment variables.
// Relative paths are resolved against project_root.
package config
