// SPDX-License-Identifier: MPL-2.0

// Package validate checks every JSON file of a pack for syntactic
// well-formedness, and the pack manifest against a schema, before the deploy
// pipeline mutates anything. Validation is read-only.
package validate
