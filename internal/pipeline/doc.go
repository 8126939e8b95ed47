// SPDX-License-Identifier: MPL-2.0

// Package pipeline runs a deployment: the server gate, validation, identity
// rotation, dependency synchronization, publishing, world descriptors and
// cache invalidation, strictly in that order.
//
// Validation is an all-or-nothing gate: when any file of either pack is
// malformed nothing is mutated. Failures after validation halt the run but
// completed stages are not rolled back.
package pipeline
