// SPDX-License-Identifier: MPL-2.0

// Package cache removes the host's cached copies of development packs so the
// freshly published packs are reloaded.
//
// Clearing is only supported on Windows; elsewhere the Noop invalidator
// reports an informational skip.
package cache
