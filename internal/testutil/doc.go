// SPDX-License-Identifier: MPL-2.0

// Package testutil provides test helpers: a controllable clock for timed
// waits and fixtures for building pack trees on in-memory filesystems.
package testutil
