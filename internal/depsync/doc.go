// SPDX-License-Identifier: MPL-2.0

// Package depsync rewrites a resource pack's dependency on its behavior pack
// so it references the behavior pack's current identity.
package depsync
