// SPDX-License-Identifier: MPL-2.0

// Package identity rotates the identity of a pack: every version patch
// component is advanced by one and every uuid (header and modules) is
// replaced by a freshly generated one.
//
// Changing both signals at once is what forces the host to treat a
// deployment as a new revision instead of serving a cached copy.
package identity
