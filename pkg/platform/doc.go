// SPDX-License-Identifier: MPL-2.0

// Package platform holds operating system names and the Windows file naming
// rules that apply to published pack folders.
package platform
