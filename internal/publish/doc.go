// SPDX-License-Identifier: MPL-2.0

// Package publish replaces the world's published pack copies with the source
// trees and regenerates the world registration descriptors.
package publish
