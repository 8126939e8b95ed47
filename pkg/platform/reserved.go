// SPDX-License-Identifier: MPL-2.0

package platform

import "strings"

// reservedNames cannot name a file or folder on Windows, whatever follows the
// first dot.
var reservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true,
	"COM5": true, "COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true,
	"LPT5": true, "LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// IsReservedName reports whether name is a device name on Windows. Pack
// folders are copied into worlds that may be opened there, so the check
// applies on every platform.
func IsReservedName(name string) bool {
	base := strings.ToUpper(name)
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	return reservedNames[strings.TrimRight(base, " ")]
}
