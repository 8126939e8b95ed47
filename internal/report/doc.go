// SPDX-License-Identifier: MPL-2.0

// Package report renders deployment summaries and pack status as aligned
// text tables or as Markdown.
package report
