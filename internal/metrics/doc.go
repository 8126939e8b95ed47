// SPDX-License-Identifier: MPL-2.0

// Package metrics records deployment run metrics. The Prometheus recorder
// writes them in the node-exporter textfile format at the end of a run, so a
// collector can pick them up without the tool serving HTTP.
package metrics
