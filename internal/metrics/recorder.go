// SPDX-License-Identifier: MPL-2.0

package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultWarning  ResultLabel = "warning"
	ResultFailed   ResultLabel = "failed"
	ResultSkipped  ResultLabel = "skipped"
	ResultCanceled ResultLabel = "canceled"
)

// Recorder defines observability hooks for a deployment run.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveRunDuration(d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	IncRunOutcome(outcome ResultLabel)
	AddFilesValidated(pack string, n int)
	SetPackVersion(pack string, patch int)
	AddCacheRemoved(n int)
	// Flush persists the recorded values, if the recorder has a sink.
	Flush() error
}

// NoopRecorder is a Recorder that does nothing (default when no metrics
// file is configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObserveRunDuration(time.Duration)           {}
func (NoopRecorder) IncStageResult(string, ResultLabel)         {}
func (NoopRecorder) IncRunOutcome(ResultLabel)                  {}
func (NoopRecorder) AddFilesValidated(string, int)              {}
func (NoopRecorder) SetPackVersion(string, int)                 {}
func (NoopRecorder) AddCacheRemoved(int)                        {}
func (NoopRecorder) Flush() error                               { return nil }
