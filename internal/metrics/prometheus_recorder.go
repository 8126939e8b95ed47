// SPDX-License-Identifier: MPL-2.0

package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "packdeploy"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	reg            *prom.Registry
	path           string
	stageDuration  *prom.HistogramVec
	runDuration    prom.Histogram
	stageResults   *prom.CounterVec
	runOutcome     *prom.CounterVec
	filesValidated *prom.CounterVec
	packPatch      *prom.GaugeVec
	cacheRemoved   prom.Counter
	lastRun        prom.Gauge
}

// NewPrometheusRecorder registers the run metrics on reg (a fresh registry
// when nil). Flush writes them to path; an empty path makes Flush a no-op.
func NewPrometheusRecorder(reg *prom.Registry, path string) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{reg: reg, path: path}
	pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "stage_duration_seconds",
		Help:      "Duration of individual deployment stages",
		Buckets:   prom.DefBuckets,
	}, []string{"stage"})
	pr.runDuration = prom.NewHistogram(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Total deployment duration",
		Buckets:   prom.DefBuckets,
	})
	pr.stageResults = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "stage_results_total",
		Help:      "Stage result counts by outcome",
	}, []string{"stage", "result"})
	pr.runOutcome = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "run_outcomes_total",
		Help:      "Deployment outcomes by final status",
	}, []string{"outcome"})
	pr.filesValidated = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "files_validated_total",
		Help:      "JSON files checked per pack",
	}, []string{"pack"})
	pr.packPatch = prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "pack_patch_version",
		Help:      "Patch component of the deployed pack version",
	}, []string{"pack"})
	pr.cacheRemoved = prom.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Name:      "cache_dirs_removed_total",
		Help:      "Host cache directories removed",
	})
	pr.lastRun = prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the metrics were last written",
	})
	reg.MustRegister(pr.stageDuration, pr.runDuration, pr.stageResults, pr.runOutcome,
		pr.filesValidated, pr.packPatch, pr.cacheRemoved, pr.lastRun)
	return pr
}

// Registry returns the registry the metrics are registered on.
func (p *PrometheusRecorder) Registry() *prom.Registry { return p.reg }

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) IncRunOutcome(outcome ResultLabel) {
	p.runOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) AddFilesValidated(pack string, n int) {
	p.filesValidated.WithLabelValues(pack).Add(float64(n))
}

func (p *PrometheusRecorder) SetPackVersion(pack string, patch int) {
	p.packPatch.WithLabelValues(pack).Set(float64(patch))
}

func (p *PrometheusRecorder) AddCacheRemoved(n int) {
	p.cacheRemoved.Add(float64(n))
}

// Flush writes every registered metric to the textfile path.
func (p *PrometheusRecorder) Flush() error {
	if p.path == "" {
		return nil
	}
	p.lastRun.SetToCurrentTime()
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prom.WriteToTextfile(p.path, p.reg); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", p.path, err)
	}
	return nil
}
