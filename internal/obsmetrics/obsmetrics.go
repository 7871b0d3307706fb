// Copyright The Kata Sandbox Metrics Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package obsmetrics carries the daemon's own process-wide observability
// counters: how the scrape loop itself is doing, as distinct from the
// per-sandbox metrics it ships onward. These are never mixed into the
// Aggregation View.
package obsmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// durationBucketsMS are the scrape-duration histogram buckets spec.md §4.3
// fixes: 1, 2, 4, 8, ..., 512 milliseconds.
var durationBucketsMS = []float64{1, 2, 4, 8, 16, 32, 64, 128, 256, 512}

// Recorder is the set of process-wide scrape counters the Scraper updates
// every tick.
type Recorder struct {
	attempts    prometheus.Counter
	failures    prometheus.Counter
	duration    prometheus.Histogram
	active      prometheus.Gauge
	parseErrors prometheus.Counter
}

// NewRecorder registers the daemon's observability metrics against reg and
// returns a Recorder. Passing prometheus.NewRegistry() keeps these counters
// isolated from the Aggregation View, which is served separately and never
// through a prometheus.Gatherer (see DESIGN.md).
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		attempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "kata_sandbox_metrics_scrape_attempts_total",
			Help: "Total number of per-sandbox scrape attempts.",
		}),
		failures: factory.NewCounter(prometheus.CounterOpts{
			Name: "kata_sandbox_metrics_scrape_failures_total",
			Help: "Total number of per-sandbox scrapes that failed or timed out.",
		}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "kata_sandbox_metrics_scrape_duration_milliseconds",
			Help:    "Per-sandbox scrape duration in milliseconds.",
			Buckets: durationBucketsMS,
		}),
		active: factory.NewGauge(prometheus.GaugeOpts{
			Name: "kata_sandbox_metrics_active_sandboxes",
			Help: "Number of sandboxes currently known to the registry.",
		}),
		parseErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "kata_sandbox_metrics_scrape_parse_errors_total",
			Help: "Total number of exposition-format lines skipped for being unparseable.",
		}),
	}
}

// ObserveAttempt records one scrape attempt's outcome and duration.
func (r *Recorder) ObserveAttempt(ok bool, durationMS float64) {
	r.attempts.Inc()
	if !ok {
		r.failures.Inc()
	}
	r.duration.Observe(durationMS)
}

// ObserveParseErrors adds n unparseable lines to the running total.
func (r *Recorder) ObserveParseErrors(n int) {
	if n > 0 {
		r.parseErrors.Add(float64(n))
	}
}

// SetActiveSandboxes updates the active-sandboxes gauge to n.
func (r *Recorder) SetActiveSandboxes(n int) {
	r.active.Set(float64(n))
}
