// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package clerk

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics for the scan engine
var (
	promPageFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clerkfdw_page_fetches_total",
			Help: "Total number of upstream page fetches",
		},
		[]string{"resource", "status"},
	)
	promPageFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clerkfdw_page_fetch_duration_seconds",
			Help:    "Upstream page fetch duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"resource"},
	)
	promRowsProjected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clerkfdw_rows_projected_total",
			Help: "Total number of rows projected from upstream pages",
		},
		[]string{"resource"},
	)
	promScanDiagnostics = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clerkfdw_scan_diagnostics_total",
			Help: "Total number of non-fatal scan diagnostics",
		},
		[]string{"code"},
	)
	promScans = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clerkfdw_scans_total",
			Help: "Total number of scans started",
		},
		[]string{"resource", "status"},
	)
)

func init() {
	prometheus.MustRegister(promPageFetches)
	prometheus.MustRegister(promPageFetchDuration)
	prometheus.MustRegister(promRowsProjected)
	prometheus.MustRegister(promScanDiagnostics)
	prometheus.MustRegister(promScans)
}

func recordPageFetch(resource ResourceType, d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	promPageFetches.WithLabelValues(string(resource), status).Inc()
	promPageFetchDuration.WithLabelValues(string(resource)).Observe(d.Seconds())
}

func recordRows(resource ResourceType, n int) {
	promRowsProjected.WithLabelValues(string(resource)).Add(float64(n))
}

func recordDiagnostic(code string) {
	promScanDiagnostics.WithLabelValues(code).Inc()
}

func recordScan(resource, status string) {
	promScans.WithLabelValues(resource, status).Inc()
}
