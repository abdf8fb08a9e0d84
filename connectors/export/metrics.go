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


package export

import "github.com/prometheus/client_golang/prometheus"

var (
	promExports = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clerkfdw_exports_total",
			Help: "Total number of export runs by sink type",
		},
		[]string{"sink", "status"},
	)
	promExportRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clerkfdw_export_rows_total",
			Help: "Total number of rows written to sinks",
		},
		[]string{"sink"},
	)
)

func init() {
	prometheus.MustRegister(promExports)
	prometheus.MustRegister(promExportRows)
}

func recordExport(sink string, rows int, err error) {
	if err != nil {
		promExports.WithLabelValues(sink, "error").Inc()
		return
	}
	promExports.WithLabelValues(sink, "success").Inc()
	promExportRows.WithLabelValues(sink).Add(float64(rows))
}
