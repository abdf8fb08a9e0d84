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

package sdk

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics for connector calls
var (
	promConnectorCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clerkfdw_connector_calls_total",
			Help: "Total number of connector operations",
		},
		[]string{"connector", "operation", "status"},
	)
	promConnectorDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clerkfdw_connector_duration_milliseconds",
			Help:    "Connector operation duration in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 10000},
		},
		[]string{"connector", "operation"},
	)
)

func init() {
	prometheus.MustRegister(promConnectorCalls)
	prometheus.MustRegister(promConnectorDuration)
}

// ConnectorMetrics tracks in-process counters for one connector type and
// mirrors every observation into the Prometheus vectors above.
type ConnectorMetrics struct {
	connectorType string

	queriesTotal       int64
	errorsTotal        int64
	connectsTotal      int64
	queryDurationTotal int64
	connected          int32
}

// NewConnectorMetrics creates a new metrics collector
func NewConnectorMetrics(connectorType string) *ConnectorMetrics {
	return &ConnectorMetrics{connectorType: connectorType}
}

// RecordQuery records a query operation
func (m *ConnectorMetrics) RecordQuery(duration time.Duration, err error) {
	atomic.AddInt64(&m.queriesTotal, 1)
	atomic.AddInt64(&m.queryDurationTotal, int64(duration))

	status := "success"
	if err != nil {
		atomic.AddInt64(&m.errorsTotal, 1)
		status = "error"
	}
	promConnectorCalls.WithLabelValues(m.connectorType, "query", status).Inc()
	promConnectorDuration.WithLabelValues(m.connectorType, "query").Observe(float64(duration.Milliseconds()))
}

// RecordConnect records a connect operation
func (m *ConnectorMetrics) RecordConnect(err error) {
	status := "success"
	if err != nil {
		atomic.AddInt64(&m.errorsTotal, 1)
		status = "error"
	} else {
		atomic.AddInt64(&m.connectsTotal, 1)
		atomic.StoreInt32(&m.connected, 1)
	}
	promConnectorCalls.WithLabelValues(m.connectorType, "connect", status).Inc()
}

// RecordDisconnect records a disconnect operation
func (m *ConnectorMetrics) RecordDisconnect() {
	atomic.StoreInt32(&m.connected, 0)
	promConnectorCalls.WithLabelValues(m.connectorType, "disconnect", "success").Inc()
}

// GetStats returns current metrics
func (m *ConnectorMetrics) GetStats() *MetricsSnapshot {
	queries := atomic.LoadInt64(&m.queriesTotal)

	var avg time.Duration
	if queries > 0 {
		avg = time.Duration(atomic.LoadInt64(&m.queryDurationTotal) / queries)
	}

	return &MetricsSnapshot{
		ConnectorType:   m.connectorType,
		QueriesTotal:    queries,
		ErrorsTotal:     atomic.LoadInt64(&m.errorsTotal),
		ConnectsTotal:   atomic.LoadInt64(&m.connectsTotal),
		AvgQueryLatency: avg,
		Connected:       atomic.LoadInt32(&m.connected) == 1,
	}
}

// MetricsSnapshot is a point-in-time copy of ConnectorMetrics
type MetricsSnapshot struct {
	ConnectorType   string        `json:"connector_type"`
	QueriesTotal    int64         `json:"queries_total"`
	ErrorsTotal     int64         `json:"errors_total"`
	ConnectsTotal   int64         `json:"connects_total"`
	AvgQueryLatency time.Duration `json:"avg_query_latency"`
	Connected       bool          `json:"connected"`
}
