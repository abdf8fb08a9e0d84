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
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestConnectorMetrics(t *testing.T) {
	m := NewConnectorMetrics("metrics_test")

	m.RecordConnect(nil)
	m.RecordQuery(10*time.Millisecond, nil)
	m.RecordQuery(30*time.Millisecond, errors.New("boom"))

	stats := m.GetStats()
	if stats.ConnectorType != "metrics_test" {
		t.Errorf("ConnectorType = %q", stats.ConnectorType)
	}
	if stats.QueriesTotal != 2 {
		t.Errorf("QueriesTotal = %d, want 2", stats.QueriesTotal)
	}
	if stats.ErrorsTotal != 1 {
		t.Errorf("ErrorsTotal = %d, want 1", stats.ErrorsTotal)
	}
	if stats.AvgQueryLatency != 20*time.Millisecond {
		t.Errorf("AvgQueryLatency = %v, want 20ms", stats.AvgQueryLatency)
	}
	if !stats.Connected || stats.ConnectsTotal != 1 {
		t.Errorf("connection state = %v/%d", stats.Connected, stats.ConnectsTotal)
	}

	m.RecordDisconnect()
	if m.GetStats().Connected {
		t.Error("Connected should be false after disconnect")
	}

	if got := testutil.ToFloat64(promConnectorCalls.WithLabelValues("metrics_test", "query", "error")); got != 1 {
		t.Errorf("prometheus error count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(promConnectorCalls.WithLabelValues("metrics_test", "query", "success")); got != 1 {
		t.Errorf("prometheus success count = %v, want 1", got)
	}
}

func TestConnectorMetrics_FailedConnect(t *testing.T) {
	m := NewConnectorMetrics("metrics_test_fail")
	m.RecordConnect(errors.New("no key"))

	stats := m.GetStats()
	if stats.Connected || stats.ConnectsTotal != 0 || stats.ErrorsTotal != 1 {
		t.Errorf("stats after failed connect = %+v", stats)
	}
	if stats.AvgQueryLatency != 0 {
		t.Errorf("AvgQueryLatency with no queries = %v", stats.AvgQueryLatency)
	}
}
