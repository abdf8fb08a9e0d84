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

import (
	"context"
	"fmt"
	"time"

	"github.com/tembo-io/clerk-fdw/connectors/clerk"
	"github.com/tembo-io/clerk-fdw/shared/logger"
)

// Result summarizes one export run.
type Result struct {
	ScanID      string        `json:"scan_id"`
	Table       string        `json:"table"`
	Sink        string        `json:"sink"`
	Location    string        `json:"location"`
	Rows        int           `json:"rows"`
	Bytes       int           `json:"bytes,omitempty"`
	Diagnostics int           `json:"diagnostics"`
	Duration    time.Duration `json:"duration"`
}

// Export drains a begun scan and writes it to sink. Empty scans are still
// written so downstream consumers see a marker for every run.
func Export(ctx context.Context, scan *clerk.Scan, sink Sink, table, object string, log *logger.Logger) (*Result, error) {
	if log == nil {
		log = logger.Discard("export")
	}
	start := time.Now()

	batch := FromScan(scan, table, object)
	written, err := sink.Write(ctx, batch)
	if err != nil {
		recordExport(sink.Type(), 0, err)
		log.Error("", batch.ScanID, "export write failed", logger.Fields{
			"table": table,
			"sink":  sink.Type(),
			"error": err.Error(),
		})
		return nil, fmt.Errorf("export %s to %s: %w", table, sink.Type(), err)
	}

	res := &Result{
		ScanID:      batch.ScanID,
		Table:       table,
		Sink:        sink.Type(),
		Location:    written.Location,
		Rows:        written.Rows,
		Bytes:       written.Bytes,
		Diagnostics: len(batch.Diagnostics),
		Duration:    time.Since(start),
	}
	recordExport(res.Sink, res.Rows, nil)
	log.InfoWithDuration("", batch.ScanID, "export complete", res.Duration, logger.Fields{
		"table":       table,
		"sink":        res.Sink,
		"location":    res.Location,
		"rows":        res.Rows,
		"diagnostics": res.Diagnostics,
	})
	return res, nil
}
