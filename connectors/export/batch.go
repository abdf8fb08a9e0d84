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
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/tembo-io/clerk-fdw/connectors/clerk"
)

// Batch is one fully materialized scan ready for a sink.
type Batch struct {
	ScanID      string
	Table       string
	Object      string
	Columns     []string
	Rows        []clerk.Row
	Diagnostics []clerk.Diagnostic
	ExportedAt  time.Time
}

// Record is a row as database sinks store it.
type Record struct {
	ScanID     string
	Object     string
	RowIndex   int
	Data       json.RawMessage
	ExportedAt time.Time
}

// FromScan drains scan into a batch. The scan is ended.
func FromScan(scan *clerk.Scan, table, object string) *Batch {
	b := &Batch{
		ScanID:     scan.ID,
		Table:      table,
		Object:     object,
		Columns:    scan.Columns(),
		ExportedAt: time.Now().UTC(),
	}
	for row, ok := scan.NextRow(); ok; row, ok = scan.NextRow() {
		b.Rows = append(b.Rows, row)
	}
	b.Diagnostics = scan.Diagnostics()
	scan.EndScan()
	return b
}

// NDJSON encodes the rows one JSON object per line, keeping column order.
func (b *Batch) NDJSON() ([]byte, error) {
	var buf bytes.Buffer
	for i, row := range b.Rows {
		line, err := row.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("encode row %d: %w", i, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// ObjectKey is <prefix>/<table>/<yyyy>/<mm>/<dd>/<scan-id>.ndjson. An empty
// prefix is omitted.
func (b *Batch) ObjectKey(prefix string) string {
	t := b.ExportedAt.UTC()
	key := path.Join(
		b.Table,
		fmt.Sprintf("%04d", t.Year()),
		fmt.Sprintf("%02d", int(t.Month())),
		fmt.Sprintf("%02d", t.Day()),
		b.ScanID+".ndjson",
	)
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		key = prefix + "/" + key
	}
	return key
}

// Records returns the rows in database-sink form.
func (b *Batch) Records() ([]Record, error) {
	out := make([]Record, 0, len(b.Rows))
	for i, row := range b.Rows {
		data, err := row.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("encode row %d: %w", i, err)
		}
		out = append(out, Record{
			ScanID:     b.ScanID,
			Object:     b.Object,
			RowIndex:   i,
			Data:       data,
			ExportedAt: b.ExportedAt,
		})
	}
	return out, nil
}
