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
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tembo-io/clerk-fdw/connectors/clerk"
	"github.com/tembo-io/clerk-fdw/shared/logger"
)

func usersFetcher(users ...map[string]interface{}) clerk.PageFetcher {
	return clerk.PageFetcherFunc(func(ctx context.Context, req clerk.PageRequest) ([]byte, error) {
		if req.Path != "/users" || req.Offset > 0 {
			return json.Marshal(map[string]interface{}{"data": []interface{}{}})
		}
		return json.Marshal(map[string]interface{}{"data": users})
	})
}

func begunScan(t *testing.T, fetcher clerk.PageFetcher, columns ...string) *clerk.Scan {
	t.Helper()
	scan := clerk.NewScan(fetcher, clerk.ScanOptions{CourtesyDelay: -1, Logger: logger.Discard("export-test")})
	require.NoError(t, scan.BeginScan(context.Background(), "users", columns, nil))
	return scan
}

func sampleBatch() *Batch {
	return &Batch{
		ScanID:  "scan-1",
		Table:   "clerk_users",
		Object:  "users",
		Columns: []string{"user_id", "first_name"},
		Rows: []clerk.Row{
			{Columns: []string{"user_id", "first_name"}, Cells: []interface{}{"user_1", "Ada"}},
			{Columns: []string{"user_id", "first_name"}, Cells: []interface{}{"user_2", nil}},
		},
		ExportedAt: time.Date(2025, 7, 4, 23, 30, 0, 0, time.UTC),
	}
}

func TestBatch_NDJSON(t *testing.T) {
	data, err := sampleBatch().NDJSON()
	require.NoError(t, err)
	assert.Equal(t,
		"{\"user_id\":\"user_1\",\"first_name\":\"Ada\"}\n{\"user_id\":\"user_2\",\"first_name\":null}\n",
		string(data))

	empty, err := (&Batch{}).NDJSON()
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestBatch_ObjectKey(t *testing.T) {
	b := sampleBatch()
	tests := []struct {
		prefix string
		want   string
	}{
		{"", "clerk_users/2025/07/04/scan-1.ndjson"},
		{"exports", "exports/clerk_users/2025/07/04/scan-1.ndjson"},
		{"/exports/clerk/", "exports/clerk/clerk_users/2025/07/04/scan-1.ndjson"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, b.ObjectKey(tt.prefix), "prefix %q", tt.prefix)
	}

	b.ExportedAt = time.Date(2025, 7, 4, 23, 30, 0, 0, time.FixedZone("UTC-5", -5*3600))
	assert.Equal(t, "clerk_users/2025/07/05/scan-1.ndjson", b.ObjectKey(""))
}

func TestBatch_Records(t *testing.T) {
	records, err := sampleBatch().Records()
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "scan-1", records[1].ScanID)
	assert.Equal(t, "users", records[1].Object)
	assert.Equal(t, 1, records[1].RowIndex)
	assert.JSONEq(t, `{"user_id":"user_2","first_name":null}`, string(records[1].Data))
}

func TestFromScan(t *testing.T) {
	scan := begunScan(t, usersFetcher(
		map[string]interface{}{"id": "user_1", "first_name": "Ada"},
		map[string]interface{}{"id": "user_2", "first_name": "Grace"},
	), "user_id", "first_name")

	b := FromScan(scan, "clerk_users", "users")
	assert.Equal(t, scan.ID, b.ScanID)
	assert.Equal(t, []string{"user_id", "first_name"}, b.Columns)
	require.Len(t, b.Rows, 2)
	v, _ := b.Rows[1].Get("first_name")
	assert.Equal(t, "Grace", v)
	assert.Empty(t, b.Diagnostics)

	_, ok := scan.NextRow()
	assert.False(t, ok, "scan must be ended")
}

func TestRegistry(t *testing.T) {
	assert.Contains(t, SinkTypes(), "file")

	_, err := NewSink(context.Background(), "nope", nil)
	assert.Error(t, err)

	assert.Panics(t, func() { RegisterSink("file", func(context.Context, map[string]string) (Sink, error) { return nil, nil }) })
	assert.Panics(t, func() { RegisterSink("nil-factory", nil) })
}

func TestOptions(t *testing.T) {
	opts := map[string]string{"bucket": "b", "empty": ""}

	v, err := RequireOption(opts, "bucket")
	require.NoError(t, err)
	assert.Equal(t, "b", v)

	_, err = RequireOption(opts, "empty")
	assert.ErrorContains(t, err, `"empty"`)

	assert.Equal(t, "def", OptionOr(opts, "missing", "def"))
	assert.Equal(t, "b", OptionOr(opts, "bucket", "def"))
}

func TestFileSink(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewSink(context.Background(), "file", map[string]string{"dir": dir, "prefix": "clerk"})
	require.NoError(t, err)
	defer sink.Close(context.Background())

	res, err := sink.Write(context.Background(), sampleBatch())
	require.NoError(t, err)

	want := filepath.Join(dir, "clerk", "clerk_users", "2025", "07", "04", "scan-1.ndjson")
	assert.Equal(t, want, res.Location)
	assert.Equal(t, 2, res.Rows)

	data, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, res.Bytes, len(data))
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 2)

	_, err = os.Stat(want + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestFileSink_InvalidDir(t *testing.T) {
	_, err := NewFileSink("../../etc", "")
	assert.Error(t, err)
}

func TestFileSink_CancelledContext(t *testing.T) {
	sink, err := NewFileSink(t.TempDir(), "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = sink.Write(ctx, sampleBatch())
	assert.ErrorIs(t, err, context.Canceled)
}

type recordingSink struct {
	batches []*Batch
	err     error
}

func (s *recordingSink) Type() string { return "recording" }

func (s *recordingSink) Write(ctx context.Context, b *Batch) (*WriteResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.batches = append(s.batches, b)
	return &WriteResult{Location: "mem://" + b.ScanID, Rows: len(b.Rows)}, nil
}

func (s *recordingSink) Close(ctx context.Context) error { return nil }

func TestExport(t *testing.T) {
	sink := &recordingSink{}
	scan := begunScan(t, usersFetcher(map[string]interface{}{"id": "user_1"}), "user_id")

	res, err := Export(context.Background(), scan, sink, "clerk_users", "users", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rows)
	assert.Equal(t, "recording", res.Sink)
	assert.Equal(t, "mem://"+scan.ID, res.Location)
	require.Len(t, sink.batches, 1)
	assert.Equal(t, "clerk_users", sink.batches[0].Table)
}

func TestExport_UnknownObjectStillWritten(t *testing.T) {
	sink := &recordingSink{}
	scan := clerk.NewScan(usersFetcher(), clerk.ScanOptions{CourtesyDelay: -1, Logger: logger.Discard("export-test")})
	require.NoError(t, scan.BeginScan(context.Background(), "invoices", nil, nil))

	res, err := Export(context.Background(), scan, sink, "clerk_invoices", "invoices", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Rows)
	assert.Equal(t, 1, res.Diagnostics)
}

func TestExport_WriteError(t *testing.T) {
	sink := &recordingSink{err: errors.New("disk full")}
	scan := begunScan(t, usersFetcher(), "user_id")

	_, err := Export(context.Background(), scan, sink, "clerk_users", "users", nil)
	assert.ErrorContains(t, err, "disk full")
}
