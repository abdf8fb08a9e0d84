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


package gcs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tembo-io/clerk-fdw/connectors/clerk"
	"github.com/tembo-io/clerk-fdw/connectors/export"
)

type memObject struct {
	bytes.Buffer
	bucket, key, contentType string
	metadata                 map[string]string
	closed                   bool
	writeErr, closeErr       error
}

func (o *memObject) Write(p []byte) (int, error) {
	if o.writeErr != nil {
		return 0, o.writeErr
	}
	return o.Buffer.Write(p)
}

func (o *memObject) Close() error {
	o.closed = true
	return o.closeErr
}

type memStore struct {
	objects            []*memObject
	writeErr, closeErr error
}

func (m *memStore) open(ctx context.Context, bucket, key, contentType string, metadata map[string]string) io.WriteCloser {
	o := &memObject{bucket: bucket, key: key, contentType: contentType, metadata: metadata, writeErr: m.writeErr, closeErr: m.closeErr}
	m.objects = append(m.objects, o)
	return o
}

func testBatch() *export.Batch {
	return &export.Batch{
		ScanID: "scan-7",
		Table:  "clerk_organizations",
		Object: "organizations",
		Rows: []clerk.Row{
			{Columns: []string{"organization_id", "name"}, Cells: []interface{}{"org_1", "Acme"}},
			{Columns: []string{"organization_id", "name"}, Cells: []interface{}{"org_2", "Globex"}},
		},
		ExportedAt: time.Date(2025, 11, 30, 8, 0, 0, 0, time.UTC),
	}
}

func TestSink_Write(t *testing.T) {
	store := &memStore{}
	sink := NewWithWriter(store.open, "clerk-bucket", "daily")

	res, err := sink.Write(context.Background(), testBatch())
	require.NoError(t, err)
	assert.Equal(t, "gs://clerk-bucket/daily/clerk_organizations/2025/11/30/scan-7.ndjson", res.Location)
	assert.Equal(t, 2, res.Rows)

	require.Len(t, store.objects, 1)
	obj := store.objects[0]
	assert.True(t, obj.closed)
	assert.Equal(t, "application/x-ndjson", obj.contentType)
	assert.Equal(t, "2", obj.metadata["rows"])
	assert.Equal(t, "organizations", obj.metadata["object"])
	assert.Equal(t, res.Bytes, obj.Len())
}

func TestSink_WriteErrors(t *testing.T) {
	tests := []struct {
		name  string
		store *memStore
		want  string
	}{
		{"write", &memStore{writeErr: errors.New("broken pipe")}, "broken pipe"},
		{"close", &memStore{closeErr: errors.New("precondition failed")}, "finalize"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := NewWithWriter(tt.store.open, "b", "")
			_, err := sink.Write(context.Background(), testBatch())
			assert.ErrorContains(t, err, tt.want)
			require.Len(t, tt.store.objects, 1)
			assert.True(t, tt.store.objects[0].closed)
		})
	}
}

func TestNew_RequiresBucket(t *testing.T) {
	_, err := export.NewSink(context.Background(), "gcs", map[string]string{"prefix": "x"})
	assert.ErrorContains(t, err, "bucket")
}

func TestSink_CloseWithoutClient(t *testing.T) {
	sink := NewWithWriter((&memStore{}).open, "b", "")
	assert.NoError(t, sink.Close(context.Background()))
}
