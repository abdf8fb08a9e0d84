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
	"context"
	"fmt"
	"io"
	"strconv"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/tembo-io/clerk-fdw/connectors/export"
)

func init() {
	export.RegisterSink("gcs", func(ctx context.Context, options map[string]string) (export.Sink, error) {
		return New(ctx, options)
	})
}

// WriterFunc opens a writer for one object.
type WriterFunc func(ctx context.Context, bucket, key, contentType string, metadata map[string]string) io.WriteCloser

// Sink writes each batch as one NDJSON object in a GCS bucket.
type Sink struct {
	client *storage.Client
	open   WriterFunc
	bucket string
	prefix string
}

// New builds a GCS sink. bucket is required; credentials come from
// credentials_file, credentials_json or application default credentials.
// endpoint points the client at an emulator.
func New(ctx context.Context, options map[string]string) (*Sink, error) {
	bucket, err := export.RequireOption(options, "bucket")
	if err != nil {
		return nil, err
	}

	var opts []option.ClientOption
	if credFile := options["credentials_file"]; credFile != "" {
		opts = append(opts, option.WithCredentialsFile(credFile))
	} else if credJSON := options["credentials_json"]; credJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credJSON)))
	}
	if endpoint := options["endpoint"]; endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint), option.WithoutAuthentication())
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}

	s := NewWithWriter(clientWriter(client), bucket, options["prefix"])
	s.client = client
	return s, nil
}

// NewWithWriter builds a sink that opens objects through open.
func NewWithWriter(open WriterFunc, bucket, prefix string) *Sink {
	return &Sink{open: open, bucket: bucket, prefix: prefix}
}

func clientWriter(client *storage.Client) WriterFunc {
	return func(ctx context.Context, bucket, key, contentType string, metadata map[string]string) io.WriteCloser {
		w := client.Bucket(bucket).Object(key).NewWriter(ctx)
		w.ContentType = contentType
		w.Metadata = metadata
		return w
	}
}

// Type returns "gcs".
func (s *Sink) Type() string { return "gcs" }

// Write uploads the batch to gs://<bucket>/<object key>. The object exists
// only once the writer closes cleanly.
func (s *Sink) Write(ctx context.Context, batch *export.Batch) (*export.WriteResult, error) {
	data, err := batch.NDJSON()
	if err != nil {
		return nil, err
	}
	key := batch.ObjectKey(s.prefix)

	w := s.open(ctx, s.bucket, key, "application/x-ndjson", map[string]string{
		"scan-id": batch.ScanID,
		"object":  batch.Object,
		"rows":    strconv.Itoa(len(batch.Rows)),
	})
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("write gs://%s/%s: %w", s.bucket, key, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalize gs://%s/%s: %w", s.bucket, key, err)
	}

	return &export.WriteResult{
		Location: "gs://" + s.bucket + "/" + key,
		Rows:     len(batch.Rows),
		Bytes:    len(data),
	}, nil
}

// Close releases the storage client.
func (s *Sink) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
