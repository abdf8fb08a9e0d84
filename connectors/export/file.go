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
	"os"
	"path/filepath"

	"github.com/tembo-io/clerk-fdw/connectors/base"
)

func init() {
	RegisterSink("file", func(ctx context.Context, options map[string]string) (Sink, error) {
		return NewFileSink(OptionOr(options, "dir", "./exports"), options["prefix"])
	})
}

// FileSink writes NDJSON batches under a local directory using the same
// key layout as the object-store sinks.
type FileSink struct {
	dir    string
	prefix string
}

// NewFileSink creates a sink rooted at dir.
func NewFileSink(dir, prefix string) (*FileSink, error) {
	if err := base.ValidateFilePath(dir); err != nil {
		return nil, fmt.Errorf("invalid export dir: %w", err)
	}
	return &FileSink{dir: dir, prefix: prefix}, nil
}

// Type returns "file".
func (s *FileSink) Type() string { return "file" }

// Write stores the batch at <dir>/<object key>.
func (s *FileSink) Write(ctx context.Context, batch *Batch) (*WriteResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := batch.NDJSON()
	if err != nil {
		return nil, err
	}

	target := filepath.Join(s.dir, filepath.FromSlash(batch.ObjectKey(s.prefix)))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return nil, fmt.Errorf("write export file: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("finalize export file: %w", err)
	}

	return &WriteResult{Location: target, Rows: len(batch.Rows), Bytes: len(data)}, nil
}

// Close is a no-op.
func (s *FileSink) Close(ctx context.Context) error { return nil }
