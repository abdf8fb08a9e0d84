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


package cassandra

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/gocql/gocql"

	"github.com/tembo-io/clerk-fdw/connectors/clerk"
	"github.com/tembo-io/clerk-fdw/connectors/export"
)

type fakeSession struct {
	stmts    []string
	batches  [][][]interface{}
	batchErr error
	closed   bool
}

func (f *fakeSession) Exec(ctx context.Context, stmt string, args ...interface{}) error {
	f.stmts = append(f.stmts, stmt)
	return nil
}

func (f *fakeSession) ExecBatch(ctx context.Context, stmt string, rows [][]interface{}) error {
	if f.batchErr != nil {
		return f.batchErr
	}
	f.stmts = append(f.stmts, stmt)
	f.batches = append(f.batches, rows)
	return nil
}

func (f *fakeSession) Close() { f.closed = true }

func newTestSink(t *testing.T, sess *fakeSession) *Sink {
	t.Helper()
	s, err := NewWithSession(context.Background(), sess, "clerk", DefaultTable)
	if err != nil {
		t.Fatalf("NewWithSession: %v", err)
	}
	s.logger = log.New(io.Discard, "", 0)
	return s
}

func batchOf(n int) *export.Batch {
	b := &export.Batch{ScanID: "scan-c", Object: "users", ExportedAt: time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)}
	for i := 0; i < n; i++ {
		b.Rows = append(b.Rows, clerk.Row{Columns: []string{"user_id"}, Cells: []interface{}{fmt.Sprintf("user_%d", i)}})
	}
	return b
}

func TestNewWithSession_CreatesTable(t *testing.T) {
	sess := &fakeSession{}
	newTestSink(t, sess)
	if len(sess.stmts) != 1 || !strings.Contains(sess.stmts[0], "CREATE TABLE IF NOT EXISTS clerk.clerk_export_rows") {
		t.Errorf("stmts = %v", sess.stmts)
	}
}

func TestNewWithSession_InvalidIdentifiers(t *testing.T) {
	for _, tc := range [][2]string{{"bad-ks", "t"}, {"ks", "table"}, {"ks", "x;drop"}} {
		if _, err := NewWithSession(context.Background(), &fakeSession{}, tc[0], tc[1]); err == nil {
			t.Errorf("%v: expected error", tc)
		}
	}
}

func TestSink_WriteChunks(t *testing.T) {
	sess := &fakeSession{}
	s := newTestSink(t, sess)
	s.batchSize = 2

	res, err := s.Write(context.Background(), batchOf(5))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if res.Rows != 5 {
		t.Errorf("Rows = %d", res.Rows)
	}
	if len(sess.batches) != 3 {
		t.Fatalf("batches = %d, want 3", len(sess.batches))
	}
	last := sess.batches[2]
	if len(last) != 1 || last[0][1] != 4 || last[0][3] != `{"user_id":"user_4"}` {
		t.Errorf("last batch = %v", last)
	}
	if res.Location != "cassandra:clerk.clerk_export_rows?scan_id=scan-c" {
		t.Errorf("Location = %s", res.Location)
	}
}

func TestSink_WriteError(t *testing.T) {
	sess := &fakeSession{}
	s := newTestSink(t, sess)
	sess.batchErr = errors.New("WriteTimeout")

	if _, err := s.Write(context.Background(), batchOf(1)); err == nil || !strings.Contains(err.Error(), "WriteTimeout") {
		t.Errorf("err = %v", err)
	}
}

func TestSink_Close(t *testing.T) {
	sess := &fakeSession{}
	s := newTestSink(t, sess)
	if err := s.Close(context.Background()); err != nil || !sess.closed {
		t.Errorf("Close: err=%v closed=%v", err, sess.closed)
	}
}

func TestParseConsistency(t *testing.T) {
	tests := map[string]gocql.Consistency{
		"":             gocql.Quorum,
		"one":          gocql.One,
		"LOCAL_QUORUM": gocql.LocalQuorum,
		"bogus":        gocql.Quorum,
	}
	for in, want := range tests {
		if got := parseConsistency(in); got != want {
			t.Errorf("parseConsistency(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew_RequiredOptions(t *testing.T) {
	if _, err := export.NewSink(context.Background(), "cassandra", map[string]string{"keyspace": "clerk"}); err == nil {
		t.Error("expected error without hosts")
	}
	if _, err := New(map[string]string{"hosts": "127.0.0.1"}); err == nil {
		t.Error("expected error without keyspace")
	}
}
