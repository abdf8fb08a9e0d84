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
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gocql/gocql"

	"github.com/tembo-io/clerk-fdw/connectors/base"
	"github.com/tembo-io/clerk-fdw/connectors/export"
)

const (
	DefaultTable     = "clerk_export_rows"
	DefaultBatchSize = 100
)

func init() {
	export.RegisterSink("cassandra", func(ctx context.Context, options map[string]string) (export.Sink, error) {
		return New(options)
	})
}

// Session runs CQL for the sink.
type Session interface {
	Exec(ctx context.Context, stmt string, args ...interface{}) error
	ExecBatch(ctx context.Context, stmt string, rows [][]interface{}) error
	Close()
}

type gocqlSession struct {
	session *gocql.Session
}

func (s gocqlSession) Exec(ctx context.Context, stmt string, args ...interface{}) error {
	return s.session.Query(stmt, args...).WithContext(ctx).Exec()
}

// ExecBatch sends rows as one unlogged batch; all rows share a partition.
func (s gocqlSession) ExecBatch(ctx context.Context, stmt string, rows [][]interface{}) error {
	b := s.session.NewBatch(gocql.UnloggedBatch).WithContext(ctx)
	for _, args := range rows {
		b.Query(stmt, args...)
	}
	return s.session.ExecuteBatch(b)
}

func (s gocqlSession) Close() { s.session.Close() }

// Sink writes exported rows into a Cassandra table partitioned by scan ID.
type Sink struct {
	session   Session
	keyspace  string
	table     string
	batchSize int
	logger    *log.Logger
}

// New connects to hosts (comma separated) and writes into keyspace.table.
// consistency defaults to QUORUM.
func New(options map[string]string) (*Sink, error) {
	hosts, err := export.RequireOption(options, "hosts")
	if err != nil {
		return nil, err
	}
	keyspace, err := export.RequireOption(options, "keyspace")
	if err != nil {
		return nil, err
	}

	cluster := gocql.NewCluster(strings.Split(hosts, ",")...)
	cluster.Keyspace = keyspace
	cluster.Consistency = parseConsistency(options["consistency"])
	cluster.Timeout = 5 * time.Second
	cluster.NumConns = 2
	if options["username"] != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: options["username"],
			Password: options["password"],
		}
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("create cassandra session: %w", err)
	}

	s, err := NewWithSession(context.Background(), gocqlSession{session}, keyspace, export.OptionOr(options, "table", DefaultTable))
	if err != nil {
		session.Close()
		return nil, err
	}
	if n, err := strconv.Atoi(options["batch_size"]); err == nil && n > 0 {
		s.batchSize = n
	}
	return s, nil
}

func parseConsistency(level string) gocql.Consistency {
	if level == "" {
		return gocql.Quorum
	}
	c, err := gocql.ParseConsistencyWrapper(strings.ToUpper(level))
	if err != nil {
		return gocql.Quorum
	}
	return c
}

// NewWithSession builds a sink over session and creates the table if it
// does not exist.
func NewWithSession(ctx context.Context, session Session, keyspace, table string) (*Sink, error) {
	for _, ident := range []string{keyspace, table} {
		if err := base.ValidateSQLIdentifier(ident); err != nil {
			return nil, fmt.Errorf("invalid cassandra identifier: %w", err)
		}
	}
	s := &Sink{
		session:   session,
		keyspace:  keyspace,
		table:     table,
		batchSize: DefaultBatchSize,
		logger:    log.New(os.Stdout, "[MCP_EXPORT_CASSANDRA] ", log.LstdFlags),
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
	scan_id text,
	row_index int,
	object text,
	record text,
	exported_at timestamp,
	PRIMARY KEY ((scan_id), row_index)
)`, keyspace, table)
	if err := session.Exec(ctx, ddl); err != nil {
		return nil, fmt.Errorf("create export table: %w", err)
	}
	return s, nil
}

// Type returns "cassandra".
func (s *Sink) Type() string { return "cassandra" }

// Write inserts the batch in unlogged batches of batchSize rows.
func (s *Sink) Write(ctx context.Context, batch *export.Batch) (*export.WriteResult, error) {
	records, err := batch.Records()
	if err != nil {
		return nil, err
	}
	stmt := fmt.Sprintf("INSERT INTO %s.%s (scan_id, row_index, object, record, exported_at) VALUES (?, ?, ?, ?, ?)", s.keyspace, s.table)

	size := 0
	for start := 0; start < len(records); start += s.batchSize {
		end := start + s.batchSize
		if end > len(records) {
			end = len(records)
		}
		rows := make([][]interface{}, 0, end-start)
		for _, r := range records[start:end] {
			rows = append(rows, []interface{}{r.ScanID, r.RowIndex, r.Object, string(r.Data), r.ExportedAt})
			size += len(r.Data)
		}
		if err := s.session.ExecBatch(ctx, stmt, rows); err != nil {
			return nil, fmt.Errorf("insert rows %d-%d: %w", start, end-1, err)
		}
	}

	s.logger.Printf("Exported %d rows of scan %s into %s.%s", len(records), batch.ScanID, s.keyspace, s.table)
	return &export.WriteResult{
		Location: fmt.Sprintf("cassandra:%s.%s?scan_id=%s", s.keyspace, s.table, batch.ScanID),
		Rows:     len(records),
		Bytes:    size,
	}, nil
}

// Close closes the session.
func (s *Sink) Close(ctx context.Context) error {
	s.session.Close()
	return nil
}
