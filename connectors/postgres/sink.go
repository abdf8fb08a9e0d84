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


package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/lib/pq"

	"github.com/tembo-io/clerk-fdw/connectors/base"
	"github.com/tembo-io/clerk-fdw/connectors/export"
)

// DefaultTable receives exported rows when no table option is set.
const DefaultTable = "clerk_export_rows"

func init() {
	export.RegisterSink("postgres", func(ctx context.Context, options map[string]string) (export.Sink, error) {
		return New(ctx, options)
	})
}

// Sink appends exported rows to a PostgreSQL table, one row per record with
// the record itself as JSONB.
type Sink struct {
	db     *sql.DB
	table  string
	logger *log.Logger
}

// New opens the database named by the url option and ensures the target
// table exists.
func New(ctx context.Context, options map[string]string) (*Sink, error) {
	url, err := export.RequireOption(options, "url")
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	maxOpen := 5
	if v, err := strconv.Atoi(options["max_open_conns"]); err == nil && v > 0 {
		maxOpen = v
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s, err := NewWithDB(ctx, db, export.OptionOr(options, "table", DefaultTable))
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDB builds a sink over an open database and creates table if it
// does not exist.
func NewWithDB(ctx context.Context, db *sql.DB, table string) (*Sink, error) {
	if err := base.ValidateSQLIdentifier(table); err != nil {
		return nil, fmt.Errorf("invalid export table: %w", err)
	}
	s := &Sink{
		db:     db,
		table:  pq.QuoteIdentifier(table),
		logger: log.New(os.Stdout, "[MCP_EXPORT_POSTGRES] ", log.LstdFlags),
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	scan_id     TEXT        NOT NULL,
	object      TEXT        NOT NULL,
	row_index   INTEGER     NOT NULL,
	record      JSONB       NOT NULL,
	exported_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (scan_id, row_index)
)`, s.table)
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return nil, fmt.Errorf("create export table %s: %w", s.table, err)
	}
	return s, nil
}

// Type returns "postgres".
func (s *Sink) Type() string { return "postgres" }

// Write inserts the batch in one transaction. Re-writing a scan is a no-op
// for rows already present.
func (s *Sink) Write(ctx context.Context, batch *export.Batch) (*export.WriteResult, error) {
	records, err := batch.Records()
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin export tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (scan_id, object, row_index, record, exported_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (scan_id, row_index) DO NOTHING`, s.table))
	if err != nil {
		return nil, fmt.Errorf("prepare export insert: %w", err)
	}
	defer stmt.Close()

	size := 0
	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, r.ScanID, r.Object, r.RowIndex, string(r.Data), r.ExportedAt); err != nil {
			return nil, fmt.Errorf("insert row %d: %w", r.RowIndex, err)
		}
		size += len(r.Data)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit export tx: %w", err)
	}

	s.logger.Printf("Exported %d rows of scan %s into %s", len(records), batch.ScanID, s.table)
	return &export.WriteResult{
		Location: "postgres:" + s.table + "?scan_id=" + batch.ScanID,
		Rows:     len(records),
		Bytes:    size,
	}, nil
}

// Close closes the database.
func (s *Sink) Close(ctx context.Context) error {
	return s.db.Close()
}
