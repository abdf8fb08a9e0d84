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


package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/tembo-io/clerk-fdw/connectors/base"
	"github.com/tembo-io/clerk-fdw/connectors/export"
)

// DefaultTable receives exported rows when no table option is set.
const DefaultTable = "clerk_export_rows"

func init() {
	export.RegisterSink("mysql", func(ctx context.Context, options map[string]string) (export.Sink, error) {
		return New(ctx, options)
	})
}

// Sink appends exported rows to a MySQL table with the record stored in a
// JSON column.
type Sink struct {
	db     *sql.DB
	table  string
	logger *log.Logger
}

// New connects using the dsn option, or host, port, database, username and
// password, and ensures the target table exists.
func New(ctx context.Context, options map[string]string) (*Sink, error) {
	dsn, err := buildDSN(options)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	s, err := NewWithDB(ctx, db, export.OptionOr(options, "table", DefaultTable))
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// buildDSN returns a DSN with UTC time parsing and multi-statements off.
func buildDSN(options map[string]string) (string, error) {
	var cfg *mysql.Config
	if dsn := options["dsn"]; dsn != "" {
		parsed, err := mysql.ParseDSN(dsn)
		if err != nil {
			return "", fmt.Errorf("invalid mysql dsn: %w", err)
		}
		cfg = parsed
	} else {
		database, err := export.RequireOption(options, "database")
		if err != nil {
			return "", err
		}
		port := 3306
		if p, err := strconv.Atoi(options["port"]); err == nil && p > 0 {
			port = p
		}
		cfg = mysql.NewConfig()
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(export.OptionOr(options, "host", "localhost"), strconv.Itoa(port))
		cfg.DBName = database
		cfg.User = options["username"]
		cfg.Passwd = options["password"]
		if tls := options["tls"]; tls != "" {
			cfg.TLSConfig = tls
		}
	}

	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.MultiStatements = false
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return cfg.FormatDSN(), nil
}

// NewWithDB builds a sink over an open database and creates table if it
// does not exist.
func NewWithDB(ctx context.Context, db *sql.DB, table string) (*Sink, error) {
	if err := base.ValidateSQLIdentifier(table); err != nil {
		return nil, fmt.Errorf("invalid export table: %w", err)
	}
	s := &Sink{
		db:     db,
		table:  "`" + table + "`",
		logger: log.New(os.Stdout, "[MCP_EXPORT_MYSQL] ", log.LstdFlags),
	}

	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s ("+
		"scan_id VARCHAR(64) NOT NULL, "+
		"object VARCHAR(64) NOT NULL, "+
		"row_index INT NOT NULL, "+
		"record JSON NOT NULL, "+
		"exported_at DATETIME(6) NOT NULL, "+
		"PRIMARY KEY (scan_id, row_index))", s.table)
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return nil, fmt.Errorf("create export table %s: %w", s.table, err)
	}
	return s, nil
}

// Type returns "mysql".
func (s *Sink) Type() string { return "mysql" }

// Write inserts the batch in one transaction, skipping rows already present.
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
		"INSERT IGNORE INTO %s (scan_id, object, row_index, record, exported_at) VALUES (?, ?, ?, ?, ?)", s.table))
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
		Location: "mysql:" + s.table + "?scan_id=" + batch.ScanID,
		Rows:     len(records),
		Bytes:    size,
	}, nil
}

// Close closes the database.
func (s *Sink) Close(ctx context.Context) error {
	return s.db.Close()
}
