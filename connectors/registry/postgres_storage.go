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

package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"

	"github.com/tembo-io/clerk-fdw/connectors/base"
)

// Storage persists catalog entries so that several server replicas share
// the same foreign servers and tables.
type Storage interface {
	SaveServer(ctx context.Context, cfg *base.ConnectorConfig) error
	GetServer(ctx context.Context, name string) (*base.ConnectorConfig, error)
	DeleteServer(ctx context.Context, name string) error
	ListServers(ctx context.Context) ([]string, error)
	SaveTable(ctx context.Context, table *ForeignTable) error
	DeleteTable(ctx context.Context, name string) error
	ListTables(ctx context.Context) ([]*ForeignTable, error)
	Close() error
}

// ErrNotFound is returned by storage lookups that match no row.
var ErrNotFound = errors.New("not found")

// PostgreSQLStorage keeps foreign servers and tables in PostgreSQL.
type PostgreSQLStorage struct {
	db     *sql.DB
	logger *log.Logger
}

// NewPostgreSQLStorage connects to dbURL, retrying while the database comes
// up, and creates the catalog tables.
func NewPostgreSQLStorage(dbURL string) (*PostgreSQLStorage, error) {
	maxRetries := 5
	var db *sql.DB
	var err error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		db, err = sql.Open("postgres", dbURL)
		if err == nil {
			err = db.Ping()
			if err == nil {
				break
			}
			_ = db.Close()
		}

		if attempt < maxRetries {
			backoff := time.Duration(attempt*2) * time.Second
			log.Printf("[MCP_CATALOG_STORAGE] Database connection failed (attempt %d/%d): %v; retrying in %v",
				attempt, maxRetries, err, backoff)
			time.Sleep(backoff)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, err)
	}

	return newPostgreSQLStorage(context.Background(), db)
}

func newPostgreSQLStorage(ctx context.Context, db *sql.DB) (*PostgreSQLStorage, error) {
	storage := &PostgreSQLStorage{
		db:     db,
		logger: log.New(log.Writer(), "[MCP_CATALOG_STORAGE] ", log.LstdFlags),
	}
	if err := storage.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	storage.logger.Println("PostgreSQL catalog storage initialized")
	return storage, nil
}

const catalogSchema = `
	CREATE TABLE IF NOT EXISTS foreign_servers (
		name VARCHAR(255) PRIMARY KEY,
		type VARCHAR(50) NOT NULL,
		tenant_id VARCHAR(255) NOT NULL DEFAULT '*',
		options JSONB NOT NULL DEFAULT '{}'::jsonb,
		credentials JSONB NOT NULL DEFAULT '{}'::jsonb,
		timeout_ms BIGINT NOT NULL DEFAULT 30000,
		max_retries INTEGER NOT NULL DEFAULT 3,
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS foreign_tables (
		name VARCHAR(255) PRIMARY KEY,
		server VARCHAR(255) NOT NULL REFERENCES foreign_servers(name),
		options JSONB NOT NULL DEFAULT '{}'::jsonb,
		columns JSONB NOT NULL DEFAULT '[]'::jsonb,
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_foreign_tables_server ON foreign_tables(server);
`

func (s *PostgreSQLStorage) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, catalogSchema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SaveServer upserts a foreign server.
func (s *PostgreSQLStorage) SaveServer(ctx context.Context, cfg *base.ConnectorConfig) error {
	optionsJSON, err := json.Marshal(cfg.Options)
	if err != nil {
		return fmt.Errorf("failed to marshal options: %w", err)
	}
	credentialsJSON, err := json.Marshal(cfg.Credentials)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	query := `
		INSERT INTO foreign_servers (name, type, tenant_id, options, credentials, timeout_ms, max_retries)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (name) DO UPDATE SET
			type = EXCLUDED.type,
			tenant_id = EXCLUDED.tenant_id,
			options = EXCLUDED.options,
			credentials = EXCLUDED.credentials,
			timeout_ms = EXCLUDED.timeout_ms,
			max_retries = EXCLUDED.max_retries
	`
	_, err = s.db.ExecContext(ctx, query,
		cfg.Name,
		cfg.Type,
		cfg.TenantID,
		optionsJSON,
		credentialsJSON,
		cfg.Timeout.Milliseconds(),
		cfg.MaxRetries,
	)
	if err != nil {
		return fmt.Errorf("failed to save server: %w", err)
	}

	s.logger.Printf("Saved foreign server: %s (tenant: %s)", cfg.Name, cfg.TenantID)
	return nil
}

// GetServer loads a foreign server by name.
func (s *PostgreSQLStorage) GetServer(ctx context.Context, name string) (*base.ConnectorConfig, error) {
	query := `
		SELECT type, tenant_id, options, credentials, timeout_ms, max_retries
		FROM foreign_servers
		WHERE name = $1
	`

	var connType, tenantID string
	var optionsJSON, credentialsJSON []byte
	var timeoutMs int64
	var maxRetries int

	err := s.db.QueryRowContext(ctx, query, name).Scan(
		&connType,
		&tenantID,
		&optionsJSON,
		&credentialsJSON,
		&timeoutMs,
		&maxRetries,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("foreign server %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get server: %w", err)
	}

	var options map[string]interface{}
	if err := json.Unmarshal(optionsJSON, &options); err != nil {
		return nil, fmt.Errorf("failed to unmarshal options: %w", err)
	}
	var credentials map[string]string
	if err := json.Unmarshal(credentialsJSON, &credentials); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credentials: %w", err)
	}

	return &base.ConnectorConfig{
		Name:        name,
		Type:        connType,
		TenantID:    tenantID,
		Options:     options,
		Credentials: credentials,
		Timeout:     time.Duration(timeoutMs) * time.Millisecond,
		MaxRetries:  maxRetries,
	}, nil
}

// DeleteServer removes a foreign server.
func (s *PostgreSQLStorage) DeleteServer(ctx context.Context, name string) error {
	return s.deleteRow(ctx, `DELETE FROM foreign_servers WHERE name = $1`, "foreign server", name)
}

// DeleteTable removes a foreign table.
func (s *PostgreSQLStorage) DeleteTable(ctx context.Context, name string) error {
	return s.deleteRow(ctx, `DELETE FROM foreign_tables WHERE name = $1`, "foreign table", name)
}

func (s *PostgreSQLStorage) deleteRow(ctx context.Context, query, kind, name string) error {
	result, err := s.db.ExecContext(ctx, query, name)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", kind, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s %s: %w", kind, name, ErrNotFound)
	}

	s.logger.Printf("Deleted %s: %s", kind, name)
	return nil
}

// ListServers returns server names, oldest first.
func (s *PostgreSQLStorage) ListServers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM foreign_servers ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list servers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return names, nil
}

// SaveTable upserts a foreign table.
func (s *PostgreSQLStorage) SaveTable(ctx context.Context, table *ForeignTable) error {
	optionsJSON, err := json.Marshal(table.Options)
	if err != nil {
		return fmt.Errorf("failed to marshal options: %w", err)
	}
	columns := table.Columns
	if columns == nil {
		columns = []string{}
	}
	columnsJSON, err := json.Marshal(columns)
	if err != nil {
		return fmt.Errorf("failed to marshal columns: %w", err)
	}

	query := `
		INSERT INTO foreign_tables (name, server, options, columns)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE SET
			server = EXCLUDED.server,
			options = EXCLUDED.options,
			columns = EXCLUDED.columns
	`
	if _, err := s.db.ExecContext(ctx, query, table.Name, table.Server, optionsJSON, columnsJSON); err != nil {
		return fmt.Errorf("failed to save table: %w", err)
	}

	s.logger.Printf("Saved foreign table: %s (server: %s)", table.Name, table.Server)
	return nil
}

// ListTables returns every foreign table.
func (s *PostgreSQLStorage) ListTables(ctx context.Context) ([]*ForeignTable, error) {
	query := `SELECT name, server, options, columns, created_at FROM foreign_tables ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tables []*ForeignTable
	for rows.Next() {
		var t ForeignTable
		var optionsJSON, columnsJSON []byte
		if err := rows.Scan(&t.Name, &t.Server, &optionsJSON, &columnsJSON, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if err := json.Unmarshal(optionsJSON, &t.Options); err != nil {
			return nil, fmt.Errorf("failed to unmarshal options for %s: %w", t.Name, err)
		}
		if err := json.Unmarshal(columnsJSON, &t.Columns); err != nil {
			return nil, fmt.Errorf("failed to unmarshal columns for %s: %w", t.Name, err)
		}
		tables = append(tables, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return tables, nil
}

// Close closes the database connection
func (s *PostgreSQLStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
