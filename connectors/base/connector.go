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

package base

import (
	"context"
	"time"
)

// Connector is the contract every data connector implements.
// Reads go through Query; Execute is the write path and may be refused.
type Connector interface {
	// Lifecycle
	Connect(ctx context.Context, config *ConnectorConfig) error
	Disconnect(ctx context.Context) error
	HealthCheck(ctx context.Context) (*HealthStatus, error)

	// Reads
	Query(ctx context.Context, query *Query) (*QueryResult, error)

	// Writes
	Execute(ctx context.Context, cmd *Command) (*CommandResult, error)

	// Metadata
	Name() string           // Unique connector instance name
	Type() string           // Connector type (clerk, postgres, s3, ...)
	Version() string        // Connector version
	Capabilities() []string // Capabilities (query, pagination, read-only, ...)
}

// ConnectorConfig holds the configuration for a connector instance.
// For foreign servers Options carries the server options and Credentials the
// resolved secrets.
type ConnectorConfig struct {
	Name          string                 `json:"name" yaml:"name"`
	Type          string                 `json:"type" yaml:"type"`
	ConnectionURL string                 `json:"connection_url,omitempty" yaml:"connection_url,omitempty"`
	Credentials   map[string]string      `json:"credentials,omitempty" yaml:"credentials,omitempty"`
	Options       map[string]interface{} `json:"options,omitempty" yaml:"options,omitempty"`
	Timeout       time.Duration          `json:"timeout" yaml:"timeout"`
	MaxRetries    int                    `json:"max_retries" yaml:"max_retries"`
	TenantID      string                 `json:"tenant_id,omitempty" yaml:"tenant_id,omitempty"`
}

// Clone returns a deep-enough copy so callers can layer table options on top
// of server options without mutating the shared server config.
func (c *ConnectorConfig) Clone() *ConnectorConfig {
	if c == nil {
		return nil
	}
	out := *c
	out.Credentials = make(map[string]string, len(c.Credentials))
	for k, v := range c.Credentials {
		out.Credentials[k] = v
	}
	out.Options = make(map[string]interface{}, len(c.Options))
	for k, v := range c.Options {
		out.Options[k] = v
	}
	return &out
}

// Query represents a read operation
type Query struct {
	Statement  string                 `json:"statement"`  // Resource name for REST connectors
	Parameters map[string]interface{} `json:"parameters"` // columns, predicates, ...
	Timeout    time.Duration          `json:"timeout"`    // Override default timeout
	Limit      int                    `json:"limit"`      // Result limit (optional)
}

// QueryResult contains the results of a Query operation
type QueryResult struct {
	Rows      []map[string]interface{} `json:"rows"`
	Columns   []string                 `json:"columns,omitempty"`
	RowCount  int                      `json:"row_count"`
	Duration  time.Duration            `json:"duration"`
	Cached    bool                     `json:"cached"`
	Connector string                   `json:"connector"`
	Metadata  map[string]interface{}   `json:"metadata,omitempty"`
}

// Command represents a write operation
type Command struct {
	Action     string                 `json:"action"`
	Statement  string                 `json:"statement"`
	Parameters map[string]interface{} `json:"parameters"`
	Timeout    time.Duration          `json:"timeout"`
}

// CommandResult contains the results of a Command execution
type CommandResult struct {
	Success      bool                   `json:"success"`
	RowsAffected int                    `json:"rows_affected"`
	Duration     time.Duration          `json:"duration"`
	Message      string                 `json:"message"`
	Connector    string                 `json:"connector"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// HealthStatus represents the health of a connector
type HealthStatus struct {
	Healthy   bool              `json:"healthy"`
	Latency   time.Duration     `json:"latency"`
	Details   map[string]string `json:"details"`
	Timestamp time.Time         `json:"timestamp"`
	Error     string            `json:"error"`
}

// ConnectorError represents errors specific to connector operations
type ConnectorError struct {
	ConnectorName string
	Operation     string
	Message       string
	Cause         error
}

func (e *ConnectorError) Error() string {
	if e.Cause != nil {
		return e.ConnectorName + "." + e.Operation + ": " + e.Message + " (cause: " + e.Cause.Error() + ")"
	}
	return e.ConnectorName + "." + e.Operation + ": " + e.Message
}

func (e *ConnectorError) Unwrap() error {
	return e.Cause
}

// NewConnectorError creates a new ConnectorError
func NewConnectorError(connectorName, operation, message string, cause error) *ConnectorError {
	return &ConnectorError{
		ConnectorName: connectorName,
		Operation:     operation,
		Message:       message,
		Cause:         cause,
	}
}
