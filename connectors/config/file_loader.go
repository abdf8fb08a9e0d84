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

package config

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tembo-io/clerk-fdw/connectors/base"
)

// CatalogFile is the root of a catalog YAML file.
type CatalogFile struct {
	Version       string                       `yaml:"version"`
	Servers       map[string]ServerFileConfig  `yaml:"servers,omitempty"`
	ForeignTables map[string]TableFileConfig   `yaml:"foreign_tables,omitempty"`
	Sinks         map[string]SinkFileConfig    `yaml:"sinks,omitempty"`
	Schedules     map[string]ScheduleFileConfig `yaml:"schedules,omitempty"`
}

// ServerFileConfig declares a foreign server.
type ServerFileConfig struct {
	Type        string                 `yaml:"type"`
	Description string                 `yaml:"description,omitempty"`
	Credentials map[string]string      `yaml:"credentials,omitempty"`
	Options     map[string]interface{} `yaml:"options,omitempty"`
	TimeoutMs   int                    `yaml:"timeout_ms,omitempty"`
	MaxRetries  int                    `yaml:"max_retries,omitempty"`
	TenantID    string                 `yaml:"tenant_id,omitempty"`
}

// TableFileConfig declares a foreign table on a server.
type TableFileConfig struct {
	Server  string            `yaml:"server"`
	Options map[string]string `yaml:"options"`
	Columns []string          `yaml:"columns,omitempty"`
}

// SinkFileConfig declares an export destination.
type SinkFileConfig struct {
	Type    string            `yaml:"type"`
	Options map[string]string `yaml:"options,omitempty"`
}

// ScheduleFileConfig runs an export of Table into Sink on a cron spec.
type ScheduleFileConfig struct {
	Cron    string   `yaml:"cron"`
	Table   string   `yaml:"table"`
	Sink    string   `yaml:"sink"`
	Columns []string `yaml:"columns,omitempty"`
	Enabled *bool    `yaml:"enabled,omitempty"`
}

// IsEnabled defaults to true.
func (s ScheduleFileConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// LoadCatalogFile reads, expands and validates a catalog file.
func LoadCatalogFile(path string) (*CatalogFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}
	return ParseCatalog(data)
}

// ParseCatalog parses catalog YAML, expanding ${VAR} and ${VAR:-default}.
func ParseCatalog(data []byte) (*CatalogFile, error) {
	expanded := expandEnvVars(string(data))

	var cf CatalogFile
	if err := yaml.Unmarshal([]byte(expanded), &cf); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file: %w", err)
	}
	if err := ValidateCatalogFile(&cf); err != nil {
		return nil, err
	}
	return &cf, nil
}

// ServerConfig converts a declared server into a connector configuration.
func (cf *CatalogFile) ServerConfig(name string) (*base.ConnectorConfig, error) {
	s, ok := cf.Servers[name]
	if !ok {
		return nil, fmt.Errorf("server %q is not declared", name)
	}

	timeout := time.Duration(s.TimeoutMs) * time.Millisecond
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	tenantID := s.TenantID
	if tenantID == "" {
		tenantID = "*"
	}

	cfg := &base.ConnectorConfig{
		Name:        name,
		Type:        s.Type,
		Credentials: make(map[string]string, len(s.Credentials)),
		Options:     make(map[string]interface{}, len(s.Options)),
		Timeout:     timeout,
		MaxRetries:  s.MaxRetries,
		TenantID:    tenantID,
	}
	for k, v := range s.Credentials {
		if v != "" {
			cfg.Credentials[k] = v
		}
	}
	for k, v := range s.Options {
		if str, ok := v.(string); ok && str == "" {
			continue
		}
		cfg.Options[k] = v
	}
	return cfg, nil
}

// ServerNames returns the declared server names, sorted.
func (cf *CatalogFile) ServerNames() []string {
	return sortedKeys(cf.Servers)
}

// TableNames returns the declared foreign table names, sorted.
func (cf *CatalogFile) TableNames() []string {
	return sortedKeys(cf.ForeignTables)
}

// ScheduleNames returns the declared schedule names, sorted.
func (cf *CatalogFile) ScheduleNames() []string {
	return sortedKeys(cf.Schedules)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// envVarRegex matches ${VAR_NAME} or $VAR_NAME patterns
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars replaces ${VAR}, ${VAR:-default} and $VAR. Undefined
// variables without a default expand to "".
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}

		defaultVal := ""
		if idx := strings.Index(varName, ":-"); idx != -1 {
			defaultVal = varName[idx+2:]
			varName = varName[:idx]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultVal
	})
}

var sinkTypes = map[string]bool{
	"file":      true,
	"s3":        true,
	"gcs":       true,
	"azureblob": true,
	"postgres":  true,
	"mysql":     true,
	"mongodb":   true,
	"cassandra": true,
}

// ValidateCatalogFile checks references between catalog sections. Table
// option semantics are checked by the catalog when tables are created.
func ValidateCatalogFile(cf *CatalogFile) error {
	if cf.Version == "" {
		return fmt.Errorf("catalog file must specify a version")
	}

	for _, name := range cf.ServerNames() {
		if t := cf.Servers[name].Type; t != "clerk" {
			return fmt.Errorf("server '%s' has invalid type '%s'", name, t)
		}
	}

	for _, name := range cf.TableNames() {
		table := cf.ForeignTables[name]
		if table.Server == "" {
			return fmt.Errorf("foreign table '%s' must specify a server", name)
		}
		if _, ok := cf.Servers[table.Server]; !ok {
			return fmt.Errorf("foreign table '%s' references unknown server '%s'", name, table.Server)
		}
	}

	for _, name := range sortedKeys(cf.Sinks) {
		if t := cf.Sinks[name].Type; !sinkTypes[t] {
			return fmt.Errorf("sink '%s' has invalid type '%s'", name, t)
		}
	}

	for _, name := range cf.ScheduleNames() {
		s := cf.Schedules[name]
		if strings.TrimSpace(s.Cron) == "" {
			return fmt.Errorf("schedule '%s' must specify a cron expression", name)
		}
		if _, ok := cf.ForeignTables[s.Table]; !ok {
			return fmt.Errorf("schedule '%s' references unknown table '%s'", name, s.Table)
		}
		if _, ok := cf.Sinks[s.Sink]; !ok {
			return fmt.Errorf("schedule '%s' references unknown sink '%s'", name, s.Sink)
		}
	}
	return nil
}

// GenerateExampleCatalogFile returns a commented starter catalog.
func GenerateExampleCatalogFile() string {
	return `# Clerk foreign data catalog
# Environment variables can be referenced using ${VAR_NAME} or ${VAR_NAME:-default}

version: "1.0"

servers:
  clerk:
    type: clerk
    options:
      api_url: ${CLERK_API_URL:-https://api.clerk.com/v1}
      api_key: ${CLERK_API_KEY}
      rate_limit: 20
      courtesy_delay: 50ms
    timeout_ms: 30000
    max_retries: 3

foreign_tables:
  clerk_users:
    server: clerk
    options:
      object: users
  clerk_organizations:
    server: clerk
    options:
      object: organizations
  clerk_memberships:
    server: clerk
    options:
      object: organization_memberships

sinks:
  local:
    type: file
    options:
      dir: ${EXPORT_DIR:-./exports}
  archive:
    type: s3
    options:
      bucket: ${EXPORT_BUCKET:-clerk-exports}
      region: ${AWS_REGION:-us-east-1}
      prefix: clerk

schedules:
  nightly_users:
    cron: "0 2 * * *"
    table: clerk_users
    sink: local
`
}
