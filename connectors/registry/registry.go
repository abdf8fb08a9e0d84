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
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/tembo-io/clerk-fdw/connectors/base"
	"github.com/tembo-io/clerk-fdw/connectors/clerk"
	"github.com/tembo-io/clerk-fdw/connectors/config"
	"github.com/tembo-io/clerk-fdw/connectors/sdk"
	"golang.org/x/sync/singleflight"
)

// ConnectorFactory builds an unconnected connector for a server.
type ConnectorFactory func(cfg *base.ConnectorConfig) (*clerk.Connector, error)

// ForeignTable binds a table name to a server and a Clerk object.
type ForeignTable struct {
	Name      string            `json:"name"`
	Server    string            `json:"server"`
	Options   map[string]string `json:"options"`
	Columns   []string          `json:"columns,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Object returns the Clerk resource the table reads.
func (t *ForeignTable) Object() string {
	return t.Options[clerk.OptObject]
}

// Catalog holds foreign servers and foreign tables. Server connectors are
// connected lazily on first scan. Safe for concurrent use.
type Catalog struct {
	servers    map[string]*base.ConnectorConfig
	connectors map[string]*clerk.Connector
	tables     map[string]*ForeignTable
	storage    Storage
	factory    ConnectorFactory
	secrets    config.SecretsManager
	defaults   map[string]string
	urlPolicy  *base.URLValidationOptions
	inflight   singleflight.Group
	mu         sync.RWMutex
	logger     *log.Logger
}

// NewCatalog creates an in-memory catalog.
func NewCatalog() *Catalog {
	c := &Catalog{
		servers:    make(map[string]*base.ConnectorConfig),
		connectors: make(map[string]*clerk.Connector),
		tables:     make(map[string]*ForeignTable),
		logger:     log.New(os.Stdout, "[MCP_CATALOG] ", log.LstdFlags),
	}
	c.factory = c.defaultFactory
	return c
}

// NewCatalogWithStorage creates a catalog backed by storage and loads the
// entries already persisted there.
func NewCatalogWithStorage(ctx context.Context, storage Storage) (*Catalog, error) {
	c := NewCatalog()
	c.storage = storage
	if err := c.ReloadFromStorage(ctx); err != nil {
		return nil, fmt.Errorf("failed to load catalog from storage: %w", err)
	}
	return c, nil
}

func (c *Catalog) defaultFactory(cfg *base.ConnectorConfig) (*clerk.Connector, error) {
	if cfg.Type != "" && cfg.Type != clerk.ConnectorType {
		return nil, fmt.Errorf("unsupported server type '%s'", cfg.Type)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	conn := clerk.NewConnector()
	if c.secrets != nil {
		conn.SetSecretsManager(c.secrets)
	}
	if c.urlPolicy != nil {
		conn.SetURLPolicy(*c.urlPolicy)
	}
	return conn, nil
}

// SetFactory replaces the connector factory.
func (c *Catalog) SetFactory(factory ConnectorFactory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factory = factory
}

// SetSecretsManager sets the backend used to resolve api_key_secret.
func (c *Catalog) SetSecretsManager(sm config.SecretsManager) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.secrets = sm
}

// SetURLPolicy restricts the api_url of servers connected by the default
// factory.
func (c *Catalog) SetURLPolicy(opts base.URLValidationOptions) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.urlPolicy = &opts
}

// SetServerDefaults sets options applied to every server that does not set
// them itself, e.g. a process-wide redis_url.
func (c *Catalog) SetServerDefaults(opts map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaults = opts
}

// withDefaults runs with c.mu read-locked.
func (c *Catalog) withDefaults(cfg *base.ConnectorConfig) *base.ConnectorConfig {
	if len(c.defaults) == 0 {
		return cfg
	}
	merged := *cfg
	merged.Options = make(map[string]interface{}, len(cfg.Options)+len(c.defaults))
	for k, v := range c.defaults {
		merged.Options[k] = v
	}
	for k, v := range cfg.Options {
		merged.Options[k] = v
	}
	return &merged
}

// SetLogger replaces the catalog logger.
func (c *Catalog) SetLogger(logger *log.Logger) {
	c.logger = logger
}

// CreateServer adds or replaces a foreign server. Replacing a server
// disconnects its previous connector.
func (c *Catalog) CreateServer(ctx context.Context, cfg *base.ConnectorConfig) error {
	if cfg != nil && cfg.Type == "" {
		cfg = cfg.Clone()
		cfg.Type = clerk.ConnectorType
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return err
	}
	if cfg.Type != clerk.ConnectorType {
		return fmt.Errorf("server '%s' has unsupported type '%s'", cfg.Name, cfg.Type)
	}
	if err := clerk.ValidateOptions(clerk.StringOptions(cfg.Options), false); err != nil {
		return fmt.Errorf("server '%s': %w", cfg.Name, err)
	}

	cfg = cfg.Clone()
	if cfg.TenantID == "" {
		cfg.TenantID = "*"
	}

	c.mu.Lock()
	old := c.connectors[cfg.Name]
	delete(c.connectors, cfg.Name)
	c.servers[cfg.Name] = cfg
	c.mu.Unlock()

	if old != nil {
		if err := old.Disconnect(ctx); err != nil {
			c.logger.Printf("Error disconnecting replaced server '%s': %v", cfg.Name, err)
		}
	}

	if c.storage != nil {
		if err := c.storage.SaveServer(ctx, cfg); err != nil {
			c.logger.Printf("Warning: Failed to persist server '%s': %v", cfg.Name, err)
		}
	}

	c.logger.Printf("Created foreign server '%s'", cfg.Name)
	return nil
}

// DropServer removes a server that no table references.
func (c *Catalog) DropServer(ctx context.Context, name string) error {
	c.mu.Lock()
	if _, ok := c.servers[name]; !ok {
		c.mu.Unlock()
		return fmt.Errorf("server '%s' %w", name, ErrNotFound)
	}
	for _, t := range c.tables {
		if t.Server == name {
			c.mu.Unlock()
			return fmt.Errorf("server '%s' is used by foreign table '%s'", name, t.Name)
		}
	}
	conn := c.connectors[name]
	delete(c.connectors, name)
	delete(c.servers, name)
	c.mu.Unlock()

	if conn != nil {
		if err := conn.Disconnect(ctx); err != nil {
			c.logger.Printf("Error disconnecting server '%s': %v", name, err)
		}
	}
	if c.storage != nil {
		if err := c.storage.DeleteServer(ctx, name); err != nil && !errors.Is(err, ErrNotFound) {
			c.logger.Printf("Warning: Failed to delete server '%s' from storage: %v", name, err)
		}
	}

	c.logger.Printf("Dropped foreign server '%s'", name)
	return nil
}

// Servers returns server names, sorted.
func (c *Catalog) Servers() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.servers))
	for name := range c.servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CreateForeignTable validates the table options and adds the table. The
// object may name a resource the connector does not support; such tables
// scan to zero rows with a diagnostic.
func (c *Catalog) CreateForeignTable(ctx context.Context, table ForeignTable) error {
	return c.createTable(ctx, table, false)
}

func (c *Catalog) createTable(ctx context.Context, table ForeignTable, replace bool) error {
	if err := base.ValidateSQLIdentifier(table.Name); err != nil {
		return fmt.Errorf("invalid table name: %w", err)
	}
	if err := clerk.ValidateOptions(table.Options, true); err != nil {
		return fmt.Errorf("foreign table '%s': %w", table.Name, err)
	}

	t := &ForeignTable{
		Name:      table.Name,
		Server:    table.Server,
		Options:   make(map[string]string, len(table.Options)),
		Columns:   append([]string(nil), table.Columns...),
		CreatedAt: table.CreatedAt,
	}
	for k, v := range table.Options {
		t.Options[k] = v
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	c.mu.Lock()
	if _, ok := c.servers[t.Server]; !ok {
		c.mu.Unlock()
		return fmt.Errorf("foreign table '%s' references server '%s': %w", t.Name, t.Server, ErrNotFound)
	}
	if _, exists := c.tables[t.Name]; exists && !replace {
		c.mu.Unlock()
		return fmt.Errorf("foreign table '%s' already exists", t.Name)
	}
	c.tables[t.Name] = t
	c.mu.Unlock()

	if _, ok := clerk.ResolveResource(t.Object()); !ok {
		c.logger.Printf("Warning: foreign table '%s' names unsupported object '%s'", t.Name, t.Object())
	}

	if c.storage != nil {
		if err := c.storage.SaveTable(ctx, t); err != nil {
			c.logger.Printf("Warning: Failed to persist foreign table '%s': %v", t.Name, err)
		}
	}

	c.logger.Printf("Created foreign table '%s' (server: %s, object: %s)", t.Name, t.Server, t.Object())
	return nil
}

// DropForeignTable removes a table.
func (c *Catalog) DropForeignTable(ctx context.Context, name string) error {
	c.mu.Lock()
	if _, ok := c.tables[name]; !ok {
		c.mu.Unlock()
		return fmt.Errorf("foreign table '%s' %w", name, ErrNotFound)
	}
	delete(c.tables, name)
	c.mu.Unlock()

	if c.storage != nil {
		if err := c.storage.DeleteTable(ctx, name); err != nil && !errors.Is(err, ErrNotFound) {
			c.logger.Printf("Warning: Failed to delete foreign table '%s' from storage: %v", name, err)
		}
	}

	c.logger.Printf("Dropped foreign table '%s'", name)
	return nil
}

// Table returns a copy of the named table.
func (c *Catalog) Table(name string) (*ForeignTable, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.tables[name]
	if !ok {
		return nil, fmt.Errorf("foreign table '%s' %w", name, ErrNotFound)
	}
	return t.copy(), nil
}

// Tables returns copies of every table, sorted by name.
func (c *Catalog) Tables() []*ForeignTable {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*ForeignTable, 0, len(c.tables))
	for _, t := range c.tables {
		out = append(out, t.copy())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (t *ForeignTable) copy() *ForeignTable {
	out := *t
	out.Options = make(map[string]string, len(t.Options))
	for k, v := range t.Options {
		out.Options[k] = v
	}
	out.Columns = append([]string(nil), t.Columns...)
	return &out
}

// Connector returns the connected connector for a server, connecting it on
// first use.
func (c *Catalog) Connector(ctx context.Context, server string) (*clerk.Connector, error) {
	c.mu.RLock()
	conn, exists := c.connectors[server]
	cfg, hasConfig := c.servers[server]
	c.mu.RUnlock()

	if exists {
		return conn, nil
	}
	if !hasConfig {
		return nil, fmt.Errorf("server '%s' %w", server, ErrNotFound)
	}
	return c.connect(ctx, server, cfg)
}

// connect dials a server outside c.mu so a slow upstream never blocks
// catalog reads. Concurrent first scans of one server share a single dial.
func (c *Catalog) connect(ctx context.Context, name string, cfg *base.ConnectorConfig) (*clerk.Connector, error) {
	v, err, _ := c.inflight.Do(name, func() (interface{}, error) {
		c.mu.RLock()
		if conn, exists := c.connectors[name]; exists {
			c.mu.RUnlock()
			return conn, nil
		}
		effective := c.withDefaults(cfg)
		factory := c.factory
		c.mu.RUnlock()

		conn, err := factory(effective)
		if err != nil {
			return nil, fmt.Errorf("failed to create connector for server '%s': %w", name, err)
		}

		c.logger.Printf("Connecting server '%s'", name)
		timeout := effective.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		connectCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if err := conn.Connect(connectCtx, effective); err != nil {
			c.logger.Printf("Failed to connect server '%s': %v", name, err)
			return nil, fmt.Errorf("failed to connect server '%s': %w", name, err)
		}

		c.mu.Lock()
		if c.servers[name] != cfg {
			c.mu.Unlock()
			_ = conn.Disconnect(ctx)
			return nil, fmt.Errorf("server '%s' changed while connecting", name)
		}
		c.connectors[name] = conn
		c.mu.Unlock()
		return conn, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*clerk.Connector), nil
}

// OpenScan begins a scan of a foreign table. With no columns the table's
// declared columns are used, else every typed column plus attrs. The
// returned scan is positioned at its first row; callers must EndScan it.
func (c *Catalog) OpenScan(ctx context.Context, table string, columns []string, predicates []clerk.Predicate) (*clerk.Scan, error) {
	t, err := c.Table(table)
	if err != nil {
		return nil, err
	}
	conn, err := c.Connector(ctx, t.Server)
	if err != nil {
		return nil, err
	}

	opts, err := tableScanOptions(conn.ScanOptions(), t.Options)
	if err != nil {
		return nil, fmt.Errorf("foreign table '%s': %w", t.Name, err)
	}
	scan, err := conn.NewScanWithOptions(opts)
	if err != nil {
		return nil, err
	}

	if len(columns) == 0 {
		columns = t.Columns
	}
	if len(columns) == 0 {
		if schema, err := clerk.Lookup(t.Object()); err == nil {
			columns = append(schema.Columns(), clerk.AttrsColumn)
		}
	}

	if err := scan.BeginScan(ctx, t.Object(), columns, predicates); err != nil {
		scan.EndScan()
		return nil, err
	}
	return scan, nil
}

// tableScanOptions layers table-level tuning over the server's.
func tableScanOptions(opts clerk.ScanOptions, tableOpts map[string]string) (clerk.ScanOptions, error) {
	if v, ok := tableOpts[clerk.OptPageSize]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, fmt.Errorf("invalid page_size: %w", err)
		}
		opts.PageSize = n
	}
	if v, ok := tableOpts[clerk.OptMaxPages]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, fmt.Errorf("invalid max_pages: %w", err)
		}
		opts.MaxPages = n
	}
	if v, ok := tableOpts[clerk.OptCourtesyDelay]; ok {
		d, valid := sdk.ParseDurationValue(v)
		if !valid {
			return opts, fmt.Errorf("invalid courtesy_delay %q", v)
		}
		if d == 0 {
			d = -1
		}
		opts.CourtesyDelay = d
	}
	return opts, nil
}

// Apply creates or replaces every server and table declared in a catalog
// file. Entries not in the file are left alone.
func (c *Catalog) Apply(ctx context.Context, cf *config.CatalogFile) error {
	for _, name := range cf.ServerNames() {
		cfg, err := cf.ServerConfig(name)
		if err != nil {
			return err
		}
		if err := c.CreateServer(ctx, cfg); err != nil {
			return err
		}
	}
	for _, name := range cf.TableNames() {
		decl := cf.ForeignTables[name]
		if err := c.createTable(ctx, ForeignTable{
			Name:    name,
			Server:  decl.Server,
			Options: decl.Options,
			Columns: decl.Columns,
		}, true); err != nil {
			return err
		}
	}
	return nil
}

// LoadFile reads a YAML catalog file and applies it.
func (c *Catalog) LoadFile(ctx context.Context, path string) (*config.CatalogFile, error) {
	cf, err := config.LoadCatalogFile(path)
	if err != nil {
		return nil, err
	}
	if err := c.Apply(ctx, cf); err != nil {
		return nil, err
	}
	c.logger.Printf("Loaded catalog file %s (%d servers, %d tables)", path, len(cf.Servers), len(cf.ForeignTables))
	return cf, nil
}

// ReloadFromStorage picks up servers and tables written by other replicas.
func (c *Catalog) ReloadFromStorage(ctx context.Context) error {
	if c.storage == nil {
		return nil
	}

	names, err := c.storage.ListServers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list servers: %w", err)
	}
	tables, err := c.storage.ListTables(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	added := 0
	for _, name := range names {
		if _, exists := c.servers[name]; exists {
			continue
		}
		cfg, err := c.storage.GetServer(ctx, name)
		if err != nil {
			c.logger.Printf("Failed to load server %s: %v", name, err)
			continue
		}
		c.servers[name] = cfg
		added++
	}
	for _, t := range tables {
		if _, exists := c.tables[t.Name]; exists {
			continue
		}
		if _, ok := c.servers[t.Server]; !ok {
			c.logger.Printf("Skipping foreign table %s: unknown server %s", t.Name, t.Server)
			continue
		}
		c.tables[t.Name] = t
		added++
	}

	if added > 0 {
		c.logger.Printf("Loaded %d catalog entries from storage", added)
	}
	return nil
}

// StartPeriodicReload reloads from storage every interval until ctx ends.
func (c *Catalog) StartPeriodicReload(ctx context.Context, interval time.Duration) {
	if c.storage == nil {
		c.logger.Println("Storage not configured - skipping periodic reload")
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := c.ReloadFromStorage(ctx); err != nil {
					c.logger.Printf("Periodic reload failed: %v", err)
				}
			}
		}
	}()
}

// HealthCheck checks every connected server.
func (c *Catalog) HealthCheck(ctx context.Context) map[string]*base.HealthStatus {
	c.mu.RLock()
	conns := make(map[string]*clerk.Connector, len(c.connectors))
	for name, conn := range c.connectors {
		conns[name] = conn
	}
	c.mu.RUnlock()

	results := make(map[string]*base.HealthStatus, len(conns))
	for name, conn := range conns {
		status, err := conn.HealthCheck(ctx)
		if err != nil {
			status = &base.HealthStatus{Healthy: false, Error: err.Error(), Timestamp: time.Now()}
		}
		results[name] = status
	}
	return results
}

// TablesForTenant returns the tables whose server is visible to tenantID.
func (c *Catalog) TablesForTenant(tenantID string) []*ForeignTable {
	var out []*ForeignTable
	for _, t := range c.Tables() {
		if c.ValidateTenantAccess(t.Name, tenantID) == nil {
			out = append(out, t)
		}
	}
	return out
}

// ValidateTenantAccess checks that tenantID may read a table.
func (c *Catalog) ValidateTenantAccess(table, tenantID string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.tables[table]
	if !ok {
		return fmt.Errorf("foreign table '%s' %w", table, ErrNotFound)
	}
	cfg, ok := c.servers[t.Server]
	if !ok {
		return fmt.Errorf("server '%s' %w", t.Server, ErrNotFound)
	}
	if cfg.TenantID != "*" && cfg.TenantID != tenantID {
		return fmt.Errorf("tenant '%s' does not have access to foreign table '%s'", tenantID, table)
	}
	return nil
}

// Close disconnects every server and closes storage.
func (c *Catalog) Close(ctx context.Context) error {
	c.mu.Lock()
	conns := c.connectors
	c.connectors = make(map[string]*clerk.Connector)
	c.mu.Unlock()

	for name, conn := range conns {
		if err := conn.Disconnect(ctx); err != nil {
			c.logger.Printf("Error disconnecting server '%s': %v", name, err)
		}
	}
	if c.storage != nil {
		return c.storage.Close()
	}
	return nil
}
