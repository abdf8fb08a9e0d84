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
	"encoding/json"
	"errors"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tembo-io/clerk-fdw/connectors/base"
	"github.com/tembo-io/clerk-fdw/connectors/clerk"
	"github.com/tembo-io/clerk-fdw/connectors/config"
	"github.com/tembo-io/clerk-fdw/shared/logger"
)

type memoryAPI struct {
	mu       sync.Mutex
	data     map[string][]map[string]interface{}
	requests []clerk.PageRequest
}

func (m *memoryAPI) FetchPage(ctx context.Context, req clerk.PageRequest) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)

	items := m.data[req.Path]
	start := req.Offset
	if start > len(items) {
		start = len(items)
	}
	end := start + req.Limit
	if end > len(items) {
		end = len(items)
	}
	return json.Marshal(map[string]interface{}{"data": items[start:end]})
}

func testAPI() *memoryAPI {
	return &memoryAPI{data: map[string][]map[string]interface{}{
		"/users": {
			{"id": "user_1", "first_name": "Ada", "email_addresses": []interface{}{map[string]interface{}{"email_address": "ada@x.com"}}},
			{"id": "user_2", "first_name": "Grace"},
			{"id": "user_3", "first_name": "Edsger"},
		},
		"/organizations": {
			{"id": "org_1", "name": "Acme"},
			{"id": "org_2", "name": "Globex"},
		},
		"/organizations/org_1/memberships": {
			{"role": "admin", "organization": map[string]interface{}{"id": "org_1"}, "public_user_data": map[string]interface{}{"user_id": "user_1"}},
		},
		"/organizations/org_2/memberships": {
			{"role": "member", "organization": map[string]interface{}{"id": "org_2"}, "public_user_data": map[string]interface{}{"user_id": "user_2"}},
		},
	}}
}

func newTestCatalog(t *testing.T, api clerk.PageFetcher) *Catalog {
	t.Helper()
	c := NewCatalog()
	c.SetLogger(log.New(io.Discard, "", 0))
	c.SetFactory(func(cfg *base.ConnectorConfig) (*clerk.Connector, error) {
		conn := clerk.NewConnector()
		conn.SetScanLogger(logger.Discard("catalog-test"))
		conn.SetFetcher(api)
		return conn, nil
	})
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c
}

func serverConfig(name, tenant string) *base.ConnectorConfig {
	return &base.ConnectorConfig{
		Name:     name,
		Type:     "clerk",
		TenantID: tenant,
		Options: map[string]interface{}{
			"api_key":        "sk_test_catalog",
			"courtesy_delay": "0",
		},
	}
}

func drainRows(scan *clerk.Scan) []clerk.Row {
	var rows []clerk.Row
	for row, ok := scan.NextRow(); ok; row, ok = scan.NextRow() {
		rows = append(rows, row)
	}
	return rows
}

func TestCatalog_CreateServerValidation(t *testing.T) {
	c := newTestCatalog(t, testAPI())
	ctx := context.Background()

	assert.Error(t, c.CreateServer(ctx, nil))
	assert.Error(t, c.CreateServer(ctx, &base.ConnectorConfig{Type: "clerk"}))
	assert.Error(t, c.CreateServer(ctx, &base.ConnectorConfig{Name: "s", Type: "stripe"}))

	err := c.CreateServer(ctx, &base.ConnectorConfig{
		Name:    "clerk",
		Options: map[string]interface{}{"rate_limit": "fast"},
	})
	var ve *clerk.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "rate_limit", ve.Option)

	require.NoError(t, c.CreateServer(ctx, &base.ConnectorConfig{Name: "clerk"}))
	assert.Equal(t, []string{"clerk"}, c.Servers())
}

func TestCatalog_CreateForeignTable(t *testing.T) {
	c := newTestCatalog(t, testAPI())
	ctx := context.Background()
	require.NoError(t, c.CreateServer(ctx, serverConfig("clerk", "*")))

	err := c.CreateForeignTable(ctx, ForeignTable{Name: "clerk_users", Server: "clerk", Options: map[string]string{}})
	var ve *clerk.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "object", ve.Option)

	err = c.CreateForeignTable(ctx, ForeignTable{Name: "clerk_users", Server: "clerk", Options: map[string]string{"object": "users", "api_key": "x"}})
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "api_key", ve.Option)

	err = c.CreateForeignTable(ctx, ForeignTable{Name: "clerk_users", Server: "nope", Options: map[string]string{"object": "users"}})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Error(t, c.CreateForeignTable(ctx, ForeignTable{Name: "bad-name", Server: "clerk", Options: map[string]string{"object": "users"}}))

	require.NoError(t, c.CreateForeignTable(ctx, ForeignTable{Name: "clerk_users", Server: "clerk", Options: map[string]string{"object": "users"}}))
	assert.Error(t, c.CreateForeignTable(ctx, ForeignTable{Name: "clerk_users", Server: "clerk", Options: map[string]string{"object": "users"}}))

	require.NoError(t, c.CreateForeignTable(ctx, ForeignTable{Name: "clerk_invoices", Server: "clerk", Options: map[string]string{"object": "invoices"}}))

	tables := c.Tables()
	require.Len(t, tables, 2)
	assert.Equal(t, "clerk_invoices", tables[0].Name)
	assert.Equal(t, "users", tables[1].Object())
	assert.False(t, tables[1].CreatedAt.IsZero())

	tables[1].Options["object"] = "organizations"
	got, err := c.Table("clerk_users")
	require.NoError(t, err)
	assert.Equal(t, "users", got.Object())
}

func TestCatalog_DropRules(t *testing.T) {
	c := newTestCatalog(t, testAPI())
	ctx := context.Background()
	require.NoError(t, c.CreateServer(ctx, serverConfig("clerk", "*")))
	require.NoError(t, c.CreateForeignTable(ctx, ForeignTable{Name: "clerk_users", Server: "clerk", Options: map[string]string{"object": "users"}}))

	assert.Error(t, c.DropServer(ctx, "clerk"))
	assert.Error(t, c.DropForeignTable(ctx, "missing"))

	require.NoError(t, c.DropForeignTable(ctx, "clerk_users"))
	_, err := c.Table("clerk_users")
	assert.Error(t, err)

	require.NoError(t, c.DropServer(ctx, "clerk"))
	assert.Empty(t, c.Servers())
	assert.Error(t, c.DropServer(ctx, "clerk"))
}

func TestCatalog_OpenScan(t *testing.T) {
	api := testAPI()
	c := newTestCatalog(t, api)
	ctx := context.Background()
	require.NoError(t, c.CreateServer(ctx, serverConfig("clerk", "*")))
	require.NoError(t, c.CreateForeignTable(ctx, ForeignTable{
		Name:    "clerk_users",
		Server:  "clerk",
		Options: map[string]string{"object": "users", "page_size": "2"},
		Columns: []string{"user_id", "email"},
	}))

	scan, err := c.OpenScan(ctx, "clerk_users", nil, nil)
	require.NoError(t, err)
	defer scan.EndScan()

	rows := drainRows(scan)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"user_id", "email"}, rows[0].Columns)
	assert.Equal(t, "ada@x.com", rows[0].Cells[1])
	assert.Nil(t, rows[1].Cells[1])
	assert.Equal(t, 2, scan.Pages())
	assert.Equal(t, 2, api.requests[0].Limit)

	scan2, err := c.OpenScan(ctx, "clerk_users", []string{"first_name"}, nil)
	require.NoError(t, err)
	defer scan2.EndScan()
	row, ok := scan2.NextRow()
	require.True(t, ok)
	assert.Equal(t, []string{"first_name"}, row.Columns)

	_, err = c.OpenScan(ctx, "missing", nil, nil)
	assert.Error(t, err)
}

func TestCatalog_OpenScanDefaultColumns(t *testing.T) {
	c := newTestCatalog(t, testAPI())
	ctx := context.Background()
	require.NoError(t, c.CreateServer(ctx, serverConfig("clerk", "*")))
	require.NoError(t, c.CreateForeignTable(ctx, ForeignTable{Name: "orgs", Server: "clerk", Options: map[string]string{"object": "organizations"}}))

	scan, err := c.OpenScan(ctx, "orgs", nil, nil)
	require.NoError(t, err)
	defer scan.EndScan()

	cols := scan.Columns()
	assert.Equal(t, clerk.AttrsColumn, cols[len(cols)-1])
	assert.Len(t, drainRows(scan), 2)
}

func TestCatalog_OpenScanUnsupportedObject(t *testing.T) {
	c := newTestCatalog(t, testAPI())
	ctx := context.Background()
	require.NoError(t, c.CreateServer(ctx, serverConfig("clerk", "*")))
	require.NoError(t, c.CreateForeignTable(ctx, ForeignTable{Name: "clerk_invoices", Server: "clerk", Options: map[string]string{"object": "invoices"}}))

	scan, err := c.OpenScan(ctx, "clerk_invoices", nil, nil)
	require.NoError(t, err)
	defer scan.EndScan()

	assert.Empty(t, drainRows(scan))
	assert.Len(t, scan.Diagnostics(), 1)
}

func TestCatalog_OpenScanMembershipsScoped(t *testing.T) {
	api := testAPI()
	c := newTestCatalog(t, api)
	ctx := context.Background()
	require.NoError(t, c.CreateServer(ctx, serverConfig("clerk", "*")))
	require.NoError(t, c.CreateForeignTable(ctx, ForeignTable{Name: "memberships", Server: "clerk", Options: map[string]string{"object": "organization_memberships"}}))

	scan, err := c.OpenScan(ctx, "memberships", []string{"user_id", "organization_id", "role"}, []clerk.Predicate{
		{Column: "organization_id", Operator: "=", Value: "org_2"},
	})
	require.NoError(t, err)
	defer scan.EndScan()

	rows := drainRows(scan)
	require.Len(t, rows, 1)
	assert.Equal(t, "user_2", rows[0].Cells[0])
	for _, req := range api.requests {
		assert.NotEqual(t, "/organizations", req.Path)
	}
}

func TestCatalog_ConnectFailure(t *testing.T) {
	t.Setenv(config.APIKeyEnv, "")
	c := newTestCatalog(t, testAPI())
	ctx := context.Background()
	require.NoError(t, c.CreateServer(ctx, &base.ConnectorConfig{Name: "nokey", Type: "clerk"}))
	require.NoError(t, c.CreateForeignTable(ctx, ForeignTable{Name: "users", Server: "nokey", Options: map[string]string{"object": "users"}}))

	_, err := c.OpenScan(ctx, "users", nil, nil)
	require.Error(t, err)
	assert.True(t, clerk.IsSetupError(err))
}

func TestCatalog_TenantAccess(t *testing.T) {
	c := newTestCatalog(t, testAPI())
	ctx := context.Background()
	require.NoError(t, c.CreateServer(ctx, serverConfig("shared", "*")))
	require.NoError(t, c.CreateServer(ctx, serverConfig("acme", "acme")))
	require.NoError(t, c.CreateForeignTable(ctx, ForeignTable{Name: "shared_users", Server: "shared", Options: map[string]string{"object": "users"}}))
	require.NoError(t, c.CreateForeignTable(ctx, ForeignTable{Name: "acme_users", Server: "acme", Options: map[string]string{"object": "users"}}))

	assert.NoError(t, c.ValidateTenantAccess("acme_users", "acme"))
	assert.Error(t, c.ValidateTenantAccess("acme_users", "globex"))
	assert.NoError(t, c.ValidateTenantAccess("shared_users", "globex"))
	assert.Error(t, c.ValidateTenantAccess("missing", "acme"))

	globex := c.TablesForTenant("globex")
	require.Len(t, globex, 1)
	assert.Equal(t, "shared_users", globex[0].Name)
	assert.Len(t, c.TablesForTenant("acme"), 2)
}

func TestCatalog_TableScanOptions(t *testing.T) {
	server := clerk.ScanOptions{PageSize: 500, MaxPages: 100, CourtesyDelay: 50}

	opts, err := tableScanOptions(server, map[string]string{"page_size": "10", "max_pages": "3", "courtesy_delay": "0"})
	require.NoError(t, err)
	assert.Equal(t, 10, opts.PageSize)
	assert.Equal(t, 3, opts.MaxPages)
	assert.Negative(t, int64(opts.CourtesyDelay))

	opts, err = tableScanOptions(server, map[string]string{"object": "users"})
	require.NoError(t, err)
	assert.Equal(t, server, opts)

	_, err = tableScanOptions(server, map[string]string{"courtesy_delay": "soon"})
	assert.Error(t, err)
}

func TestCatalog_Apply(t *testing.T) {
	t.Setenv("CLERK_API_KEY", "sk_test_apply")
	cf, err := config.ParseCatalog([]byte(config.GenerateExampleCatalogFile()))
	require.NoError(t, err)

	c := newTestCatalog(t, testAPI())
	ctx := context.Background()
	require.NoError(t, c.Apply(ctx, cf))
	assert.Equal(t, []string{"clerk"}, c.Servers())
	assert.Len(t, c.Tables(), 3)

	require.NoError(t, c.Apply(ctx, cf))
	assert.Len(t, c.Tables(), 3)

	scan, err := c.OpenScan(ctx, "clerk_organizations", []string{"organization_id"}, nil)
	require.NoError(t, err)
	defer scan.EndScan()
	assert.Len(t, drainRows(scan), 2)
}

func TestCatalog_HealthCheck(t *testing.T) {
	c := newTestCatalog(t, testAPI())
	ctx := context.Background()
	require.NoError(t, c.CreateServer(ctx, serverConfig("clerk", "*")))
	assert.Empty(t, c.HealthCheck(ctx))

	_, err := c.Connector(ctx, "clerk")
	require.NoError(t, err)

	health := c.HealthCheck(ctx)
	require.Contains(t, health, "clerk")
	assert.True(t, health["clerk"].Healthy)

	_, err = c.Connector(ctx, "missing")
	assert.Error(t, err)
}

func TestCatalog_ServerDefaults(t *testing.T) {
	c := newTestCatalog(t, testAPI())
	var seen *base.ConnectorConfig
	c.SetFactory(func(cfg *base.ConnectorConfig) (*clerk.Connector, error) {
		seen = cfg
		conn := clerk.NewConnector()
		conn.SetScanLogger(logger.Discard("catalog-test"))
		conn.SetFetcher(testAPI())
		return conn, nil
	})
	c.SetServerDefaults(map[string]string{"max_pages": "7", "courtesy_delay": "250ms"})

	ctx := context.Background()
	require.NoError(t, c.CreateServer(ctx, serverConfig("clerk", "*")))
	_, err := c.Connector(ctx, "clerk")
	require.NoError(t, err)

	require.NotNil(t, seen)
	assert.Equal(t, "7", seen.Options["max_pages"])
	assert.Equal(t, "0", seen.Options["courtesy_delay"], "server option wins over default")

	c.mu.RLock()
	_, leaked := c.servers["clerk"].Options["max_pages"]
	c.mu.RUnlock()
	assert.False(t, leaked, "defaults must not be written back to the server config")
}

func TestCatalog_SlowConnectDoesNotBlockCatalog(t *testing.T) {
	c := newTestCatalog(t, testAPI())
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	c.SetFactory(func(cfg *base.ConnectorConfig) (*clerk.Connector, error) {
		if calls.Add(1) == 1 {
			close(entered)
			<-release
		}
		conn := clerk.NewConnector()
		conn.SetScanLogger(logger.Discard("catalog-test"))
		conn.SetFetcher(testAPI())
		return conn, nil
	})

	ctx := context.Background()
	require.NoError(t, c.CreateServer(ctx, serverConfig("clerk", "*")))
	require.NoError(t, c.CreateForeignTable(ctx, ForeignTable{Name: "clerk_users", Server: "clerk", Options: map[string]string{"object": "users"}}))

	done := make(chan error, 1)
	go func() {
		_, err := c.Connector(ctx, "clerk")
		done <- err
	}()
	<-entered

	unblocked := make(chan struct{})
	go func() {
		defer close(unblocked)
		_, _ = c.Table("clerk_users")
		_ = c.CreateServer(ctx, serverConfig("other", "*"))
	}()
	select {
	case <-unblocked:
	case <-time.After(2 * time.Second):
		t.Fatal("catalog blocked while a server was connecting")
	}

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), calls.Load())

	conn, err := c.Connector(ctx, "clerk")
	require.NoError(t, err)
	assert.True(t, conn.IsConnected())
	assert.Equal(t, int32(1), calls.Load())
}

func TestCatalog_ServerReplacedWhileConnecting(t *testing.T) {
	c := newTestCatalog(t, testAPI())
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	c.SetFactory(func(cfg *base.ConnectorConfig) (*clerk.Connector, error) {
		if calls.Add(1) == 1 {
			close(entered)
			<-release
		}
		conn := clerk.NewConnector()
		conn.SetScanLogger(logger.Discard("catalog-test"))
		conn.SetFetcher(testAPI())
		return conn, nil
	})

	ctx := context.Background()
	require.NoError(t, c.CreateServer(ctx, serverConfig("clerk", "*")))

	done := make(chan error, 1)
	go func() {
		_, err := c.Connector(ctx, "clerk")
		done <- err
	}()
	<-entered
	require.NoError(t, c.CreateServer(ctx, serverConfig("clerk", "tenant-b")))
	close(release)

	err := <-done
	require.Error(t, err)
	assert.Contains(t, err.Error(), "changed while connecting")

	conn, err := c.Connector(ctx, "clerk")
	require.NoError(t, err)
	assert.True(t, conn.IsConnected())
}
