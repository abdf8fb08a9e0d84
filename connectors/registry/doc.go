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

/*
Package registry is the foreign table catalog: foreign servers (Clerk
connector configurations) and foreign tables bound to them.

# Servers and Tables

	catalog := registry.NewCatalog()

	err := catalog.CreateServer(ctx, &base.ConnectorConfig{
	    Name:    "clerk",
	    Type:    "clerk",
	    Options: map[string]interface{}{"api_key_secret": "clerk/prod"},
	})

	err = catalog.CreateForeignTable(ctx, registry.ForeignTable{
	    Name:    "clerk_users",
	    Server:  "clerk",
	    Options: map[string]string{"object": "users"},
	})

Table options are checked with clerk.ValidateOptions; a table without an
object option is rejected.

# Scanning

	scan, err := catalog.OpenScan(ctx, "clerk_users", []string{"user_id", "email"}, nil)
	if err != nil {
	    return err
	}
	defer scan.EndScan()
	for row, ok := scan.NextRow(); ok; row, ok = scan.NextRow() {
	    ...
	}

Server connectors are connected on the first scan. Table options page_size,
max_pages and courtesy_delay override the server's.

# Persistence

With PostgreSQLStorage the catalog survives restarts and is shared between
replicas; StartPeriodicReload picks up entries written elsewhere.

	storage, err := registry.NewPostgreSQLStorage(os.Getenv("DATABASE_URL"))
	catalog, err := registry.NewCatalogWithStorage(ctx, storage)
	catalog.StartPeriodicReload(ctx, 30*time.Second)

# Tenants

A server's TenantID ("*" for everyone) controls which tenants may scan its
tables; see ValidateTenantAccess and TablesForTenant.
*/
package registry
