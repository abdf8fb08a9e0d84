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


// Package postgres is an export sink that appends scanned Clerk rows to a
// PostgreSQL table.
//
// The table (default clerk_export_rows) is created on first use:
//
//	scan_id TEXT, object TEXT, row_index INTEGER, record JSONB,
//	exported_at TIMESTAMPTZ, PRIMARY KEY (scan_id, row_index)
//
// Options: url (required, a lib/pq connection string), table and
// max_open_conns. Each batch is written in a single transaction.
//
// Importing the package registers the "postgres" sink type.
package postgres
