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


// Package mysql is an export sink that appends scanned Clerk rows to a MySQL
// table (default clerk_export_rows) with a JSON record column. Rows are keyed
// by (scan_id, row_index) so re-running a write is idempotent.
//
// Connect with a dsn option or with host, port, database, username, password
// and tls. Importing the package registers the "mysql" sink type.
package mysql
