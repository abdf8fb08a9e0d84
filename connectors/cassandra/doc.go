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


// Package cassandra is an export sink that writes scanned Clerk rows to a
// Cassandra or ScyllaDB table partitioned by scan ID and clustered by row
// index. Rows are sent as unlogged batches of batch_size (default 100).
//
// Options: hosts (comma separated) and keyspace are required; table,
// consistency, username, password and batch_size are optional. Importing the
// package registers the "cassandra" sink type.
package cassandra
