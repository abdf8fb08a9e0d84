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


// Package mongodb is an export sink that writes scanned Clerk rows to a
// MongoDB collection, one document per row:
//
//	{_id: "<scan-id>:<n>", scan_id, object, row_index, record: {...}, exported_at}
//
// Options: uri and database (required), collection (default
// clerk_export_rows) and max_pool_size. Importing the package registers the
// "mongodb" sink type.
package mongodb
