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
Package azureblob is an export sink that writes scanned Clerk collections to
Azure Blob Storage. Each export is one block blob holding newline-delimited
JSON:

	<container>/<prefix>/<table>/<yyyy>/<mm>/<dd>/<scan-id>.ndjson

# Authentication

	connection_string                  full storage connection string
	account_name + account_key         shared key
	account_name + use_managed_identity=true
	                                   DefaultAzureCredential (managed
	                                   identity, workload identity, CLI)

Importing the package registers the "azureblob" sink type.
*/
package azureblob
