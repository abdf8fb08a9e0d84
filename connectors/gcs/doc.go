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


// Package gcs is an export sink that writes scanned Clerk collections to
// Google Cloud Storage as newline-delimited JSON objects at
// gs://<bucket>/<prefix>/<table>/<yyyy>/<mm>/<dd>/<scan-id>.ndjson.
//
// Options: bucket (required), prefix, credentials_file or credentials_json,
// and endpoint for the storage emulator. Without explicit credentials the
// client uses application default credentials.
//
// Importing the package registers the "gcs" sink type.
package gcs
