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


// Package export copies scanned Clerk collections into durable sinks.
//
// A scan is drained into a Batch, encoded as newline-delimited JSON, and
// handed to a Sink. Object stores receive one object per batch at
//
//	<prefix>/<table>/<yyyy>/<mm>/<dd>/<scan-id>.ndjson
//
// while database sinks receive one record per row keyed by scan ID and row
// index.
//
// Sink types register themselves from init, so a binary enables a sink by
// importing its package:
//
//	import _ "github.com/tembo-io/clerk-fdw/connectors/s3"
//
// The "file" sink is built in.
package export
