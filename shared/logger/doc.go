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
Package logger provides structured JSON logging for the connector service,
the scan engine and the CLI.

# Overview

Each entry is a single JSON line containing:
  - Timestamp (RFC3339Nano, UTC)
  - Log level (DEBUG, INFO, WARN, ERROR)
  - Component name (clerk, server, scheduler, ...)
  - Instance ID and container name
  - Tenant ID and request ID when known
  - Custom fields

The scan engine uses the scan ID as request ID so every page fetch and
diagnostic of one scan can be correlated.

# Usage

	log := logger.New("clerk")
	log.Warn("", scanID, "membership fetch failed", logger.Fields{
	    "organization_id": "org_1",
	})

Tests inject a buffer:

	var buf bytes.Buffer
	log := logger.NewWithWriter("clerk", &buf)

# Environment Variables

  - INSTANCE_ID: deployment instance identifier (default "unknown")

Logger instances are safe for concurrent use.
*/
package logger
