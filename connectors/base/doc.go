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
Package base provides the core interfaces and types shared by all
connectors.

# Overview

The Connector interface separates reads (Query) from writes (Execute).
The Clerk connector is read-only: Query materializes a resource collection
into rows and Execute always refuses.

	type Connector interface {
	    Connect(ctx context.Context, config *ConnectorConfig) error
	    Disconnect(ctx context.Context) error
	    HealthCheck(ctx context.Context) (*HealthStatus, error)

	    Query(ctx context.Context, query *Query) (*QueryResult, error)
	    Execute(ctx context.Context, cmd *Command) (*CommandResult, error)

	    Name() string
	    Type() string
	    Version() string
	    Capabilities() []string
	}

# Configuration

ConnectorConfig carries a foreign server's options and credentials. Table
options are layered on top of a Clone of the server config so one server
can back many foreign tables:

	cfg := server.Clone()
	cfg.Options["object"] = "organizations"

# Error Handling

Connector operations return *ConnectorError so callers see which connector
and operation failed while errors.Is / errors.As still reach the cause:

	if err := conn.Connect(ctx, cfg); err != nil {
	    var cerr *base.ConnectorError
	    if errors.As(err, &cerr) {
	        log.Printf("%s failed during %s", cerr.ConnectorName, cerr.Operation)
	    }
	}

# Security Helpers

ValidateURL guards upstream base URLs before credentials are attached,
ValidateSQLIdentifier guards sink table names, ValidateFilePath guards file
sink destinations and SanitizeLogString cleans upstream text before it
reaches logs or diagnostics.

# Thread Safety

Connector implementations must be safe for concurrent use after Connect
returns.
*/
package base
