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
Package server exposes the Clerk foreign-table catalog over HTTP.

Routes:

	GET    /health                          liveness; ?deep=true checks every server
	GET    /prometheus                      Prometheus metrics
	GET    /api/v1/resources                describe every Clerk object
	GET    /api/v1/resources/{object}       describe one object
	GET    /api/v1/tables                   list foreign tables
	POST   /api/v1/tables                   create a foreign table
	GET    /api/v1/tables/{name}            show a foreign table
	DELETE /api/v1/tables/{name}            drop a foreign table
	POST   /api/v1/tables/{name}/scan       scan: {columns, predicates}
	POST   /api/v1/tables/{name}/export     export to a declared sink: {sink}
	POST   /api/v1/validate                 check an option set
	GET    /api/v1/schedules                list export schedules
	POST   /api/v1/schedules/{name}/run     run a schedule now

When a JWT secret is configured every /api/v1 route requires an HS256 bearer
token with an exp and a tenant_id claim. Tables on servers bound to another
tenant are hidden and unreadable.
*/
package server
