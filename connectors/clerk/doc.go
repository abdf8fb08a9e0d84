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
Package clerk maps Clerk Backend API collections to tabular rows.

# Resources

Three resources are supported, each described by a ResourceSchema in a
static registry:

	users                     GET /users
	organizations             GET /organizations
	organization_memberships  GET /organizations/{id}/memberships (per organization)

Aliases such as "user" and "memberships" resolve to the same schema.

# Scanning

A Scan materializes one resource fully before rows are read:

	scan := clerk.NewScan(client, clerk.ScanOptions{})
	if err := scan.BeginScan(ctx, "users", []string{"user_id", "email", "attrs"}, nil); err != nil {
	    return err
	}
	defer scan.EndScan()
	for {
	    row, ok := scan.NextRow()
	    if !ok {
	        break
	    }
	    ...
	}

Pages are requested with limit/offset. A page with fewer members than the
page size ends the collection. Memberships are fetched organization by
organization with a short pause between organizations.

# Failure handling

Malformed fields become NULL cells. Failed or malformed pages, unknown
resources and failing organizations are recorded as Diagnostics and the scan
returns what it collected. Only a missing API key (SetupError) and invalid
options (ValidationError) are reported as errors.
*/
package clerk
