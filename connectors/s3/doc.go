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
Package s3 is an export sink that writes scanned Clerk collections to Amazon
S3 or any S3-compatible store (MinIO, DigitalOcean Spaces, Cloudflare R2).

Each export becomes one newline-delimited JSON object:

	s3://<bucket>/<prefix>/<table>/<yyyy>/<mm>/<dd>/<scan-id>.ndjson

The object carries scan-id, object and rows user metadata.

# Configuration

	sinks:
	  archive:
	    type: s3
	    options:
	      bucket: clerk-exports
	      prefix: clerk
	      region: eu-west-1

Static keys go in access_key_id and secret_access_key (plus session_token
for temporary credentials). Without them the default AWS credential chain
applies, which covers IAM roles. Set endpoint and force_path_style for
S3-compatible services.

Importing the package registers the "s3" sink type with package export.
*/
package s3
