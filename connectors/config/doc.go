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
Package config loads Clerk foreign server configuration from the
environment, from YAML catalog files and from secret stores.

# Environment Variable Convention

Server configuration uses the prefix MCP_<SERVER_NAME>_:

	MCP_CLERK_API_KEY=sk_live_...
	MCP_CLERK_URL=https://api.clerk.com/v1
	MCP_CLERK_TIMEOUT=10s
	MCP_CLERK_MAX_RETRIES=5
	MCP_CLERK_RATE_LIMIT=20
	MCP_CLERK_REDIS_URL=redis://localhost:6379/0
	MCP_CLERK_TENANT_ID=tenant-123

	cfg, err := config.LoadFromEnv("clerk", "clerk")

# Catalog Files

A catalog file declares servers, foreign tables, export sinks and
schedules. ${VAR} and ${VAR:-default} are expanded before parsing:

	cf, err := config.LoadCatalogFile("catalog.yaml")
	serverCfg, err := cf.ServerConfig("clerk")

GenerateExampleCatalogFile returns a starting point.

# API Keys

ResolveCredential looks for the Clerk secret key in the api_key
credential, the api_key option, the secret named by api_key_secret, and
finally CLERK_API_KEY. Secret references are resolved by a SecretsManager:
AWS Secrets Manager, environment prefixes or an in-memory store.
*/
package config
