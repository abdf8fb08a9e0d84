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

package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/tembo-io/clerk-fdw/connectors/base"
)

// APIKeyEnv is the process-wide fallback for the Clerk secret key.
const APIKeyEnv = "CLERK_API_KEY"

// ErrCredentialNotFound is returned when no source yields an API key.
var ErrCredentialNotFound = errors.New("no API key in options, secret or " + APIKeyEnv)

// Credential source names reported by ResolveCredential.
const (
	SourceCredentials = "credentials"
	SourceOption      = "option"
	SourceSecret      = "secret"
	SourceEnv         = "env"
)

// ResolveCredential finds the API key for cfg, trying in order: the
// api_key credential, the api_key option, the api_key_secret reference
// through secrets, and CLERK_API_KEY. It returns the key and the source
// that produced it.
func ResolveCredential(ctx context.Context, cfg *base.ConnectorConfig, secrets SecretsManager) (string, string, error) {
	if cfg != nil {
		if key := strings.TrimSpace(cfg.Credentials["api_key"]); key != "" {
			return key, SourceCredentials, nil
		}
		if key, ok := cfg.Options["api_key"].(string); ok && strings.TrimSpace(key) != "" {
			return strings.TrimSpace(key), SourceOption, nil
		}

		ref := strings.TrimSpace(cfg.Credentials["api_key_secret"])
		if ref == "" {
			ref, _ = cfg.Options["api_key_secret"].(string)
			ref = strings.TrimSpace(ref)
		}
		if ref != "" {
			if secrets == nil {
				return "", "", fmt.Errorf("api_key_secret %q set but no secrets manager configured", maskRef(ref))
			}
			fields, err := secrets.GetSecret(ctx, ref)
			if err != nil {
				return "", "", fmt.Errorf("resolve api_key_secret: %w", err)
			}
			if key := secretKey(fields); key != "" {
				return key, SourceSecret, nil
			}
			return "", "", fmt.Errorf("secret %s has no api_key field", maskRef(ref))
		}
	}

	if key := strings.TrimSpace(os.Getenv(APIKeyEnv)); key != "" {
		return key, SourceEnv, nil
	}
	return "", "", ErrCredentialNotFound
}

// secretKey picks the API key out of a secret's fields.
func secretKey(fields map[string]string) string {
	for _, k := range []string{"api_key", "secret_key", "value"} {
		if v := strings.TrimSpace(fields[k]); v != "" {
			return v
		}
	}
	if len(fields) == 1 {
		for _, v := range fields {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
