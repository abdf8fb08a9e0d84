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
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tembo-io/clerk-fdw/connectors/base"
)

// LoadFromEnv builds a server configuration from MCP_<NAME>_* variables:
// API_KEY, API_KEY_SECRET, URL, TIMEOUT, MAX_RETRIES, TENANT_ID, RATE_LIMIT
// and REDIS_URL. All are optional; the API key may still come from
// CLERK_API_KEY at connect time.
func LoadFromEnv(connectorName, connectorType string) (*base.ConnectorConfig, error) {
	prefix := "MCP_" + strings.ToUpper(connectorName) + "_"

	config := &base.ConnectorConfig{
		Name:        connectorName,
		Type:        connectorType,
		Credentials: make(map[string]string),
		Options:     make(map[string]interface{}),
		TenantID:    getEnvOrDefault(prefix+"TENANT_ID", "*"),
		Timeout:     30 * time.Second,
		MaxRetries:  3,
	}

	if url := os.Getenv(prefix + "URL"); url != "" {
		config.Options["api_url"] = url
	}
	if apiKey := os.Getenv(prefix + "API_KEY"); apiKey != "" {
		config.Credentials["api_key"] = apiKey
	}
	if ref := os.Getenv(prefix + "API_KEY_SECRET"); ref != "" {
		config.Options["api_key_secret"] = ref
	}
	if redisURL := os.Getenv(prefix + "REDIS_URL"); redisURL != "" {
		config.Options["redis_url"] = redisURL
	}

	if timeoutStr := os.Getenv(prefix + "TIMEOUT"); timeoutStr != "" {
		timeout, err := time.ParseDuration(timeoutStr)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout format: %s", timeoutStr)
		}
		config.Timeout = timeout
	}

	if maxRetriesStr := os.Getenv(prefix + "MAX_RETRIES"); maxRetriesStr != "" {
		maxRetries, err := strconv.Atoi(maxRetriesStr)
		if err != nil {
			return nil, fmt.Errorf("invalid max_retries format: %s", maxRetriesStr)
		}
		config.MaxRetries = maxRetries
	}

	if rateStr := os.Getenv(prefix + "RATE_LIMIT"); rateStr != "" {
		rate, err := strconv.ParseFloat(rateStr, 64)
		if err != nil || rate <= 0 {
			return nil, fmt.Errorf("invalid rate_limit format: %s", rateStr)
		}
		config.Options["rate_limit"] = rate
	}

	return config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// ValidateConfig checks the fields every server configuration needs.
func ValidateConfig(config *base.ConnectorConfig) error {
	if config == nil {
		return fmt.Errorf("config is required")
	}
	if config.Name == "" {
		return fmt.Errorf("connector name is required")
	}
	if config.Type == "" {
		return fmt.Errorf("connector type is required")
	}
	if config.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}
	if config.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	return nil
}
