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

// Package sdk provides the shared plumbing for REST-backed connectors.
//
// # BaseConnector
//
// Embed BaseConnector to get config validation, typed option lookup and
// connection state:
//
//	type Connector struct {
//	    *sdk.BaseConnector
//	    client *Client
//	}
//
// Option getters accept the string form that foreign-table options arrive
// in, so GetIntOption("page_size", 500) works for both 500 and "500".
//
// # Rate Limiting
//
// Every upstream request waits on a Limiter. RateLimiter is a token bucket,
// AdaptiveRateLimiter halves its rate on each 429. RedisRateLimiter shares a
// sliding window across processes and fails open when Redis is down:
//
//	limiter := sdk.ChainLimiter{adaptive, redisLimiter}
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
//
// # Retry Logic
//
// RetryWithBackoff retries RetryableError values and transient network
// failures with exponential backoff and jitter, honouring Retry-After:
//
//	page, err := sdk.RetryWithBackoff(ctx, cfg, func() ([]byte, error) {
//	    return client.fetch(ctx, path)
//	})
//
// # Metrics
//
// ConnectorMetrics keeps atomic counters and feeds the
// clerkfdw_connector_* Prometheus vectors.
package sdk
