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

package clerk

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tembo-io/clerk-fdw/connectors/base"
	"github.com/tembo-io/clerk-fdw/connectors/sdk"
)

const (
	// DefaultAPIURL is the Clerk Backend API root.
	DefaultAPIURL = "https://api.clerk.com/v1"
	// DefaultTimeout is the per-request HTTP timeout
	DefaultTimeout = 30 * time.Second
	// DefaultMaxResponseSize caps a page body (10MB)
	DefaultMaxResponseSize = 10 * 1024 * 1024

	userAgent = "clerk-fdw/0.3.0"
)

// ClientConfig configures a Client.
type ClientConfig struct {
	BaseURL         string
	APIKey          string
	Timeout         time.Duration
	MaxResponseSize int64
	Retry           *sdk.RetryConfig
	Limiter         sdk.Limiter
	HTTPClient      *http.Client
}

// Client fetches pages from the Clerk Backend API. It implements PageFetcher.
type Client struct {
	baseURL         string
	auth            *sdk.BearerTokenAuth
	httpClient      *http.Client
	maxResponseSize int64
	retry           *sdk.RetryConfig
	limiter         sdk.Limiter
}

// NewClient validates cfg and builds a client. A missing API key is a
// SetupError.
func NewClient(cfg ClientConfig) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &SetupError{Message: "API key is not set"}
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, &SetupError{Message: "invalid api_url", Cause: err}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, &SetupError{Message: "api_url must use http or https scheme"}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxSize := cfg.MaxResponseSize
	if maxSize <= 0 {
		maxSize = DefaultMaxResponseSize
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		transport := &http.Transport{
			TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
			MaxIdleConns:    100,
			MaxConnsPerHost: 10,
			IdleConnTimeout: 90 * time.Second,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
		}
		httpClient = &http.Client{Timeout: timeout, Transport: transport}
	}

	retry := cfg.Retry
	if retry == nil {
		retry = sdk.DefaultRetryConfig()
	}

	return &Client{
		baseURL:         strings.TrimSuffix(baseURL, "/"),
		auth:            sdk.NewBearerTokenAuth(cfg.APIKey, time.Time{}),
		httpClient:      httpClient,
		maxResponseSize: maxSize,
		retry:           retry,
		limiter:         cfg.Limiter,
	}, nil
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchPage GETs one page. Retryable failures (408, 429, 5xx, network
// timeouts) are retried with backoff before a *TransportError is returned.
func (c *Client) FetchPage(ctx context.Context, req PageRequest) ([]byte, error) {
	reqURL, err := url.Parse(c.baseURL + req.Path)
	if err != nil {
		return nil, &TransportError{Resource: req.Resource, Path: req.Path, Message: "invalid URL path", Cause: err}
	}
	params := url.Values{}
	params.Set("limit", strconv.Itoa(req.Limit))
	params.Set("offset", strconv.Itoa(req.Offset))
	reqURL.RawQuery = params.Encode()

	body, err := sdk.RetryWithBackoff(ctx, c.retry, func() ([]byte, error) {
		return c.do(ctx, req, reqURL.String())
	})
	if err == nil {
		return body, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	var te *TransportError
	if errors.As(err, &te) {
		return nil, te
	}
	return nil, &TransportError{Resource: req.Resource, Path: req.Path, Message: err.Error(), Cause: err}
}

func (c *Client) do(ctx context.Context, req PageRequest, reqURL string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &sdk.NonRetryableError{Err: err}
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &sdk.NonRetryableError{Err: &TransportError{
			Resource: req.Resource, Path: req.Path, Message: "failed to create request", Cause: err,
		}}
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)
	if err := c.auth.Authenticate(ctx, httpReq); err != nil {
		return nil, &sdk.NonRetryableError{Err: err}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &sdk.NonRetryableError{Err: ctx.Err()}
		}
		te := &TransportError{Resource: req.Resource, Path: req.Path, Message: err.Error(), Cause: err}
		if sdk.DefaultRetryCondition(err) {
			te.Retryable = true
			return nil, &sdk.RetryableError{Err: te}
		}
		return nil, &sdk.NonRetryableError{Err: te}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseSize+1))
	if err != nil {
		te := &TransportError{
			Resource: req.Resource, Path: req.Path, StatusCode: resp.StatusCode,
			Message: "failed to read response", Retryable: true, Cause: err,
		}
		return nil, &sdk.RetryableError{Err: te}
	}
	if int64(len(body)) > c.maxResponseSize {
		return nil, &sdk.NonRetryableError{Err: &TransportError{
			Resource: req.Resource, Path: req.Path, StatusCode: resp.StatusCode,
			Message: fmt.Sprintf("response size exceeds limit of %d bytes", c.maxResponseSize),
		}}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if fl, ok := c.limiter.(sdk.FeedbackLimiter); ok {
			fl.RecordSuccess()
		}
		return body, nil
	}

	te := &TransportError{
		Resource:   req.Resource,
		Path:       req.Path,
		StatusCode: resp.StatusCode,
		Message:    errorMessage(body),
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		if fl, ok := c.limiter.(sdk.FeedbackLimiter); ok {
			fl.RecordRateLimited()
		}
	}
	if sdk.IsRetryableStatusCode(resp.StatusCode) {
		te.Retryable = true
		return nil, &sdk.RetryableError{Err: te, RetryAfter: sdk.ParseRetryAfter(resp.Header.Get("Retry-After"))}
	}
	return nil, &sdk.NonRetryableError{Err: te}
}

// Close releases idle connections.
func (c *Client) Close() {
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}

// apiErrors is the Clerk error envelope.
type apiErrors struct {
	Errors []struct {
		Message     string `json:"message"`
		LongMessage string `json:"long_message"`
		Code        string `json:"code"`
	} `json:"errors"`
}

// errorMessage extracts a readable message from an error body.
func errorMessage(body []byte) string {
	var env apiErrors
	if err := json.Unmarshal(body, &env); err == nil && len(env.Errors) > 0 {
		e := env.Errors[0]
		msg := e.LongMessage
		if msg == "" {
			msg = e.Message
		}
		if e.Code != "" {
			msg = e.Code + ": " + msg
		}
		return base.SanitizeLogString(msg)
	}

	msg := string(body)
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	return base.SanitizeLogString(msg)
}
