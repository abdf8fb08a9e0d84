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
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/tembo-io/clerk-fdw/connectors/base"
	"github.com/tembo-io/clerk-fdw/connectors/config"
	"github.com/tembo-io/clerk-fdw/connectors/sdk"
	"github.com/tembo-io/clerk-fdw/shared/logger"
)

const (
	// ConnectorType is the registry type name.
	ConnectorType = "clerk"
	// ConnectorVersion is reported by Version.
	ConnectorVersion = "0.3.0"

	defaultRateLimit = 20.0
	defaultRateBurst = 20

	redisWindow = 10 * time.Second
)

// Connector exposes Clerk resources through base.Connector. Query runs one
// scan per call; Execute is refused.
type Connector struct {
	*sdk.BaseConnector

	client  *Client
	fetcher PageFetcher
	secrets config.SecretsManager
	redis   *sdk.RedisRateLimiter
	limiter *sdk.AdaptiveRateLimiter
	log     *logger.Logger
	policy  *base.URLValidationOptions
}

// NewConnector creates an unconnected connector.
func NewConnector() *Connector {
	c := &Connector{
		BaseConnector: sdk.NewBaseConnector(ConnectorType, ConnectorVersion,
			"query", "pagination", "dependent-resources", "read-only"),
		log: logger.New("clerk-connector"),
	}
	c.SetValidator(sdk.NewDefaultConfigValidator(nil, map[string]interface{}{
		OptAPIURL:    DefaultAPIURL,
		OptRateLimit: defaultRateLimit,
		OptRateBurst: defaultRateBurst,
	}))
	return c
}

// SetSecretsManager sets the backend used for api_key_secret.
func (c *Connector) SetSecretsManager(sm config.SecretsManager) {
	c.secrets = sm
}

// SetURLPolicy makes Connect check api_url against opts before any
// credential is sent to it.
func (c *Connector) SetURLPolicy(opts base.URLValidationOptions) {
	c.policy = &opts
}

// SetScanLogger replaces the structured scan logger.
func (c *Connector) SetScanLogger(l *logger.Logger) {
	c.log = l
}

// SetFetcher replaces the HTTP client as the page source. Connect still
// resolves credentials but keeps f.
func (c *Connector) SetFetcher(f PageFetcher) {
	c.fetcher = f
}

// Connect validates options, resolves the API key and builds the client.
func (c *Connector) Connect(ctx context.Context, cfg *base.ConnectorConfig) error {
	if cfg == nil {
		return base.NewConnectorError(ConnectorType, "Connect", "config cannot be nil", nil)
	}
	if err := ValidateOptions(StringOptions(cfg.Options), false); err != nil {
		return base.NewConnectorError(cfg.Name, "Connect", "invalid server options", err)
	}
	cfg = cfg.Clone()
	if cfg.Type == "" {
		cfg.Type = ConnectorType
	}
	if err := c.BaseConnector.Connect(ctx, cfg); err != nil {
		return err
	}

	key, source, err := config.ResolveCredential(ctx, cfg, c.secrets)
	if err != nil {
		_ = c.BaseConnector.Disconnect(ctx)
		return base.NewConnectorError(cfg.Name, "Connect", "credential resolution failed",
			&SetupError{Message: "cannot resolve API key", Cause: err})
	}

	limiter, err := c.buildLimiter(ctx, cfg)
	if err != nil {
		_ = c.BaseConnector.Disconnect(ctx)
		return base.NewConnectorError(cfg.Name, "Connect", "rate limiter setup failed", err)
	}
	c.SetRateLimiter(limiter)

	retry := sdk.DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retry.MaxRetries = cfg.MaxRetries
	}
	retry.MaxRetries = c.GetIntOption(OptMaxRetries, retry.MaxRetries)
	retry.OnRetry = func(attempt int, err error, wait time.Duration) {
		c.Log("Retry %d after %v: %s", attempt, wait, base.SanitizeLogString(err.Error()))
	}
	c.SetRetryConfig(retry)

	apiURL := c.GetStringOption(OptAPIURL, DefaultAPIURL)
	if c.policy != nil {
		if err := base.ValidateURL(apiURL, *c.policy); err != nil {
			_ = c.BaseConnector.Disconnect(ctx)
			return base.NewConnectorError(cfg.Name, "Connect", "api_url rejected",
				&SetupError{Message: "api_url rejected", Cause: err})
		}
	}

	client, err := NewClient(ClientConfig{
		BaseURL: apiURL,
		APIKey:  key,
		Timeout: c.GetDurationOption(OptTimeout, cfg.Timeout),
		Retry:   retry,
		Limiter: limiter,
	})
	if err != nil {
		_ = c.BaseConnector.Disconnect(ctx)
		return base.NewConnectorError(cfg.Name, "Connect", "client setup failed", err)
	}
	c.client = client
	c.SetAuthProvider(client.auth)

	c.Log("Connected to Clerk API: %s (url=%s, key=%s from %s)",
		cfg.Name, client.BaseURL(), sdk.MaskSecret(key), source)
	return nil
}

func (c *Connector) buildLimiter(ctx context.Context, cfg *base.ConnectorConfig) (sdk.Limiter, error) {
	if l := c.GetRateLimiter(); l != nil {
		return l, nil
	}

	rate := c.GetFloatOption(OptRateLimit, defaultRateLimit)
	burst := c.GetIntOption(OptRateBurst, defaultRateBurst)
	local := sdk.NewAdaptiveRateLimiter(rate/10, rate, burst)
	c.limiter = local

	redisURL := c.GetStringOption(OptRedisURL, "")
	if redisURL == "" {
		return local, nil
	}
	shared, err := sdk.NewRedisRateLimiter(ctx, redisURL, cfg.Name, windowLimit(rate), redisWindow)
	if err != nil {
		return nil, err
	}
	c.redis = shared
	return sdk.ChainLimiter{local, shared}, nil
}

// windowLimit converts a per-second rate to a request count per redisWindow,
// never below one.
func windowLimit(rate float64) int {
	return max(1, int(math.Ceil(rate*redisWindow.Seconds())))
}

// Disconnect releases the HTTP client and any shared limiter.
func (c *Connector) Disconnect(ctx context.Context) error {
	if c.client != nil {
		c.client.Close()
	}
	if c.redis != nil {
		_ = c.redis.Close()
		c.redis = nil
	}
	if c.limiter != nil {
		c.SetRateLimiter(nil)
		c.limiter = nil
	}
	return c.BaseConnector.Disconnect(ctx)
}

func (c *Connector) pageSource() PageFetcher {
	if c.fetcher != nil {
		return c.fetcher
	}
	if c.client != nil {
		return c.client
	}
	return nil
}

// ScanOptions returns the scan tuning derived from the connector options.
func (c *Connector) ScanOptions() ScanOptions {
	cfg := c.GetConfig()
	opts := ScanOptions{
		PageSize:         c.GetIntOption(OptPageSize, PageSize),
		MaxPages:         c.GetIntOption(OptMaxPages, DefaultMaxPages),
		CourtesyDelay:    c.GetDurationOption(OptCourtesyDelay, DefaultCourtesyDelay),
		MaxCourtesyDelay: c.GetDurationOption(OptMaxCourtesyDelay, DefaultMaxCourtesyDelay),
		Logger:           c.log,
	}
	if opts.CourtesyDelay == 0 {
		opts.CourtesyDelay = -1
	}
	if cfg != nil {
		opts.TenantID = cfg.TenantID
	}
	return opts
}

// NewScan starts a scan against the connector's page source.
func (c *Connector) NewScan() (*Scan, error) {
	return c.NewScanWithOptions(c.ScanOptions())
}

// NewScanWithOptions is NewScan with caller-adjusted tuning, typically
// ScanOptions overlaid with foreign table options.
func (c *Connector) NewScanWithOptions(opts ScanOptions) (*Scan, error) {
	if !c.IsConnected() {
		return nil, base.NewConnectorError(c.Name(), "Scan", "not connected", nil)
	}
	src := c.pageSource()
	if src == nil {
		return nil, base.NewConnectorError(c.Name(), "Scan", "no page source", nil)
	}
	return NewScan(src, opts), nil
}

// Query scans the resource named by q.Statement. Parameters "columns" and
// "predicates" shape the scan; with no columns every typed column and attrs
// are returned.
func (c *Connector) Query(ctx context.Context, q *base.Query) (*base.QueryResult, error) {
	if q == nil {
		return nil, base.NewConnectorError(c.Name(), "Query", "query cannot be nil", nil)
	}
	scan, err := c.NewScan()
	if err != nil {
		return nil, err
	}

	if q.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.Timeout)
		defer cancel()
	}

	columns := ColumnsFrom(q.Parameters["columns"])
	if len(columns) == 0 {
		if schema, err := Lookup(q.Statement); err == nil {
			columns = append(schema.Columns(), AttrsColumn)
		}
	}
	predicates := PredicatesFrom(q.Parameters["predicates"])

	start := time.Now()
	err = scan.BeginScan(ctx, q.Statement, columns, predicates)
	defer scan.EndScan()
	duration := time.Since(start)
	c.GetMetrics().RecordQuery(duration, err)
	if err != nil {
		return nil, base.NewConnectorError(c.Name(), "Query", "scan interrupted", err)
	}

	rows := make([]map[string]interface{}, 0)
	for {
		row, ok := scan.NextRow()
		if !ok {
			break
		}
		rows = append(rows, row.Map())
		if q.Limit > 0 && len(rows) >= q.Limit {
			break
		}
	}

	return &base.QueryResult{
		Rows:      rows,
		Columns:   columns,
		RowCount:  len(rows),
		Duration:  duration,
		Connector: c.Name(),
		Metadata: map[string]interface{}{
			"scan_id":     scan.ID,
			"diagnostics": scan.Diagnostics(),
			"pages":       scan.Pages(),
		},
	}, nil
}

// Execute is refused; Clerk resources are read-only here.
func (c *Connector) Execute(ctx context.Context, cmd *base.Command) (*base.CommandResult, error) {
	return nil, base.NewConnectorError(c.Name(), "Execute", "read-only connector", nil)
}

// HealthCheck fetches a single user.
func (c *Connector) HealthCheck(ctx context.Context) (*base.HealthStatus, error) {
	src := c.pageSource()
	if !c.IsConnected() || src == nil {
		return &base.HealthStatus{Healthy: false, Error: "not connected", Timestamp: time.Now()}, nil
	}

	start := time.Now()
	_, err := src.FetchPage(ctx, PageRequest{
		Resource: ResourceUsers,
		Path:     registry[ResourceUsers].Path,
		Limit:    1,
	})
	latency := time.Since(start)

	status := &base.HealthStatus{
		Healthy:   err == nil,
		Latency:   latency,
		Timestamp: time.Now(),
		Details: map[string]string{
			"connector_type": ConnectorType,
			"version":        ConnectorVersion,
		},
	}
	if c.client != nil {
		status.Details["api_url"] = c.client.BaseURL()
	}
	if c.limiter != nil {
		status.Details["rate_limit_current"] = strconv.FormatFloat(c.limiter.GetCurrentRate(), 'f', -1, 64)
	}
	var te *TransportError
	if errors.As(err, &te) && te.StatusCode != 0 {
		status.Details["status_code"] = strconv.Itoa(te.StatusCode)
	}
	if err != nil {
		status.Error = err.Error()
	}
	return status, nil
}

// StringOptions renders connector options as the string map ValidateOptions
// takes. Non-string values are formatted.
func StringOptions(opts map[string]interface{}) map[string]string {
	out := make(map[string]string, len(opts))
	for k, v := range opts {
		switch t := v.(type) {
		case string:
			out[k] = t
		case nil:
		case time.Duration:
			out[k] = t.String()
		default:
			out[k] = fmt.Sprint(t)
		}
	}
	return out
}
