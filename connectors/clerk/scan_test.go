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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tembo-io/clerk-fdw/connectors/sdk"
	"github.com/tembo-io/clerk-fdw/shared/logger"
)

// fakeAPI serves collections by path, slicing them by offset and limit.
type fakeAPI struct {
	mu       sync.Mutex
	data     map[string][]map[string]interface{}
	fail     map[string]error
	raw      map[string]string
	requests []PageRequest
	bare     bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		data: make(map[string][]map[string]interface{}),
		fail: make(map[string]error),
		raw:  make(map[string]string),
	}
}

func (f *fakeAPI) FetchPage(ctx context.Context, req PageRequest) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)

	if err, ok := f.fail[req.Path]; ok {
		return nil, err
	}
	if body, ok := f.raw[req.Path]; ok {
		return []byte(body), nil
	}

	all := f.data[req.Path]
	page := []map[string]interface{}{}
	for i := req.Offset; i < len(all) && i < req.Offset+req.Limit; i++ {
		page = append(page, all[i])
	}
	if f.bare {
		return json.Marshal(page)
	}
	return json.Marshal(map[string]interface{}{"data": page, "total_count": len(all)})
}

func (f *fakeAPI) offsets(path string) []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []int
	for _, r := range f.requests {
		if r.Path == path {
			out = append(out, r.Offset)
		}
	}
	return out
}

func orgs(n int) []map[string]interface{} {
	out := make([]map[string]interface{}, n)
	for i := range out {
		out[i] = map[string]interface{}{"id": fmt.Sprintf("org_%d", i+1), "name": fmt.Sprintf("Org %d", i+1)}
	}
	return out
}

func membershipsOf(orgID string, n int) []map[string]interface{} {
	out := make([]map[string]interface{}, n)
	for i := range out {
		out[i] = map[string]interface{}{
			"role":             "org:member",
			"organization":     map[string]interface{}{"id": orgID},
			"public_user_data": map[string]interface{}{"user_id": fmt.Sprintf("%s_user_%d", orgID, i+1)},
		}
	}
	return out
}

func testScan(api PageFetcher, pageSize int) *Scan {
	return NewScan(api, ScanOptions{
		PageSize:      pageSize,
		CourtesyDelay: -1,
		Logger:        logger.NewWithWriter("clerk-test", io.Discard),
	})
}

func drain(s *Scan) []Row {
	var rows []Row
	for {
		row, ok := s.NextRow()
		if !ok {
			return rows
		}
		rows = append(rows, row)
	}
}

func TestScan_OrganizationsPageSizeTwo(t *testing.T) {
	api := newFakeAPI()
	api.data["/organizations"] = orgs(3)

	s := testScan(api, 2)
	require.NoError(t, s.BeginScan(context.Background(), "organization", []string{"organization_id", "name"}, nil))

	assert.Equal(t, []int{0, 2}, api.offsets("/organizations"))
	assert.Equal(t, 2, s.Pages())

	rows := drain(s)
	require.Len(t, rows, 3)
	for i, row := range rows {
		id, _ := row.Get("organization_id")
		assert.Equal(t, fmt.Sprintf("org_%d", i+1), id)
	}
	assert.Empty(t, s.Diagnostics())
}

func TestScan_FullPageFetchesNext(t *testing.T) {
	api := newFakeAPI()
	api.data["/users"] = []map[string]interface{}{{"id": "u1"}, {"id": "u2"}, {"id": "u3"}, {"id": "u4"}}

	s := testScan(api, 2)
	require.NoError(t, s.BeginScan(context.Background(), "users", []string{"user_id"}, nil))

	// 2, 2, then an empty short page.
	assert.Equal(t, []int{0, 2, 4}, api.offsets("/users"))
	assert.Len(t, drain(s), 4)
}

func TestScan_ShortPageTerminates(t *testing.T) {
	api := newFakeAPI()
	api.data["/users"] = []map[string]interface{}{{"id": "u1"}}

	s := testScan(api, 500)
	require.NoError(t, s.BeginScan(context.Background(), "users", []string{"user_id"}, nil))

	assert.Equal(t, []int{0}, api.offsets("/users"))
	assert.Len(t, drain(s), 1)
}

func TestScan_BareArrayPages(t *testing.T) {
	api := newFakeAPI()
	api.bare = true
	api.data["/users"] = []map[string]interface{}{{"id": "u1"}, {"id": "u2"}, {"id": "u3"}}

	s := testScan(api, 2)
	require.NoError(t, s.BeginScan(context.Background(), "users", []string{"user_id"}, nil))
	assert.Len(t, drain(s), 3)
}

func TestScan_UnknownResource(t *testing.T) {
	api := newFakeAPI()

	s := testScan(api, 2)
	err := s.BeginScan(context.Background(), "invoices", []string{"id"}, nil)
	require.NoError(t, err)

	assert.Empty(t, drain(s))
	diags := s.Diagnostics()
	require.Len(t, diags, 1)
	assert.Equal(t, DiagUnsupportedResource, diags[0].Code)
	assert.Equal(t, "warning", diags[0].Level)
	assert.Empty(t, api.requests)
}

func TestScan_TransportErrorKeepsRows(t *testing.T) {
	calls := 0
	fetcher := PageFetcherFunc(func(ctx context.Context, req PageRequest) ([]byte, error) {
		calls++
		if req.Offset == 0 {
			return []byte(`{"data":[{"id":"u1"},{"id":"u2"}]}`), nil
		}
		return nil, &TransportError{Resource: req.Resource, Path: req.Path, StatusCode: 500, Message: "boom"}
	})

	s := testScan(fetcher, 2)
	require.NoError(t, s.BeginScan(context.Background(), "users", []string{"user_id"}, nil))

	assert.Equal(t, 2, calls)
	assert.Len(t, drain(s), 2)
	diags := s.Diagnostics()
	require.Len(t, diags, 1)
	assert.Equal(t, DiagTransport, diags[0].Code)
	assert.Equal(t, 2, diags[0].Offset)
}

func TestScan_ShapeMismatch(t *testing.T) {
	api := newFakeAPI()
	api.raw["/users"] = `{"items":[{"id":"u1"}]}`

	s := testScan(api, 2)
	require.NoError(t, s.BeginScan(context.Background(), "users", []string{"user_id"}, nil))

	assert.Empty(t, drain(s))
	diags := s.Diagnostics()
	require.Len(t, diags, 1)
	assert.Equal(t, DiagShapeMismatch, diags[0].Code)
	assert.Equal(t, []int{0}, api.offsets("/users"))
}

func TestScan_PageLimit(t *testing.T) {
	fetcher := PageFetcherFunc(func(ctx context.Context, req PageRequest) ([]byte, error) {
		return []byte(`{"data":[{"id":"same"},{"id":"same"}]}`), nil
	})

	s := NewScan(fetcher, ScanOptions{
		PageSize: 2,
		MaxPages: 3,
		Logger:   logger.NewWithWriter("clerk-test", io.Discard),
	})
	require.NoError(t, s.BeginScan(context.Background(), "users", []string{"user_id"}, nil))

	assert.Equal(t, 3, s.Pages())
	assert.Len(t, drain(s), 6)
	diags := s.Diagnostics()
	require.Len(t, diags, 1)
	assert.Equal(t, DiagPageLimit, diags[0].Code)
}

func TestScan_NextRowDeliversOnce(t *testing.T) {
	api := newFakeAPI()
	api.data["/users"] = []map[string]interface{}{{"id": "u1"}, {"id": "u2"}}

	s := testScan(api, 500)
	require.NoError(t, s.BeginScan(context.Background(), "users", []string{"user_id"}, nil))

	first, ok := s.NextRow()
	require.True(t, ok)
	second, ok := s.NextRow()
	require.True(t, ok)
	_, ok = s.NextRow()
	assert.False(t, ok)
	_, ok = s.NextRow()
	assert.False(t, ok)

	a, _ := first.Get("user_id")
	b, _ := second.Get("user_id")
	assert.Equal(t, "u1", a)
	assert.Equal(t, "u2", b)
}

func TestScan_EndScanIdempotent(t *testing.T) {
	api := newFakeAPI()
	api.data["/users"] = []map[string]interface{}{{"id": "u1"}, {"id": "u2"}}

	s := testScan(api, 500)
	require.NoError(t, s.BeginScan(context.Background(), "users", []string{"user_id"}, nil))

	s.EndScan()
	s.EndScan()
	_, ok := s.NextRow()
	assert.False(t, ok)
}

func TestScan_BeginTwice(t *testing.T) {
	s := testScan(newFakeAPI(), 2)
	require.NoError(t, s.BeginScan(context.Background(), "users", nil, nil))
	assert.Error(t, s.BeginScan(context.Background(), "users", nil, nil))
}

func TestScan_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fetcher := PageFetcherFunc(func(ctx context.Context, req PageRequest) ([]byte, error) {
		cancel()
		return []byte(`{"data":[{"id":"u1"},{"id":"u2"}]}`), nil
	})

	s := testScan(fetcher, 2)
	err := s.BeginScan(ctx, "users", []string{"user_id"}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Len(t, drain(s), 2)
}

func TestScan_IndependentScans(t *testing.T) {
	api := newFakeAPI()
	api.data["/users"] = []map[string]interface{}{{"id": "u1"}, {"id": "u2"}, {"id": "u3"}}

	var wg sync.WaitGroup
	counts := make([]int, 8)
	for i := range counts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := testScan(api, 2)
			if err := s.BeginScan(context.Background(), "users", []string{"user_id"}, nil); err != nil {
				return
			}
			counts[i] = len(drain(s))
		}(i)
	}
	wg.Wait()

	for _, n := range counts {
		assert.Equal(t, 3, n)
	}
}

func TestScan_IDsAreUnique(t *testing.T) {
	a := testScan(newFakeAPI(), 2)
	b := testScan(newFakeAPI(), 2)
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestScan_LogsRequestID(t *testing.T) {
	api := newFakeAPI()
	api.data["/users"] = []map[string]interface{}{{"id": "u1"}}

	var buf bytes.Buffer
	s := NewScan(api, ScanOptions{CourtesyDelay: -1, Logger: logger.NewWithWriter("clerk-test", &buf)})
	ctx := sdk.WithRequestID(context.Background(), "req-42")
	require.NoError(t, s.BeginScan(ctx, "users", []string{"user_id"}, nil))

	assert.Contains(t, buf.String(), `"request_id":"req-42"`)
}

func TestScan_UnsupportedResourceMetricLabel(t *testing.T) {
	api := newFakeAPI()
	require.NoError(t, testScan(api, 500).BeginScan(context.Background(), "invoices", nil, nil))
	series := testutil.CollectAndCount(promScans)
	before := testutil.ToFloat64(promScans.WithLabelValues("unsupported", "unsupported"))

	require.NoError(t, testScan(api, 500).BeginScan(context.Background(), "widgets_9f3a", nil, nil))

	assert.Equal(t, series, testutil.CollectAndCount(promScans))
	assert.Equal(t, before+1, testutil.ToFloat64(promScans.WithLabelValues("unsupported", "unsupported")))
}
