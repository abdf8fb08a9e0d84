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
	"fmt"
	"time"
)

const (
	// PageSize is the number of members requested per page. A page with
	// fewer members is the last one.
	PageSize = 500

	// DefaultMaxPages bounds the pages fetched for a single collection.
	DefaultMaxPages = 10000
)

// PageRequest is one upstream page fetch.
type PageRequest struct {
	Resource ResourceType
	Path     string
	Offset   int
	Limit    int
	ParentID string
}

// PageFetcher returns the raw JSON body of one page.
type PageFetcher interface {
	FetchPage(ctx context.Context, req PageRequest) ([]byte, error)
}

// PageFetcherFunc adapts a function to PageFetcher.
type PageFetcherFunc func(ctx context.Context, req PageRequest) ([]byte, error)

// FetchPage calls f.
func (f PageFetcherFunc) FetchPage(ctx context.Context, req PageRequest) ([]byte, error) {
	return f(ctx, req)
}

// driver runs the page loops of one scan. Fetches are strictly sequential.
type driver struct {
	fetcher          PageFetcher
	pageSize         int
	maxPages         int
	courtesyDelay    time.Duration
	maxCourtesyDelay time.Duration
	diags            *diagnostics
	pages            int
	lastOffset       int
}

// pageLoop requests pages of schema at offsets 0, pageSize, 2*pageSize...
// and hands each page's members to onPage. It stops after a short page, a
// page of the wrong shape or the page bound. A fetch error stops the loop
// and is returned to the caller unrecorded.
func (d *driver) pageLoop(ctx context.Context, schema *ResourceSchema, parentID string, onPage func(members []interface{}) error) error {
	offset := 0
	for page := 0; ; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if page >= d.maxPages {
			d.diags.add(Diagnostic{
				Code:     DiagPageLimit,
				Message:  fmt.Sprintf("stopped %s after %d pages", schema.Resource, d.maxPages),
				Resource: string(schema.Resource),
				ParentID: parentID,
				Offset:   offset,
			})
			return nil
		}

		req := PageRequest{
			Resource: schema.Resource,
			Path:     schema.PagePath(parentID),
			Offset:   offset,
			Limit:    d.pageSize,
			ParentID: parentID,
		}

		d.lastOffset = offset
		start := time.Now()
		body, err := d.fetcher.FetchPage(ctx, req)
		recordPageFetch(schema.Resource, time.Since(start), err)
		d.pages++
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}

		decoded, err := decodeBody(body)
		var objs []interface{}
		if err == nil {
			objs, err = members(decoded, schema.MemberKey)
		}
		if err != nil {
			d.diags.add(Diagnostic{
				Code:     DiagShapeMismatch,
				Message:  fmt.Sprintf("unexpected %s page shape: %v", schema.Resource, err),
				Resource: string(schema.Resource),
				ParentID: parentID,
				Offset:   offset,
			})
			return nil
		}

		if err := onPage(objs); err != nil {
			return err
		}
		if len(objs) < d.pageSize {
			return nil
		}
		offset += d.pageSize
	}
}

// fetchAll materializes a top-level resource. A transport failure keeps the
// rows already collected and records a diagnostic.
func (d *driver) fetchAll(ctx context.Context, schema *ResourceSchema, columns []string) ([]Row, error) {
	var rows []Row
	err := d.pageLoop(ctx, schema, "", func(objs []interface{}) error {
		for _, obj := range objs {
			rows = append(rows, Project(obj, schema, columns))
		}
		recordRows(schema.Resource, len(objs))
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return rows, err
		}
		d.transportFailure(schema, "", err)
	}
	return rows, nil
}

func (d *driver) transportFailure(schema *ResourceSchema, parentID string, err error) {
	diag := Diagnostic{
		Code:     DiagTransport,
		Message:  fmt.Sprintf("fetching %s failed: %v", schema.Resource, err),
		Resource: string(schema.Resource),
		ParentID: parentID,
		Offset:   d.lastOffset,
	}
	d.diags.add(diag)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
