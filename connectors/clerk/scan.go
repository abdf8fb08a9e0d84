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
	"time"

	"github.com/google/uuid"

	"github.com/tembo-io/clerk-fdw/connectors/sdk"
	"github.com/tembo-io/clerk-fdw/shared/logger"
)

// ScanOptions tunes a scan. Zero values select the defaults; a negative
// CourtesyDelay disables the pause between organizations.
type ScanOptions struct {
	PageSize         int
	MaxPages         int
	CourtesyDelay    time.Duration
	MaxCourtesyDelay time.Duration
	Logger           *logger.Logger
	TenantID         string
}

// Scan materializes one resource collection and hands its rows out one at a
// time. A Scan is not safe for concurrent use; distinct scans are
// independent.
type Scan struct {
	ID string

	fetcher PageFetcher
	opts    ScanOptions
	log     *logger.Logger

	columns []string
	rows    []Row
	cursor  int
	diags   *diagnostics
	pages   int
	started bool
}

// NewScan creates a scan reading pages through fetcher.
func NewScan(fetcher PageFetcher, opts ScanOptions) *Scan {
	if opts.PageSize <= 0 {
		opts.PageSize = PageSize
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}
	switch {
	case opts.CourtesyDelay == 0:
		opts.CourtesyDelay = DefaultCourtesyDelay
	case opts.CourtesyDelay < 0:
		opts.CourtesyDelay = 0
	}
	if opts.MaxCourtesyDelay <= 0 {
		opts.MaxCourtesyDelay = DefaultMaxCourtesyDelay
	}
	log := opts.Logger
	if log == nil {
		log = logger.New("clerk-scan")
	}

	id := uuid.New().String()
	return &Scan{
		ID:      id,
		fetcher: fetcher,
		opts:    opts,
		log:     log,
		diags:   &diagnostics{scanID: id, tenantID: opts.TenantID, log: log},
	}
}

// BeginScan fetches every page of resource and buffers the projected rows.
// An unknown resource, a failed page or a malformed page is recorded as a
// diagnostic and never returned as an error. The only error is a cancelled
// or expired ctx; rows gathered before cancellation stay readable.
func (s *Scan) BeginScan(ctx context.Context, resource string, columns []string, predicates []Predicate) error {
	if s.started {
		return fmt.Errorf("scan %s already started", s.ID)
	}
	s.started = true
	s.columns = columns

	schema, err := Lookup(resource)
	if err != nil {
		var ure *UnsupportedResourceError
		if errors.As(err, &ure) {
			s.diags.add(Diagnostic{
				Code:     DiagUnsupportedResource,
				Message:  err.Error(),
				Resource: ure.Resource,
			})
			recordScan("unsupported", "unsupported")
			return nil
		}
		return err
	}

	d := &driver{
		fetcher:          s.fetcher,
		pageSize:         s.opts.PageSize,
		maxPages:         s.opts.MaxPages,
		courtesyDelay:    s.opts.CourtesyDelay,
		maxCourtesyDelay: s.opts.MaxCourtesyDelay,
		diags:            s.diags,
	}

	start := time.Now()
	var rows []Row
	if schema.IsDependent() {
		rows, err = d.fetchDependent(ctx, schema, columns, orgScope(predicates))
	} else {
		rows, err = d.fetchAll(ctx, schema, columns)
	}
	s.rows = rows
	s.pages = d.pages

	status := "success"
	switch {
	case err != nil:
		status = "cancelled"
	case len(s.diags.list()) > 0:
		status = "partial"
	}
	recordScan(string(schema.Resource), status)

	fields := logger.Fields{
		"resource":    string(schema.Resource),
		"rows":        len(rows),
		"pages":       d.pages,
		"diagnostics": len(s.diags.list()),
	}
	if reqID := sdk.GetRequestID(ctx); reqID != "" {
		fields["request_id"] = reqID
	}
	s.log.InfoWithDuration(s.opts.TenantID, s.ID, "scan complete", time.Since(start), fields)
	return err
}

// NextRow returns the next buffered row. Each row is delivered once; the
// second result is false when the scan is exhausted.
func (s *Scan) NextRow() (Row, bool) {
	if s.cursor >= len(s.rows) {
		return Row{}, false
	}
	row := s.rows[s.cursor]
	s.rows[s.cursor] = Row{}
	s.cursor++
	return row, true
}

// EndScan releases the buffer. It may be called more than once.
func (s *Scan) EndScan() {
	s.rows = nil
	s.cursor = 0
}

// Diagnostics returns the problems recorded so far.
func (s *Scan) Diagnostics() []Diagnostic {
	return s.diags.list()
}

// Pages returns the number of page fetches issued.
func (s *Scan) Pages() int {
	return s.pages
}

// Columns returns the requested column list.
func (s *Scan) Columns() []string {
	return s.columns
}
