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
	"sync"

	"github.com/tembo-io/clerk-fdw/shared/logger"
)

// Diagnostic codes
const (
	DiagUnsupportedResource = "unsupported_resource"
	DiagTransport           = "transport_error"
	DiagShapeMismatch       = "shape_mismatch"
	DiagParentFailed        = "parent_fetch_failed"
	DiagPageLimit           = "page_limit_reached"
)

// Diagnostic records a non-fatal problem seen during a scan.
type Diagnostic struct {
	Level    string `json:"level"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Resource string `json:"resource,omitempty"`
	ParentID string `json:"parent_id,omitempty"`
	Offset   int    `json:"offset"`
}

// diagnostics collects scan diagnostics and logs each one at WARN.
type diagnostics struct {
	scanID   string
	tenantID string
	log      *logger.Logger
	mu       sync.Mutex
	items    []Diagnostic
}

func (d *diagnostics) add(diag Diagnostic) {
	if diag.Level == "" {
		diag.Level = "warning"
	}

	d.mu.Lock()
	d.items = append(d.items, diag)
	d.mu.Unlock()

	recordDiagnostic(diag.Code)
	if d.log != nil {
		d.log.Warn(d.tenantID, d.scanID, diag.Message, logger.Fields{
			"code":      diag.Code,
			"resource":  diag.Resource,
			"parent_id": diag.ParentID,
			"offset":    diag.Offset,
		})
	}
}

func (d *diagnostics) list() []Diagnostic {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Diagnostic, len(d.items))
	copy(out, d.items)
	return out
}
