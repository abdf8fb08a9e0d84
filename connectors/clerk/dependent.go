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

	"github.com/tembo-io/clerk-fdw/connectors/sdk"
)

const (
	// DefaultCourtesyDelay is the pause between per-parent fetches.
	DefaultCourtesyDelay = 50 * time.Millisecond

	// DefaultMaxCourtesyDelay caps the pause after repeated 429s.
	DefaultMaxCourtesyDelay = 5 * time.Second
)

// fetchDependent materializes a resource listed per parent. Parents are
// paged in order; each parent's children are fully paged before the next
// parent. A failing parent is skipped with a diagnostic and contributes no
// rows, even from pages fetched before the failure. A failing parent
// page ends the scan with the rows collected so far.
//
// When scopeID is set only that parent is fetched.
func (d *driver) fetchDependent(ctx context.Context, schema *ResourceSchema, columns []string, scopeID string) ([]Row, error) {
	var rows []Row

	// A parent's rows are kept only if all of its pages arrive.
	collect := func(parentID string) error {
		var own []Row
		err := d.pageLoop(ctx, schema, parentID, func(objs []interface{}) error {
			for _, obj := range objs {
				own = append(own, Project(obj, schema, columns))
			}
			return nil
		})
		if err != nil {
			return err
		}
		rows = append(rows, own...)
		recordRows(schema.Resource, len(own))
		return nil
	}

	if scopeID != "" {
		if err := collect(scopeID); err != nil {
			if ctx.Err() != nil {
				return rows, err
			}
			d.parentFailure(schema, scopeID, err)
		}
		return rows, nil
	}

	parentSchema := registry[schema.Parent]
	delay := d.courtesyDelay
	backoff := sdk.NewBackoff(max(2*d.courtesyDelay, 100*time.Millisecond), d.maxCourtesyDelay, 2.0, 0.1)
	first := true

	err := d.pageLoop(ctx, parentSchema, "", func(parents []interface{}) error {
		for _, parent := range parents {
			if !first {
				if err := sleepContext(ctx, delay); err != nil {
					return err
				}
			}
			first = false

			v, _ := resolve(parent, schema.ParentIDPath)
			parentID, ok := v.(string)
			if !ok || parentID == "" {
				d.diags.add(Diagnostic{
					Code:     DiagParentFailed,
					Message:  fmt.Sprintf("%s member has no %q", parentSchema.Resource, schema.ParentIDPath),
					Resource: string(schema.Resource),
				})
				continue
			}

			err := collect(parentID)
			if err == nil {
				backoff.Reset()
				delay = d.courtesyDelay
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			d.parentFailure(schema, parentID, err)

			var te *TransportError
			if errors.As(err, &te) && te.RateLimited() {
				delay = backoff.Next()
			}
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return rows, err
		}
		d.transportFailure(parentSchema, "", err)
	}
	return rows, nil
}

func (d *driver) parentFailure(schema *ResourceSchema, parentID string, err error) {
	d.diags.add(Diagnostic{
		Code:     DiagParentFailed,
		Message:  fmt.Sprintf("fetching %s failed for organization %s: %v", schema.Resource, parentID, err),
		Resource: string(schema.Resource),
		ParentID: parentID,
		Offset:   d.lastOffset,
	})
}
