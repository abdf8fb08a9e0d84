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
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Coerce converts a decoded JSON value to a typed cell. Values must come from
// a decoder with UseNumber enabled. Cells are bool, int64, string, time.Time
// or json.RawMessage. Anything that does not fit the kind yields nil.
func Coerce(v interface{}, kind ValueKind) interface{} {
	if v == nil {
		return nil
	}

	switch kind {
	case KindBool:
		if b, ok := v.(bool); ok {
			return b
		}
	case KindInt64:
		if n, ok := v.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				return i
			}
		}
	case KindString:
		if s, ok := v.(string); ok {
			return s
		}
	case KindTimestamp:
		if ms, ok := epochMillis(v); ok {
			return time.Unix(floorDiv(ms, 1000), 0).UTC()
		}
	case KindTimestampISO:
		if s, ok := v.(string); ok {
			if ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s)); err == nil {
				return ts.UTC()
			}
		}
	case KindJSON:
		raw, err := json.Marshal(v)
		if err == nil {
			return json.RawMessage(raw)
		}
	}
	return nil
}

// epochMillis accepts a decimal string or an integral JSON number.
func epochMillis(v interface{}) (int64, bool) {
	switch t := v.(type) {
	case string:
		ms, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return ms, err == nil
	case json.Number:
		ms, err := t.Int64()
		return ms, err == nil
	}
	return 0, false
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
