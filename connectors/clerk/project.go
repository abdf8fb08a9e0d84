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
	"encoding/json"
	"fmt"
	"strings"
)

// Project builds one row from a decoded source value. Requested columns the
// schema does not map are skipped. If attrs is requested it is appended after
// the typed columns and always holds the whole source value.
func Project(src interface{}, schema *ResourceSchema, columns []string) Row {
	var row Row
	wantAttrs := false

	for _, col := range columns {
		if col == AttrsColumn {
			wantAttrs = true
			continue
		}
		f, ok := schema.Field(col)
		if !ok {
			continue
		}
		v, found := resolve(src, f.SourcePath)
		if !found {
			row.push(f.Column, nil)
			continue
		}
		row.push(f.Column, Coerce(v, f.Kind))
	}

	if wantAttrs {
		row.push(AttrsColumn, Coerce(src, KindJSON))
	}
	return row
}

// resolve walks a dotted path. Any missing segment or non-object hop means
// absent. The email path takes the first element's email_address.
func resolve(src interface{}, path string) (interface{}, bool) {
	cur := src
	for _, seg := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = obj[seg]
		if !ok {
			return nil, false
		}
	}

	if path == emailPath {
		arr, ok := cur.([]interface{})
		if !ok || len(arr) == 0 {
			return nil, false
		}
		first, ok := arr[0].(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = first["email_address"]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// decodeBody decodes a page body keeping numbers as json.Number.
func decodeBody(body []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// members extracts the member array from a page: either the body itself or
// the array under memberKey.
func members(body interface{}, memberKey string) ([]interface{}, error) {
	switch t := body.(type) {
	case []interface{}:
		return t, nil
	case map[string]interface{}:
		if arr, ok := t[memberKey].([]interface{}); ok {
			return arr, nil
		}
		return nil, fmt.Errorf("object has no %q array", memberKey)
	case nil:
		return nil, fmt.Errorf("body is null")
	default:
		return nil, fmt.Errorf("body is %T, want array or object", body)
	}
}

// ProjectPage decodes a page and projects every member in response order.
// A body of the wrong shape yields no rows and a non-nil error describing it.
func ProjectPage(body []byte, schema *ResourceSchema, columns []string) ([]Row, error) {
	decoded, err := decodeBody(body)
	if err != nil {
		return nil, fmt.Errorf("decode page: %w", err)
	}
	objs, err := members(decoded, schema.MemberKey)
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(objs))
	for _, obj := range objs {
		rows = append(rows, Project(obj, schema, columns))
	}
	return rows, nil
}
