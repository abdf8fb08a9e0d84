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
	"fmt"
	"strings"
)

// ColumnInfo describes one declarable column.
type ColumnInfo struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	SQLType    string `json:"sql_type"`
	SourcePath string `json:"source_path,omitempty"`
}

// TableInfo describes a resource as a table.
type TableInfo struct {
	Object  string       `json:"object"`
	Parent  string       `json:"parent,omitempty"`
	Columns []ColumnInfo `json:"columns"`
}

// Describe lists the columns of resource, attrs last.
func Describe(resource string) (*TableInfo, error) {
	schema, err := Lookup(resource)
	if err != nil {
		return nil, err
	}

	info := &TableInfo{
		Object: string(schema.Resource),
		Parent: string(schema.Parent),
	}
	for _, f := range schema.Fields {
		info.Columns = append(info.Columns, ColumnInfo{
			Name:       f.Column,
			Kind:       f.Kind.String(),
			SQLType:    f.Kind.SQLType(),
			SourcePath: f.SourcePath,
		})
	}
	info.Columns = append(info.Columns, ColumnInfo{
		Name:    AttrsColumn,
		Kind:    KindJSON.String(),
		SQLType: KindJSON.SQLType(),
	})
	return info, nil
}

// DescribeAll describes every supported resource in name order.
func DescribeAll() []*TableInfo {
	out := make([]*TableInfo, 0, len(registry))
	for _, rt := range Resources() {
		info, _ := Describe(string(rt))
		out = append(out, info)
	}
	return out
}

// CreateTableSQL renders a foreign table declaration for resource.
func (t *TableInfo) CreateTableSQL(table, server string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE FOREIGN TABLE %s (\n", table)
	for i, c := range t.Columns {
		sep := ","
		if i == len(t.Columns)-1 {
			sep = ""
		}
		fmt.Fprintf(&b, "  %s %s%s\n", c.Name, c.SQLType, sep)
	}
	fmt.Fprintf(&b, ")\nSERVER %s\nOPTIONS (object '%s');\n", server, t.Object)
	return b.String()
}
