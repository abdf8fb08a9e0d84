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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeObject(t *testing.T, s string) interface{} {
	t.Helper()
	v, err := decodeBody([]byte(s))
	require.NoError(t, err)
	return v
}

func mustSchema(t *testing.T, name string) *ResourceSchema {
	t.Helper()
	s, err := Lookup(name)
	require.NoError(t, err)
	return s
}

func TestProject_OrganizationWithAttrs(t *testing.T) {
	src := decodeObject(t, `{"id":"org_1","name":"Acme"}`)

	row := Project(src, mustSchema(t, "organization"), []string{"organization_id", "attrs"})

	assert.Equal(t, []string{"organization_id", "attrs"}, row.Columns)
	assert.Equal(t, "org_1", row.Cells[0])

	var attrs map[string]interface{}
	require.NoError(t, json.Unmarshal(row.Cells[1].(json.RawMessage), &attrs))
	assert.Equal(t, map[string]interface{}{"id": "org_1", "name": "Acme"}, attrs)
}

func TestProject_EmailTakesFirstElement(t *testing.T) {
	src := decodeObject(t, `{"id":"user_1","email_addresses":[{"email_address":"a@x.com"},{"email_address":"b@x.com"}]}`)

	row := Project(src, mustSchema(t, "user"), []string{"email"})

	email, ok := row.Get("email")
	require.True(t, ok)
	assert.Equal(t, "a@x.com", email)
}

func TestProject_EmailEdgeCases(t *testing.T) {
	schema := mustSchema(t, "users")
	tests := []struct {
		name string
		src  string
	}{
		{"empty array", `{"email_addresses":[]}`},
		{"not an array", `{"email_addresses":"a@x.com"}`},
		{"element not object", `{"email_addresses":["a@x.com"]}`},
		{"element missing field", `{"email_addresses":[{"id":"idn_1"}]}`},
		{"missing", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := Project(decodeObject(t, tt.src), schema, []string{"email"})
			v, ok := row.Get("email")
			assert.True(t, ok)
			assert.Nil(t, v)
		})
	}
}

func TestProject_AttrsAfterTypedColumns(t *testing.T) {
	src := decodeObject(t, `{"id":"org_1","slug":"acme"}`)

	row := Project(src, mustSchema(t, "organizations"), []string{"attrs", "slug", "organization_id"})

	assert.Equal(t, []string{"slug", "organization_id", "attrs"}, row.Columns)
}

func TestProject_UnknownColumnsOmitted(t *testing.T) {
	src := decodeObject(t, `{"id":"org_1"}`)

	row := Project(src, mustSchema(t, "organizations"), []string{"organization_id", "nonexistent", "email"})

	assert.Equal(t, []string{"organization_id"}, row.Columns)
}

func TestProject_NestedPaths(t *testing.T) {
	schema := mustSchema(t, "organization_memberships")
	cols := []string{"user_id", "organization_id", "role"}

	row := Project(decodeObject(t, `{"role":"admin","organization":{"id":"org_9"},"public_user_data":{"user_id":"user_7"}}`), schema, cols)
	assert.Equal(t, []interface{}{"user_7", "org_9", "admin"}, row.Cells)

	// A hop through a non-object short-circuits to NULL.
	row = Project(decodeObject(t, `{"role":"admin","organization":"org_9","public_user_data":null}`), schema, cols)
	assert.Equal(t, []interface{}{nil, nil, "admin"}, row.Cells)
}

func TestProject_MalformedFieldsDegrade(t *testing.T) {
	src := decodeObject(t, `{"id":123,"created_at":"yesterday","updated_at":1.5,"phone_numbers":[{"phone_number":"+1"}],"username":null}`)

	row := Project(src, mustSchema(t, "users"),
		[]string{"user_id", "created_at", "updated_at", "phone_numbers", "username", "attrs"})

	m := row.Map()
	assert.Nil(t, m["user_id"])
	assert.Nil(t, m["created_at"])
	assert.Nil(t, m["updated_at"])
	assert.Nil(t, m["username"])
	assert.JSONEq(t, `[{"phone_number":"+1"}]`, string(m["phone_numbers"].(json.RawMessage)))
	assert.NotNil(t, m["attrs"])
}

func TestProject_Idempotent(t *testing.T) {
	src := decodeObject(t, `{"id":"user_1","first_name":"Ada","created_at":1700000000000,"email_addresses":[{"email_address":"a@x.com"}],"extra":{"k":[1,2,3]}}`)
	schema := mustSchema(t, "users")
	cols := append(schema.Columns(), AttrsColumn)

	a := Project(src, schema, cols)
	b := Project(src, schema, cols)
	assert.Equal(t, a, b)
}

func TestProject_AttrsDeepEqualsSource(t *testing.T) {
	sources := []string{
		`{"id":"user_1","created_at":"not-a-number","big":12345678901234567890,"f":1.25}`,
		`{"nested":{"a":[1,{"b":null}],"c":true},"s":"<tag>&amp;"}`,
		`{}`,
	}
	schema := mustSchema(t, "users")
	for _, s := range sources {
		row := Project(decodeObject(t, s), schema, []string{"created_at", "user_id", "attrs"})
		attrs, ok := row.Get("attrs")
		require.True(t, ok)
		assert.JSONEq(t, s, string(attrs.(json.RawMessage)))
	}
}

func TestProject_NonObjectMember(t *testing.T) {
	row := Project(decodeObject(t, `"just a string"`), mustSchema(t, "users"), []string{"user_id", "attrs"})

	assert.Equal(t, []string{"user_id", "attrs"}, row.Columns)
	assert.Nil(t, row.Cells[0])
	assert.JSONEq(t, `"just a string"`, string(row.Cells[1].(json.RawMessage)))
}

func TestProject_TimestampColumn(t *testing.T) {
	schema := &ResourceSchema{
		Resource: "events",
		Fields: []FieldMapping{
			{"at", "at", KindTimestamp},
			{"iso", "iso", KindTimestampISO},
		},
	}
	row := Project(decodeObject(t, `{"at":"1700000000999","iso":"2024-01-02T03:04:05.5+02:00"}`), schema, []string{"at", "iso"})

	assert.Equal(t, time.Unix(1700000000, 0).UTC(), row.Cells[0])
	assert.Equal(t, time.Date(2024, 1, 2, 1, 4, 5, 500000000, time.UTC), row.Cells[1])
}

func TestProjectPage(t *testing.T) {
	schema := mustSchema(t, "organizations")
	cols := []string{"organization_id"}

	rows, err := ProjectPage([]byte(`{"data":[{"id":"a"},{"id":"b"}]}`), schema, cols)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = ProjectPage([]byte(`[{"id":"a"}]`), schema, cols)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	for _, body := range []string{`{"items":[]}`, `42`, `null`, `{"data":{}}`, `not json`} {
		rows, err = ProjectPage([]byte(body), schema, cols)
		assert.Error(t, err, body)
		assert.Empty(t, rows, body)
	}
}

func TestRow_MarshalJSONKeepsOrder(t *testing.T) {
	var row Row
	row.push("b", "x")
	row.push("a", nil)
	row.push("attrs", json.RawMessage(`{"k":1}`))

	out, err := json.Marshal(row)
	require.NoError(t, err)
	assert.Equal(t, `{"b":"x","a":null,"attrs":{"k":1}}`, string(out))
}
