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
	"net/url"
	"sort"
	"strings"
)

// ResourceType names an upstream collection.
type ResourceType string

const (
	ResourceUsers                   ResourceType = "users"
	ResourceOrganizations           ResourceType = "organizations"
	ResourceOrganizationMemberships ResourceType = "organization_memberships"
)

// AttrsColumn is the catch-all column holding the whole source object.
const AttrsColumn = "attrs"

// emailPath is the one source path with array-first-element extraction.
const emailPath = "email_addresses"

// ValueKind is the declared type of a mapped field.
type ValueKind int

const (
	KindBool ValueKind = iota
	KindInt64
	KindString
	KindTimestamp    // decimal milliseconds since epoch
	KindTimestampISO // RFC 3339
	KindJSON
)

var kindTags = map[ValueKind]string{
	KindBool:         "bool",
	KindInt64:        "i64",
	KindString:       "string",
	KindTimestamp:    "timestamp",
	KindTimestampISO: "timestamp_iso",
	KindJSON:         "json",
}

var kindSQLTypes = map[ValueKind]string{
	KindBool:         "boolean",
	KindInt64:        "bigint",
	KindString:       "text",
	KindTimestamp:    "timestamptz",
	KindTimestampISO: "timestamptz",
	KindJSON:         "jsonb",
}

func (k ValueKind) String() string {
	if tag, ok := kindTags[k]; ok {
		return tag
	}
	return fmt.Sprintf("ValueKind(%d)", int(k))
}

// SQLType is the column type a host table should declare for k.
func (k ValueKind) SQLType() string {
	return kindSQLTypes[k]
}

// ParseValueKind maps a tag such as "i64" back to its kind.
func ParseValueKind(tag string) (ValueKind, error) {
	for k, t := range kindTags {
		if t == tag {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown value kind %q", tag)
}

// FieldMapping maps a dotted source path to an output column.
type FieldMapping struct {
	SourcePath string
	Column     string
	Kind       ValueKind
}

// ResourceSchema describes one resource: its columns and where its pages
// come from. Dependent resources name the parent they are listed under and
// carry "{parent_id}" in Path.
type ResourceSchema struct {
	Resource     ResourceType
	Fields       []FieldMapping
	Path         string
	MemberKey    string
	Parent       ResourceType
	ParentIDPath string
}

// IsDependent reports whether the resource is listed per parent.
func (s *ResourceSchema) IsDependent() bool {
	return s.Parent != ""
}

// Field returns the mapping that produces column.
func (s *ResourceSchema) Field(column string) (FieldMapping, bool) {
	for _, f := range s.Fields {
		if f.Column == column {
			return f, true
		}
	}
	return FieldMapping{}, false
}

// Columns returns the typed column names in declaration order.
func (s *ResourceSchema) Columns() []string {
	cols := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		cols[i] = f.Column
	}
	return cols
}

// PagePath returns the collection path, substituting parentID for dependents.
func (s *ResourceSchema) PagePath(parentID string) string {
	return strings.ReplaceAll(s.Path, "{parent_id}", url.PathEscape(parentID))
}

var registry = map[ResourceType]*ResourceSchema{
	ResourceUsers: {
		Resource:  ResourceUsers,
		Path:      "/users",
		MemberKey: "data",
		Fields: []FieldMapping{
			{"id", "user_id", KindString},
			{"first_name", "first_name", KindString},
			{"last_name", "last_name", KindString},
			{emailPath, "email", KindString},
			{"gender", "gender", KindString},
			{"created_at", "created_at", KindInt64},
			{"updated_at", "updated_at", KindInt64},
			{"last_sign_in_at", "last_sign_in_at", KindInt64},
			{"phone_numbers", "phone_numbers", KindJSON},
			{"username", "username", KindString},
		},
	},
	ResourceOrganizations: {
		Resource:  ResourceOrganizations,
		Path:      "/organizations",
		MemberKey: "data",
		Fields: []FieldMapping{
			{"id", "organization_id", KindString},
			{"name", "name", KindString},
			{"slug", "slug", KindString},
			{"created_at", "created_at", KindInt64},
			{"updated_at", "updated_at", KindInt64},
			{"created_by", "created_by", KindString},
		},
	},
	ResourceOrganizationMemberships: {
		Resource:     ResourceOrganizationMemberships,
		Path:         "/organizations/{parent_id}/memberships",
		MemberKey:    "data",
		Parent:       ResourceOrganizations,
		ParentIDPath: "id",
		Fields: []FieldMapping{
			{"public_user_data.user_id", "user_id", KindString},
			{"organization.id", "organization_id", KindString},
			{"role", "role", KindString},
		},
	},
}

var aliases = map[string]ResourceType{
	"users":                    ResourceUsers,
	"user":                     ResourceUsers,
	"organizations":            ResourceOrganizations,
	"organization":             ResourceOrganizations,
	"organization_memberships": ResourceOrganizationMemberships,
	"organization_membership":  ResourceOrganizationMemberships,
	"memberships":              ResourceOrganizationMemberships,
}

// ResolveResource maps an object option value or alias to a resource.
func ResolveResource(name string) (ResourceType, bool) {
	rt, ok := aliases[strings.ToLower(strings.TrimSpace(name))]
	return rt, ok
}

// Lookup returns the schema for a resource name or alias.
func Lookup(name string) (*ResourceSchema, error) {
	rt, ok := ResolveResource(name)
	if !ok {
		return nil, &UnsupportedResourceError{Resource: name}
	}
	return registry[rt], nil
}

// Resources lists the canonical resource names, sorted.
func Resources() []ResourceType {
	out := make([]ResourceType, 0, len(registry))
	for rt := range registry {
		out = append(out, rt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
