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
	"strconv"
	"strings"

	"github.com/tembo-io/clerk-fdw/connectors/sdk"
)

// Option names
const (
	OptObject           = "object"
	OptAPIKey           = "api_key"
	OptAPIKeySecret     = "api_key_secret"
	OptAPIURL           = "api_url"
	OptPageSize         = "page_size"
	OptMaxPages         = "max_pages"
	OptCourtesyDelay    = "courtesy_delay"
	OptMaxCourtesyDelay = "max_courtesy_delay"
	OptRateLimit        = "rate_limit"
	OptRateBurst        = "rate_burst"
	OptRedisURL         = "redis_url"
	OptMaxRetries       = "max_retries"
	OptTimeout          = "timeout"
)

type optionKind int

const (
	optString optionKind = iota
	optURL
	optPositiveInt
	optNonNegativeInt
	optPositiveFloat
	optDuration
)

// serverOptions are accepted on a foreign server declaration.
var serverOptions = map[string]optionKind{
	OptAPIKey:           optString,
	OptAPIKeySecret:     optString,
	OptAPIURL:           optURL,
	OptPageSize:         optPositiveInt,
	OptMaxPages:         optPositiveInt,
	OptCourtesyDelay:    optDuration,
	OptMaxCourtesyDelay: optDuration,
	OptRateLimit:        optPositiveFloat,
	OptRateBurst:        optPositiveInt,
	OptRedisURL:         optURL,
	OptMaxRetries:       optNonNegativeInt,
	OptTimeout:          optDuration,
}

// tableOptions are accepted on a foreign table declaration.
var tableOptions = map[string]optionKind{
	OptObject:        optString,
	OptPageSize:      optPositiveInt,
	OptMaxPages:      optPositiveInt,
	OptCourtesyDelay: optDuration,
}

// ValidateOptions checks a server or foreign table option set. A foreign
// table must name its object. An object value the registry does not know is
// accepted here; scanning it yields zero rows and a diagnostic.
func ValidateOptions(options map[string]string, isForeignTable bool) error {
	allowed := serverOptions
	if isForeignTable {
		allowed = tableOptions
		if strings.TrimSpace(options[OptObject]) == "" {
			return &ValidationError{Option: OptObject, Message: "required option is missing"}
		}
	}

	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		kind, ok := allowed[k]
		if !ok {
			return &ValidationError{Option: k, Message: "unknown option"}
		}
		if err := checkOption(kind, options[k]); err != nil {
			return &ValidationError{Option: k, Message: err.Error()}
		}
	}
	return nil
}

func checkOption(kind optionKind, value string) error {
	switch kind {
	case optURL:
		u, err := url.Parse(value)
		if err != nil {
			return err
		}
		if u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("not an absolute URL")
		}
	case optPositiveInt, optNonNegativeInt:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("not an integer")
		}
		if n < 0 || (kind == optPositiveInt && n == 0) {
			return fmt.Errorf("out of range")
		}
	case optPositiveFloat:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f <= 0 {
			return fmt.Errorf("must be a positive number")
		}
	case optDuration:
		d, ok := sdk.ParseDurationValue(value)
		if !ok || d < 0 {
			return fmt.Errorf("not a duration")
		}
	}
	return nil
}

// Predicate is a filter handed down by the query engine. Only an equality on
// organization_id is consulted, to scope membership scans to one organization.
type Predicate struct {
	Column   string      `json:"column"`
	Operator string      `json:"operator"`
	Value    interface{} `json:"value"`
}

// orgScope returns the organization id of the first organization_id
// equality predicate.
func orgScope(predicates []Predicate) string {
	for _, p := range predicates {
		if p.Column != "organization_id" || p.Operator != "=" {
			continue
		}
		if s, ok := p.Value.(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// PredicatesFrom converts a decoded JSON predicate list.
func PredicatesFrom(v interface{}) []Predicate {
	switch t := v.(type) {
	case []Predicate:
		return t
	case []map[string]interface{}:
		out := make([]Predicate, 0, len(t))
		for _, m := range t {
			out = append(out, predicateFromMap(m))
		}
		return out
	case []interface{}:
		out := make([]Predicate, 0, len(t))
		for _, item := range t {
			switch p := item.(type) {
			case Predicate:
				out = append(out, p)
			case map[string]interface{}:
				out = append(out, predicateFromMap(p))
			}
		}
		return out
	}
	return nil
}

func predicateFromMap(m map[string]interface{}) Predicate {
	p := Predicate{Value: m["value"]}
	p.Column, _ = m["column"].(string)
	p.Operator, _ = m["operator"].(string)
	return p
}

// ColumnsFrom converts a column parameter: a string slice, a list of strings
// or a comma separated string.
func ColumnsFrom(v interface{}) []string {
	var raw []string
	switch t := v.(type) {
	case []string:
		raw = t
	case []interface{}:
		for _, item := range t {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	case string:
		raw = strings.Split(t, ",")
	}

	out := make([]string, 0, len(raw))
	for _, c := range raw {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}
