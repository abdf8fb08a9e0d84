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

package export

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Sink receives exported batches.
type Sink interface {
	// Type is the registered sink type, e.g. "s3".
	Type() string
	Write(ctx context.Context, batch *Batch) (*WriteResult, error)
	Close(ctx context.Context) error
}

// WriteResult describes where a batch landed.
type WriteResult struct {
	Location string `json:"location"`
	Rows     int    `json:"rows"`
	Bytes    int    `json:"bytes,omitempty"`
}

// Factory builds a sink from its catalog options.
type Factory func(ctx context.Context, options map[string]string) (Sink, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]Factory)
)

// RegisterSink makes a sink type available to NewSink. Sink packages call it
// from init. Registering a type twice panics.
func RegisterSink(sinkType string, factory Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()

	if factory == nil {
		panic("export: RegisterSink factory is nil")
	}
	if _, dup := factories[sinkType]; dup {
		panic("export: RegisterSink called twice for " + sinkType)
	}
	factories[sinkType] = factory
}

// NewSink builds a sink of a registered type.
func NewSink(ctx context.Context, sinkType string, options map[string]string) (Sink, error) {
	factoriesMu.RLock()
	factory, ok := factories[sinkType]
	factoriesMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown sink type %q (forgotten import?)", sinkType)
	}
	if options == nil {
		options = map[string]string{}
	}
	return factory(ctx, options)
}

// SinkTypes lists the registered sink types, sorted.
func SinkTypes() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	types := make([]string, 0, len(factories))
	for t := range factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// RequireOption returns a non-empty option or an error naming it.
func RequireOption(options map[string]string, key string) (string, error) {
	v := options[key]
	if v == "" {
		return "", fmt.Errorf("sink option %q is required", key)
	}
	return v, nil
}

// OptionOr returns options[key] or def when unset.
func OptionOr(options map[string]string, key, def string) string {
	if v := options[key]; v != "" {
		return v
	}
	return def
}
