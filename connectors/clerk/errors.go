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
	"errors"
	"fmt"
)

// SetupError is returned when a scan cannot start at all, for example when no
// API key can be resolved. It is the only fatal error class.
type SetupError struct {
	Message string
	Cause   error
}

func (e *SetupError) Error() string {
	if e.Cause != nil {
		return "clerk setup: " + e.Message + ": " + e.Cause.Error()
	}
	return "clerk setup: " + e.Message
}

func (e *SetupError) Unwrap() error { return e.Cause }

// UnsupportedResourceError names a resource the registry does not know.
// Scans turn it into a diagnostic and produce zero rows.
type UnsupportedResourceError struct {
	Resource string
}

func (e *UnsupportedResourceError) Error() string {
	return fmt.Sprintf("unsupported object: %q", e.Resource)
}

// TransportError is a failed page fetch.
type TransportError struct {
	Resource   ResourceType
	Path       string
	StatusCode int // zero for network failures
	Message    string
	Retryable  bool
	Cause      error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %s", e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("fetch %s: %s", e.Path, e.Message)
}

func (e *TransportError) Unwrap() error { return e.Cause }

// RateLimited reports whether the upstream answered 429.
func (e *TransportError) RateLimited() bool {
	return e.StatusCode == 429
}

// ValidationError is returned by ValidateOptions.
type ValidationError struct {
	Option  string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Option == "" {
		return "invalid options: " + e.Message
	}
	return fmt.Sprintf("invalid option %q: %s", e.Option, e.Message)
}

// IsSetupError reports whether err is or wraps a *SetupError.
func IsSetupError(err error) bool {
	var se *SetupError
	return errors.As(err, &se)
}
