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

package sdk

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// AuthProvider applies credentials to outgoing upstream requests
type AuthProvider interface {
	// Authenticate applies authentication to the given request
	Authenticate(ctx context.Context, req *http.Request) error

	// IsExpired checks if the current credentials have expired
	IsExpired() bool

	// Type returns the authentication type name
	Type() string
}

// BearerTokenAuth sends "Authorization: Bearer <token>". Clerk secret keys
// are long lived so expiresAt is usually zero.
type BearerTokenAuth struct {
	token     string
	expiresAt time.Time
	mu        sync.RWMutex
}

// NewBearerTokenAuth creates a new Bearer token authentication provider
func NewBearerTokenAuth(token string, expiresAt time.Time) *BearerTokenAuth {
	return &BearerTokenAuth{
		token:     token,
		expiresAt: expiresAt,
	}
}

// Authenticate applies the Bearer token to the request
func (b *BearerTokenAuth) Authenticate(ctx context.Context, req *http.Request) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.token == "" {
		return fmt.Errorf("bearer token is not set")
	}
	if !b.expiresAt.IsZero() && time.Now().After(b.expiresAt) {
		return fmt.Errorf("bearer token expired at %s", b.expiresAt.Format(time.RFC3339))
	}

	req.Header.Set("Authorization", "Bearer "+b.token)
	return nil
}

// IsExpired checks if the token has expired
func (b *BearerTokenAuth) IsExpired() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.expiresAt.IsZero() {
		return false
	}
	return time.Now().After(b.expiresAt)
}

// Type returns the authentication type
func (b *BearerTokenAuth) Type() string {
	return "bearer"
}

// MaskSecret returns a printable form of a secret key: the key prefix
// (sk_live_, sk_test_) and the last four characters.
func MaskSecret(secret string) string {
	if len(secret) <= 8 {
		return "***"
	}
	prefix := ""
	for _, p := range []string{"sk_live_", "sk_test_"} {
		if len(secret) > len(p) && secret[:len(p)] == p {
			prefix = p
			break
		}
	}
	return prefix + "***" + secret[len(secret)-4:]
}
