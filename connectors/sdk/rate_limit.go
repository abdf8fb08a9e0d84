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
	"sync"
	"time"
)

// Limiter gates outgoing upstream requests.
type Limiter interface {
	Wait(ctx context.Context) error
}

// FeedbackLimiter is a Limiter that learns from upstream responses.
type FeedbackLimiter interface {
	Limiter
	RecordSuccess()
	RecordRateLimited()
}

// RateLimiter implements a token bucket rate limiter
type RateLimiter struct {
	rate       float64   // tokens per second
	burst      int       // maximum burst size
	tokens     float64   // current tokens available
	lastUpdate time.Time // last time tokens were updated
	mu         sync.Mutex
}

// NewRateLimiter creates a new rate limiter
// rate: number of requests allowed per second
// burst: maximum number of requests allowed in a burst
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		rate:       rate,
		burst:      burst,
		tokens:     float64(burst),
		lastUpdate: time.Now(),
	}
}

// refill must be called with r.mu held.
func (r *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(r.lastUpdate).Seconds()
	r.tokens = min(float64(r.burst), r.tokens+elapsed*r.rate)
	r.lastUpdate = now
}

// Wait blocks until a token is available or the context is cancelled
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		r.refill()

		if r.tokens >= 1 {
			r.tokens--
			r.mu.Unlock()
			return nil
		}

		waitTime := time.Duration((1 - r.tokens) / r.rate * float64(time.Second))
		r.mu.Unlock()

		timer := time.NewTimer(waitTime)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// SetRate updates the rate limit dynamically
func (r *RateLimiter) SetRate(rate float64, burst int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refill()
	r.rate = rate
	r.burst = burst
	if r.tokens > float64(burst) {
		r.tokens = float64(burst)
	}
}

// AdaptiveRateLimiter adjusts rate limits based on response patterns.
// A 429 halves the rate immediately; a run of clean responses grows it back
// towards the ceiling.
type AdaptiveRateLimiter struct {
	*RateLimiter
	minRate      float64
	maxRate      float64
	targetRate   float64
	burst        int
	windowSize   int
	successCount int
	mu           sync.Mutex
}

// NewAdaptiveRateLimiter creates a rate limiter that adapts to server responses
func NewAdaptiveRateLimiter(minRate, maxRate float64, burst int) *AdaptiveRateLimiter {
	return &AdaptiveRateLimiter{
		RateLimiter: NewRateLimiter(maxRate, burst),
		minRate:     minRate,
		maxRate:     maxRate,
		targetRate:  maxRate,
		burst:       burst,
		windowSize:  50,
	}
}

// RecordSuccess records a successful request
func (a *AdaptiveRateLimiter) RecordSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.successCount++
	if a.successCount < a.windowSize || a.targetRate >= a.maxRate {
		return
	}
	a.targetRate = min(a.maxRate, a.targetRate*1.1)
	a.RateLimiter.SetRate(a.targetRate, a.burst)
	a.successCount = 0
}

// RecordRateLimited records a 429 Too Many Requests response
func (a *AdaptiveRateLimiter) RecordRateLimited() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.targetRate = max(a.minRate, a.targetRate*0.5)
	a.RateLimiter.SetRate(a.targetRate, a.burst)
	a.successCount = 0
}

// GetCurrentRate returns the current rate limit
func (a *AdaptiveRateLimiter) GetCurrentRate() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.targetRate
}
