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
	"errors"
	"testing"
	"time"
)

func TestRateLimiter_Burst(t *testing.T) {
	rl := NewRateLimiter(0.01, 3)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	for i := 0; i < 3; i++ {
		if err := rl.Wait(ctx); err != nil {
			t.Fatalf("Wait #%d failed within burst: %v", i+1, err)
		}
	}
	if err := rl.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() once burst is spent = %v, want DeadlineExceeded", err)
	}
}

func TestRateLimiter_WaitRefills(t *testing.T) {
	rl := NewRateLimiter(200, 1)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := rl.Wait(ctx); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 5*time.Millisecond {
		t.Errorf("three waits at 200/s took %v, expected refill delay", elapsed)
	}
}

func TestRateLimiter_WaitCancelled(t *testing.T) {
	rl := NewRateLimiter(0.01, 1)
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := rl.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() = %v, want DeadlineExceeded", err)
	}
}

func TestRateLimiter_SetRate(t *testing.T) {
	rl := NewRateLimiter(0.01, 10)
	rl.SetRate(0.01, 2)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	for i := 0; i < 2; i++ {
		if err := rl.Wait(ctx); err != nil {
			t.Fatalf("Wait #%d: %v", i+1, err)
		}
	}
	if err := rl.Wait(ctx); err == nil {
		t.Error("burst shrunk to 2 should block the third Wait")
	}
}

func TestNewRateLimiter_MinimumBurst(t *testing.T) {
	rl := NewRateLimiter(10, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	if err := rl.Wait(ctx); err != nil {
		t.Errorf("burst below 1 should be raised to 1: %v", err)
	}
}

func TestAdaptiveRateLimiter(t *testing.T) {
	a := NewAdaptiveRateLimiter(1, 20, 5)

	if a.GetCurrentRate() != 20 {
		t.Fatalf("initial rate = %v, want 20", a.GetCurrentRate())
	}

	a.RecordRateLimited()
	if a.GetCurrentRate() != 10 {
		t.Errorf("rate after 429 = %v, want 10", a.GetCurrentRate())
	}
	for i := 0; i < 10; i++ {
		a.RecordRateLimited()
	}
	if a.GetCurrentRate() != 1 {
		t.Errorf("rate should floor at minRate, got %v", a.GetCurrentRate())
	}

	for i := 0; i < 50; i++ {
		a.RecordSuccess()
	}
	if got := a.GetCurrentRate(); got <= 1 {
		t.Errorf("rate should grow after a clean window, got %v", got)
	}

	var _ FeedbackLimiter = a
}
