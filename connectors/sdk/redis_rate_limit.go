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
	"log"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// RedisRateLimiter is a sliding-window limiter shared by every process that
// points at the same Redis and key. Clerk enforces its limits per secret key,
// so several clerkfdw replicas scanning with one key must share a budget.
//
// Redis failures fail open: the request proceeds and a warning is logged.
type RedisRateLimiter struct {
	client       *redis.Client
	key          string
	limit        int
	window       time.Duration
	pollInterval time.Duration
	logger       *log.Logger
}

// NewRedisRateLimiter connects to redisURL (redis://host:port/db) and
// returns a limiter allowing limit requests per window under key.
func NewRedisRateLimiter(ctx context.Context, redisURL, key string, limit int, window time.Duration) (*RedisRateLimiter, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisRateLimiterWithClient(client, key, limit, window), nil
}

// NewRedisRateLimiterWithClient wraps an existing client
func NewRedisRateLimiterWithClient(client *redis.Client, key string, limit int, window time.Duration) *RedisRateLimiter {
	if window <= 0 {
		window = 10 * time.Second
	}
	poll := window / 20
	if poll < 10*time.Millisecond {
		poll = 10 * time.Millisecond
	}
	return &RedisRateLimiter{
		client:       client,
		key:          "clerkfdw:ratelimit:" + key,
		limit:        limit,
		window:       window,
		pollInterval: poll,
		logger:       log.New(os.Stdout, "[MCP_RATELIMIT] ", log.LstdFlags),
	}
}

// Allow records one request if the window has room. The returned error is
// non-nil only when Redis could not be consulted.
func (r *RedisRateLimiter) Allow(ctx context.Context) (bool, error) {
	now := time.Now()
	member := uuid.NewString()

	pipe := r.client.Pipeline()
	minScore := now.Add(-r.window).UnixMilli()
	pipe.ZRemRangeByScore(ctx, r.key, "0", fmt.Sprintf("%d", minScore))
	card := pipe.ZCard(ctx, r.key)
	pipe.ZAdd(ctx, r.key, &redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: member,
	})
	pipe.Expire(ctx, r.key, 2*r.window)

	if _, err := pipe.Exec(ctx); err != nil {
		return true, err
	}

	if card.Val() >= int64(r.limit) {
		if err := r.client.ZRem(ctx, r.key, member).Err(); err != nil {
			r.logger.Printf("Warning: failed to release slot on %s: %v", r.key, err)
		}
		return false, nil
	}
	return true, nil
}

// Wait blocks until the shared window has room or ctx is done
func (r *RedisRateLimiter) Wait(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		ok, err := r.Allow(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Printf("Warning: Redis rate limit check failed for %s: %v (failing open)", r.key, err)
			return nil
		}
		if ok {
			return nil
		}

		timer := time.NewTimer(r.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Count returns the number of requests recorded in the current window
func (r *RedisRateLimiter) Count(ctx context.Context) (int, error) {
	minScore := time.Now().Add(-r.window).UnixMilli()
	count, err := r.client.ZCount(ctx, r.key, fmt.Sprintf("%d", minScore), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get rate limit status: %w", err)
	}
	return int(count), nil
}

// Close closes the Redis connection
func (r *RedisRateLimiter) Close() error {
	return r.client.Close()
}

// ChainLimiter waits on each limiter in order. It lets a scan honour both
// the in-process adaptive limiter and the shared Redis window.
type ChainLimiter []Limiter

// Wait waits on every non-nil limiter
func (c ChainLimiter) Wait(ctx context.Context) error {
	for _, l := range c {
		if l == nil {
			continue
		}
		if err := l.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// RecordSuccess forwards to limiters that take feedback
func (c ChainLimiter) RecordSuccess() {
	for _, l := range c {
		if f, ok := l.(FeedbackLimiter); ok {
			f.RecordSuccess()
		}
	}
}

// RecordRateLimited forwards to limiters that take feedback
func (c ChainLimiter) RecordRateLimited() {
	for _, l := range c {
		if f, ok := l.(FeedbackLimiter); ok {
			f.RecordRateLimited()
		}
	}
}
