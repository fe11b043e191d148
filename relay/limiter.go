// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/bureau-foundation/beak/lib/clock"
)

// Limiter admits jobs subject to a concurrency limit and a minimum
// spacing between job starts.
type Limiter interface {
	// Acquire blocks until a job may start or ctx is done. On success
	// the caller must call release exactly once when the job ends;
	// extra calls are ignored.
	Acquire(ctx context.Context) (release func(), err error)
}

// MinTime converts a rate in requests per second into the minimum
// spacing between starts, rounded to whole milliseconds. A
// non-positive rate means no spacing.
func MinTime(requestsPerSecond float64) time.Duration {
	if requestsPerSecond <= 0 {
		return 0
	}
	return time.Duration(math.Round(1000/requestsPerSecond)) * time.Millisecond
}

// LocalLimiter is an in-process [Limiter]. Concurrency is bounded by a
// weighted semaphore; start spacing by a token bucket of size one
// refilled every minimum interval. All waiting goes through the clock.
type LocalLimiter struct {
	slots   *semaphore.Weighted
	spacing *rate.Limiter
	clock   clock.Clock
}

// NewLocalLimiter creates a limiter admitting at most maxConcurrent
// running jobs, started at most requestsPerSecond per second. A
// maxConcurrent below one is treated as one.
func NewLocalLimiter(maxConcurrent int, requestsPerSecond float64, clk clock.Clock) *LocalLimiter {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if clk == nil {
		clk = clock.Real()
	}
	limit := rate.Inf
	if minTime := MinTime(requestsPerSecond); minTime > 0 {
		limit = rate.Every(minTime)
	}
	return &LocalLimiter{
		slots:   semaphore.NewWeighted(int64(maxConcurrent)),
		spacing: rate.NewLimiter(limit, 1),
		clock:   clk,
	}
}

// Acquire implements [Limiter]. A job first takes a concurrency slot,
// then waits for its start time.
func (limiter *LocalLimiter) Acquire(ctx context.Context) (func(), error) {
	if err := limiter.slots.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	now := limiter.clock.Now()
	reservation := limiter.spacing.ReserveN(now, 1)
	if delay := reservation.DelayFrom(now); delay > 0 {
		timer := limiter.clock.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			reservation.CancelAt(limiter.clock.Now())
			limiter.slots.Release(1)
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { limiter.slots.Release(1) })
	}, nil
}
