// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction for testability.
//
// The relay's limiters wait for start slots through a Clock, and the
// conversation stamps message creation times through one. In
// production, Real() provides the standard library behavior. In tests,
// Fake() provides a deterministic clock that advances only when
// Advance is called:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	limiter := relay.NewLocalLimiter(2, 10, c)
//	// ... start goroutines that call limiter.Acquire ...
//	c.WaitForTimers(1)                // a goroutine is now waiting
//	c.Advance(100 * time.Millisecond) // release it deterministically
//
// WaitForTimers removes the race between a goroutine registering a
// timer and the test advancing the clock.
package clock
