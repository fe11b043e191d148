// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"sync"
	"time"

	"github.com/bureau-foundation/beak/lib/clock"
)

// LimiterGroup hands out one limiter per key, all with the same
// settings.
type LimiterGroup interface {
	Key(key string) Limiter
}

// DefaultIdleTimeout is how long an unused per-key limiter of a
// [LocalGroup] is kept before it is dropped.
const DefaultIdleTimeout = 5 * time.Minute

// LocalGroup is an in-process [LimiterGroup]. Limiters that have had
// no running job for the idle timeout are dropped, so a key that comes
// back later starts with fresh state.
type LocalGroup struct {
	maxConcurrent     int
	requestsPerSecond float64
	idleTimeout       time.Duration
	clock             clock.Clock

	mu      sync.Mutex
	members map[string]*groupMember
}

type groupMember struct {
	group    *LocalGroup
	key      string
	limiter  *LocalLimiter
	active   int
	lastUsed time.Time
}

// NewLocalGroup creates a group whose limiters admit maxConcurrent
// jobs at requestsPerSecond each.
func NewLocalGroup(maxConcurrent int, requestsPerSecond float64, clk clock.Clock) *LocalGroup {
	if clk == nil {
		clk = clock.Real()
	}
	return &LocalGroup{
		maxConcurrent:     maxConcurrent,
		requestsPerSecond: requestsPerSecond,
		idleTimeout:       DefaultIdleTimeout,
		clock:             clk,
		members:           make(map[string]*groupMember),
	}
}

// Key implements [LimiterGroup].
func (group *LocalGroup) Key(key string) Limiter {
	group.mu.Lock()
	defer group.mu.Unlock()

	now := group.clock.Now()
	group.evictIdleLocked(now)

	member, exists := group.members[key]
	if !exists {
		member = &groupMember{
			group:   group,
			key:     key,
			limiter: NewLocalLimiter(group.maxConcurrent, group.requestsPerSecond, group.clock),
		}
		group.members[key] = member
	}
	member.lastUsed = now
	return member
}

// claim marks the key's current member active and returns it. A member
// evicted after Key returned it is put back, unless the key already
// has a newer member, which is used instead.
func (group *LocalGroup) claim(member *groupMember) *groupMember {
	group.mu.Lock()
	defer group.mu.Unlock()
	current, exists := group.members[member.key]
	if !exists {
		group.members[member.key] = member
		current = member
	}
	current.active++
	current.lastUsed = group.clock.Now()
	return current
}

// Len returns the number of keys currently tracked.
func (group *LocalGroup) Len() int {
	group.mu.Lock()
	defer group.mu.Unlock()
	return len(group.members)
}

func (group *LocalGroup) evictIdleLocked(now time.Time) {
	for key, member := range group.members {
		if member.active == 0 && now.Sub(member.lastUsed) >= group.idleTimeout {
			delete(group.members, key)
		}
	}
}

// Acquire implements [Limiter]. The key's member counts as active from
// the start of the wait until release, so it is never evicted while in
// use.
func (member *groupMember) Acquire(ctx context.Context) (func(), error) {
	live := member.group.claim(member)
	release, err := live.limiter.Acquire(ctx)
	if err != nil {
		live.done()
		return nil, err
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			release()
			live.done()
		})
	}, nil
}

func (member *groupMember) done() {
	group := member.group
	group.mu.Lock()
	defer group.mu.Unlock()
	member.active--
	member.lastUsed = group.clock.Now()
}
