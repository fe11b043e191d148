// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"testing"
	"time"

	"github.com/bureau-foundation/beak/lib/clock"
	"github.com/bureau-foundation/beak/lib/testutil"
)

func TestLocalGroupKeysAreIndependent(t *testing.T) {
	t.Parallel()

	group := NewLocalGroup(1, 0, clock.Fake(epoch))

	alice, err := group.Key("alice").Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire alice: %v", err)
	}
	defer alice()

	bob, err := group.Key("bob").Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire bob: %v", err)
	}
	defer bob()

	acquired, _ := acquireAsync(context.Background(), group.Key("alice"))
	testutil.RequireNoReceive(t, acquired, 50*time.Millisecond, "alice has one slot")
	alice()
	testutil.RequireReceive(t, acquired, 5*time.Second, "alice slot freed")()
}

func TestLocalGroupReturnsSameLimiterForKey(t *testing.T) {
	t.Parallel()

	group := NewLocalGroup(1, 1, clock.Fake(epoch))
	if group.Key("alice") != group.Key("alice") {
		t.Error("Key returned different limiters for the same key")
	}
	if group.Len() != 1 {
		t.Errorf("Len = %d, want 1", group.Len())
	}
}

func TestLocalGroupEvictsIdleKeys(t *testing.T) {
	t.Parallel()

	fake := clock.Fake(epoch)
	group := NewLocalGroup(1, 0, fake)

	release, err := group.Key("alice").Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	release()

	fake.Advance(DefaultIdleTimeout - time.Second)
	group.Key("bob")
	if got := group.Len(); got != 2 {
		t.Fatalf("Len before idle timeout = %d, want 2", got)
	}

	fake.Advance(time.Second)
	group.Key("carol")
	if got := group.Len(); got != 2 {
		t.Errorf("Len after alice idled out = %d, want 2 (bob, carol)", got)
	}
}

func TestLocalGroupKeepsActiveKeys(t *testing.T) {
	t.Parallel()

	fake := clock.Fake(epoch)
	group := NewLocalGroup(1, 0, fake)

	release, err := group.Key("alice").Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	fake.Advance(2 * DefaultIdleTimeout)
	group.Key("bob")
	if got := group.Len(); got != 2 {
		t.Errorf("Len with alice running = %d, want 2", got)
	}

	release()
	fake.Advance(DefaultIdleTimeout)
	group.Key("bob")
	if got := group.Len(); got != 1 {
		t.Errorf("Len after alice idled out = %d, want 1", got)
	}
}

func TestLocalGroupKeepsOneLimiterPerKeyAcrossEviction(t *testing.T) {
	t.Parallel()

	fake := clock.Fake(epoch)
	group := NewLocalGroup(1, 0, fake)

	// A handle obtained before its key idles out and is evicted.
	stale := group.Key("alice")
	fake.Advance(DefaultIdleTimeout)
	group.Key("bob")
	fresh := group.Key("alice")

	release, err := stale.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	acquired, _ := acquireAsync(context.Background(), fresh)
	testutil.RequireNoReceive(t, acquired, 50*time.Millisecond, "alice has one slot across both handles")

	release()
	testutil.RequireReceive(t, acquired, 5*time.Second, "alice slot freed")()
	if got := group.Len(); got != 2 {
		t.Errorf("Len = %d, want 2 (alice, bob)", got)
	}
}
