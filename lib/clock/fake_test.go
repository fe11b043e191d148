// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeNowAdvances(t *testing.T) {
	t.Parallel()

	c := Fake(epoch)
	if got := c.Now(); !got.Equal(epoch) {
		t.Fatalf("Now() = %v, want %v", got, epoch)
	}
	c.Advance(3 * time.Second)
	if got := c.Now(); !got.Equal(epoch.Add(3 * time.Second)) {
		t.Errorf("Now() after Advance = %v, want %v", got, epoch.Add(3*time.Second))
	}
}

func TestFakeAfterFiresOnDeadline(t *testing.T) {
	t.Parallel()

	c := Fake(epoch)
	ch := c.After(time.Second)

	c.Advance(500 * time.Millisecond)
	select {
	case <-ch:
		t.Fatal("timer fired before its deadline")
	default:
	}

	c.Advance(500 * time.Millisecond)
	select {
	case fired := <-ch:
		if !fired.Equal(epoch.Add(time.Second)) {
			t.Errorf("fire time = %v, want %v", fired, epoch.Add(time.Second))
		}
	default:
		t.Fatal("timer did not fire at its deadline")
	}
}

func TestFakeAfterNonPositiveFiresImmediately(t *testing.T) {
	t.Parallel()

	c := Fake(epoch)
	select {
	case <-c.After(0):
	default:
		t.Fatal("After(0) did not fire immediately")
	}
	if c.PendingCount() != 0 {
		t.Errorf("PendingCount() = %d, want 0", c.PendingCount())
	}
}

func TestFakeTimerStop(t *testing.T) {
	t.Parallel()

	c := Fake(epoch)
	timer := c.NewTimer(time.Second)
	if c.PendingCount() != 1 {
		t.Fatalf("PendingCount() = %d, want 1", c.PendingCount())
	}
	if !timer.Stop() {
		t.Error("Stop() on pending timer = false, want true")
	}
	if timer.Stop() {
		t.Error("second Stop() = true, want false")
	}
	if c.PendingCount() != 0 {
		t.Errorf("PendingCount() after Stop = %d, want 0", c.PendingCount())
	}

	c.Advance(2 * time.Second)
	select {
	case <-timer.C:
		t.Error("stopped timer fired")
	default:
	}
}

func TestFakeWaitForTimers(t *testing.T) {
	t.Parallel()

	c := Fake(epoch)
	done := make(chan struct{})
	go func() {
		c.Sleep(time.Minute)
		close(done)
	}()

	c.WaitForTimers(1)
	c.Advance(time.Minute)
	<-done
}
