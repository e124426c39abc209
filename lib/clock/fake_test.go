// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

func TestFakeNowStandsStill(t *testing.T) {
	start := time.Date(2026, 2, 10, 15, 30, 0, 0, time.UTC)
	fake := Fake(start)

	if got := fake.Now(); !got.Equal(start) {
		t.Errorf("Now = %v, want %v", got, start)
	}
	if got := fake.Now(); !got.Equal(start) {
		t.Errorf("Now moved without Advance: %v", got)
	}
}

func TestFakeAdvanceMovesNow(t *testing.T) {
	start := time.Date(2026, 2, 10, 15, 30, 0, 0, time.UTC)
	fake := Fake(start)

	fake.Advance(42 * time.Second)
	want := start.Add(42 * time.Second)
	if got := fake.Now(); !got.Equal(want) {
		t.Errorf("Now after Advance = %v, want %v", got, want)
	}
}

func TestFakeAfterFiresOnAdvance(t *testing.T) {
	fake := Fake(time.Date(2026, 2, 10, 15, 30, 0, 0, time.UTC))

	ch := fake.After(10 * time.Second)
	select {
	case <-ch:
		t.Fatal("After fired before Advance")
	default:
	}

	fake.Advance(9 * time.Second)
	select {
	case <-ch:
		t.Fatal("After fired before its deadline")
	default:
	}

	fake.Advance(time.Second)
	select {
	case <-ch:
	default:
		t.Fatal("After did not fire at its deadline")
	}
}

func TestFakeAfterNonPositiveFiresImmediately(t *testing.T) {
	fake := Fake(time.Date(2026, 2, 10, 15, 30, 0, 0, time.UTC))
	select {
	case <-fake.After(0):
	default:
		t.Fatal("After(0) did not fire immediately")
	}
}

func TestFakeSleepUnblocksOnAdvance(t *testing.T) {
	fake := Fake(time.Date(2026, 2, 10, 15, 30, 0, 0, time.UTC))

	done := make(chan struct{})
	go func() {
		fake.Sleep(5 * time.Second)
		close(done)
	}()

	fake.WaitForWaiters(1)
	fake.Advance(5 * time.Second)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Sleep did not return after Advance")
	}
}

func TestFakeAdvanceFiresMultipleWaitersInOrder(t *testing.T) {
	fake := Fake(time.Date(2026, 2, 10, 15, 30, 0, 0, time.UTC))

	first := fake.After(time.Second)
	second := fake.After(2 * time.Second)
	fake.Advance(3 * time.Second)

	select {
	case <-first:
	default:
		t.Error("first waiter did not fire")
	}
	select {
	case <-second:
	default:
		t.Error("second waiter did not fire")
	}
}
