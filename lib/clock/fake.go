// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake returns a FakeClock initialized to the given time. Time stands
// still until Advance is called. Sleep and After register pending
// waiters that fire when the clock advances past their deadline.
//
// FakeClock is safe for concurrent use by multiple goroutines.
func Fake(initial time.Time) *FakeClock {
	fake := &FakeClock{current: initial}
	fake.waitersChanged = sync.NewCond(&fake.mu)
	return fake
}

// FakeClock is a deterministic Clock for testing. Time advances only
// when Advance is called.
type FakeClock struct {
	mu             sync.Mutex
	current        time.Time
	waiters        []*fakeWaiter
	waitersChanged *sync.Cond
}

type fakeWaiter struct {
	deadline time.Time
	channel  chan time.Time
}

// Now returns the fake current time.
func (fake *FakeClock) Now() time.Time {
	fake.mu.Lock()
	defer fake.mu.Unlock()
	return fake.current
}

// Sleep blocks until the clock has been advanced past d from now.
// Another goroutine must call Advance, or Sleep blocks forever.
func (fake *FakeClock) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	<-fake.After(d)
}

// After returns a channel that receives once the clock has been
// advanced past d from now.
func (fake *FakeClock) After(d time.Duration) <-chan time.Time {
	fake.mu.Lock()
	defer fake.mu.Unlock()

	channel := make(chan time.Time, 1)
	if d <= 0 {
		channel <- fake.current
		return channel
	}
	fake.waiters = append(fake.waiters, &fakeWaiter{
		deadline: fake.current.Add(d),
		channel:  channel,
	})
	fake.waitersChanged.Broadcast()
	return channel
}

// Advance moves the fake time forward by d and fires every waiter whose
// deadline has been reached, in deadline order.
func (fake *FakeClock) Advance(d time.Duration) {
	fake.mu.Lock()
	defer fake.mu.Unlock()

	fake.current = fake.current.Add(d)

	sort.SliceStable(fake.waiters, func(i, j int) bool {
		return fake.waiters[i].deadline.Before(fake.waiters[j].deadline)
	})
	remaining := fake.waiters[:0]
	for _, waiter := range fake.waiters {
		if waiter.deadline.After(fake.current) {
			remaining = append(remaining, waiter)
			continue
		}
		waiter.channel <- fake.current
	}
	fake.waiters = remaining
}

// WaitForWaiters blocks until at least n waiters are pending. Tests use
// this to ensure the code under test has reached its sleep before
// calling Advance.
func (fake *FakeClock) WaitForWaiters(n int) {
	fake.mu.Lock()
	defer fake.mu.Unlock()
	for len(fake.waiters) < n {
		fake.waitersChanged.Wait()
	}
}
