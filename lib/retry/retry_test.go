// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/bureau-foundation/abp/lib/clock"
	"github.com/bureau-foundation/abp/lib/testutil"
)

func testConfig() Config {
	return Config{
		MaxRetries:     5,
		BaseDelay:      100 * time.Millisecond,
		MaxDelay:       10 * time.Second,
		OverallTimeout: time.Minute,
		JitterFactor:   0,
		Clock:          clock.Fake(time.Date(2026, 2, 10, 15, 30, 0, 0, time.UTC)),
	}
}

// driveClock advances the fake clock whenever Do parks on a backoff
// sleep, so tests never wait on real time.
func driveClock(fake *clock.FakeClock, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		default:
		}
		fake.WaitForWaiters(1)
		fake.Advance(10 * time.Second)
	}
}

func TestDoFirstAttemptSucceeds(t *testing.T) {
	config := testConfig()
	calls := 0
	outcome, err := Do(context.Background(), config, func(context.Context) (string, error) {
		calls++
		return "done", nil
	}, func(error) bool { return true })
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 1 {
		t.Errorf("op called %d times, want 1", calls)
	}
	if outcome.Value != "done" {
		t.Errorf("value = %q, want %q", outcome.Value, "done")
	}
	if outcome.Metadata.TotalAttempts != 1 {
		t.Errorf("TotalAttempts = %d, want 1", outcome.Metadata.TotalAttempts)
	}
	if len(outcome.Metadata.FailedAttempts) != 0 {
		t.Errorf("FailedAttempts = %v, want empty", outcome.Metadata.FailedAttempts)
	}
}

func TestDoSucceedsAfterFailures(t *testing.T) {
	config := testConfig()
	fake := config.Clock.(*clock.FakeClock)

	done := make(chan struct{})
	defer close(done)
	go driveClock(fake, done)

	calls := 0
	outcome, err := Do(context.Background(), config, func(context.Context) (int, error) {
		calls++
		if calls <= 3 {
			return 0, fmt.Errorf("transient failure %d", calls)
		}
		return 7, nil
	}, func(error) bool { return true })
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if outcome.Value != 7 {
		t.Errorf("value = %d, want 7", outcome.Value)
	}
	if outcome.Metadata.TotalAttempts != 4 {
		t.Errorf("TotalAttempts = %d, want 4", outcome.Metadata.TotalAttempts)
	}
	if len(outcome.Metadata.FailedAttempts) != 3 {
		t.Fatalf("FailedAttempts = %d entries, want 3", len(outcome.Metadata.FailedAttempts))
	}
	for i, attempt := range outcome.Metadata.FailedAttempts {
		if attempt.Attempt != i {
			t.Errorf("attempt %d recorded index %d", i, attempt.Attempt)
		}
		want := fmt.Sprintf("transient failure %d", i+1)
		if attempt.Error != want {
			t.Errorf("attempt %d error = %q, want %q", i, attempt.Error, want)
		}
	}
	if outcome.Metadata.TotalDuration <= 0 {
		t.Errorf("TotalDuration = %v, want > 0", outcome.Metadata.TotalDuration)
	}
}

func TestDoExhaustsRetries(t *testing.T) {
	config := testConfig()
	config.MaxRetries = 2
	fake := config.Clock.(*clock.FakeClock)

	done := make(chan struct{})
	defer close(done)
	go driveClock(fake, done)

	sentinel := errors.New("persistent failure")
	calls := 0
	outcome, err := Do(context.Background(), config, func(context.Context) (int, error) {
		calls++
		return 0, sentinel
	}, func(error) bool { return true })
	if outcome != nil {
		t.Errorf("outcome = %v, want nil", outcome)
	}
	if !errors.Is(err, sentinel) {
		t.Errorf("err = %v, want the raw last error", err)
	}
	if calls != 3 {
		t.Errorf("op called %d times, want 3", calls)
	}
}

func TestDoZeroRetriesRunsOnce(t *testing.T) {
	config := testConfig()
	config.MaxRetries = 0

	sentinel := errors.New("boom")
	calls := 0
	_, err := Do(context.Background(), config, func(context.Context) (int, error) {
		calls++
		return 0, sentinel
	}, func(error) bool { return true })
	if !errors.Is(err, sentinel) {
		t.Errorf("err = %v, want %v", err, sentinel)
	}
	if calls != 1 {
		t.Errorf("op called %d times, want 1", calls)
	}
}

func TestDoNonRetryableAbortsImmediately(t *testing.T) {
	config := testConfig()

	sentinel := errors.New("bad config")
	calls := 0
	_, err := Do(context.Background(), config, func(context.Context) (int, error) {
		calls++
		return 0, sentinel
	}, func(error) bool { return false })
	if !errors.Is(err, sentinel) {
		t.Errorf("err = %v, want %v", err, sentinel)
	}
	if calls != 1 {
		t.Errorf("op called %d times, want 1", calls)
	}
}

func TestDoOverallTimeoutReturnsLastError(t *testing.T) {
	config := testConfig()
	config.OverallTimeout = 150 * time.Millisecond
	config.BaseDelay = 100 * time.Millisecond
	config.MaxRetries = 10
	fake := config.Clock.(*clock.FakeClock)

	done := make(chan struct{})
	defer close(done)
	go driveClock(fake, done)

	sentinel := errors.New("still failing")
	_, err := Do(context.Background(), config, func(context.Context) (int, error) {
		return 0, sentinel
	}, func(error) bool { return true })
	if !errors.Is(err, sentinel) {
		t.Errorf("err = %v, want the raw last error", err)
	}
}

func TestDoContextCancelDuringBackoff(t *testing.T) {
	config := testConfig()
	fake := config.Clock.(*clock.FakeClock)

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		_, err := Do(ctx, config, func(context.Context) (int, error) {
			return 0, errors.New("transient")
		}, func(error) bool { return true })
		result <- err
	}()

	fake.WaitForWaiters(1)
	cancel()

	err := testutil.RequireReceive(t, result, 5*time.Second, "Do returning after cancel")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestComputeDelayExactWithoutJitter(t *testing.T) {
	config := Config{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		JitterFactor: 0,
	}
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{6, 6400 * time.Millisecond},
		{7, 10 * time.Second},
		{20, 10 * time.Second},
	}
	for _, tc := range cases {
		if got := ComputeDelay(config, tc.attempt); got != tc.want {
			t.Errorf("ComputeDelay(attempt=%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestComputeDelaySaturatesAtLargeAttempts(t *testing.T) {
	config := Config{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     math.MaxInt64,
		JitterFactor: 0,
	}
	// Doubling 100ms 64 times overflows int64 nanoseconds many times
	// over; the shift must clamp instead of wrapping negative.
	for _, attempt := range []int{40, 63, 64, 1000} {
		got := ComputeDelay(config, attempt)
		if got != math.MaxInt64 {
			t.Errorf("ComputeDelay(attempt=%d) = %v, want saturated max", attempt, got)
		}
	}
}

func TestComputeDelayZeroBaseIsZero(t *testing.T) {
	config := Config{MaxDelay: 10 * time.Second, JitterFactor: 0.5}
	for attempt := 0; attempt < 5; attempt++ {
		if got := ComputeDelay(config, attempt); got != 0 {
			t.Errorf("ComputeDelay(attempt=%d) = %v, want 0", attempt, got)
		}
	}
}

func TestComputeDelayZeroMaxIsZero(t *testing.T) {
	config := Config{BaseDelay: 100 * time.Millisecond, JitterFactor: 0}
	if got := ComputeDelay(config, 3); got != 0 {
		t.Errorf("ComputeDelay = %v, want 0", got)
	}
}

func TestComputeDelayJitterBounds(t *testing.T) {
	config := Config{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		JitterFactor: 0.5,
	}
	nominal := 400 * time.Millisecond
	floor := 200 * time.Millisecond
	for i := 0; i < 200; i++ {
		got := ComputeDelay(config, 2)
		if got < floor || got > nominal {
			t.Fatalf("jittered delay %v outside [%v, %v]", got, floor, nominal)
		}
	}
}

func TestComputeDelayJitterFactorClamped(t *testing.T) {
	config := Config{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		JitterFactor: 5.0,
	}
	nominal := 100 * time.Millisecond
	for i := 0; i < 200; i++ {
		got := ComputeDelay(config, 0)
		if got < 0 || got > nominal {
			t.Fatalf("jittered delay %v outside [0, %v]", got, nominal)
		}
	}
}

func TestToReceiptMetadataOmitsEmptyFailures(t *testing.T) {
	metadata := Metadata{TotalAttempts: 1, TotalDuration: 50 * time.Millisecond}
	fields := metadata.ToReceiptMetadata()
	if got := fields["retry_total_attempts"]; got != 1 {
		t.Errorf("retry_total_attempts = %v, want 1", got)
	}
	if got := fields["retry_total_duration_ms"]; got != int64(50) {
		t.Errorf("retry_total_duration_ms = %v, want 50", got)
	}
	if _, present := fields["retry_failed_attempts"]; present {
		t.Error("retry_failed_attempts present for a clean first-try run")
	}
}

func TestToReceiptMetadataIncludesFailures(t *testing.T) {
	metadata := Metadata{
		TotalAttempts: 3,
		FailedAttempts: []Attempt{
			{Attempt: 0, Error: "first", Delay: 100 * time.Millisecond},
			{Attempt: 1, Error: "second", Delay: 200 * time.Millisecond},
		},
		TotalDuration: 450 * time.Millisecond,
	}
	fields := metadata.ToReceiptMetadata()
	attempts, ok := fields["retry_failed_attempts"].([]map[string]any)
	if !ok {
		t.Fatalf("retry_failed_attempts has type %T", fields["retry_failed_attempts"])
	}
	if len(attempts) != 2 {
		t.Fatalf("retry_failed_attempts has %d entries, want 2", len(attempts))
	}
	if attempts[1]["error"] != "second" || attempts[1]["delay_ms"] != int64(200) {
		t.Errorf("second entry = %v", attempts[1])
	}
}

func TestDoConcurrentCallsAreIndependent(t *testing.T) {
	config := testConfig()
	config.Clock = nil
	config.BaseDelay = time.Millisecond
	config.MaxDelay = 2 * time.Millisecond

	results := make(chan int, 8)
	for i := 0; i < 8; i++ {
		go func(id int) {
			calls := 0
			outcome, err := Do(context.Background(), config, func(context.Context) (int, error) {
				calls++
				if calls == 1 {
					return 0, errors.New("transient")
				}
				return id, nil
			}, func(error) bool { return true })
			if err != nil {
				results <- -1
				return
			}
			results <- outcome.Value
		}(i)
	}
	seen := make(map[int]bool)
	for i := 0; i < 8; i++ {
		value := <-results
		if value < 0 {
			t.Fatal("concurrent Do failed")
		}
		seen[value] = true
	}
	if len(seen) != 8 {
		t.Errorf("saw %d distinct values, want 8", len(seen))
	}
}
