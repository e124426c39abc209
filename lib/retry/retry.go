// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package retry

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"time"

	"github.com/bureau-foundation/abp/lib/clock"
)

// Config controls backoff shape and retry bounds. The zero value is not
// useful; start from DefaultConfig and override fields.
type Config struct {
	// MaxRetries is the number of retries after the initial attempt.
	// Zero means the operation runs exactly once.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// BaseDelay is the delay before the first retry. Subsequent
	// retries double it. Zero disables the delay entirely.
	BaseDelay time.Duration `json:"base_delay" yaml:"base_delay"`

	// MaxDelay caps the per-retry delay after doubling.
	MaxDelay time.Duration `json:"max_delay" yaml:"max_delay"`

	// OverallTimeout bounds the total wall-clock time spent across all
	// attempts and the sleeps between them.
	OverallTimeout time.Duration `json:"overall_timeout" yaml:"overall_timeout"`

	// JitterFactor randomizes each delay downward: the actual delay is
	// uniform in [nominal*(1-j), nominal], with j clamped to [0, 1].
	// Zero or negative means no jitter.
	JitterFactor float64 `json:"jitter_factor" yaml:"jitter_factor"`

	// Clock supplies time for deadline checks and backoff sleeps.
	// Nil means the real clock.
	Clock clock.Clock `json:"-" yaml:"-"`

	// Logger receives per-attempt debug logs. Nil means a text
	// handler on stderr.
	Logger *slog.Logger `json:"-" yaml:"-"`
}

// DefaultConfig returns the retry policy used by the host when none is
// configured: up to three retries starting at 100ms, capped at 10s,
// with a minute of overall budget and 50% jitter.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		BaseDelay:      100 * time.Millisecond,
		MaxDelay:       10 * time.Second,
		OverallTimeout: time.Minute,
		JitterFactor:   0.5,
	}
}

// Attempt records one failed attempt inside a successful outcome.
type Attempt struct {
	// Attempt is the zero-based attempt index.
	Attempt int

	// Error is the message of the error that failed the attempt.
	Error string

	// Delay is the backoff slept after this failure.
	Delay time.Duration
}

// Metadata describes how a successful outcome was reached.
type Metadata struct {
	// TotalAttempts counts every attempt, including the one that
	// succeeded. Always at least 1.
	TotalAttempts int

	// FailedAttempts lists the attempts that preceded success, in
	// order. Empty when the first attempt succeeded.
	FailedAttempts []Attempt

	// TotalDuration is the wall-clock time from the first attempt to
	// the successful return.
	TotalDuration time.Duration
}

// ToReceiptMetadata renders the metadata as receipt vendor fields. The
// retry_failed_attempts key is present only when at least one attempt
// failed, so a clean first-try run adds no noise to the receipt.
func (metadata Metadata) ToReceiptMetadata() map[string]any {
	fields := map[string]any{
		"retry_total_attempts":    metadata.TotalAttempts,
		"retry_total_duration_ms": metadata.TotalDuration.Milliseconds(),
	}
	if len(metadata.FailedAttempts) > 0 {
		attempts := make([]map[string]any, 0, len(metadata.FailedAttempts))
		for _, attempt := range metadata.FailedAttempts {
			attempts = append(attempts, map[string]any{
				"attempt":  attempt.Attempt,
				"error":    attempt.Error,
				"delay_ms": attempt.Delay.Milliseconds(),
			})
		}
		fields["retry_failed_attempts"] = attempts
	}
	return fields
}

// Outcome is the value produced by a successful Do call together with
// the retry bookkeeping that led to it.
type Outcome[T any] struct {
	Value    T
	Metadata Metadata
}

// TimeoutError reports that the overall retry budget was exhausted
// before any attempt produced an error to propagate.
type TimeoutError struct {
	Timeout time.Duration
}

func (timeoutError *TimeoutError) Error() string {
	return fmt.Sprintf("retry budget of %v exhausted", timeoutError.Timeout)
}

// ComputeDelay returns the backoff for the given zero-based attempt
// index: min(BaseDelay * 2^attempt, MaxDelay), with jitter applied.
// The doubling saturates rather than overflowing, so arbitrarily large
// attempt indices are safe. With JitterFactor <= 0 the result is the
// exact nominal value; otherwise it is uniform in
// [nominal*(1-j), nominal] and never exceeds the nominal value.
func ComputeDelay(config Config, attempt int) time.Duration {
	nominal := saturatingShift(config.BaseDelay, attempt)
	if config.MaxDelay < nominal {
		nominal = config.MaxDelay
	}
	if nominal <= 0 {
		return 0
	}

	jitter := config.JitterFactor
	if jitter <= 0 {
		return nominal
	}
	if jitter > 1 {
		jitter = 1
	}
	reduction := time.Duration(rand.Float64() * jitter * float64(nominal))
	return nominal - reduction
}

// saturatingShift computes d << attempt, clamping to the maximum
// duration instead of overflowing.
func saturatingShift(d time.Duration, attempt int) time.Duration {
	if d <= 0 {
		return 0
	}
	for ; attempt > 0; attempt-- {
		if d > math.MaxInt64/2 {
			return math.MaxInt64
		}
		d *= 2
	}
	return d
}

// Do runs op until it succeeds, up to 1+MaxRetries attempts, backing
// off between failures. The retryable predicate decides whether a
// given error is worth another attempt; a non-retryable error aborts
// immediately.
//
// On success Do returns an Outcome carrying the value and the retry
// metadata. On failure it returns the raw error from the last attempt,
// unwrapped, with no metadata. A TimeoutError is returned only when
// the overall budget expires before the first attempt runs.
func Do[T any](ctx context.Context, config Config, op func(context.Context) (T, error), retryable func(error) bool) (*Outcome[T], error) {
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	start := clk.Now()
	maxAttempts := config.MaxRetries + 1
	var failed []Attempt
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if elapsed := clk.Now().Sub(start); elapsed >= config.OverallTimeout {
			if lastErr != nil {
				return nil, lastErr
			}
			return nil, &TimeoutError{Timeout: config.OverallTimeout}
		}

		value, err := op(ctx)
		if err == nil {
			return &Outcome[T]{
				Value: value,
				Metadata: Metadata{
					TotalAttempts:  attempt + 1,
					FailedAttempts: failed,
					TotalDuration:  clk.Now().Sub(start),
				},
			}, nil
		}
		lastErr = err

		if !retryable(err) {
			logger.Debug("error is not retryable", "attempt", attempt, "error", err)
			return nil, err
		}
		if attempt+1 >= maxAttempts {
			logger.Debug("retries exhausted", "attempts", maxAttempts, "error", err)
			return nil, err
		}

		delay := ComputeDelay(config, attempt)
		failed = append(failed, Attempt{
			Attempt: attempt,
			Error:   err.Error(),
			Delay:   delay,
		})
		remaining := config.OverallTimeout - clk.Now().Sub(start)
		if delay >= remaining {
			logger.Debug("backoff would exceed retry budget", "delay", delay, "remaining", remaining)
			return nil, err
		}
		logger.Debug("attempt failed, backing off", "attempt", attempt, "delay", delay, "error", err)

		select {
		case <-clk.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}
