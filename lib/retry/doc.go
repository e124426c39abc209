// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package retry provides a bounded retry wrapper with exponential
// backoff, jitter, an overall wall-clock timeout, and an injectable
// retryable-error predicate.
//
// The engine is policy-free: it does not know which errors are
// transient. Callers supply the predicate (see lib/host.IsRetryable for
// the sidecar-spawn policy). The operation is a factory invoked fresh
// per attempt, so each attempt gets its own context-aware computation
// rather than replaying a spent one.
//
// Successful outcomes carry [Metadata] describing every failed attempt;
// failures return the raw last error with no metadata attached. The
// asymmetry is deliberate: retry bookkeeping enriches receipts of runs
// that eventually happened, while a definitive failure propagates
// unwrapped so callers can classify it.
package retry
