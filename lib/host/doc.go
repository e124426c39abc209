// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package host supervises sidecar processes from the control-plane
// side: spawn with piped stdio, perform the hello handshake, submit a
// work order, and stream the resulting events back to the caller.
//
// A [Client] is single-shot: one spawn serves exactly one run, after
// which the process is killed and reaped. Transient failures (spawn
// errors, broken stdout, unexpected exits) are classified by
// [IsRetryable] and can be retried with backoff via [SpawnWithRetry].
package host
