// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sidecar implements the sidecar-side session loop: announce a
// hello, await exactly one run, dispatch it to a [Handler], flush the
// events the handler queued, and report handler failure as a fatal
// envelope.
//
// The loop is strictly single-run. A sidecar process serves one work
// order and exits; the host respawns it for the next. Handlers emit
// output through an [EventSender], a cloneable handle whose sends never
// block: envelopes accumulate in an unbounded queue and are written to
// the transport only after the handler returns.
package sidecar
