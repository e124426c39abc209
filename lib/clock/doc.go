// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time operations for testability. Production
// code injects [Real]; tests inject [Fake] with deterministic time
// control.
//
// Code that would otherwise call time.Now, time.Sleep, or time.After
// should accept a [Clock] parameter (or be a method on a struct with a
// Clock field) instead of calling the time package directly. The retry
// engine is the main consumer: its backoff sleeps only go through the
// injected clock, so retry tests advance a fake clock instead of waiting
// on the wall clock.
package clock
