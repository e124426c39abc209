// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transcript persists envelope streams.
//
// A [Writer] appends envelopes to a JSONL sink, optionally
// zstd-compressed, while aggregating [Summary] counters. A
// [Checkpoint] snapshots a complete envelope slice as deterministic
// CBOR, named by its BLAKE3 content hash: the same transcript always
// produces the same checkpoint file, so checkpoints deduplicate by
// construction.
package transcript
