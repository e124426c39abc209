// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the module's standard CBOR encoding
// configuration.
//
// Two serialization formats with a clear boundary:
//
//   - JSON for the wire protocol: the JSONL envelope stream between
//     host and sidecar, transcripts on disk, and CLI output. Field
//     names there are fixed by the contract.
//   - CBOR for internal artifacts: transcript checkpoints, whose bytes
//     are content-addressed and therefore must encode deterministically.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items.
// Same logical data always produces identical bytes, which is what
// makes hashing a checkpoint meaningful.
//
// For buffer-oriented operations:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations:
//
//	encoder := codec.NewEncoder(w)
//	decoder := codec.NewDecoder(r)
//
// Contract types carry `json` struct tags only. fxamacker/cbor v2 reads
// `json` tags as fallback when `cbor` tags are absent, so the wire
// contract's field naming controls both formats; never double up with a
// `cbor` tag on the same field.
package codec
