// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package protocol implements the newline-delimited JSON wire protocol
// spoken between the control plane and backend sidecars.
//
// Each wire message is one JSON object per line, discriminated by the
// field "t":
//
//	{"t":"hello", ...}   sidecar announces itself
//	{"t":"run", ...}     control plane submits a work order
//	{"t":"event", ...}   sidecar streams an agent event
//	{"t":"final", ...}   sidecar concludes with a receipt
//	{"t":"fatal", ...}   sidecar reports an unrecoverable error
//
// The package provides the [Envelope] tagged union and its codec
// ([Encode], [Decode], [StreamDecoder]), an incremental [StreamParser]
// for data arriving in arbitrary byte chunks, transcript validation
// ([ValidateSequence], [Validate]), and protocol version negotiation
// ([ProtocolVersion], [Negotiate]).
//
// Unknown extra object fields are ignored on decode so that newer peers
// can add fields without breaking older ones. The codec imposes no line
// size limit; payloads of hundreds of kilobytes round-trip unchanged.
package protocol
