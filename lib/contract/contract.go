// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package contract

// Version is the contract version string embedded in wire messages and
// receipts produced by this module. Code that constructs hello envelopes
// takes the version as an explicit parameter rather than reading this
// constant, so that tests and emulation layers can speak older versions;
// this constant is the value production callers pass.
const Version = "abp/v0.1"

// BackendIdentity identifies a backend and its version information.
type BackendIdentity struct {
	// ID is the stable backend identifier (e.g. "mock", "sidecar:node").
	ID string `json:"id"`

	// BackendVersion is the backend runtime version (SDK version, CLI
	// version, etc.). Nil when the backend does not report one.
	BackendVersion *string `json:"backend_version"`

	// AdapterVersion is the version of the sidecar wrapper itself.
	AdapterVersion *string `json:"adapter_version"`
}

// ErrorCode is an optional machine-readable tag attached to fatal and
// error payloads. The protocol core treats codes as opaque strings; the
// values below are the ones this module emits.
type ErrorCode string

const (
	// CodeHandlerError marks a fatal caused by a sidecar handler failure.
	CodeHandlerError ErrorCode = "handler_error"

	// CodeProtocolViolation marks a fatal caused by a malformed or
	// out-of-sequence message.
	CodeProtocolViolation ErrorCode = "protocol_violation"

	// CodeTimeout marks a fatal caused by a deadline expiring.
	CodeTimeout ErrorCode = "timeout"
)
