// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"github.com/bureau-foundation/abp/lib/contract"
)

// Type is the wire discriminator of an envelope, carried in the "t"
// field of every line.
type Type string

// The five envelope types. The set is closed: a line whose "t" value is
// not one of these fails to decode.
const (
	TypeHello Type = "hello"
	TypeRun   Type = "run"
	TypeEvent Type = "event"
	TypeFinal Type = "final"
	TypeFatal Type = "fatal"
)

// Envelope is one wire-level message. The concrete types are [Hello],
// [Run], [Event], [Final], and [Fatal]; no other implementations exist.
type Envelope interface {
	// EnvelopeType returns the wire discriminator for this envelope.
	EnvelopeType() Type
}

// Hello is the sidecar announcement sent as the first message after
// connection.
type Hello struct {
	// ContractVersion is the protocol version the sidecar speaks,
	// e.g. "abp/v0.1".
	ContractVersion string `json:"contract_version"`

	// Backend identifies the backend behind the sidecar.
	Backend contract.BackendIdentity `json:"backend"`

	// Capabilities is the manifest the sidecar advertises.
	Capabilities contract.Manifest `json:"capabilities"`

	// Mode is the execution mode this sidecar will use. Defaults to
	// mapped when absent from the wire.
	Mode contract.ExecutionMode `json:"mode"`
}

// Run is the control-plane request to start executing a work order.
type Run struct {
	// ID uniquely identifies this run. Events, the final receipt, and
	// fatals all reference it as their ref_id.
	ID string `json:"id"`

	// WorkOrder is the work to execute.
	WorkOrder contract.WorkOrder `json:"work_order"`
}

// Event is a streaming event emitted by the sidecar during execution.
type Event struct {
	// RefID is the run this event belongs to.
	RefID string `json:"ref_id"`

	// Event is the agent event payload.
	Event contract.AgentEvent `json:"event"`
}

// Final is the terminal message carrying the execution receipt.
type Final struct {
	// RefID is the run this receipt belongs to.
	RefID string `json:"ref_id"`

	// Receipt is the completed execution receipt.
	Receipt contract.Receipt `json:"receipt"`
}

// Fatal is an unrecoverable error from the sidecar. Like Final, it
// terminates the session.
type Fatal struct {
	// RefID is the run identifier, when known. Nil for failures before
	// any run was received.
	RefID *string `json:"ref_id"`

	// Error is the human-readable error description.
	Error string `json:"error"`

	// ErrorCode is an optional machine-readable tag, treated as opaque
	// by this package.
	ErrorCode *contract.ErrorCode `json:"error_code"`
}

func (Hello) EnvelopeType() Type { return TypeHello }
func (Run) EnvelopeType() Type   { return TypeRun }
func (Event) EnvelopeType() Type { return TypeEvent }
func (Final) EnvelopeType() Type { return TypeFinal }
func (Fatal) EnvelopeType() Type { return TypeFatal }

// NewHello constructs a Hello envelope. The contract version is an
// explicit parameter (callers normally pass [contract.Version]) so that
// nothing in this package reads ambient global state.
func NewHello(contractVersion string, backend contract.BackendIdentity, capabilities contract.Manifest) Hello {
	return NewHelloWithMode(contractVersion, backend, capabilities, contract.ModeMapped)
}

// NewHelloWithMode constructs a Hello envelope with an explicit
// execution mode.
func NewHelloWithMode(contractVersion string, backend contract.BackendIdentity, capabilities contract.Manifest, mode contract.ExecutionMode) Hello {
	return Hello{
		ContractVersion: contractVersion,
		Backend:         backend,
		Capabilities:    capabilities,
		Mode:            mode,
	}
}
