// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package contract defines the data shapes exchanged between the control
// plane and backend sidecars: work orders, receipts, agent events, and
// capability manifests.
//
// These types are carried verbatim inside protocol envelopes (see
// lib/protocol). The contract is step-oriented: a [WorkOrder] describes one
// unit of work, a backend executes it while streaming [AgentEvent]s, and the
// run concludes with a [Receipt] describing what happened.
//
// The wire representation is JSON. Field names are part of the contract and
// must not change without a bump of [Version]. Unknown fields are ignored on
// decode for forward compatibility.
package contract
