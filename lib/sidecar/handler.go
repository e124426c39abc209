// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sidecar

import (
	"context"

	"github.com/bureau-foundation/abp/lib/contract"
)

// Handler executes one work order. A well-behaved implementation sends
// zero or more events followed by exactly one of SendFinal or SendFatal
// on the sender, then returns nil. Returning an error instead makes the
// server emit a fatal envelope carrying the error text on the handler's
// behalf.
type Handler interface {
	// OnRun executes the work order. The sender is bound to runID.
	OnRun(ctx context.Context, runID string, order contract.WorkOrder, sender EventSender) error

	// OnCancel asks the handler to wind down an in-flight run. It is
	// cooperative: the server calls it when its context is cancelled
	// but never forcibly interrupts OnRun.
	OnCancel(ctx context.Context) error
}

// HandlerFunc adapts a plain function to a [Handler] with a no-op
// OnCancel.
type HandlerFunc func(ctx context.Context, runID string, order contract.WorkOrder, sender EventSender) error

func (handle HandlerFunc) OnRun(ctx context.Context, runID string, order contract.WorkOrder, sender EventSender) error {
	return handle(ctx, runID, order, sender)
}

func (HandlerFunc) OnCancel(context.Context) error { return nil }
