// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sidecar

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/bureau-foundation/abp/lib/contract"
	"github.com/bureau-foundation/abp/lib/protocol"
)

// Server drives one sidecar session over a line-oriented transport.
type Server struct {
	// Handler executes the work order. Required.
	Handler Handler

	// ContractVersion is announced in the hello. Empty means
	// [contract.Version].
	ContractVersion string

	// Identity names the backend behind this sidecar.
	Identity contract.BackendIdentity

	// Capabilities is the manifest announced in the hello. Nil is
	// announced as an empty manifest.
	Capabilities contract.Manifest

	// Mode is the execution mode announced in the hello. Empty means
	// mapped.
	Mode contract.ExecutionMode

	// Logger receives session diagnostics. Nil means a text handler on
	// stderr; the transport itself stays clean of log output.
	Logger *slog.Logger
}

// Run serves one session over the process's stdin and stdout.
func (server *Server) Run(ctx context.Context) error {
	return server.RunWithIO(ctx, os.Stdin, os.Stdout)
}

// RunWithIO serves one session: write the hello, await a run envelope,
// dispatch it to the handler, then flush whatever the handler queued.
//
// Failures split two ways. Transport and framing problems before the
// handler runs (EOF, undecodable line, a non-run envelope) propagate as
// the returned error with nothing further emitted. A handler error is
// instead reported to the peer as a fatal envelope and RunWithIO
// returns nil, because the peer has been informed.
func (server *Server) RunWithIO(ctx context.Context, reader io.Reader, writer io.Writer) error {
	logger := server.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	contractVersion := server.ContractVersion
	if contractVersion == "" {
		contractVersion = contract.Version
	}
	mode := server.Mode
	if mode == "" {
		mode = contract.ModeMapped
	}
	capabilities := server.Capabilities
	if capabilities == nil {
		capabilities = contract.Manifest{}
	}

	hello := protocol.NewHelloWithMode(contractVersion, server.Identity, capabilities, mode)
	if err := protocol.WriteEnvelope(writer, hello); err != nil {
		return err
	}

	decoder := protocol.NewStreamDecoder(reader)
	envelope, err := decoder.Next()
	if err == io.EOF {
		return ErrStdinClosed
	}
	if err != nil {
		return fmt.Errorf("awaiting run: %w", err)
	}
	run, ok := envelope.(protocol.Run)
	if !ok {
		return &UnexpectedMessageError{
			Expected: string(protocol.TypeRun),
			Got:      string(envelope.EnvelopeType()),
		}
	}
	logger.Debug("run received", "run_id", run.ID, "work_order_id", run.WorkOrder.ID)

	queue := newEventQueue()
	defer queue.close()
	sender := EventSender{refID: run.ID, queue: queue}

	// Cooperative cancellation: forward context cancellation to the
	// handler's OnCancel hook, but never interrupt OnRun itself.
	handlerDone := make(chan struct{})
	defer close(handlerDone)
	go func() {
		select {
		case <-ctx.Done():
			if err := server.Handler.OnCancel(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("cancel hook failed", "error", err)
			}
		case <-handlerDone:
		}
	}()

	handlerErr := server.Handler.OnRun(ctx, run.ID, run.WorkOrder, sender)

	for _, queued := range queue.drain() {
		if err := protocol.WriteEnvelope(writer, queued); err != nil {
			return err
		}
	}

	if handlerErr != nil {
		logger.Warn("handler failed", "run_id", run.ID, "error", handlerErr)
		code := contract.CodeHandlerError
		fatal := protocol.Fatal{
			RefID:     &run.ID,
			Error:     handlerErr.Error(),
			ErrorCode: &code,
		}
		if err := protocol.WriteEnvelope(writer, fatal); err != nil {
			return err
		}
	}
	return nil
}
