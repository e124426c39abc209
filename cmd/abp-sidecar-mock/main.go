// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// abp-sidecar-mock is a sidecar that fakes a backend. It speaks the
// full session protocol on stdin/stdout — hello, one run, a scripted
// event stream, and a terminal receipt — without spawning any real
// agent or needing an API key.
//
// It exists for two audiences: host development (point abp-host at it
// and watch a complete session round-trip) and failure testing
// (--fail makes the handler die mid-run so the host's fatal path gets
// exercised).
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/abp/lib/contract"
	"github.com/bureau-foundation/abp/lib/process"
	"github.com/bureau-foundation/abp/lib/sidecar"
	"github.com/bureau-foundation/abp/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var backendID string
	var fail bool

	flagSet := pflag.NewFlagSet("abp-sidecar-mock", pflag.ContinueOnError)
	flagSet.StringVar(&backendID, "backend-id", "mock", "backend identifier announced in the hello")
	flagSet.BoolVar(&fail, "fail", false, "abort mid-run with an injected handler failure")
	showVersion := flagSet.Bool("version", false, "print version and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return err
	}
	if *showVersion {
		fmt.Printf("abp-sidecar-mock %s\n", version.Info())
		return nil
	}

	adapterVersion := version.Short()
	server := &sidecar.Server{
		Handler: &mockHandler{fail: fail, backendID: backendID},
		Identity: contract.BackendIdentity{
			ID:             backendID,
			AdapterVersion: &adapterVersion,
		},
		Capabilities: mockManifest(),
	}
	return server.Run(context.Background())
}

func mockManifest() contract.Manifest {
	return contract.Manifest{
		contract.CapStreaming: contract.Native(),
		contract.CapToolRead:  contract.Native(),
		contract.CapToolWrite: contract.Native(),
		contract.CapToolBash:  contract.Emulated(),
		contract.CapMCPClient: contract.Unsupported(),
	}
}

// mockHandler plays back a fixed session: start, a tool round-trip, an
// assistant message, completion, receipt. With fail set it emits the
// first two events and then returns an error, which the server converts
// into a fatal envelope.
type mockHandler struct {
	fail      bool
	backendID string
}

func (handler *mockHandler) OnRun(ctx context.Context, runID string, order contract.WorkOrder, sender sidecar.EventSender) error {
	started := time.Now().UTC()

	send := func(kind contract.EventKind) error {
		return sender.SendEvent(contract.AgentEvent{TS: time.Now().UTC(), Kind: kind})
	}

	if err := send(contract.RunStartedEvent{Message: "mock backend starting"}); err != nil {
		return err
	}
	if err := send(contract.AssistantMessageEvent{
		Text: fmt.Sprintf("Working on: %s", order.Task),
	}); err != nil {
		return err
	}

	if handler.fail {
		return errors.New("injected failure")
	}

	useID := "tu-mock-1"
	if err := send(contract.ToolCallEvent{
		ToolName:  "read_file",
		ToolUseID: &useID,
		Input:     json.RawMessage(`{"path":"README.md"}`),
	}); err != nil {
		return err
	}
	if err := send(contract.ToolResultEvent{
		ToolName:  "read_file",
		ToolUseID: &useID,
		Output:    json.RawMessage(`{"content":"mock file content"}`),
	}); err != nil {
		return err
	}
	if err := send(contract.AssistantMessageEvent{Text: "Mock task complete."}); err != nil {
		return err
	}
	if err := send(contract.RunCompletedEvent{Message: "done"}); err != nil {
		return err
	}

	finished := time.Now().UTC()
	receipt, err := handler.receipt(runID, order, started, finished).WithHash()
	if err != nil {
		return err
	}
	return sender.SendFinal(receipt)
}

func (handler *mockHandler) OnCancel(context.Context) error { return nil }

func (handler *mockHandler) receipt(runID string, order contract.WorkOrder, started, finished time.Time) contract.Receipt {
	inputTokens := uint64(100)
	outputTokens := uint64(50)
	return contract.Receipt{
		Meta: contract.RunMetadata{
			RunID:           runID,
			WorkOrderID:     order.ID,
			ContractVersion: contract.Version,
			StartedAt:       started,
			FinishedAt:      finished,
			DurationMillis:  uint64(finished.Sub(started).Milliseconds()),
		},
		Backend:      contract.BackendIdentity{ID: handler.backendID},
		Capabilities: mockManifest(),
		Mode:         contract.ModeMapped,
		UsageRaw:     json.RawMessage(`{"input_tokens":100,"output_tokens":50}`),
		Usage: contract.UsageNormalized{
			InputTokens:  &inputTokens,
			OutputTokens: &outputTokens,
		},
		Outcome: contract.OutcomeComplete,
	}
}
