// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// abp-host runs one work order against a sidecar and records the
// session. It loads its configuration from a file (--config or the
// ABP_CONFIG environment variable), spawns the configured sidecar with
// retry, submits the work order, and streams the session to stdout as
// NDJSON envelopes — the same representation that lands in the
// transcript file, so stdout itself is a replayable transcript.
//
// When configured, the finished session is also persisted as a
// compressed transcript and a content-addressed CBOR checkpoint.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/abp/lib/config"
	"github.com/bureau-foundation/abp/lib/contract"
	"github.com/bureau-foundation/abp/lib/host"
	"github.com/bureau-foundation/abp/lib/process"
	"github.com/bureau-foundation/abp/lib/protocol"
	"github.com/bureau-foundation/abp/lib/transcript"
	"github.com/bureau-foundation/abp/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var configPath string

	flagSet := pflag.NewFlagSet("abp-host", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to the config file (default: $ABP_CONFIG)")
	verbose := flagSet.Bool("verbose", false, "enable debug logging")
	showVersion := flagSet.Bool("version", false, "print version and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return err
	}
	if *showVersion {
		fmt.Printf("abp-host %s\n", version.Info())
		return nil
	}

	var configuration *config.Config
	var err error
	if configPath != "" {
		configuration, err = config.LoadFile(configPath)
	} else {
		configuration, err = config.Load()
	}
	if err != nil {
		return err
	}
	if err := configuration.Validate(); err != nil {
		return err
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return execute(ctx, configuration, logger)
}

func execute(ctx context.Context, configuration *config.Config, logger *slog.Logger) error {
	policy, err := configuration.Retry.Policy()
	if err != nil {
		return err
	}
	policy.Logger = logger

	spec := host.SidecarSpec{
		Command: configuration.Sidecar.Command,
		Args:    configuration.Sidecar.Args,
		Env:     configuration.Sidecar.Env,
		Dir:     configuration.Sidecar.Dir,
	}

	client, spawnMeta, err := host.SpawnWithRetry(ctx, spec, policy, logger)
	if err != nil {
		return fmt.Errorf("spawning sidecar: %w", err)
	}
	defer client.Close()
	logger.Info("sidecar connected",
		"backend", client.Hello.Backend.ID,
		"contract_version", client.Hello.ContractVersion,
		"spawn_attempts", spawnMeta.TotalAttempts)

	order := buildWorkOrder(configuration.Run)
	runID := newID("run")

	recorder, err := newRecorder(configuration.Transcript)
	if err != nil {
		return err
	}
	defer recorder.close(logger)

	hello := protocol.NewHelloWithMode(client.Hello.ContractVersion,
		client.Hello.Backend, client.Hello.Capabilities, client.Hello.Mode)
	recorder.record(hello)
	recorder.record(protocol.Run{ID: runID, WorkOrder: order})

	running, err := client.Run(ctx, runID, order)
	if err != nil {
		return fmt.Errorf("submitting run: %w", err)
	}
	for event := range running.Events() {
		recorder.record(protocol.Event{RefID: runID, Event: event})
	}

	receipt, err := running.Wait()
	if err != nil {
		var fatal *host.FatalError
		if errors.As(err, &fatal) {
			recorder.record(protocol.Fatal{RefID: &runID, Error: fatal.Message, ErrorCode: fatal.Code})
		}
		return fmt.Errorf("run %s: %w", runID, err)
	}

	recorder.record(protocol.Final{RefID: runID, Receipt: receipt})
	logger.Info("run complete",
		"run_id", runID,
		"outcome", receipt.Outcome,
		"duration_ms", receipt.Meta.DurationMillis)
	for key, value := range spawnMeta.ToReceiptMetadata() {
		logger.Debug("spawn retry metadata", "key", key, "value", value)
	}
	return nil
}

func buildWorkOrder(run config.RunConfig) contract.WorkOrder {
	orderID := run.WorkOrderID
	if orderID == "" {
		orderID = newID("wo")
	}
	var model *string
	if run.Model != "" {
		model = &run.Model
	}
	return contract.WorkOrder{
		ID:   orderID,
		Task: run.Task,
		Lane: contract.ExecutionLane(run.Lane),
		Config: contract.RuntimeConfig{
			Model: model,
			Env:   run.Env,
		},
	}
}

// newID returns a random identifier like "run-9f2c4a1b".
func newID(prefix string) string {
	var raw [4]byte
	rand.Read(raw[:])
	return prefix + "-" + hex.EncodeToString(raw[:])
}

// recorder tees session envelopes to stdout and, when configured, to a
// transcript file, while accumulating them for the checkpoint.
type recorder struct {
	writer        *transcript.Writer
	checkpointDir string
	envelopes     []protocol.Envelope
	writeErr      error
}

func newRecorder(configuration config.TranscriptConfig) (*recorder, error) {
	rec := &recorder{checkpointDir: configuration.CheckpointDir}
	if configuration.Path != "" {
		writer, err := transcript.Create(configuration.Path)
		if err != nil {
			return nil, err
		}
		rec.writer = writer
	}
	return rec, nil
}

func (rec *recorder) record(envelope protocol.Envelope) {
	rec.envelopes = append(rec.envelopes, envelope)
	if err := protocol.WriteEnvelope(os.Stdout, envelope); err != nil && rec.writeErr == nil {
		rec.writeErr = err
	}
	if rec.writer != nil {
		if err := rec.writer.Append(envelope); err != nil && rec.writeErr == nil {
			rec.writeErr = err
		}
	}
}

// close flushes the transcript and writes the checkpoint. Persistence
// failures are logged, not fatal: the run itself already finished and
// its outcome should win.
func (rec *recorder) close(logger *slog.Logger) {
	if rec.writeErr != nil {
		logger.Warn("session recording incomplete", "error", rec.writeErr)
	}
	if rec.writer != nil {
		summary := rec.writer.Summary()
		if err := rec.writer.Close(); err != nil {
			logger.Warn("closing transcript failed", "error", err)
		} else {
			logger.Info("transcript written",
				"envelopes", summary.Envelopes,
				"events", summary.Events,
				"errors", summary.Errors)
		}
	}
	if rec.checkpointDir != "" {
		checkpoint, err := transcript.NewCheckpoint(rec.envelopes)
		if err != nil {
			logger.Warn("building checkpoint failed", "error", err)
			return
		}
		path, err := checkpoint.Write(rec.checkpointDir)
		if err != nil {
			logger.Warn("writing checkpoint failed", "error", err)
			return
		}
		logger.Info("checkpoint written", "path", path)
	}
}
