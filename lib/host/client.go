// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package host

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/bureau-foundation/abp/lib/contract"
	"github.com/bureau-foundation/abp/lib/protocol"
)

// SidecarSpec describes how to launch a sidecar process.
type SidecarSpec struct {
	// Command is the executable to run.
	Command string `json:"command" yaml:"command"`

	// Args are passed to the command.
	Args []string `json:"args" yaml:"args"`

	// Env is added to the inherited environment, in key order.
	Env map[string]string `json:"env" yaml:"env"`

	// Dir is the working directory. Empty means the host's.
	Dir string `json:"dir" yaml:"dir"`
}

// Hello is the data extracted from a sidecar's handshake announcement.
type Hello struct {
	ContractVersion string
	Backend         contract.BackendIdentity
	Capabilities    contract.Manifest
	Mode            contract.ExecutionMode
}

// Client is a connected sidecar process that has completed its hello
// handshake. A client serves exactly one run.
type Client struct {
	command *exec.Cmd
	stdin   io.WriteCloser
	decoder *protocol.StreamDecoder
	logger  *slog.Logger

	// Hello is the sidecar's handshake announcement.
	Hello Hello
}

// Spawn launches the sidecar, relays its stderr to the logger, and
// performs the hello handshake. The sidecar must emit a hello envelope
// as its first stdout line, advertising a contract version in the same
// major generation as [contract.Version].
func Spawn(ctx context.Context, spec SidecarSpec, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	command := exec.CommandContext(ctx, spec.Command, spec.Args...)
	command.Dir = spec.Dir
	command.Env = os.Environ()
	keys := make([]string, 0, len(spec.Env))
	for key := range spec.Env {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		command.Env = append(command.Env, key+"="+spec.Env[key])
	}

	stdin, err := command.StdinPipe()
	if err != nil {
		return nil, &SpawnError{Err: err}
	}
	stdout, err := command.StdoutPipe()
	if err != nil {
		return nil, &SpawnError{Err: err}
	}
	stderr, err := command.StderrPipe()
	if err != nil {
		return nil, &SpawnError{Err: err}
	}

	if err := command.Start(); err != nil {
		return nil, &SpawnError{Err: err}
	}

	go relayStderr(stderr, logger)

	client := &Client{
		command: command,
		stdin:   stdin,
		decoder: protocol.NewStreamDecoder(stdout),
		logger:  logger,
	}

	envelope, err := client.decoder.Next()
	if err == io.EOF {
		exitErr := client.reap()
		return nil, exitErr
	}
	if err != nil {
		client.kill()
		return nil, &ProtocolError{Err: err}
	}
	hello, ok := envelope.(protocol.Hello)
	if !ok {
		client.kill()
		return nil, &ViolationError{
			Message: fmt.Sprintf("expected hello as first message, got %s", envelope.EnvelopeType()),
		}
	}
	if !protocol.IsCompatibleVersion(hello.ContractVersion, contract.Version) {
		client.kill()
		return nil, &ViolationError{
			Message: fmt.Sprintf("sidecar speaks %q, host speaks %q", hello.ContractVersion, contract.Version),
		}
	}

	logger.Debug("sidecar hello",
		"backend", hello.Backend.ID,
		"contract_version", hello.ContractVersion,
		"mode", hello.Mode)

	client.Hello = Hello{
		ContractVersion: hello.ContractVersion,
		Backend:         hello.Backend,
		Capabilities:    hello.Capabilities,
		Mode:            hello.Mode,
	}
	return client, nil
}

// relayStderr forwards the sidecar's stderr lines to the logger, so
// sidecar diagnostics end up in the host's log instead of vanishing.
func relayStderr(stderr io.Reader, logger *slog.Logger) {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		logger.Warn("sidecar stderr", "line", line)
	}
}

// Run submits a work order and starts streaming the sidecar's output.
// The client is spent afterwards: the process is killed and reaped when
// the run's terminal envelope arrives or the stream breaks.
//
// The caller must drain [Run.Events]; the stream goroutine blocks once
// the event buffer fills.
func (client *Client) Run(ctx context.Context, runID string, order contract.WorkOrder) (*Run, error) {
	if err := protocol.WriteEnvelope(client.stdin, protocol.Run{ID: runID, WorkOrder: order}); err != nil {
		client.kill()
		return nil, &StdinError{Err: err}
	}

	run := &Run{
		events: make(chan contract.AgentEvent, 256),
		result: make(chan runResult, 1),
	}
	go client.stream(runID, run)
	return run, nil
}

// Close kills the sidecar process and reaps it. Safe to call after a
// failed Run; the stream goroutine owns process teardown otherwise.
func (client *Client) Close() {
	client.kill()
}

type runResult struct {
	receipt contract.Receipt
	err     error
}

// Run is an in-progress sidecar run.
type Run struct {
	events chan contract.AgentEvent
	result chan runResult
}

// Events returns the stream of events for this run, closed when the
// run terminates.
func (run *Run) Events() <-chan contract.AgentEvent {
	return run.events
}

// Wait blocks until the run terminates and returns the receipt, or the
// error that ended the run: a [FatalError] for a sidecar-reported
// failure, an [ExitedError] for a process that died mid-run, a
// [ProtocolError] or [ViolationError] for garbage on the wire.
func (run *Run) Wait() (contract.Receipt, error) {
	outcome := <-run.result
	return outcome.receipt, outcome.err
}

// stream reads envelopes until a terminal one arrives, forwarding
// events for this run and dropping envelopes addressed elsewhere.
func (client *Client) stream(runID string, run *Run) {
	defer close(run.events)
	defer client.kill()

	for {
		envelope, err := client.decoder.Next()
		if err == io.EOF {
			run.result <- runResult{err: client.reap()}
			return
		}
		if err != nil {
			run.result <- runResult{err: &ProtocolError{Err: err}}
			return
		}

		switch message := envelope.(type) {
		case protocol.Event:
			if message.RefID != runID {
				client.logger.Warn("dropping event for another run", "ref_id", message.RefID)
				continue
			}
			run.events <- message.Event
		case protocol.Final:
			if message.RefID != runID {
				client.logger.Warn("dropping final for another run", "ref_id", message.RefID)
				continue
			}
			run.result <- runResult{receipt: message.Receipt}
			return
		case protocol.Fatal:
			if message.RefID != nil && *message.RefID != runID {
				client.logger.Warn("dropping fatal for another run", "ref_id", *message.RefID)
				continue
			}
			run.result <- runResult{err: &FatalError{Message: message.Error, Code: message.ErrorCode}}
			return
		case protocol.Hello:
			// Handshake already done; a stray hello is harmless.
			continue
		default:
			run.result <- runResult{err: &ViolationError{
				Message: fmt.Sprintf("unexpected %s message mid-run", envelope.EnvelopeType()),
			}}
			return
		}
	}
}

// kill terminates the process if still alive and reaps it.
func (client *Client) kill() {
	if client.command.Process != nil {
		_ = client.command.Process.Kill()
	}
	_ = client.command.Wait()
}

// reap waits for the exited process and converts its status into an
// [ExitedError].
func (client *Client) reap() error {
	err := client.command.Wait()
	if err == nil {
		code := 0
		return &ExitedError{Code: &code}
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		return &ExitedError{Code: &code}
	}
	return &ExitedError{}
}
