// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package host

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/abp/lib/contract"
	"github.com/bureau-foundation/abp/lib/retry"
)

// SpawnError reports that the sidecar process could not be started.
type SpawnError struct {
	Err error
}

func (spawnError *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn sidecar: %v", spawnError.Err)
}

func (spawnError *SpawnError) Unwrap() error { return spawnError.Err }

// StdoutError reports an I/O failure reading the sidecar's stdout.
type StdoutError struct {
	Err error
}

func (stdoutError *StdoutError) Error() string {
	return fmt.Sprintf("failed to read sidecar stdout: %v", stdoutError.Err)
}

func (stdoutError *StdoutError) Unwrap() error { return stdoutError.Err }

// StdinError reports an I/O failure writing the sidecar's stdin.
type StdinError struct {
	Err error
}

func (stdinError *StdinError) Error() string {
	return fmt.Sprintf("failed to write sidecar stdin: %v", stdinError.Err)
}

func (stdinError *StdinError) Unwrap() error { return stdinError.Err }

// ProtocolError reports a line from the sidecar that failed to decode.
type ProtocolError struct {
	Err error
}

func (protocolError *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %v", protocolError.Err)
}

func (protocolError *ProtocolError) Unwrap() error { return protocolError.Err }

// ViolationError reports a sidecar that decoded cleanly but broke the
// session rules, e.g. a first message that is not a hello.
type ViolationError struct {
	Message string
}

func (violation *ViolationError) Error() string {
	return fmt.Sprintf("sidecar protocol violation: %s", violation.Message)
}

// FatalError carries a fatal envelope received from the sidecar.
type FatalError struct {
	Message string
	Code    *contract.ErrorCode
}

func (fatal *FatalError) Error() string {
	return fmt.Sprintf("sidecar fatal error: %s", fatal.Message)
}

// ExitedError reports that the sidecar process exited before delivering
// a terminal envelope.
type ExitedError struct {
	// Code is the process exit code, when known.
	Code *int
}

func (exited *ExitedError) Error() string {
	if exited.Code == nil {
		return "sidecar exited unexpectedly"
	}
	return fmt.Sprintf("sidecar exited unexpectedly (code=%d)", *exited.Code)
}

// IsRetryable reports whether an error is worth another spawn attempt.
// Spawn failures, broken stdout, unexpected exits, and retry budget
// timeouts are transient; protocol violations and decode errors are
// not, since a misbehaving sidecar will misbehave again.
func IsRetryable(err error) bool {
	var spawnError *SpawnError
	var stdoutError *StdoutError
	var exited *ExitedError
	var timeout *retry.TimeoutError
	return errors.As(err, &spawnError) ||
		errors.As(err, &stdoutError) ||
		errors.As(err, &exited) ||
		errors.As(err, &timeout)
}
