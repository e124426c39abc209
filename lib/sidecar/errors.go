// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sidecar

import (
	"errors"
	"fmt"
)

// ErrStdinClosed reports that the transport reached EOF before a run
// envelope arrived. Nothing has been emitted besides the hello.
var ErrStdinClosed = errors.New("stdin closed before a run was received")

// ErrChannelClosed reports a send on an EventSender whose session has
// already finished. The envelope was discarded.
var ErrChannelClosed = errors.New("event channel closed")

// UnexpectedMessageError reports a message of the wrong type during the
// session handshake.
type UnexpectedMessageError struct {
	Expected string
	Got      string
}

func (unexpected *UnexpectedMessageError) Error() string {
	return fmt.Sprintf("expected %s message, got %s", unexpected.Expected, unexpected.Got)
}
