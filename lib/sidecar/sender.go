// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sidecar

import (
	"sync"

	"github.com/bureau-foundation/abp/lib/contract"
	"github.com/bureau-foundation/abp/lib/protocol"
)

// eventQueue buffers outbound envelopes between EventSender clones
// (producers) and the session server (sole consumer). It is unbounded:
// sends never block, so a fast handler never stalls on a slow writer.
type eventQueue struct {
	mu     sync.Mutex
	items  []protocol.Envelope
	closed bool
}

func newEventQueue() *eventQueue {
	return &eventQueue{}
}

func (queue *eventQueue) push(envelope protocol.Envelope) error {
	queue.mu.Lock()
	defer queue.mu.Unlock()
	if queue.closed {
		return ErrChannelClosed
	}
	queue.items = append(queue.items, envelope)
	return nil
}

// drain removes and returns everything currently buffered, in FIFO
// order. It does not wait for further arrivals.
func (queue *eventQueue) drain() []protocol.Envelope {
	queue.mu.Lock()
	defer queue.mu.Unlock()
	items := queue.items
	queue.items = nil
	return items
}

func (queue *eventQueue) close() {
	queue.mu.Lock()
	defer queue.mu.Unlock()
	queue.closed = true
	queue.items = nil
}

// EventSender is the handle a handler uses to emit envelopes for its
// run. Copies share the same queue, so a handler may hand clones to
// concurrent goroutines; sends are serialized by the queue and land on
// the wire in arrival order.
//
// Sends are accepted for as long as the session server invocation is
// alive, but only envelopes queued before the handler returns are
// flushed to the transport. Once the server returns, every send fails
// with [ErrChannelClosed].
type EventSender struct {
	refID string
	queue *eventQueue
}

// RefID returns the run id this sender is bound to.
func (sender EventSender) RefID() string {
	return sender.refID
}

// SendEvent queues a streaming event addressed to this sender's run.
func (sender EventSender) SendEvent(event contract.AgentEvent) error {
	return sender.queue.push(protocol.Event{RefID: sender.refID, Event: event})
}

// SendFinal queues the terminal receipt for this sender's run.
func (sender EventSender) SendFinal(receipt contract.Receipt) error {
	return sender.queue.push(protocol.Final{RefID: sender.refID, Receipt: receipt})
}

// SendFatal queues a fatal error addressed to this sender's run.
func (sender EventSender) SendFatal(message string, code *contract.ErrorCode) error {
	refID := sender.refID
	return sender.queue.push(protocol.Fatal{RefID: &refID, Error: message, ErrorCode: code})
}
