// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package contract

import (
	"encoding/json"
	"testing"
	"time"
)

func sampleReceipt() Receipt {
	inputTokens := uint64(120)
	outputTokens := uint64(45)
	return Receipt{
		Meta: RunMetadata{
			RunID:           "run-1",
			WorkOrderID:     "wo-1",
			ContractVersion: Version,
			StartedAt:       time.Date(2026, 2, 10, 15, 30, 0, 0, time.UTC),
			FinishedAt:      time.Date(2026, 2, 10, 15, 31, 30, 0, time.UTC),
			DurationMillis:  90_000,
		},
		Backend:      BackendIdentity{ID: "mock"},
		Capabilities: Manifest{CapStreaming: Native()},
		Mode:         ModeMapped,
		UsageRaw:     json.RawMessage(`{"input_tokens":120,"output_tokens":45}`),
		Usage:        UsageNormalized{InputTokens: &inputTokens, OutputTokens: &outputTokens},
		Trace: []AgentEvent{
			{TS: time.Date(2026, 2, 10, 15, 30, 1, 0, time.UTC), Kind: RunStartedEvent{Message: "go"}},
			{TS: time.Date(2026, 2, 10, 15, 31, 29, 0, time.UTC), Kind: RunCompletedEvent{Message: "done"}},
		},
		Outcome: OutcomeComplete,
	}
}

func TestReceiptWithHashVerifies(t *testing.T) {
	hashed, err := sampleReceipt().WithHash()
	if err != nil {
		t.Fatalf("WithHash: %v", err)
	}
	if hashed.ReceiptSHA256 == nil {
		t.Fatal("WithHash left ReceiptSHA256 nil")
	}
	if len(*hashed.ReceiptSHA256) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(*hashed.ReceiptSHA256))
	}
	if err := hashed.VerifyHash(); err != nil {
		t.Errorf("VerifyHash: %v", err)
	}
}

func TestReceiptHashIsStableAcrossRehashing(t *testing.T) {
	once, err := sampleReceipt().WithHash()
	if err != nil {
		t.Fatalf("WithHash: %v", err)
	}
	// Hashing an already hashed receipt must produce the same value:
	// the canonical form clears the hash field before hashing.
	twice, err := once.WithHash()
	if err != nil {
		t.Fatalf("WithHash: %v", err)
	}
	if *once.ReceiptSHA256 != *twice.ReceiptSHA256 {
		t.Errorf("rehash changed the hash: %s vs %s", *once.ReceiptSHA256, *twice.ReceiptSHA256)
	}
}

func TestReceiptVerifyDetectsTampering(t *testing.T) {
	hashed, err := sampleReceipt().WithHash()
	if err != nil {
		t.Fatalf("WithHash: %v", err)
	}
	hashed.Outcome = OutcomeFailed
	if err := hashed.VerifyHash(); err == nil {
		t.Error("VerifyHash accepted a tampered receipt")
	}
}

func TestReceiptVerifyRequiresHash(t *testing.T) {
	if err := sampleReceipt().VerifyHash(); err == nil {
		t.Error("VerifyHash accepted a receipt with no hash attached")
	}
}

func TestReceiptCanonicalJSONExcludesHash(t *testing.T) {
	plain, err := sampleReceipt().CanonicalJSON()
	if err != nil {
		t.Fatalf("CanonicalJSON: %v", err)
	}
	hashed, err := sampleReceipt().WithHash()
	if err != nil {
		t.Fatalf("WithHash: %v", err)
	}
	withHash, err := hashed.CanonicalJSON()
	if err != nil {
		t.Fatalf("CanonicalJSON: %v", err)
	}
	if string(plain) != string(withHash) {
		t.Error("canonical form differs before and after hashing")
	}
}
