// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package contract

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Receipt is the outcome of a completed run: metadata, usage, trace, and
// verification. A receipt is produced by the backend inside the terminal
// "final" envelope; the control plane may then attach the canonical hash
// via [Receipt.WithHash].
type Receipt struct {
	// Meta holds timing and identity metadata for this run.
	Meta RunMetadata `json:"meta"`

	// Backend is the backend that executed the work order.
	Backend BackendIdentity `json:"backend"`

	// Capabilities is the manifest reported by the backend.
	Capabilities Manifest `json:"capabilities"`

	// Mode is the execution mode used for this run.
	Mode ExecutionMode `json:"mode"`

	// UsageRaw is the vendor-specific usage payload as reported.
	UsageRaw json.RawMessage `json:"usage_raw"`

	// Usage holds best-effort normalized usage counters.
	Usage UsageNormalized `json:"usage"`

	// Trace is the ordered log of events emitted during the run.
	Trace []AgentEvent `json:"trace"`

	// Artifacts references outputs produced during the run.
	Artifacts []ArtifactRef `json:"artifacts"`

	// Verification holds git-based verification data captured after
	// completion.
	Verification VerificationReport `json:"verification"`

	// Outcome is the high-level result status.
	Outcome Outcome `json:"outcome"`

	// ReceiptSHA256 is the hex hash of the canonical receipt, filled in
	// by the control plane. Nil until hashed.
	ReceiptSHA256 *string `json:"receipt_sha256"`
}

// RunMetadata holds timing and identity metadata for a single run.
type RunMetadata struct {
	// RunID uniquely identifies the run.
	RunID string `json:"run_id"`

	// WorkOrderID is the work order this run fulfilled.
	WorkOrderID string `json:"work_order_id"`

	// ContractVersion is the contract version used for this run.
	ContractVersion string `json:"contract_version"`

	// StartedAt and FinishedAt bound the run in wall-clock time.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// DurationMillis is the wall-clock duration in milliseconds.
	DurationMillis uint64 `json:"duration_ms"`
}

// UsageNormalized holds best-effort normalized token and cost counters
// across different backends. All fields are nil when unreported.
type UsageNormalized struct {
	InputTokens      *uint64 `json:"input_tokens"`
	OutputTokens     *uint64 `json:"output_tokens"`
	CacheReadTokens  *uint64 `json:"cache_read_tokens"`
	CacheWriteTokens *uint64 `json:"cache_write_tokens"`

	// RequestUnits is Copilot-style billing.
	RequestUnits *uint64 `json:"request_units"`

	// EstimatedCostUSD is the estimated cost in US dollars.
	EstimatedCostUSD *float64 `json:"estimated_cost_usd"`
}

// Outcome is the high-level result status of a run.
type Outcome string

const (
	// OutcomeComplete means the run finished successfully.
	OutcomeComplete Outcome = "complete"

	// OutcomePartial means the run produced partial results (e.g.
	// budget exhausted).
	OutcomePartial Outcome = "partial"

	// OutcomeFailed means the run failed.
	OutcomeFailed Outcome = "failed"
)

// ArtifactRef references an artifact produced during a run.
type ArtifactRef struct {
	// Kind is the artifact type (e.g. "patch", "log").
	Kind string `json:"kind"`

	// Path to the artifact relative to the workspace root.
	Path string `json:"path"`
}

// VerificationReport holds git-based verification data captured after a
// run completes.
type VerificationReport struct {
	// GitDiff is the output of "git diff" in the workspace, if captured.
	GitDiff *string `json:"git_diff"`

	// GitStatus is the output of "git status --porcelain", if captured.
	GitStatus *string `json:"git_status"`

	// HarnessOK reports whether the verification harness (if any)
	// succeeded.
	HarnessOK bool `json:"harness_ok"`
}

// CanonicalJSON serializes the receipt with the hash field cleared. This
// is the byte sequence the receipt hash is computed over, so that hashing
// is stable regardless of whether a hash was previously attached.
func (receipt Receipt) CanonicalJSON() ([]byte, error) {
	receipt.ReceiptSHA256 = nil
	data, err := json.Marshal(receipt)
	if err != nil {
		return nil, fmt.Errorf("canonicalizing receipt: %w", err)
	}
	return data, nil
}

// WithHash returns a copy of the receipt with ReceiptSHA256 set to the
// hex SHA-256 of the canonical JSON form. The algorithm is fixed by the
// wire contract (the field is named receipt_sha256).
func (receipt Receipt) WithHash() (Receipt, error) {
	canonical, err := receipt.CanonicalJSON()
	if err != nil {
		return receipt, err
	}
	sum := sha256.Sum256(canonical)
	hash := hex.EncodeToString(sum[:])
	receipt.ReceiptSHA256 = &hash
	return receipt, nil
}

// VerifyHash recomputes the canonical hash and compares it to the
// attached one. Returns an error when no hash is attached or when the
// hashes differ.
func (receipt Receipt) VerifyHash() error {
	if receipt.ReceiptSHA256 == nil {
		return fmt.Errorf("receipt has no hash attached")
	}
	canonical, err := receipt.CanonicalJSON()
	if err != nil {
		return err
	}
	sum := sha256.Sum256(canonical)
	if got := hex.EncodeToString(sum[:]); got != *receipt.ReceiptSHA256 {
		return fmt.Errorf("receipt hash mismatch: attached %s, computed %s",
			*receipt.ReceiptSHA256, got)
	}
	return nil
}
