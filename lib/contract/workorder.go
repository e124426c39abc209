// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package contract

import "encoding/json"

// WorkOrder is a single unit of work handed to a backend.
//
// This is intentionally not a chat session. Sessions can exist underneath,
// but the contract is step-oriented: one work order, one run, one receipt.
type WorkOrder struct {
	// ID uniquely identifies this work order.
	ID string `json:"id"`

	// Task is the human intent.
	Task string `json:"task"`

	// Lane selects the strategy for how the agent produces output.
	Lane ExecutionLane `json:"lane"`

	// Workspace describes the workspace root, staging mode, and globs.
	Workspace WorkspaceSpec `json:"workspace"`

	// Context holds pre-loaded context files and snippets.
	Context ContextPacket `json:"context"`

	// Policy restricts tools, paths, and network access.
	Policy PolicyProfile `json:"policy"`

	// Requirements lists capabilities the backend must satisfy.
	Requirements CapabilityRequirements `json:"requirements"`

	// Config holds runtime-level knobs (model, budget, vendor flags).
	Config RuntimeConfig `json:"config"`
}

// ExecutionLane is the strategy for how the agent produces its output.
type ExecutionLane string

const (
	// LanePatchFirst means the agent proposes a patch/diff and never
	// mutates the user's repository directly.
	LanePatchFirst ExecutionLane = "patch_first"

	// LaneWorkspaceFirst means the agent may mutate a workspace (often
	// a staged worktree).
	LaneWorkspaceFirst ExecutionLane = "workspace_first"
)

// WorkspaceSpec describes the workspace root, staging mode, and
// include/exclude globs for a step.
type WorkspaceSpec struct {
	// Root is the root folder for the step.
	Root string `json:"root"`

	// Mode controls how the runtime treats the workspace.
	Mode WorkspaceMode `json:"mode"`

	// Include lists optional include globs, relative to Root.
	Include []string `json:"include"`

	// Exclude lists optional exclude globs, relative to Root.
	Exclude []string `json:"exclude"`
}

// WorkspaceMode is how the runtime treats the workspace before handing it
// to a backend.
type WorkspaceMode string

const (
	// WorkspacePassThrough uses the workspace as-is.
	WorkspacePassThrough WorkspaceMode = "pass_through"

	// WorkspaceStaged creates a sanitized copy (or worktree) before
	// running tools.
	WorkspaceStaged WorkspaceMode = "staged"
)

// ContextPacket holds pre-loaded context files and snippets attached to a
// work order.
type ContextPacket struct {
	// Files lists explicit file paths to include, relative to the
	// workspace root.
	Files []string `json:"files"`

	// Snippets holds named text fragments (for UIs or preloaded context).
	Snippets []ContextSnippet `json:"snippets"`
}

// ContextSnippet is a named text fragment in a [ContextPacket].
type ContextSnippet struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// RuntimeConfig carries runtime-level knobs: model selection, vendor
// flags, budget caps.
type RuntimeConfig struct {
	// Model is the preferred backend/model identifier, if any.
	Model *string `json:"model"`

	// Vendor holds vendor-specific flags passed through adapters
	// untouched.
	Vendor map[string]json.RawMessage `json:"vendor"`

	// Env is the environment variables for the runtime.
	Env map[string]string `json:"env"`

	// MaxBudgetUSD is a best-effort hard cap on cost.
	MaxBudgetUSD *float64 `json:"max_budget_usd"`

	// MaxTurns is a best-effort hard cap on turns/iterations.
	MaxTurns *uint32 `json:"max_turns"`
}

// PolicyProfile is the security policy for a run: tool allow/deny lists,
// path restrictions, network rules. An empty profile permits everything.
type PolicyProfile struct {
	// AllowedTools is the tool allowlist. Empty means backend default.
	AllowedTools []string `json:"allowed_tools"`

	// DisallowedTools is the tool denylist.
	DisallowedTools []string `json:"disallowed_tools"`

	// DenyRead denies reading paths matching any of these globs.
	DenyRead []string `json:"deny_read"`

	// DenyWrite denies writing or editing paths matching these globs.
	DenyWrite []string `json:"deny_write"`

	// AllowNetwork is the network allowlist (domains or patterns).
	AllowNetwork []string `json:"allow_network"`

	// DenyNetwork is the network denylist (domains or patterns).
	DenyNetwork []string `json:"deny_network"`

	// RequireApprovalFor lists tools that need explicit approval.
	RequireApprovalFor []string `json:"require_approval_for"`
}
