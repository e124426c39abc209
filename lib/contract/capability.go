// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package contract

import (
	"encoding/json"
	"fmt"
)

// Capability is a discrete feature a backend may support (tools, hooks,
// session management, MCP, etc.).
type Capability string

// Capabilities a backend can advertise in its manifest.
const (
	CapStreaming Capability = "streaming"

	CapToolRead      Capability = "tool_read"
	CapToolWrite     Capability = "tool_write"
	CapToolEdit      Capability = "tool_edit"
	CapToolBash      Capability = "tool_bash"
	CapToolGlob      Capability = "tool_glob"
	CapToolGrep      Capability = "tool_grep"
	CapToolWebSearch Capability = "tool_web_search"
	CapToolWebFetch  Capability = "tool_web_fetch"
	CapToolAskUser   Capability = "tool_ask_user"

	CapHooksPreToolUse  Capability = "hooks_pre_tool_use"
	CapHooksPostToolUse Capability = "hooks_post_tool_use"

	CapSessionResume Capability = "session_resume"
	CapSessionFork   Capability = "session_fork"

	CapCheckpointing Capability = "checkpointing"

	CapStructuredOutputJSONSchema Capability = "structured_output_json_schema"

	CapMCPClient Capability = "mcp_client"
	CapMCPServer Capability = "mcp_server"

	CapToolUse          Capability = "tool_use"
	CapExtendedThinking Capability = "extended_thinking"
	CapImageInput       Capability = "image_input"
	CapPDFInput         Capability = "pdf_input"
	CapCodeExecution    Capability = "code_execution"
	CapLogprobs         Capability = "logprobs"
	CapSeedDeterminism  Capability = "seed_determinism"
	CapStopSequences    Capability = "stop_sequences"
)

// Support describes how well a backend supports a capability. The wire
// form is a bare string for the common levels ("native", "emulated",
// "unsupported") and an object {"restricted": {"reason": "..."}} when the
// capability is disabled by policy or environment.
type Support struct {
	// Level is one of [SupportNative], [SupportEmulated],
	// [SupportUnsupported], or [SupportRestricted].
	Level SupportLevel

	// Reason explains the restriction. Set only when Level is
	// SupportRestricted.
	Reason string
}

// SupportLevel is the discriminant of [Support].
type SupportLevel string

const (
	// SupportNative is first-class support built into the backend.
	SupportNative SupportLevel = "native"
	// SupportEmulated is support via an adapter or polyfill layer.
	SupportEmulated SupportLevel = "emulated"
	// SupportUnsupported means the capability is not available.
	SupportUnsupported SupportLevel = "unsupported"
	// SupportRestricted means the capability works in principle but is
	// disabled by policy or environment.
	SupportRestricted SupportLevel = "restricted"
)

// Native returns a Support with level native.
func Native() Support { return Support{Level: SupportNative} }

// Emulated returns a Support with level emulated.
func Emulated() Support { return Support{Level: SupportEmulated} }

// Unsupported returns a Support with level unsupported.
func Unsupported() Support { return Support{Level: SupportUnsupported} }

// Restricted returns a Support with level restricted and the given reason.
func Restricted(reason string) Support {
	return Support{Level: SupportRestricted, Reason: reason}
}

// MinSupport is a minimum acceptable support threshold in a capability
// requirement.
type MinSupport string

const (
	// MinNative accepts only native support.
	MinNative MinSupport = "native"
	// MinEmulated accepts native or emulated (or restricted) support.
	MinEmulated MinSupport = "emulated"
)

// Satisfies reports whether this support level meets or exceeds min.
// Restricted support satisfies an emulated requirement (the capability
// exists; whether the restriction matters is a policy decision) but never
// a native one.
func (support Support) Satisfies(min MinSupport) bool {
	switch min {
	case MinNative:
		return support.Level == SupportNative
	case MinEmulated:
		switch support.Level {
		case SupportNative, SupportEmulated, SupportRestricted:
			return true
		}
	}
	return false
}

// MarshalJSON encodes the common levels as bare strings and restricted as
// {"restricted": {"reason": ...}}.
func (support Support) MarshalJSON() ([]byte, error) {
	if support.Level == SupportRestricted {
		return json.Marshal(map[string]map[string]string{
			"restricted": {"reason": support.Reason},
		})
	}
	return json.Marshal(string(support.Level))
}

// UnmarshalJSON accepts both wire forms of [Support].
func (support *Support) UnmarshalJSON(data []byte) error {
	var level string
	if err := json.Unmarshal(data, &level); err == nil {
		switch SupportLevel(level) {
		case SupportNative, SupportEmulated, SupportUnsupported:
			support.Level = SupportLevel(level)
			support.Reason = ""
			return nil
		}
		return fmt.Errorf("unknown support level %q", level)
	}
	var restricted struct {
		Restricted *struct {
			Reason string `json:"reason"`
		} `json:"restricted"`
	}
	if err := json.Unmarshal(data, &restricted); err != nil {
		return fmt.Errorf("invalid support level: %w", err)
	}
	if restricted.Restricted == nil {
		return fmt.Errorf("invalid support level object")
	}
	support.Level = SupportRestricted
	support.Reason = restricted.Restricted.Reason
	return nil
}

// Manifest maps each capability to its support level for a backend.
// JSON encoding orders keys lexicographically, so the wire form is stable
// for a given manifest.
type Manifest map[Capability]Support

// CapabilityRequirements is the set of capabilities a work order requires
// from its backend.
type CapabilityRequirements struct {
	// Required lists capability / minimum-support pairs the backend
	// must satisfy.
	Required []CapabilityRequirement `json:"required"`
}

// CapabilityRequirement is a single capability plus its minimum support.
type CapabilityRequirement struct {
	Capability Capability `json:"capability"`
	MinSupport MinSupport `json:"min_support"`
}

// ExecutionMode is how requests are processed: lossless wrapping
// (passthrough) or full dialect translation (mapped).
type ExecutionMode string

const (
	// ModePassthrough passes requests directly to the backend SDK; the
	// stream is bitwise-equivalent to a direct SDK call after removing
	// the protocol framing.
	ModePassthrough ExecutionMode = "passthrough"

	// ModeMapped translates between agent dialects, potentially
	// modifying requests and responses. This is the default.
	ModeMapped ExecutionMode = "mapped"
)
