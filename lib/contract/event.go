// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package contract

import (
	"encoding/json"
	"fmt"
	"time"
)

// AgentEvent is a timestamped event emitted by an agent during a run.
//
// The wire form flattens the kind into the event object under a "type"
// discriminator:
//
//	{"ts":"2026-02-10T15:30:00Z","type":"assistant_delta","text":"hi"}
//
// Note the discriminator here is "type", distinct from the protocol
// envelope which uses "t".
type AgentEvent struct {
	// TS is when the event was emitted.
	TS time.Time

	// Kind is the event payload. Exactly one concrete kind per event.
	Kind EventKind

	// Ext carries passthrough-mode raw data. In passthrough mode the
	// key "raw_message" holds the verbatim SDK message for lossless
	// reconstruction. Nil for mapped-mode events.
	Ext map[string]json.RawMessage
}

// EventKind is the closed set of agent event payloads. Implementations
// are the *Event structs in this package.
type EventKind interface {
	eventType() string
}

// RunStartedEvent signals that the agent run has started.
type RunStartedEvent struct {
	Message string `json:"message"`
}

// RunCompletedEvent signals that the agent run has completed.
type RunCompletedEvent struct {
	Message string `json:"message"`
}

// AssistantDeltaEvent is incremental assistant text (a streaming token).
type AssistantDeltaEvent struct {
	Text string `json:"text"`
}

// AssistantMessageEvent is a complete assistant message.
type AssistantMessageEvent struct {
	Text string `json:"text"`
}

// ToolCallEvent is a tool invocation by the agent.
type ToolCallEvent struct {
	// ToolName is the name of the tool being called.
	ToolName string `json:"tool_name"`

	// ToolUseID uniquely identifies this tool use, when the backend
	// assigns one.
	ToolUseID *string `json:"tool_use_id"`

	// ParentToolUseID identifies the parent tool use for nested calls.
	ParentToolUseID *string `json:"parent_tool_use_id"`

	// Input is the JSON input passed to the tool.
	Input json.RawMessage `json:"input"`
}

// ToolResultEvent is the result returned from a tool invocation.
type ToolResultEvent struct {
	// ToolName is the tool that produced this result.
	ToolName string `json:"tool_name"`

	// ToolUseID correlates to the originating tool call.
	ToolUseID *string `json:"tool_use_id"`

	// Output is the JSON output from the tool.
	Output json.RawMessage `json:"output"`

	// IsError reports whether the tool itself reported an error.
	IsError bool `json:"is_error"`
}

// FileChangedEvent records a file created or modified in the workspace.
type FileChangedEvent struct {
	// Path to the changed file, relative to the workspace root.
	Path string `json:"path"`

	// Summary is a human-readable description of the change.
	Summary string `json:"summary"`
}

// CommandExecutedEvent records a shell command run by the agent.
type CommandExecutedEvent struct {
	Command string `json:"command"`

	// ExitCode is the process exit code, when available.
	ExitCode *int `json:"exit_code"`

	// OutputPreview is a truncated preview of the command output.
	OutputPreview *string `json:"output_preview"`
}

// WarningEvent is a non-fatal warning emitted during the run.
type WarningEvent struct {
	Message string `json:"message"`
}

// ErrorEvent is a fatal error emitted during the run. The run itself
// still terminates through a final or fatal envelope; this event records
// the error in the trace.
type ErrorEvent struct {
	Message string `json:"message"`
}

func (RunStartedEvent) eventType() string       { return "run_started" }
func (RunCompletedEvent) eventType() string     { return "run_completed" }
func (AssistantDeltaEvent) eventType() string   { return "assistant_delta" }
func (AssistantMessageEvent) eventType() string { return "assistant_message" }
func (ToolCallEvent) eventType() string         { return "tool_call" }
func (ToolResultEvent) eventType() string       { return "tool_result" }
func (FileChangedEvent) eventType() string      { return "file_changed" }
func (CommandExecutedEvent) eventType() string  { return "command_executed" }
func (WarningEvent) eventType() string          { return "warning" }
func (ErrorEvent) eventType() string            { return "error" }

// eventKindFor returns a fresh, addressable kind value for a wire type
// string, or nil for an unknown type.
func eventKindFor(wireType string) EventKind {
	switch wireType {
	case "run_started":
		return &RunStartedEvent{}
	case "run_completed":
		return &RunCompletedEvent{}
	case "assistant_delta":
		return &AssistantDeltaEvent{}
	case "assistant_message":
		return &AssistantMessageEvent{}
	case "tool_call":
		return &ToolCallEvent{}
	case "tool_result":
		return &ToolResultEvent{}
	case "file_changed":
		return &FileChangedEvent{}
	case "command_executed":
		return &CommandExecutedEvent{}
	case "warning":
		return &WarningEvent{}
	case "error":
		return &ErrorEvent{}
	}
	return nil
}

// MarshalJSON flattens the kind fields into the event object alongside
// "ts", "type", and (when present) "ext".
func (event AgentEvent) MarshalJSON() ([]byte, error) {
	if event.Kind == nil {
		return nil, fmt.Errorf("agent event has no kind")
	}

	kindJSON, err := json.Marshal(event.Kind)
	if err != nil {
		return nil, fmt.Errorf("marshaling event kind: %w", err)
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(kindJSON, &fields); err != nil {
		return nil, fmt.Errorf("flattening event kind: %w", err)
	}

	tsJSON, err := json.Marshal(event.TS)
	if err != nil {
		return nil, err
	}
	fields["ts"] = tsJSON
	typeJSON, err := json.Marshal(event.Kind.eventType())
	if err != nil {
		return nil, err
	}
	fields["type"] = typeJSON
	if event.Ext != nil {
		extJSON, err := json.Marshal(event.Ext)
		if err != nil {
			return nil, err
		}
		fields["ext"] = extJSON
	}
	return json.Marshal(fields)
}

// UnmarshalJSON reads the "type" discriminator and decodes the remaining
// fields into the matching kind struct. Unknown extra fields are ignored.
func (event *AgentEvent) UnmarshalJSON(data []byte) error {
	var header struct {
		TS   time.Time                  `json:"ts"`
		Type *string                    `json:"type"`
		Ext  map[string]json.RawMessage `json:"ext"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return fmt.Errorf("decoding agent event: %w", err)
	}
	if header.Type == nil {
		return fmt.Errorf("agent event is missing \"type\"")
	}

	kind := eventKindFor(*header.Type)
	if kind == nil {
		return fmt.Errorf("unknown agent event type %q", *header.Type)
	}
	if err := json.Unmarshal(data, kind); err != nil {
		return fmt.Errorf("decoding %q event: %w", *header.Type, err)
	}

	event.TS = header.TS
	event.Kind = derefKind(kind)
	event.Ext = header.Ext
	return nil
}

// derefKind converts the pointer used for decoding back to the value form
// carried in AgentEvent.Kind, so that events compare and marshal the same
// whether constructed in code or decoded from the wire.
func derefKind(kind EventKind) EventKind {
	switch concrete := kind.(type) {
	case *RunStartedEvent:
		return *concrete
	case *RunCompletedEvent:
		return *concrete
	case *AssistantDeltaEvent:
		return *concrete
	case *AssistantMessageEvent:
		return *concrete
	case *ToolCallEvent:
		return *concrete
	case *ToolResultEvent:
		return *concrete
	case *FileChangedEvent:
		return *concrete
	case *CommandExecutedEvent:
		return *concrete
	case *WarningEvent:
		return *concrete
	case *ErrorEvent:
		return *concrete
	}
	return kind
}
