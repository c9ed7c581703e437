// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package hooks dispatches agent lifecycle events to registered observers
// and resolves their outputs into a single decision.
package hooks

import (
	"context"
	"encoding/json"
)

// EventKind discriminates lifecycle events.
type EventKind string

const (
	// AgentStart fires once before the first LLM call.
	AgentStart EventKind = "agent_start"
	// AgentStop fires once after the agent produces its final response.
	AgentStop EventKind = "agent_stop"
	// TurnStart fires at the top of each agent turn.
	TurnStart EventKind = "turn_start"
	// TurnEnd fires at the bottom of each agent turn.
	TurnEnd EventKind = "turn_end"
	// PreToolUse fires before a tool executes; hooks may block or modify
	// the call.
	PreToolUse EventKind = "pre_tool_use"
	// PostToolUse fires after a tool succeeds.
	PostToolUse EventKind = "post_tool_use"
	// PostToolUseFailure fires after a tool returns an error.
	PostToolUseFailure EventKind = "post_tool_use_failure"
)

// Event is the payload passed to every hook. Events are ephemeral: they
// live within one turn.
type Event struct {
	Kind EventKind `json:"kind"`

	// Task is set on AgentStart; Result on AgentStop.
	Task   string `json:"task,omitempty"`
	Result string `json:"result,omitempty"`

	// Turn is set on TurnStart and TurnEnd.
	Turn int `json:"turn,omitempty"`

	// Tool event fields.
	Tool       string          `json:"tool,omitempty"`
	Args       json.RawMessage `json:"args,omitempty"`
	ToolResult string          `json:"tool_result,omitempty"`
	ToolError  string          `json:"tool_error,omitempty"`
	UseID      string          `json:"use_id,omitempty"`
}

// ToolName returns the tool name for tool-bearing events.
func (e *Event) ToolName() (string, bool) {
	switch e.Kind {
	case PreToolUse, PostToolUse, PostToolUseFailure:
		return e.Tool, true
	default:
		return "", false
	}
}

// OutputKind discriminates hook outputs.
type OutputKind string

const (
	// OutputContinue expresses no opinion.
	OutputContinue OutputKind = "continue"
	// OutputDeny blocks the tool call (PreToolUse only).
	OutputDeny OutputKind = "deny"
	// OutputModifyArgs replaces the tool arguments (PreToolUse only).
	OutputModifyArgs OutputKind = "modify_args"
	// OutputAppendContext appends text to the tool result (PostToolUse).
	OutputAppendContext OutputKind = "append_context"
	// OutputSystemMessage injects a system message this turn.
	OutputSystemMessage OutputKind = "system_message"
	// OutputStop halts the agent after this event.
	OutputStop OutputKind = "stop"
)

// Output is what a hook returns to influence agent behaviour.
type Output struct {
	Kind   OutputKind      `json:"kind"`
	Reason string          `json:"reason,omitempty"`
	Args   json.RawMessage `json:"args,omitempty"`
	Text   string          `json:"text,omitempty"`
}

// Continue is the no-opinion output.
func Continue() Output { return Output{Kind: OutputContinue} }

// Deny blocks a tool call with a reason.
func Deny(reason string) Output { return Output{Kind: OutputDeny, Reason: reason} }

// ModifyArgs substitutes tool arguments before execution.
func ModifyArgs(args json.RawMessage) Output { return Output{Kind: OutputModifyArgs, Args: args} }

// AppendContext appends text to a tool result.
func AppendContext(text string) Output { return Output{Kind: OutputAppendContext, Text: text} }

// SystemMessage injects an extra system message into the conversation.
func SystemMessage(text string) Output { return Output{Kind: OutputSystemMessage, Text: text} }

// Stop halts the agent.
func Stop() Output { return Output{Kind: OutputStop} }

// Hook observes lifecycle events. Implementations must be safe for
// concurrent invocation and may perform I/O; dispatch suspends the turn
// until every matching hook returns.
type Hook interface {
	// Matcher returns an optional regex matched against the tool name for
	// tool-bearing events. Empty means the hook fires for every
	// occurrence of the event.
	Matcher() string

	OnEvent(ctx context.Context, event *Event) (Output, error)
}
