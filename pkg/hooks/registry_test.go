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

package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func preToolEvent(tool string) *Event {
	return &Event{
		Kind:  PreToolUse,
		Tool:  tool,
		Args:  json.RawMessage(`{"cmd":"ls"}`),
		UseID: "id-1",
	}
}

func postToolEvent(tool string) *Event {
	return &Event{
		Kind:       PostToolUse,
		Tool:       tool,
		ToolResult: "ok",
		UseID:      "id-1",
	}
}

func fixed(out Output) Hook {
	return HookFunc{Fn: func(context.Context, *Event) (Output, error) { return out, nil }}
}

func fixedMatched(out Output, matcher string) Hook {
	return HookFunc{Pattern: matcher, Fn: func(context.Context, *Event) (Output, error) { return out, nil }}
}

func TestEmptyRegistryReturnsContinue(t *testing.T) {
	reg := NewRegistry()
	out := reg.Fire(context.Background(), preToolEvent("bash"))
	assert.Equal(t, OutputContinue, out.Kind)
}

func TestPreToolDenyWinsOverModify(t *testing.T) {
	reg := NewRegistry()
	reg.Register(fixed(ModifyArgs(json.RawMessage(`{"cmd":"echo"}`))))
	reg.Register(fixed(Deny("blocked")))

	out := reg.Fire(context.Background(), preToolEvent("bash"))
	assert.Equal(t, OutputDeny, out.Kind)
	assert.Equal(t, "blocked", out.Reason)
}

func TestPreToolFirstModifyWins(t *testing.T) {
	first := json.RawMessage(`{"cmd":"first"}`)
	second := json.RawMessage(`{"cmd":"second"}`)

	reg := NewRegistry()
	reg.Register(fixed(Continue()))
	reg.Register(fixed(ModifyArgs(first)))
	reg.Register(fixed(ModifyArgs(second)))

	out := reg.Fire(context.Background(), preToolEvent("bash"))
	require.Equal(t, OutputModifyArgs, out.Kind)
	assert.JSONEq(t, string(first), string(out.Args))
}

func TestPreToolAllContinue(t *testing.T) {
	reg := NewRegistry()
	reg.Register(fixed(Continue()))
	reg.Register(fixed(Continue()))

	out := reg.Fire(context.Background(), preToolEvent("bash"))
	assert.Equal(t, OutputContinue, out.Kind)
}

func TestGeneralStopDominates(t *testing.T) {
	reg := NewRegistry()
	reg.Register(fixed(SystemMessage("msg")))
	reg.Register(fixed(Stop()))

	out := reg.Fire(context.Background(), postToolEvent("bash"))
	assert.Equal(t, OutputStop, out.Kind)
}

func TestGeneralSystemMessageBeatsAppendContext(t *testing.T) {
	reg := NewRegistry()
	reg.Register(fixed(AppendContext("ctx")))
	reg.Register(fixed(SystemMessage("sys")))

	out := reg.Fire(context.Background(), postToolEvent("bash"))
	assert.Equal(t, OutputSystemMessage, out.Kind)
	assert.Equal(t, "sys", out.Text)
}

func TestGeneralAppendContextWhenAlone(t *testing.T) {
	reg := NewRegistry()
	reg.Register(fixed(AppendContext("extra")))

	out := reg.Fire(context.Background(), postToolEvent("bash"))
	assert.Equal(t, OutputAppendContext, out.Kind)
	assert.Equal(t, "extra", out.Text)
}

func TestMatcherFiltersByToolName(t *testing.T) {
	reg := NewRegistry()
	reg.Register(fixedMatched(Deny("no writes"), "write"))

	out := reg.Fire(context.Background(), preToolEvent("bash"))
	assert.Equal(t, OutputContinue, out.Kind)

	out = reg.Fire(context.Background(), preToolEvent("write"))
	assert.Equal(t, OutputDeny, out.Kind)
}

func TestMatcherRegexAlternation(t *testing.T) {
	reg := NewRegistry()
	reg.Register(fixedMatched(Deny("blocked"), "write|edit"))

	assert.Equal(t, OutputDeny, reg.Fire(context.Background(), preToolEvent("write")).Kind)
	assert.Equal(t, OutputDeny, reg.Fire(context.Background(), preToolEvent("edit")).Kind)
	assert.Equal(t, OutputContinue, reg.Fire(context.Background(), preToolEvent("read")).Kind)
}

func TestMatcherIgnoredForNonToolEvents(t *testing.T) {
	reg := NewRegistry()
	reg.Register(fixedMatched(Stop(), "bash"))

	out := reg.Fire(context.Background(), &Event{Kind: TurnStart, Turn: 0})
	assert.Equal(t, OutputStop, out.Kind)
}

func TestInvalidMatcherNeverMatchesToolEvents(t *testing.T) {
	reg := NewRegistry()
	reg.Register(fixedMatched(Deny("broken"), "("))

	out := reg.Fire(context.Background(), preToolEvent("bash"))
	assert.Equal(t, OutputContinue, out.Kind)
}

func TestErroringHookIsSkippedNotFatal(t *testing.T) {
	boom := HookFunc{Fn: func(context.Context, *Event) (Output, error) {
		return Output{}, errors.New("hook exploded")
	}}

	reg := NewRegistry()
	reg.Register(boom)
	out := reg.Fire(context.Background(), preToolEvent("bash"))
	assert.Equal(t, OutputContinue, out.Kind)

	reg.Register(fixed(Deny("blocked")))
	out = reg.Fire(context.Background(), preToolEvent("bash"))
	assert.Equal(t, OutputDeny, out.Kind)
}

func TestEventToolName(t *testing.T) {
	name, ok := preToolEvent("bash").ToolName()
	assert.True(t, ok)
	assert.Equal(t, "bash", name)

	_, ok = (&Event{Kind: AgentStart, Task: "t"}).ToolName()
	assert.False(t, ok)
	_, ok = (&Event{Kind: TurnEnd, Turn: 3}).ToolName()
	assert.False(t, ok)
}

func TestConfiguredHookActions(t *testing.T) {
	reg := NewRegistry()
	RegisterConfigured(reg, &ConfigFile{Hooks: []Entry{
		{Name: "no-bash", Event: "pre_tool_use", Matcher: "bash", Action: "deny", Reason: "nope"},
		{Name: "stop-after-turn", Event: "turn_end", Action: "stop"},
	}})

	out := reg.Fire(context.Background(), preToolEvent("bash"))
	assert.Equal(t, OutputDeny, out.Kind)
	assert.Equal(t, "nope", out.Reason)

	// A different event tag resolves to Continue for the deny hook.
	out = reg.Fire(context.Background(), postToolEvent("bash"))
	assert.Equal(t, OutputContinue, out.Kind)

	out = reg.Fire(context.Background(), &Event{Kind: TurnEnd, Turn: 1})
	assert.Equal(t, OutputStop, out.Kind)
}

func TestConfigFileAddReplacesByName(t *testing.T) {
	cfg := &ConfigFile{}
	cfg.Add(Entry{Name: "a", Event: "turn_start", Action: "log"})
	cfg.Add(Entry{Name: "a", Event: "turn_end", Action: "stop"})

	require.Len(t, cfg.Hooks, 1)
	assert.Equal(t, "turn_end", cfg.Hooks[0].Event)

	assert.True(t, cfg.Remove("a"))
	assert.False(t, cfg.Remove("a"))
}

func TestTelemetryHookWritesJSONL(t *testing.T) {
	var buf bytes.Buffer
	hook := NewTelemetryHook(&buf, "sess-1")

	out, err := hook.OnEvent(context.Background(), preToolEvent("bash"))
	require.NoError(t, err)
	assert.Equal(t, OutputContinue, out.Kind)

	var env map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &env))
	assert.Equal(t, "pre_tool_use", env["event_type"])
	assert.Equal(t, "sess-1", env["session_id"])
}
