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
	"context"
	"log/slog"
	"regexp"
)

type entry struct {
	hook Hook
	// re is nil when the hook has no matcher; badMatcher marks a matcher
	// that failed to compile (the hook then never matches tool events).
	re         *regexp.Regexp
	badMatcher bool
}

// Registry holds hooks in registration order and resolves their outputs.
type Registry struct {
	entries []entry
}

// NewRegistry creates an empty hook registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a hook. The matcher regex is compiled once here;
// invalid patterns are logged and the hook is skipped for tool events.
func (r *Registry) Register(h Hook) {
	e := entry{hook: h}
	if pattern := h.Matcher(); pattern != "" {
		re, err := regexp.Compile(pattern)
		if err != nil {
			slog.Warn("invalid hook matcher pattern", "pattern", pattern, "error", err)
			e.badMatcher = true
		} else {
			e.re = re
		}
	}
	r.entries = append(r.entries, e)
}

// Len returns the number of registered hooks.
func (r *Registry) Len() int { return len(r.entries) }

func (e *entry) matches(event *Event) bool {
	toolName, isTool := event.ToolName()
	if !isTool {
		// Non-tool events bypass the matcher.
		return true
	}
	if e.badMatcher {
		return false
	}
	if e.re == nil {
		return true
	}
	return e.re.MatchString(toolName)
}

// Fire dispatches the event to all matching hooks in registration order
// and returns the resolved output.
//
// Resolution:
//   - PreToolUse: first Deny dominates; else first ModifyArgs; else Continue.
//   - All other events: first Stop; else first SystemMessage; else first
//     AppendContext; else Continue.
//
// Hook errors are logged and treated as Continue — never fatal, never
// blocking other hooks.
func (r *Registry) Fire(ctx context.Context, event *Event) Output {
	var outputs []Output
	for i := range r.entries {
		e := &r.entries[i]
		if !e.matches(event) {
			continue
		}
		out, err := e.hook.OnEvent(ctx, event)
		if err != nil {
			slog.Warn("hook error", "event", event.Kind, "tool", event.Tool, "error", err)
			continue
		}
		outputs = append(outputs, out)
	}

	if event.Kind == PreToolUse {
		return resolvePreToolUse(outputs)
	}
	return resolveGeneral(outputs)
}

// Deny > ModifyArgs > Continue.
func resolvePreToolUse(outputs []Output) Output {
	var modify *Output
	for i := range outputs {
		switch outputs[i].Kind {
		case OutputDeny:
			return outputs[i]
		case OutputModifyArgs:
			if modify == nil {
				modify = &outputs[i]
			}
		}
	}
	if modify != nil {
		return *modify
	}
	return Continue()
}

// Stop > SystemMessage > AppendContext > Continue.
func resolveGeneral(outputs []Output) Output {
	var systemMsg, appendCtx *Output
	for i := range outputs {
		switch outputs[i].Kind {
		case OutputStop:
			return outputs[i]
		case OutputSystemMessage:
			if systemMsg == nil {
				systemMsg = &outputs[i]
			}
		case OutputAppendContext:
			if appendCtx == nil {
				appendCtx = &outputs[i]
			}
		}
	}
	if systemMsg != nil {
		return *systemMsg
	}
	if appendCtx != nil {
		return *appendCtx
	}
	return Continue()
}

// HookFunc adapts a function (with optional matcher) into a Hook.
type HookFunc struct {
	Pattern string
	Fn      func(ctx context.Context, event *Event) (Output, error)
}

func (h HookFunc) Matcher() string { return h.Pattern }

func (h HookFunc) OnEvent(ctx context.Context, event *Event) (Output, error) {
	return h.Fn(ctx, event)
}
