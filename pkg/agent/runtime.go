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

// Package agent implements the streaming turn loop: stream a generation,
// dispatch the tool calls it emits through hooks and guards, append the
// results, and continue until the model produces a final answer.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/kadirpekel/quill/pkg/hooks"
	"github.com/kadirpekel/quill/pkg/llms"
	"github.com/kadirpekel/quill/pkg/permissions"
	"github.com/kadirpekel/quill/pkg/session"
	"github.com/kadirpekel/quill/pkg/skills"
	"github.com/kadirpekel/quill/pkg/tools"
)

// ErrTurnLimitExceeded terminates a task that keeps calling tools past the
// configured turn budget.
var ErrTurnLimitExceeded = errors.New("turn limit exceeded")

const (
	defaultMaxTurns         = 50
	defaultMaxContextTokens = 128_000

	// trimThreshold is the fraction of the context ceiling that triggers
	// oldest-first message trimming.
	trimThreshold = 0.8
)

// Options configures a Runtime. Provider is required; everything else has
// a sensible zero-value default.
type Options struct {
	Provider    llms.Provider
	Tools       *tools.Registry
	Permissions *permissions.Guard
	Hooks       *hooks.Registry
	Skills      *skills.Registry
	Session     session.Conversation

	// BasePrompt is the immutable head of the system message.
	BasePrompt string
	// Persona optionally extends the system message.
	Persona *Persona

	MaxTurns         int
	MaxContextTokens int
}

// Output is the final result of a completed task.
type Output struct {
	Result        string
	ToolCallsMade int
	SessionID     string
}

// Runtime drives one conversation. A session has exactly one live runtime;
// the runtime is single-task per session while sub-agents own their own
// runtimes and sessions.
type Runtime struct {
	provider    llms.Provider
	registry    *tools.Registry
	permissions *permissions.Guard
	hooks       *hooks.Registry
	skills      *skills.Registry
	session     session.Conversation

	basePrompt string
	persona    *Persona

	maxTurns         int
	maxContextTokens int

	inputTokens   atomic.Int64
	outputTokens  atomic.Int64
	toolCallsMade atomic.Int64
}

// New builds a runtime from options.
func New(opts Options) *Runtime {
	r := &Runtime{
		provider:         opts.Provider,
		registry:         opts.Tools,
		permissions:      opts.Permissions,
		hooks:            opts.Hooks,
		skills:           opts.Skills,
		session:          opts.Session,
		basePrompt:       opts.BasePrompt,
		persona:          opts.Persona,
		maxTurns:         opts.MaxTurns,
		maxContextTokens: opts.MaxContextTokens,
	}
	if r.registry == nil {
		r.registry = tools.NewRegistry()
	}
	if r.permissions == nil {
		r.permissions = permissions.NewGuard()
	}
	if r.hooks == nil {
		r.hooks = hooks.NewRegistry()
	}
	if r.session == nil {
		r.session = session.NewMemorySession()
	}
	if r.maxTurns <= 0 {
		r.maxTurns = defaultMaxTurns
	}
	if r.maxContextTokens <= 0 {
		r.maxContextTokens = defaultMaxContextTokens
	}
	return r
}

// SessionID returns the id of the backing session.
func (r *Runtime) SessionID() string { return r.session.ID() }

// SetPersona swaps the active persona. Takes effect at the next turn's
// slot-0 reassembly. Call only between turns: the runtime is single-task
// per session.
func (r *Runtime) SetPersona(p *Persona) { r.persona = p }

// TotalUsage returns the runtime's accumulated token counters. Counters
// only increase.
func (r *Runtime) TotalUsage() llms.TokenUsage {
	return llms.TokenUsage{
		InputTokens:  int(r.inputTokens.Load()),
		OutputTokens: int(r.outputTokens.Load()),
	}
}

// contextUsedFraction reports how much of the context ceiling the
// accumulated usage occupies.
func (r *Runtime) contextUsedFraction() float64 {
	total := float64(r.inputTokens.Load() + r.outputTokens.Load())
	return total / float64(r.maxContextTokens)
}

// systemPrompt resyncs skills and assembles the slot-0 system message:
// base prompt + skill metadata block + persona extension.
func (r *Runtime) systemPrompt() string {
	sections := []string{r.basePrompt}
	if r.skills != nil {
		r.skills.Sync()
		if block := r.skills.MetadataPrompt(); block != "" {
			sections = append(sections, block)
		}
	}
	if r.persona != nil && r.persona.SystemPrompt != "" {
		sections = append(sections, r.persona.SystemPrompt)
	}
	return strings.Join(sections, "\n\n")
}

// persist appends a message to the session. Persistence failures are
// logged and surfaced nowhere else: losing durability must not crash a
// running agent.
func (r *Runtime) persist(ctx context.Context, m llms.Message) {
	if _, err := r.session.Append(ctx, m); err != nil {
		slog.Error("failed to persist message", "session", r.session.ID(), "error", err)
	}
}

func (r *Runtime) recordUsage(ctx context.Context, turn int, usage llms.TokenUsage, messages []llms.Message, generated string) {
	if usage.InputTokens == 0 && usage.OutputTokens == 0 {
		// Providers without usage reporting: estimate so trimming and the
		// /usage display keep working.
		for _, m := range messages {
			usage.InputTokens += EstimateTokens(m.Content)
		}
		usage.OutputTokens = EstimateTokens(generated)
	}
	r.inputTokens.Add(int64(usage.InputTokens))
	r.outputTokens.Add(int64(usage.OutputTokens))
	if err := r.session.RecordUsage(ctx, turn, usage.InputTokens, usage.OutputTokens); err != nil {
		slog.Error("failed to record usage", "session", r.session.ID(), "error", err)
	}
}

// trimContext drops the oldest non-system messages until only system
// messages plus the last two non-system messages remain. A deliberately
// simple lossy policy; tool-call/result pairs may split across the cut.
func trimContext(messages []llms.Message) []llms.Message {
	systemCount := 0
	for _, m := range messages {
		if m.Role == llms.RoleSystem {
			systemCount++
		}
	}
	for len(messages) > systemCount+2 {
		idx := -1
		for i, m := range messages {
			if m.Role != llms.RoleSystem {
				idx = i
				break
			}
		}
		if idx < 0 {
			break
		}
		messages = append(messages[:idx], messages[idx+1:]...)
	}
	return messages
}

// prepare builds the initial working message list: resumed history (when
// the session already has messages) plus the new user task.
func (r *Runtime) prepare(ctx context.Context, task string) ([]llms.Message, error) {
	history, err := r.session.Messages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load session history: %w", err)
	}

	system := llms.SystemMessage(r.systemPrompt())
	user := llms.UserMessage(task)

	if len(history) == 0 {
		r.persist(ctx, system)
		r.persist(ctx, user)
		return []llms.Message{system, user}, nil
	}

	// Resumed session: keep history, refresh slot 0, append the new task.
	if history[0].Role == llms.RoleSystem {
		history[0] = system
	} else {
		history = append([]llms.Message{system}, history...)
	}
	history = append(history, user)
	r.persist(ctx, user)
	return history, nil
}

// callsSummary renders the persisted assistant message for a batch of tool
// calls. The deterministic string form keeps sessions replayable.
func callsSummary(calls []llms.ToolCall) string {
	parts := make([]string, len(calls))
	for i, c := range calls {
		parts[i] = fmt.Sprintf("[tool_call: %s(%s)]", c.Name, string(c.Args))
	}
	return strings.Join(parts, ", ")
}

// Run executes the task to completion without streaming output.
func (r *Runtime) Run(ctx context.Context, task string) (*Output, error) {
	return r.run(ctx, task, nil)
}

// run is the shared turn loop. emit forwards stream chunks to the caller
// and reports false when the caller is gone, which cancels the run at the
// next suspension point (in-flight tool calls finish first).
func (r *Runtime) run(ctx context.Context, task string, emit func(llms.StreamChunk) bool) (*Output, error) {
	messages, err := r.prepare(ctx, task)
	if err != nil {
		return nil, err
	}

	out := r.hooks.Fire(ctx, &hooks.Event{Kind: hooks.AgentStart, Task: task})
	if out.Kind == hooks.OutputStop {
		return &Output{SessionID: r.session.ID()}, nil
	}

	for turn := 0; turn < r.maxTurns; turn++ {
		// Reassemble slot 0 every turn so skills dropped in while the
		// agent runs are picked up.
		messages[0] = llms.SystemMessage(r.systemPrompt())

		if r.contextUsedFraction() > trimThreshold {
			slog.Warn("context near ceiling, trimming oldest messages",
				"session", r.session.ID(),
				"used_pct", int(r.contextUsedFraction()*100))
			messages = trimContext(messages)
		}

		out := r.hooks.Fire(ctx, &hooks.Event{Kind: hooks.TurnStart, Turn: turn})
		switch out.Kind {
		case hooks.OutputStop:
			return &Output{SessionID: r.session.ID(), ToolCallsMade: int(r.toolCallsMade.Load())}, nil
		case hooks.OutputSystemMessage:
			messages = append(messages, llms.SystemMessage(out.Text))
		}

		content, calls, usage, err := r.generate(ctx, messages, emit)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, err
			}
			return nil, fmt.Errorf("provider failed on turn %d: %w", turn, err)
		}

		r.recordUsage(ctx, turn, usage, messages, content+callsSummary(calls))

		if len(calls) == 0 {
			final := llms.AssistantMessage(content)
			messages = append(messages, final)
			r.persist(ctx, final)
			r.hooks.Fire(ctx, &hooks.Event{Kind: hooks.AgentStop, Result: content})
			return &Output{
				Result:        content,
				ToolCallsMade: int(r.toolCallsMade.Load()),
				SessionID:     r.session.ID(),
			}, nil
		}

		summary := llms.AssistantMessage(callsSummary(calls))
		messages = append(messages, summary)
		r.persist(ctx, summary)

		stopped, aborted := r.executeCalls(ctx, calls, &messages, emit)
		if aborted {
			return nil, ctx.Err()
		}

		out = r.hooks.Fire(ctx, &hooks.Event{Kind: hooks.TurnEnd, Turn: turn})
		if stopped || out.Kind == hooks.OutputStop {
			return &Output{SessionID: r.session.ID(), ToolCallsMade: int(r.toolCallsMade.Load())}, nil
		}
	}

	return nil, fmt.Errorf("%w: %d turns", ErrTurnLimitExceeded, r.maxTurns)
}

// generate performs one LLM generation. With emit it consumes the
// provider's stream, forwarding deltas and status chunks; without it the
// blocking Complete path is used.
func (r *Runtime) generate(ctx context.Context, messages []llms.Message, emit func(llms.StreamChunk) bool) (string, []llms.ToolCall, llms.TokenUsage, error) {
	defs := r.registry.Definitions()

	if emit == nil {
		resp, err := r.provider.Complete(ctx, messages, defs)
		if err != nil {
			return "", nil, llms.TokenUsage{}, err
		}
		return resp.Content, resp.ToolCalls, resp.Usage, nil
	}

	stream, err := r.provider.StreamComplete(ctx, messages, defs)
	if err != nil {
		return "", nil, llms.TokenUsage{}, err
	}

	var content strings.Builder
	var calls []llms.ToolCall
	var usage llms.TokenUsage
	sawDone := false

	for chunk := range stream {
		switch chunk.Type {
		case llms.ChunkDelta, llms.ChunkStatus:
			if !emit(chunk) {
				return "", nil, usage, context.Canceled
			}
			if chunk.Type == llms.ChunkDelta {
				content.WriteString(chunk.Text)
			}
		case llms.ChunkToolCall:
			// Accumulate only; execution waits for the generation to end.
			if chunk.Call != nil {
				calls = append(calls, *chunk.Call)
			}
		case llms.ChunkDone:
			if chunk.Usage != nil {
				usage = *chunk.Usage
			}
			sawDone = true
			if !emit(chunk) {
				return "", nil, usage, context.Canceled
			}
		}
	}

	if !sawDone {
		if ctx.Err() != nil {
			return "", nil, usage, context.Canceled
		}
		return "", nil, usage, llms.NewProtocolError(r.provider.Name(), llms.ErrStreamClosed)
	}
	return content.String(), calls, usage, nil
}

// executeCalls runs a turn's tool calls sequentially in emission order.
// Returns stopped=true when a hook requested a halt and aborted=true when
// the caller cancelled.
func (r *Runtime) executeCalls(ctx context.Context, calls []llms.ToolCall, messages *[]llms.Message, emit func(llms.StreamChunk) bool) (stopped, aborted bool) {
	appendResult := func(content, callID string) {
		m := llms.ToolResultMessage(content, callID)
		*messages = append(*messages, m)
		r.persist(ctx, m)
	}

	for _, call := range calls {
		if emit != nil && ctx.Err() != nil {
			return false, true
		}

		useID := call.ID
		if useID == "" {
			useID = uuid.NewString()
			call.ID = useID
		}
		r.toolCallsMade.Add(1)

		out := r.hooks.Fire(ctx, &hooks.Event{
			Kind:  hooks.PreToolUse,
			Tool:  call.Name,
			Args:  call.Args,
			UseID: useID,
		})
		switch out.Kind {
		case hooks.OutputDeny:
			appendResult(fmt.Sprintf("Tool call denied: %s", out.Reason), call.ID)
			continue
		case hooks.OutputModifyArgs:
			call.Args = out.Args
		}

		if !r.permissions.IsAllowed(call.Name) {
			appendResult(fmt.Sprintf("Permission denied for tool: %s", call.Name), call.ID)
			continue
		}

		if _, ok := r.registry.Get(call.Name); !ok {
			appendResult(fmt.Sprintf("Tool not found: %s", call.Name), call.ID)
			continue
		}

		if emit != nil {
			emit(llms.StreamChunk{Type: llms.ChunkStatus, Text: fmt.Sprintf("running %s", call.Name)})
		}

		result, err := r.registry.Execute(ctx, call.Name, call.Args)
		if err != nil || result.IsError {
			errText := result.Content
			if err != nil {
				errText = err.Error()
			}
			r.hooks.Fire(ctx, &hooks.Event{
				Kind:      hooks.PostToolUseFailure,
				Tool:      call.Name,
				Args:      call.Args,
				ToolError: errText,
				UseID:     useID,
			})
			appendResult(fmt.Sprintf("Error: %s", errText), call.ID)
			continue
		}

		content := result.Content
		post := r.hooks.Fire(ctx, &hooks.Event{
			Kind:       hooks.PostToolUse,
			Tool:       call.Name,
			Args:       call.Args,
			ToolResult: content,
			UseID:      useID,
		})
		switch post.Kind {
		case hooks.OutputAppendContext:
			content += "\n\n" + post.Text
		case hooks.OutputSystemMessage:
			*messages = append(*messages, llms.SystemMessage(post.Text))
		case hooks.OutputStop:
			stopped = true
		}
		appendResult(content, call.ID)

		if stopped {
			return true, false
		}
	}
	return stopped, false
}
