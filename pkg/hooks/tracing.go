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
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kadirpekel/quill/pkg/observability"
)

// TracingHook maps lifecycle events onto OpenTelemetry spans:
//
//	AgentStart          root span
//	TurnStart/TurnEnd   one child span per turn
//	PreToolUse          tool span, child of the current turn
//	PostToolUse(+Failure) closes the tool span
//	AgentStop           closes the root span
//
// Like every observer hook it always resolves to Continue.
type TracingHook struct {
	sessionID string

	mu        sync.Mutex
	rootCtx   context.Context
	rootSpan  trace.Span
	turnCtx   context.Context
	turnSpan  trace.Span
	toolSpans map[string]trace.Span
}

// NewTracingHook builds a tracing hook for one agent run.
func NewTracingHook(sessionID string) *TracingHook {
	return &TracingHook{
		sessionID: sessionID,
		toolSpans: make(map[string]trace.Span),
	}
}

func (h *TracingHook) Matcher() string { return "" }

func (h *TracingHook) OnEvent(ctx context.Context, event *Event) (Output, error) {
	tracer := observability.Tracer("quill.hooks")

	h.mu.Lock()
	defer h.mu.Unlock()

	switch event.Kind {
	case AgentStart:
		h.rootCtx, h.rootSpan = tracer.Start(ctx, observability.SpanAgentRun,
			trace.WithAttributes(
				attribute.String(observability.AttrSessionID, h.sessionID),
				attribute.String("quill.task", event.Task),
			))

	case TurnStart:
		parent := h.rootCtx
		if parent == nil {
			parent = ctx
		}
		h.turnCtx, h.turnSpan = tracer.Start(parent, observability.SpanAgentTurn,
			trace.WithAttributes(attribute.Int(observability.AttrTurn, event.Turn)))

	case PreToolUse:
		parent := h.turnCtx
		if parent == nil {
			parent = ctx
		}
		_, span := tracer.Start(parent, observability.SpanToolExecution,
			trace.WithAttributes(
				attribute.String(observability.AttrToolName, event.Tool),
				attribute.String(observability.AttrToolUseID, event.UseID),
			))
		h.toolSpans[event.UseID] = span

	case PostToolUse:
		if span, ok := h.toolSpans[event.UseID]; ok {
			span.SetStatus(codes.Ok, "success")
			span.End()
			delete(h.toolSpans, event.UseID)
		}

	case PostToolUseFailure:
		if span, ok := h.toolSpans[event.UseID]; ok {
			span.RecordError(fmt.Errorf("%s", event.ToolError))
			span.SetStatus(codes.Error, event.ToolError)
			span.End()
			delete(h.toolSpans, event.UseID)
		}

	case TurnEnd:
		if h.turnSpan != nil {
			h.turnSpan.End()
			h.turnSpan = nil
			h.turnCtx = nil
		}

	case AgentStop:
		if h.rootSpan != nil {
			h.rootSpan.SetAttributes(attribute.Int("quill.result_chars", len(event.Result)))
			h.rootSpan.End()
			h.rootSpan = nil
			h.rootCtx = nil
		}
	}

	return Continue(), nil
}
