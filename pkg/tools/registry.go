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

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kadirpekel/quill/pkg/llms"
	"github.com/kadirpekel/quill/pkg/observability"
)

// Registry maps tool names to tools. Registration replaces duplicates;
// enumeration is deterministic (sorted by name) so the model always sees
// a stable tool list.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool, replacing any prior entry with the same name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns the tool definitions sorted by name.
func (r *Registry) Definitions() []llms.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]llms.ToolDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, llms.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Filtered returns a new registry containing only the named tools. Unknown
// names are skipped. The tool instances are shared, not copied.
func (r *Registry) Filtered(allowed []string) *Registry {
	out := NewRegistry()
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range allowed {
		if t, ok := r.tools[name]; ok {
			out.tools[name] = t
		}
	}
	return out
}

// Execute looks up a tool, validates the arguments against its schema, and
// invokes it under a tracing span.
//
// A missing tool returns an error. Invalid arguments and execution
// failures are returned as error results (err == nil) so the conversation
// can carry them back to the model.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (ToolResult, error) {
	tracer := observability.Tracer("quill.tools")
	ctx, span := tracer.Start(ctx, observability.SpanToolExecution,
		trace.WithAttributes(attribute.String(observability.AttrToolName, name)),
	)
	defer span.End()

	tool, ok := r.Get(name)
	if !ok {
		err := fmt.Errorf("tool %s not found", name)
		span.RecordError(err)
		span.SetStatus(codes.Error, "tool not found")
		return ToolResult{}, err
	}

	if err := ValidateArgs(tool.Parameters(), args); err != nil {
		span.SetStatus(codes.Error, "invalid arguments")
		return Errf("invalid arguments for %s: %v", name, err), nil
	}

	start := time.Now()
	result, err := tool.Call(ctx, args)
	span.SetAttributes(attribute.Int64("tool.duration_ms", time.Since(start).Milliseconds()))

	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case result.IsError:
		span.SetStatus(codes.Error, result.Content)
	default:
		span.SetStatus(codes.Ok, "success")
	}
	return result, err
}
