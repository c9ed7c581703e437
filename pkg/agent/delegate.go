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

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kadirpekel/quill/pkg/llms"
	"github.com/kadirpekel/quill/pkg/permissions"
	"github.com/kadirpekel/quill/pkg/session"
	"github.com/kadirpekel/quill/pkg/tools"
)

// SpawnerConfig is what sub-agent tools need to construct runtimes: the
// parent's provider, full tool registry, and permissions are shared;
// each sub-agent gets its own in-memory session.
type SpawnerConfig struct {
	Provider    llms.Provider
	Tools       *tools.Registry
	Permissions *permissions.Guard
	BasePrompt  string

	MaxTurns         int
	MaxContextTokens int
}

func (c SpawnerConfig) newRuntime(profile Profile, registry *tools.Registry) *Runtime {
	prompt := c.BasePrompt
	if prompt == "" {
		prompt = profile.SystemPrompt
	} else {
		prompt = prompt + "\n\n" + profile.SystemPrompt
	}
	return New(Options{
		Provider:         c.Provider,
		Tools:            registry,
		Permissions:      c.Permissions,
		Session:          session.NewMemorySession(),
		BasePrompt:       prompt,
		MaxTurns:         c.MaxTurns,
		MaxContextTokens: c.MaxContextTokens,
	})
}

// DelegateTool hands one task to a specialised sub-agent and returns its
// output. The sub-agent shares the provider, tool registry, and
// permissions of the parent.
type DelegateTool struct {
	cfg SpawnerConfig
}

// NewDelegateTool builds the delegate tool.
func NewDelegateTool(cfg SpawnerConfig) *DelegateTool {
	return &DelegateTool{cfg: cfg}
}

type delegateArgs struct {
	Profile string `json:"profile" jsonschema:"required,description=The built-in agent profile to use"`
	Task    string `json:"task" jsonschema:"required,description=The task for the sub-agent to complete"`
}

func (t *DelegateTool) Name() string { return "delegate" }

func (t *DelegateTool) Description() string {
	return "Delegate a task to a specialised sub-agent. The sub-agent runs the task " +
		"with a role-specific system prompt and returns its output. Available profiles: " +
		strings.Join(ProfileNames(), ", ") + "."
}

func (t *DelegateTool) Parameters() map[string]any {
	return tools.GenerateSchema[delegateArgs]()
}

func (t *DelegateTool) Call(ctx context.Context, raw json.RawMessage) (tools.ToolResult, error) {
	var args delegateArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return tools.Errf("invalid arguments: %v", err), nil
	}

	profile, ok := ResolveProfile(args.Profile)
	if !ok {
		return tools.Errf("unknown profile %q. Available profiles: %s",
			args.Profile, strings.Join(ProfileNames(), ", ")), nil
	}

	runtime := t.cfg.newRuntime(profile, t.cfg.Tools)
	out, err := runtime.Run(ctx, args.Task)
	if err != nil {
		return tools.Errf("sub-agent failed: %v", err), nil
	}

	return tools.Ok(fmt.Sprintf("[%s sub-agent — %d tool call(s)]\n%s",
		args.Profile, out.ToolCallsMade, out.Result)), nil
}
