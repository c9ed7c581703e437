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

	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/quill/pkg/tools"
)

// DispatchTool spawns multiple sub-agent tasks concurrently and blocks
// until every one finishes. Results are aggregated in dispatch order
// regardless of completion order; individual failures become textual
// sections rather than failing the parent.
type DispatchTool struct {
	cfg SpawnerConfig
}

// NewDispatchTool builds the dispatch tool.
func NewDispatchTool(cfg SpawnerConfig) *DispatchTool {
	return &DispatchTool{cfg: cfg}
}

type dispatchTaskSpec struct {
	Profile string `json:"profile" jsonschema:"required,description=Agent profile to use"`
	Task    string `json:"task" jsonschema:"required,description=The task description for this sub-agent"`
	// Tools optionally restricts the sub-agent to these tool names; omit
	// to inherit the full registry.
	Tools []string `json:"tools,omitempty" jsonschema:"description=Optional allow-list of tool names this sub-agent may use"`
}

type dispatchArgs struct {
	Tasks []dispatchTaskSpec `json:"tasks" jsonschema:"required,description=List of tasks to run in parallel"`
}

func (t *DispatchTool) Name() string { return "dispatch" }

func (t *DispatchTool) Description() string {
	return "Dispatch multiple sub-agent tasks concurrently. All tasks start at the " +
		"same time and run in parallel. Each task can optionally specify which tools " +
		"the sub-agent is allowed to use; omitted means the full registry. Returns " +
		"all results, in input order, once every task completes."
}

func (t *DispatchTool) Parameters() map[string]any {
	return tools.GenerateSchema[dispatchArgs]()
}

func (t *DispatchTool) Call(ctx context.Context, raw json.RawMessage) (tools.ToolResult, error) {
	var args dispatchArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return tools.Errf("invalid arguments: %v", err), nil
	}
	if len(args.Tasks) == 0 {
		return tools.Ok("dispatch called with an empty task list — nothing to do."), nil
	}

	// Validate every entry before spawning anything.
	specs := make([]struct {
		profile  Profile
		spec     dispatchTaskSpec
		registry *tools.Registry
	}, len(args.Tasks))
	for i, spec := range args.Tasks {
		profile, ok := ResolveProfile(spec.Profile)
		if !ok {
			return tools.Errf("tasks[%d]: unknown profile %q. Available: %s",
				i, spec.Profile, strings.Join(ProfileNames(), ", ")), nil
		}
		if spec.Task == "" {
			return tools.Errf("tasks[%d]: task is required", i), nil
		}
		registry := t.cfg.Tools
		if len(spec.Tools) > 0 {
			registry = t.cfg.Tools.Filtered(spec.Tools)
		}
		specs[i] = struct {
			profile  Profile
			spec     dispatchTaskSpec
			registry *tools.Registry
		}{profile, spec, registry}
	}

	sections := make([]string, len(specs))
	g, gctx := errgroup.WithContext(ctx)

	for i := range specs {
		g.Go(func() error {
			s := specs[i]
			runtime := t.cfg.newRuntime(s.profile, s.registry)
			out, err := runtime.Run(gctx, s.spec.Task)
			if err != nil {
				sections[i] = fmt.Sprintf("### [%d] %s — %s\n[ERROR] %v",
					i, s.spec.Profile, s.spec.Task, err)
				return nil
			}
			sections[i] = fmt.Sprintf("### [%d] %s — %s (%d tool call(s))\n%s",
				i, s.spec.Profile, s.spec.Task, out.ToolCallsMade, out.Result)
			return nil
		})
	}
	// Sub-agent errors are captured as sections, so Wait only propagates
	// a cancelled context.
	if err := g.Wait(); err != nil {
		return tools.Errf("dispatch cancelled: %v", err), nil
	}

	return tools.Ok(strings.Join(sections, "\n\n")), nil
}
