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

package sandbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kadirpekel/quill/pkg/tools"
)

// SandboxedTool wraps any tool with sandbox enforcement, dispatching on the
// tool name:
//
//   - read / glob / grep: denied-read-path check on the path argument
//   - write: allowed-write-path check on the path argument
//   - bash: executed through the sandbox launcher (proxy env + profile)
//   - everything else: passes through unchanged
type SandboxedTool struct {
	inner    tools.Tool
	config   *Config
	launcher *Launcher
}

// Wrap builds the sandbox wrapper around inner.
func Wrap(inner tools.Tool, config *Config, proxyPort int) *SandboxedTool {
	return &SandboxedTool{
		inner:    inner,
		config:   config,
		launcher: NewLauncher(config, proxyPort),
	}
}

// WrapRegistry returns a new registry with every tool wrapped.
func WrapRegistry(registry *tools.Registry, config *Config, proxyPort int) *tools.Registry {
	out := tools.NewRegistry()
	for _, name := range registry.Names() {
		if tool, ok := registry.Get(name); ok {
			out.Register(Wrap(tool, config, proxyPort))
		}
	}
	return out
}

func (t *SandboxedTool) Name() string               { return t.inner.Name() }
func (t *SandboxedTool) Description() string        { return t.inner.Description() }
func (t *SandboxedTool) Parameters() map[string]any { return t.inner.Parameters() }

func (t *SandboxedTool) Call(ctx context.Context, args json.RawMessage) (tools.ToolResult, error) {
	switch t.inner.Name() {
	case "read", "glob", "grep":
		if path := pathArg(args); path != "" {
			if err := t.config.CheckReadPath(path); err != nil {
				return tools.Errf("%v", err), nil
			}
		}
		return t.inner.Call(ctx, args)

	case "write":
		if path := pathArg(args); path != "" {
			if err := t.config.CheckWritePath(path); err != nil {
				return tools.Errf("%v", err), nil
			}
		}
		return t.inner.Call(ctx, args)

	case "bash":
		return t.callBash(ctx, args)

	default:
		return t.inner.Call(ctx, args)
	}
}

func (t *SandboxedTool) callBash(ctx context.Context, args json.RawMessage) (tools.ToolResult, error) {
	var parsed struct {
		Command     string `json:"command"`
		TimeoutSecs int    `json:"timeout_secs"`
	}
	if err := json.Unmarshal(args, &parsed); err != nil || parsed.Command == "" {
		return t.inner.Call(ctx, args)
	}

	timeout := 30 * time.Second
	if parsed.TimeoutSecs > 0 {
		timeout = time.Duration(parsed.TimeoutSecs) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stdout, stderr, err := t.launcher.Run(ctx, parsed.Command)
	if ctx.Err() == context.DeadlineExceeded {
		return tools.Errf("command timed out after %s", timeout), nil
	}
	return tools.FormatCommandOutput(stdout, stderr, err), nil
}

func pathArg(args json.RawMessage) string {
	var parsed struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(args, &parsed); err != nil {
		return ""
	}
	return parsed.Path
}
