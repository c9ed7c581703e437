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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"
)

const defaultCommandTimeout = 30 * time.Second

// CommandTool runs a shell command and captures its output. When the agent
// is sandboxed, invocations are routed through the sandbox launch wrapper
// instead of reaching this implementation directly.
type CommandTool struct{}

type commandArgs struct {
	Command     string `json:"command" jsonschema:"required,description=Shell command to execute"`
	TimeoutSecs int    `json:"timeout_secs,omitempty" jsonschema:"description=Timeout in seconds (default 30)"`
}

func (CommandTool) Name() string { return "bash" }

func (CommandTool) Description() string {
	return "Execute a shell command and return its stdout and stderr. " +
		"Commands run with a timeout; long-running work should be broken into steps."
}

func (CommandTool) Parameters() map[string]any {
	return GenerateSchema[commandArgs]()
}

func (CommandTool) Call(ctx context.Context, raw json.RawMessage) (ToolResult, error) {
	var args commandArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return Errf("invalid arguments: %v", err), nil
	}

	timeout := defaultCommandTimeout
	if args.TimeoutSecs > 0 {
		timeout = time.Duration(args.TimeoutSecs) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "bash", "-c", args.Command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return Errf("command timed out after %s", timeout), nil
	}

	return FormatCommandOutput(stdout.Bytes(), stderr.Bytes(), err), nil
}

// FormatCommandOutput renders process output as a tool result. Shared with
// the sandbox launch wrapper so sandboxed and plain runs read identically.
func FormatCommandOutput(stdout, stderr []byte, runErr error) ToolResult {
	var content string
	if len(stdout) > 0 {
		content = string(stdout)
	}
	if len(stderr) > 0 {
		if content != "" {
			content += "\n"
		}
		content += "stderr: " + string(stderr)
	}

	isError := runErr != nil
	if content == "" {
		if isError {
			content = fmt.Sprintf("command failed: %v", runErr)
		} else {
			content = "(no output)"
		}
	}
	return ToolResult{Content: content, IsError: isError}
}
