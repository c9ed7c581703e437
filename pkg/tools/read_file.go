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
	"os"
	"strings"
)

const maxReadFileSize = 10 * 1024 * 1024

// ReadFileTool reads a file from disk, optionally a line range.
type ReadFileTool struct{}

type readFileArgs struct {
	Path      string `json:"path" jsonschema:"required,description=File path to read"`
	StartLine int    `json:"start_line,omitempty" jsonschema:"description=Starting line number (1-indexed)"`
	EndLine   int    `json:"end_line,omitempty" jsonschema:"description=Ending line number (inclusive)"`
}

func (ReadFileTool) Name() string { return "read" }

func (ReadFileTool) Description() string {
	return "Read the contents of a file, optionally restricted to a line range. " +
		"Use this to understand code before making edits."
}

func (ReadFileTool) Parameters() map[string]any {
	return GenerateSchema[readFileArgs]()
}

func (ReadFileTool) Call(_ context.Context, raw json.RawMessage) (ToolResult, error) {
	var args readFileArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return Errf("invalid arguments: %v", err), nil
	}

	info, err := os.Stat(args.Path)
	if err != nil {
		return Errf("failed to read %s: %v", args.Path, err), nil
	}
	if info.Size() > maxReadFileSize {
		return Errf("file %s is too large (%d bytes)", args.Path, info.Size()), nil
	}

	data, err := os.ReadFile(args.Path)
	if err != nil {
		return Errf("failed to read %s: %v", args.Path, err), nil
	}
	content := string(data)

	if args.StartLine > 0 || args.EndLine > 0 {
		lines := strings.Split(content, "\n")
		start := args.StartLine
		if start < 1 {
			start = 1
		}
		end := args.EndLine
		if end <= 0 || end > len(lines) {
			end = len(lines)
		}
		if start > len(lines) {
			return Errf("start_line %d is past the end of %s (%d lines)", start, args.Path, len(lines)), nil
		}
		content = strings.Join(lines[start-1:end], "\n")
	}

	return Ok(content), nil
}

// WriteFileTool writes content to a file, creating parent directories.
type WriteFileTool struct{}

type writeFileArgs struct {
	Path    string `json:"path" jsonschema:"required,description=File path to write"`
	Content string `json:"content" jsonschema:"required,description=Full file content to write"`
}

func (WriteFileTool) Name() string { return "write" }

func (WriteFileTool) Description() string {
	return "Write content to a file, replacing any existing content. " +
		"Parent directories are created as needed."
}

func (WriteFileTool) Parameters() map[string]any {
	return GenerateSchema[writeFileArgs]()
}

func (WriteFileTool) Call(_ context.Context, raw json.RawMessage) (ToolResult, error) {
	var args writeFileArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return Errf("invalid arguments: %v", err), nil
	}

	if dir := dirOf(args.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Errf("failed to create directory %s: %v", dir, err), nil
		}
	}
	if err := os.WriteFile(args.Path, []byte(args.Content), 0o644); err != nil {
		return Errf("failed to write %s: %v", args.Path, err), nil
	}
	return Ok(fmt.Sprintf("wrote %d bytes to %s", len(args.Content), args.Path)), nil
}

func dirOf(path string) string {
	idx := strings.LastIndexByte(path, '/')
	if idx <= 0 {
		return ""
	}
	return path[:idx]
}
