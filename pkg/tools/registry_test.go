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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedTool struct {
	name    string
	desc    string
	handler func(json.RawMessage) (ToolResult, error)
	params  map[string]any
}

func (t namedTool) Name() string        { return t.name }
func (t namedTool) Description() string { return t.desc }
func (t namedTool) Parameters() map[string]any {
	if t.params != nil {
		return t.params
	}
	return map[string]any{"type": "object"}
}
func (t namedTool) Call(_ context.Context, args json.RawMessage) (ToolResult, error) {
	if t.handler != nil {
		return t.handler(args)
	}
	return Ok(t.name), nil
}

func TestDefinitionsSortedByName(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mike"} {
		reg.Register(namedTool{name: name, desc: name + " tool"})
	}

	defs := reg.Definitions()
	require.Len(t, defs, 3)
	assert.Equal(t, "alpha", defs[0].Name)
	assert.Equal(t, "mike", defs[1].Name)
	assert.Equal(t, "zeta", defs[2].Name)

	assert.Equal(t, []string{"alpha", "mike", "zeta"}, reg.Names())
}

func TestRegisterReplacesDuplicateName(t *testing.T) {
	reg := NewRegistry()
	reg.Register(namedTool{name: "echo", desc: "first"})
	reg.Register(namedTool{name: "echo", desc: "second"})

	require.Len(t, reg.Names(), 1)
	tool, ok := reg.Get("echo")
	require.True(t, ok)
	assert.Equal(t, "second", tool.Description())
}

func TestFilteredRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.Register(namedTool{name: "read"})
	reg.Register(namedTool{name: "write"})
	reg.Register(namedTool{name: "bash"})

	filtered := reg.Filtered([]string{"read", "bash", "nonexistent"})
	assert.Equal(t, []string{"bash", "read"}, filtered.Names())

	// The original is untouched.
	assert.Len(t, reg.Names(), 3)
}

func TestExecuteUnknownToolErrors(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Execute(context.Background(), "ghost", json.RawMessage(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestExecuteValidatesArgs(t *testing.T) {
	type echoArgs struct {
		Text string `json:"text" jsonschema:"required,description=Text to echo"`
	}
	reg := NewRegistry()
	reg.Register(namedTool{
		name:   "echo",
		params: GenerateSchema[echoArgs](),
		handler: func(args json.RawMessage) (ToolResult, error) {
			var a echoArgs
			_ = json.Unmarshal(args, &a)
			return Ok(a.Text), nil
		},
	})

	// Missing required field: error result, not a hard failure.
	result, err := reg.Execute(context.Background(), "echo", json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "invalid arguments")

	result, err = reg.Execute(context.Background(), "echo", json.RawMessage(`{"text":"hi"}`))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "hi", result.Content)
}

func TestGenerateSchemaShape(t *testing.T) {
	type args struct {
		Path  string `json:"path" jsonschema:"required,description=File path"`
		Limit int    `json:"limit,omitempty" jsonschema:"description=Max results"`
	}
	schema := GenerateSchema[args]()

	assert.Equal(t, "object", schema["type"])
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "path")
	assert.Contains(t, props, "limit")

	required, ok := schema["required"].([]any)
	require.True(t, ok)
	assert.Contains(t, required, "path")
	assert.NotContains(t, required, "limit")
}

func TestValidateArgs(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"x": map[string]any{"type": "integer"},
		},
		"required": []any{"x"},
	}

	assert.NoError(t, ValidateArgs(schema, json.RawMessage(`{"x": 1}`)))
	assert.Error(t, ValidateArgs(schema, json.RawMessage(`{}`)))
	assert.Error(t, ValidateArgs(schema, json.RawMessage(`{"x": "nope"}`)))
	assert.Error(t, ValidateArgs(schema, json.RawMessage(`not json`)))

	// Empty schema accepts anything.
	assert.NoError(t, ValidateArgs(nil, json.RawMessage(`{"whatever": true}`)))
}

func TestReadAndWriteFileTools(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/hello.txt"

	write := WriteFileTool{}
	result, err := write.Call(context.Background(),
		json.RawMessage(fmt.Sprintf(`{"path": %q, "content": "line1\nline2\nline3"}`, path)))
	require.NoError(t, err)
	require.False(t, result.IsError, result.Content)

	read := ReadFileTool{}
	result, err = read.Call(context.Background(), json.RawMessage(fmt.Sprintf(`{"path": %q}`, path)))
	require.NoError(t, err)
	assert.Equal(t, "line1\nline2\nline3", result.Content)

	result, err = read.Call(context.Background(),
		json.RawMessage(fmt.Sprintf(`{"path": %q, "start_line": 2, "end_line": 2}`, path)))
	require.NoError(t, err)
	assert.Equal(t, "line2", result.Content)

	result, err = read.Call(context.Background(), json.RawMessage(`{"path": "/no/such/file"}`))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestGlobTool(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, writeFiles(dir, map[string]string{
		"a.go":        "package a",
		"sub/b.go":    "package b",
		"sub/c.txt":   "text",
		"other/d.go":  "package d",
		"other/e.yml": "k: v",
	}))

	tool := GlobTool{}
	result, err := tool.Call(context.Background(),
		json.RawMessage(fmt.Sprintf(`{"pattern": "**/*.go", "path": %q}`, dir)))
	require.NoError(t, err)
	require.False(t, result.IsError)

	assert.Contains(t, result.Content, "a.go")
	assert.Contains(t, result.Content, "b.go")
	assert.Contains(t, result.Content, "d.go")
	assert.NotContains(t, result.Content, "c.txt")
	assert.NotContains(t, result.Content, "e.yml")
}

func TestGrepTool(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, writeFiles(dir, map[string]string{
		"main.go": "package main\nfunc main() {}\n",
		"util.go": "package main\nfunc helper() {}\n",
	}))

	tool := GrepTool{}
	result, err := tool.Call(context.Background(),
		json.RawMessage(fmt.Sprintf(`{"pattern": "func ma", "path": %q}`, dir)))
	require.NoError(t, err)

	assert.Contains(t, result.Content, "main.go:2:")
	assert.NotContains(t, result.Content, "util.go")

	result, err = tool.Call(context.Background(),
		json.RawMessage(fmt.Sprintf(`{"pattern": "nomatch-anywhere", "path": %q}`, dir)))
	require.NoError(t, err)
	assert.Equal(t, "no matches", result.Content)
}

func writeFiles(root string, files map[string]string) error {
	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}
