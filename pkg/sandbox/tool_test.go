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
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/quill/pkg/tools"
)

func TestSandboxedReadBlocksDeniedPath(t *testing.T) {
	tmp := t.TempDir()
	secrets := filepath.Join(tmp, "secrets")
	require.NoError(t, os.MkdirAll(secrets, 0o755))
	secretFile := filepath.Join(secrets, "key")
	require.NoError(t, os.WriteFile(secretFile, []byte("top-secret"), 0o600))

	cfg := &Config{Enabled: true, DeniedReadPaths: []string{secrets}}
	tool := Wrap(tools.ReadFileTool{}, cfg, 0)

	result, err := tool.Call(context.Background(),
		json.RawMessage(fmt.Sprintf(`{"path": %q}`, secretFile)))
	require.NoError(t, err)

	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "sandbox")
}

func TestSandboxedReadPassesAllowedPath(t *testing.T) {
	tmp := t.TempDir()
	file := filepath.Join(tmp, "data.txt")
	require.NoError(t, os.WriteFile(file, []byte("hello"), 0o644))

	cfg := &Config{Enabled: true}
	tool := Wrap(tools.ReadFileTool{}, cfg, 0)

	result, err := tool.Call(context.Background(),
		json.RawMessage(fmt.Sprintf(`{"path": %q}`, file)))
	require.NoError(t, err)

	assert.False(t, result.IsError)
	assert.Equal(t, "hello", result.Content)
}

func TestSandboxedWriteBlocksOutsideAllowlist(t *testing.T) {
	cfg := &Config{Enabled: true, AllowedWritePaths: []string{t.TempDir()}}
	tool := Wrap(tools.WriteFileTool{}, cfg, 0)

	result, err := tool.Call(context.Background(),
		json.RawMessage(`{"path": "/no-such-root/should_not_exist", "content": "bad"}`))
	require.NoError(t, err)

	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "sandbox")
}

func TestSandboxedWriteAllowsAllowlistedPath(t *testing.T) {
	tmp := t.TempDir()
	cfg := &Config{Enabled: true, AllowedWritePaths: []string{tmp}}
	tool := Wrap(tools.WriteFileTool{}, cfg, 0)

	target := filepath.Join(tmp, "output.txt")
	result, err := tool.Call(context.Background(),
		json.RawMessage(fmt.Sprintf(`{"path": %q, "content": "ok"}`, target)))
	require.NoError(t, err)

	assert.False(t, result.IsError, result.Content)
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(data))
}

func TestSandboxPassesThroughOtherTools(t *testing.T) {
	cfg := &Config{Enabled: true, DeniedReadPaths: []string{"/etc"}}
	tool := Wrap(stubTool{}, cfg, 0)

	result, err := tool.Call(context.Background(), json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Equal(t, "stub", result.Content)
}

type stubTool struct{}

func (stubTool) Name() string               { return "stub" }
func (stubTool) Description() string        { return "stub tool" }
func (stubTool) Parameters() map[string]any { return map[string]any{"type": "object"} }
func (stubTool) Call(context.Context, json.RawMessage) (tools.ToolResult, error) {
	return tools.Ok("stub"), nil
}
