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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, 50, cfg.MaxTurns)
	assert.Equal(t, 128_000, cfg.MaxContextTokens)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 500, cfg.RetryBaseDelayMS)
	assert.False(t, cfg.Sandbox.Enabled)
	assert.Equal(t, []string{"skills"}, cfg.Skills.Paths)
}

func TestMergeFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
model: my-model
max_turns: 7
sandbox:
  enabled: true
  allowed_domains:
    - api.example.com
custom_models:
  - name: local
    provider: openai
    base_url: http://localhost:8080/v1
    model: llama3.2
mcp_servers:
  - name: files
    transport: stdio
    endpoint: mcp-files
    enabled: true
`), 0o644))

	cfg := Default()
	require.NoError(t, mergeFile(cfg, path))

	assert.Equal(t, "my-model", cfg.Model)
	assert.Equal(t, 7, cfg.MaxTurns)
	assert.True(t, cfg.Sandbox.Enabled)
	assert.Equal(t, []string{"api.example.com"}, cfg.Sandbox.AllowedDomains)

	entry, ok := cfg.ResolveModel("local")
	require.True(t, ok)
	assert.Equal(t, "llama3.2", entry.Model)

	_, ok = cfg.ResolveModel("missing")
	assert.False(t, ok)

	require.Len(t, cfg.MCPServers, 1)
	assert.Equal(t, "stdio", cfg.MCPServers[0].Transport)
	assert.True(t, cfg.MCPServers[0].Enabled)
}

func TestMergeFileMissingIsNoop(t *testing.T) {
	cfg := Default()
	require.NoError(t, mergeFile(cfg, filepath.Join(t.TempDir(), "nope.yaml")))
	assert.Equal(t, Default().Model, cfg.Model)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("QUILL_MODEL", "env-model")
	t.Setenv("QUILL_BASE_URL", "http://env:1234/v1")
	t.Setenv("QUILL_API_KEY", "env-key")

	cfg := Default()
	applyEnv(cfg)

	assert.Equal(t, "env-model", cfg.Model)
	assert.Equal(t, "http://env:1234/v1", cfg.BaseURL)
	assert.Equal(t, "env-key", cfg.APIKey)
}

func TestOpenAIKeyFallback(t *testing.T) {
	t.Setenv("QUILL_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "fallback-key")

	cfg := Default()
	cfg.APIKey = ""
	applyEnv(cfg)
	assert.Equal(t, "fallback-key", cfg.APIKey)
}
