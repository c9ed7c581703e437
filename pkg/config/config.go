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

// Package config loads quill's layered configuration: defaults, the user
// config at ~/.quill/config.yaml, a project-local .quill.yaml override,
// and finally environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kadirpekel/quill/pkg/sandbox"
	"github.com/kadirpekel/quill/pkg/skills"
)

// CustomModelEntry is a named model alias pointing at an OpenAI-compatible
// endpoint (llama.cpp, vLLM, Ollama, or a hosted API).
type CustomModelEntry struct {
	Name     string `yaml:"name"`
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
}

// MCPServerEntry registers an MCP server to source tools from.
type MCPServerEntry struct {
	Name string `yaml:"name"`
	// Transport is "stdio" or "sse".
	Transport string `yaml:"transport"`
	// Endpoint is the URL for sse, or the command line for stdio.
	Endpoint string   `yaml:"endpoint"`
	Args     []string `yaml:"args"`
	Enabled  bool     `yaml:"enabled"`
}

// Config is the full configuration record.
type Config struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"`

	MaxTurns         int    `yaml:"max_turns"`
	MaxContextTokens int    `yaml:"max_context_tokens"`
	DBPath           string `yaml:"db_path"`

	MaxRetries       int `yaml:"max_retries"`
	RetryBaseDelayMS int `yaml:"retry_base_delay_ms"`

	Skills       skills.LoaderConfig `yaml:"skills"`
	CustomModels []CustomModelEntry  `yaml:"custom_models"`
	Sandbox      sandbox.Config      `yaml:"sandbox"`
	MCPServers   []MCPServerEntry    `yaml:"mcp_servers"`
}

// Dir returns the quill state directory (~/.quill).
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".quill")
}

// ResolvePath joins a relative path onto the state directory.
func ResolvePath(relative string) string {
	return filepath.Join(Dir(), relative)
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Provider:         "openai",
		Model:            "gpt-4o",
		BaseURL:          "https://api.openai.com/v1",
		MaxTurns:         50,
		MaxContextTokens: 128_000,
		DBPath:           ResolvePath("quill.db"),
		MaxRetries:       3,
		RetryBaseDelayMS: 500,
		Skills:           skills.DefaultLoaderConfig(),
	}
}

// Load builds the effective configuration. A .env file in the working
// directory is loaded first so env overrides can live beside the project.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	userPath := ResolvePath("config.yaml")
	if err := mergeFile(cfg, userPath); err != nil {
		return nil, err
	}

	if cwd, err := os.Getwd(); err == nil {
		if err := mergeFile(cfg, filepath.Join(cwd, ".quill.yaml")); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("invalid config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("QUILL_PROVIDER"); v != "" {
		cfg.Provider = v
	}
	if v := os.Getenv("QUILL_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("QUILL_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("QUILL_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
}

// Save writes the configuration to the user config path.
func (c *Config) Save() error {
	path := ResolvePath("config.yaml")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ResolveModel returns the provider settings for a named custom model
// alias, or ok=false when the alias is unknown.
func (c *Config) ResolveModel(name string) (CustomModelEntry, bool) {
	for _, m := range c.CustomModels {
		if m.Name == name {
			return m, true
		}
	}
	return CustomModelEntry{}, false
}
