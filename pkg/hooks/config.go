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

package hooks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Entry is a single persisted hook definition.
type Entry struct {
	// Name uniquely identifies the hook; re-adding replaces it.
	Name string `json:"name"`
	// Event is the lifecycle event tag (agent_start, pre_tool_use, ...).
	Event string `json:"event"`
	// Matcher is an optional regex matched against tool names.
	Matcher string `json:"matcher,omitempty"`
	// Action is one of deny, stop, log.
	Action string `json:"action"`
	// Reason is attached to deny outputs.
	Reason string `json:"reason,omitempty"`
}

// ConfigFile is the on-disk hook list.
type ConfigFile struct {
	Hooks []Entry `json:"hooks"`
}

// DefaultConfigPath returns the persisted hooks file location.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".quill", "hooks.json")
}

// LoadConfigFile reads the hooks file at path. A missing or unreadable
// file yields an empty config.
func LoadConfigFile(path string) *ConfigFile {
	data, err := os.ReadFile(path)
	if err != nil {
		return &ConfigFile{}
	}
	var cfg ConfigFile
	if err := json.Unmarshal(data, &cfg); err != nil {
		slog.Warn("invalid hooks config, ignoring", "path", path, "error", err)
		return &ConfigFile{}
	}
	return &cfg
}

// Save writes the hook list to path.
func (c *ConfigFile) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Add inserts an entry, replacing any prior entry with the same name.
func (c *ConfigFile) Add(e Entry) {
	filtered := c.Hooks[:0]
	for _, h := range c.Hooks {
		if h.Name != e.Name {
			filtered = append(filtered, h)
		}
	}
	c.Hooks = append(filtered, e)
}

// Remove deletes an entry by name, reporting whether it existed.
func (c *ConfigFile) Remove(name string) bool {
	before := len(c.Hooks)
	filtered := c.Hooks[:0]
	for _, h := range c.Hooks {
		if h.Name != name {
			filtered = append(filtered, h)
		}
	}
	c.Hooks = filtered
	return len(c.Hooks) < before
}

// configuredHook turns a persisted entry into a live hook.
type configuredHook struct {
	entry Entry
}

func (h *configuredHook) Matcher() string { return h.entry.Matcher }

func (h *configuredHook) OnEvent(_ context.Context, event *Event) (Output, error) {
	if string(event.Kind) != h.entry.Event {
		return Continue(), nil
	}
	switch h.entry.Action {
	case "deny":
		reason := h.entry.Reason
		if reason == "" {
			reason = fmt.Sprintf("blocked by hook %s", h.entry.Name)
		}
		return Deny(reason), nil
	case "stop":
		return Stop(), nil
	case "log":
		slog.Info("hook event",
			"hook", h.entry.Name, "event", event.Kind, "tool", event.Tool, "turn", event.Turn)
		return Continue(), nil
	default:
		return Continue(), fmt.Errorf("unknown hook action %q", h.entry.Action)
	}
}

// RegisterConfigured registers every persisted entry with the registry,
// preserving file order.
func RegisterConfigured(registry *Registry, cfg *ConfigFile) {
	for _, e := range cfg.Hooks {
		registry.Register(&configuredHook{entry: e})
	}
}
