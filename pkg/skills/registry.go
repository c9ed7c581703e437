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

package skills

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Registry holds the current skill set. Sync re-scans the configured paths
// and is called at the top of every agent turn so skills dropped in while
// the agent is running are picked up.
type Registry struct {
	config LoaderConfig

	mu     sync.RWMutex
	skills []*Skill
}

// Load builds a registry and performs the initial scan.
func Load(config LoaderConfig) *Registry {
	return &Registry{
		config: config,
		skills: Discover(config),
	}
}

// Sync re-scans skill directories and swaps in the fresh set. Never
// returns an error — bad skill files are logged and skipped so the agent
// loop is never interrupted.
func (r *Registry) Sync() {
	fresh := Discover(r.config)

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range fresh {
		if !hasSkill(r.skills, s.Name) {
			slog.Info("skill loaded", "skill", s.Name)
		}
	}
	for _, s := range r.skills {
		if !hasSkill(fresh, s.Name) {
			slog.Info("skill unloaded", "skill", s.Name)
		}
	}
	r.skills = fresh
}

func hasSkill(list []*Skill, name string) bool {
	for _, s := range list {
		if s.Name == name {
			return true
		}
	}
	return false
}

// List returns the loaded skills, sorted by name.
func (r *Registry) List() []*Skill {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Skill, len(r.skills))
	copy(out, r.skills)
	return out
}

// MetadataPrompt renders the level-1 system-prompt block: a sorted
// name/description list with instructions to call read_skill before use.
// Empty when no skills are loaded.
func (r *Registry) MetadataPrompt() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.skills) == 0 {
		return ""
	}

	var lines []string
	for _, s := range r.skills {
		lines = append(lines, fmt.Sprintf("- **%s**: %s", s.Name, s.Description))
	}
	return "## Available Skills\n\n" +
		"Call `read_skill(name)` to load full instructions before using a skill.\n\n" +
		strings.Join(lines, "\n")
}

// LoadBody returns the full body for a named skill, or ok=false when the
// skill is not loaded.
func (r *Registry) LoadBody(name string) (body string, ok bool, err error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.skills {
		if s.Name == name {
			body, err := s.LoadBody()
			return body, true, err
		}
	}
	return "", false, nil
}
