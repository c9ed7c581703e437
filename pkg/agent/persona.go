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
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Persona is a user-defined system-prompt extension loaded from
// ./quill/agents/<name>.md. Frontmatter may override model and provider;
// the markdown body is appended to the base system prompt when the persona
// is activated with an @name token.
type Persona struct {
	Name        string
	Description string
	Model       string
	Provider    string
	// SystemPrompt is the persona body appended to the base prompt.
	SystemPrompt string
	Path         string
}

type personaFrontmatter struct {
	Description string `yaml:"description"`
	Model       string `yaml:"model"`
	Provider    string `yaml:"provider"`
}

// ParsePersona reads a single persona markdown file.
func ParsePersona(path string) (*Persona, error) {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if name == "" {
		return nil, fmt.Errorf("invalid persona filename: %s", path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	content := string(raw)

	p := &Persona{Name: name, SystemPrompt: content, Path: path}

	if strings.HasPrefix(content, "---") {
		rest := strings.TrimPrefix(content, "---")
		rest = strings.TrimLeft(rest, "\n")
		if end := strings.Index(rest, "\n---"); end >= 0 {
			var fm personaFrontmatter
			if err := yaml.Unmarshal([]byte(rest[:end]), &fm); err == nil {
				p.Description = fm.Description
				p.Model = fm.Model
				p.Provider = fm.Provider
			}
			p.SystemPrompt = strings.TrimLeft(rest[end+4:], "\n")
		}
	}

	return p, nil
}

// DiscoverPersonas scans ./quill/agents for *.md persona files. Bad files
// are logged and skipped, never fatal. Results are sorted by name.
func DiscoverPersonas() []*Persona {
	cwd, err := os.Getwd()
	if err != nil {
		return nil
	}
	dir := filepath.Join(cwd, "quill", "agents")

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var personas []*Persona
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".md" {
			continue
		}
		p, err := ParsePersona(filepath.Join(dir, e.Name()))
		if err != nil {
			slog.Warn("skipping persona", "file", e.Name(), "error", err)
			continue
		}
		personas = append(personas, p)
	}

	sort.Slice(personas, func(i, j int) bool { return personas[i].Name < personas[j].Name })
	return personas
}
