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

// Package skills discovers markdown skill packs and injects them into the
// system prompt in two levels: a metadata block (name + description) and a
// lazily loaded body exposed through the read_skill tool.
package skills

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	maxNameLen        = 64
	maxDescriptionLen = 1024
)

var nameRe = regexp.MustCompile(`^[a-z0-9-]+$`)

// reservedTokens may not appear in skill names.
var reservedTokens = []string{"anthropic", "claude"}

// Skill is a markdown skill pack rooted at a directory containing SKILL.md.
// The body is loaded lazily via LoadBody.
type Skill struct {
	Name        string
	Description string
	Dir         string
}

type frontmatter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Parse reads and validates the SKILL.md descriptor in dir.
func Parse(dir string) (*Skill, error) {
	content, err := os.ReadFile(filepath.Join(dir, "SKILL.md"))
	if err != nil {
		return nil, err
	}

	fm, _, err := splitFrontmatter(string(content))
	if err != nil {
		return nil, err
	}

	var meta frontmatter
	if err := yaml.Unmarshal([]byte(fm), &meta); err != nil {
		return nil, fmt.Errorf("invalid SKILL.md frontmatter: %w", err)
	}
	if err := validateName(meta.Name); err != nil {
		return nil, err
	}
	if err := validateDescription(meta.Description); err != nil {
		return nil, err
	}

	return &Skill{Name: meta.Name, Description: meta.Description, Dir: dir}, nil
}

// LoadBody reads the full SKILL.md body with frontmatter stripped.
func (s *Skill) LoadBody() (string, error) {
	content, err := os.ReadFile(filepath.Join(s.Dir, "SKILL.md"))
	if err != nil {
		return "", err
	}
	_, body, err := splitFrontmatter(string(content))
	if err != nil {
		return strings.TrimSpace(string(content)), nil
	}
	return body, nil
}

func splitFrontmatter(content string) (fm, body string, err error) {
	trimmed := strings.TrimLeft(content, "\n\r \t")
	if !strings.HasPrefix(trimmed, "---") {
		return "", "", fmt.Errorf("SKILL.md missing YAML frontmatter")
	}
	rest := trimmed[3:]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return "", "", fmt.Errorf("SKILL.md frontmatter not closed with ---")
	}
	fm = rest[:end]
	body = strings.TrimLeft(rest[end+4:], "\n")
	return fm, body, nil
}

func validateName(name string) error {
	if name == "" || len(name) > maxNameLen {
		return fmt.Errorf("skill name must be 1-%d characters", maxNameLen)
	}
	if !nameRe.MatchString(name) {
		return fmt.Errorf("skill name must match [a-z0-9-]")
	}
	for _, token := range reservedTokens {
		if strings.Contains(name, token) {
			return fmt.Errorf("skill name must not contain reserved word %q", token)
		}
	}
	return nil
}

func validateDescription(desc string) error {
	if desc == "" {
		return fmt.Errorf("skill description must not be empty")
	}
	if len(desc) > maxDescriptionLen {
		return fmt.Errorf("skill description must be <= %d characters", maxDescriptionLen)
	}
	return nil
}
