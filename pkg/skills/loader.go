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
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

// LoaderConfig selects where skills are discovered.
type LoaderConfig struct {
	// Paths are skill directories, absolute or relative to cwd.
	Paths []string `yaml:"paths"`
	// Enabled restricts loading to the named skills; empty loads all.
	Enabled []string `yaml:"enabled"`
}

// DefaultLoaderConfig scans ./skills.
func DefaultLoaderConfig() LoaderConfig {
	return LoaderConfig{Paths: []string{"skills"}}
}

// Discover scans every configured path for skill directories. Bad
// descriptors are logged and skipped — a failing skill never fails the
// agent. Results are sorted by name.
func Discover(cfg LoaderConfig) []*Skill {
	cwd, _ := os.Getwd()
	var found []*Skill

	for _, path := range cfg.Paths {
		dir := path
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(cwd, dir)
		}
		found = append(found, scanDir(dir, cfg)...)
	}

	sort.Slice(found, func(i, j int) bool { return found[i].Name < found[j].Name })
	return found
}

func scanDir(dir string, cfg LoaderConfig) []*Skill {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("failed to scan skill directory", "dir", dir, "error", err)
		}
		return nil
	}

	var found []*Skill
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		skillDir := filepath.Join(dir, e.Name())
		if _, err := os.Stat(filepath.Join(skillDir, "SKILL.md")); err != nil {
			continue
		}
		skill, err := Parse(skillDir)
		if err != nil {
			slog.Warn("skipping skill", "dir", skillDir, "error", err)
			continue
		}
		if len(cfg.Enabled) > 0 && !contains(cfg.Enabled, skill.Name) {
			continue
		}
		found = append(found, skill)
	}
	return found
}

func contains(list []string, name string) bool {
	for _, v := range list {
		if v == name {
			return true
		}
	}
	return false
}
