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
	"embed"
	"sort"
	"strings"
)

//go:embed profiles/*.md
var profileFS embed.FS

// Profile is a built-in sub-agent role: a name plus a system-prompt
// extension layered on top of the base prompt.
type Profile struct {
	Name         string
	SystemPrompt string
}

var profiles = loadProfiles()

func loadProfiles() map[string]Profile {
	out := make(map[string]Profile)
	entries, err := profileFS.ReadDir("profiles")
	if err != nil {
		return out
	}
	for _, e := range entries {
		data, err := profileFS.ReadFile("profiles/" + e.Name())
		if err != nil {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".md")
		out[name] = Profile{Name: name, SystemPrompt: string(data)}
	}
	return out
}

// ResolveProfile looks up a built-in profile by name.
func ResolveProfile(name string) (Profile, bool) {
	p, ok := profiles[name]
	return p, ok
}

// ProfileNames returns all built-in profile names, sorted.
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
