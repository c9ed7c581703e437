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

	"github.com/kadirpekel/quill/pkg/skills"
)

// ReadSkillTool exposes level-2 skill bodies to the model: the system
// prompt lists skill names and descriptions, and the full instructions are
// loaded on demand through this tool.
type ReadSkillTool struct {
	registry *skills.Registry
}

// NewReadSkillTool builds the tool over a skill registry.
func NewReadSkillTool(registry *skills.Registry) *ReadSkillTool {
	return &ReadSkillTool{registry: registry}
}

type readSkillArgs struct {
	SkillName string `json:"skill_name" jsonschema:"required,description=The name of the skill to load"`
}

func (t *ReadSkillTool) Name() string { return "read_skill" }

func (t *ReadSkillTool) Description() string {
	return "Load the full instructions for an available skill by name. " +
		"Call this before using a skill to get its complete guidance."
}

func (t *ReadSkillTool) Parameters() map[string]any {
	return GenerateSchema[readSkillArgs]()
}

func (t *ReadSkillTool) Call(_ context.Context, raw json.RawMessage) (ToolResult, error) {
	var args readSkillArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return Errf("invalid arguments: %v", err), nil
	}

	body, ok, err := t.registry.LoadBody(args.SkillName)
	if err != nil {
		return Errf("failed to load skill %q: %v", args.SkillName, err), nil
	}
	if !ok {
		return Errf("skill %q not found", args.SkillName), nil
	}
	return Ok(body), nil
}
