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

package main

// basePrompt is the immutable head of the system message. Skill metadata
// and any active persona are appended each turn.
const basePrompt = `You are quill, an interactive coding assistant running in a terminal.

You help with software engineering tasks: exploring codebases, writing and
editing code, running commands, and answering questions about the project.

Guidelines:
- Prefer reading relevant files before proposing changes.
- Make focused edits; do not rewrite files wholesale when a small change works.
- Use the bash tool for builds and tests, and report failures honestly.
- When a task is large or parallelizable, use delegate or dispatch to fan
  out sub-agents.
- Ask the user with ask_user only when a decision genuinely blocks progress.`
