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
)

// InputMode selects how the user answers an ask_user question.
type InputMode string

const (
	// ChooseOne is a radio selection: exactly one option or a custom answer.
	ChooseOne InputMode = "choose_one"
	// ChooseMany is a checkbox selection: any subset plus a custom note.
	ChooseMany InputMode = "choose_many"
)

// UserInputRequest is sent to the UI channel when the agent needs an
// answer. The UI resolves it by sending the answer text on Respond (or
// closing it to signal cancellation).
type UserInputRequest struct {
	Mode     InputMode
	Question string
	// Options holds 2-4 choices; the UI always appends a free-text custom
	// option.
	Options []string
	Respond chan string
}

// AskUserTool pauses the agent and asks the user a structured question
// through an external UI channel. The agent suspends until the answer
// arrives; a closed channel or cancellation yields an error tool result
// rather than a panic.
type AskUserTool struct {
	requests chan<- UserInputRequest
}

// NewAskUserTool builds the tool around the UI request channel.
func NewAskUserTool(requests chan<- UserInputRequest) *AskUserTool {
	return &AskUserTool{requests: requests}
}

type askUserArgs struct {
	Mode     string   `json:"mode" jsonschema:"required,enum=choose_one,enum=choose_many,description=choose_one: pick a single option. choose_many: pick any subset."`
	Question string   `json:"question" jsonschema:"required,description=The question to display to the user. Be concise and specific."`
	Options  []string `json:"options" jsonschema:"required,description=2-4 short options. A free-text custom option is always appended."`
}

func (t *AskUserTool) Name() string { return "ask_user" }

func (t *AskUserTool) Description() string {
	return "Pause and ask the user a structured question before continuing. " +
		"Use choose_one when exactly one answer is needed, choose_many when " +
		"multiple selections are valid. Provide 2-4 short options; a free-text " +
		"custom option is always added automatically. Only call this when user " +
		"input is genuinely required to proceed."
}

func (t *AskUserTool) Parameters() map[string]any {
	return GenerateSchema[askUserArgs]()
}

func (t *AskUserTool) Call(ctx context.Context, raw json.RawMessage) (ToolResult, error) {
	var args askUserArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return Errf("invalid arguments: %v", err), nil
	}
	if len(args.Options) < 2 || len(args.Options) > 4 {
		return Errf("ask_user requires 2-4 options, got %d", len(args.Options)), nil
	}

	mode := ChooseOne
	if args.Mode == string(ChooseMany) {
		mode = ChooseMany
	}

	req := UserInputRequest{
		Mode:     mode,
		Question: args.Question,
		Options:  args.Options,
		Respond:  make(chan string, 1),
	}

	if !t.send(ctx, req) {
		return Errf("user input channel closed — cannot ask user"), nil
	}

	select {
	case answer, ok := <-req.Respond:
		if !ok {
			return Errf("user closed the input prompt"), nil
		}
		return Ok(answer), nil
	case <-ctx.Done():
		return Errf("cancelled while waiting for user input"), nil
	}
}

// send delivers the request, converting a closed channel into a clean
// failure instead of a panic.
func (t *AskUserTool) send(ctx context.Context, req UserInputRequest) (sent bool) {
	defer func() {
		if recover() != nil {
			sent = false
		}
	}()
	select {
	case t.requests <- req:
		return true
	case <-ctx.Done():
		return false
	}
}
