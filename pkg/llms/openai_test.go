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

package llms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAICompleteParsesToolCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req["model"])

		fmt.Fprint(w, `{
			"choices": [{
				"message": {
					"role": "assistant",
					"tool_calls": [{
						"id": "call-1",
						"type": "function",
						"function": {"name": "echo", "arguments": "{\"x\":1}"}
					}]
				},
				"finish_reason": "tool_calls"
			}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 7}
		}`)
	}))
	defer server.Close()

	provider := NewOpenAIProvider(server.URL, "test-key", "test-model")
	resp, err := provider.Complete(context.Background(),
		[]Message{UserMessage("call echo")}, nil)
	require.NoError(t, err)

	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "call-1", resp.ToolCalls[0].ID)
	assert.Equal(t, "echo", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"x":1}`, string(resp.ToolCalls[0].Args))
	assert.Equal(t, TokenUsage{InputTokens: 12, OutputTokens: 7}, resp.Usage)
}

func TestOpenAICompleteSurfacesHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error": "rate limited"}`)
	}))
	defer server.Close()

	provider := NewOpenAIProvider(server.URL, "k", "m")
	_, err := provider.Complete(context.Background(), []Message{UserMessage("hi")}, nil)
	require.Error(t, err)

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrKindTransport, pe.Kind)
	assert.Equal(t, http.StatusTooManyRequests, pe.Status)
	assert.True(t, IsRetryable(err))
}

func TestOpenAIStreamAccumulatesToolCallDeltas(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		lines := []string{
			`data: {"choices":[{"delta":{"content":"thinking "}}]}`,
			`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call-1","function":{"name":"echo","arguments":"{\"x\""}}]}}]}`,
			`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":":1}"}}]}}]}`,
			`data: {"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
			`data: {"choices":[],"usage":{"prompt_tokens":9,"completion_tokens":4}}`,
			`data: [DONE]`,
		}
		for _, line := range lines {
			fmt.Fprintf(w, "%s\n\n", line)
		}
	}))
	defer server.Close()

	provider := NewOpenAIProvider(server.URL, "", "m")
	stream, err := provider.StreamComplete(context.Background(),
		[]Message{UserMessage("go")}, nil)
	require.NoError(t, err)

	var deltas []string
	var calls []ToolCall
	dones := 0
	var usage TokenUsage
	for chunk := range stream {
		switch chunk.Type {
		case ChunkDelta:
			deltas = append(deltas, chunk.Text)
		case ChunkToolCall:
			calls = append(calls, *chunk.Call)
		case ChunkDone:
			dones++
			if chunk.Usage != nil {
				usage = *chunk.Usage
			}
		}
	}

	assert.Equal(t, []string{"thinking "}, deltas)
	require.Len(t, calls, 1)
	assert.Equal(t, "call-1", calls[0].ID)
	assert.Equal(t, "echo", calls[0].Name)
	assert.JSONEq(t, `{"x":1}`, string(calls[0].Args))

	// Exactly one Done terminates the stream, carrying usage.
	assert.Equal(t, 1, dones)
	assert.Equal(t, TokenUsage{InputTokens: 9, OutputTokens: 4}, usage)
}

func TestScriptedProviderReplaysTurns(t *testing.T) {
	provider := NewScriptedProvider(
		ScriptedTurn{Content: "first"},
		ScriptedTurn{Content: "second"},
	)

	resp, err := provider.Complete(context.Background(), []Message{UserMessage("a")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "first", resp.Content)

	resp, err = provider.Complete(context.Background(), []Message{UserMessage("b")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "second", resp.Content)

	// Exhausted scripts repeat the last turn.
	resp, err = provider.Complete(context.Background(), []Message{UserMessage("c")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "second", resp.Content)

	assert.Equal(t, 3, provider.Generations())
}

func TestEchoProviderEchoesLastUserMessage(t *testing.T) {
	provider := EchoProvider{}
	resp, err := provider.Complete(context.Background(),
		[]Message{SystemMessage("s"), UserMessage("ping")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "echo: ping", resp.Content)
}
