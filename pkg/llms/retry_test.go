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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyProvider fails its first n calls with a transport error.
type flakyProvider struct {
	failures int
	calls    int
}

func (p *flakyProvider) Name() string { return "flaky" }

func (p *flakyProvider) Complete(_ context.Context, _ []Message, _ []ToolDefinition) (*Response, error) {
	p.calls++
	if p.calls <= p.failures {
		return nil, NewTransportError("flaky", 503, errors.New("upstream unavailable"))
	}
	return &Response{Content: "recovered", Usage: TokenUsage{InputTokens: 1, OutputTokens: 1}}, nil
}

func (p *flakyProvider) StreamComplete(ctx context.Context, messages []Message, defs []ToolDefinition) (<-chan StreamChunk, error) {
	resp, err := p.Complete(ctx, messages, defs)
	if err != nil {
		return nil, err
	}
	out := make(chan StreamChunk, 2)
	out <- StreamChunk{Type: ChunkDelta, Text: resp.Content}
	out <- StreamChunk{Type: ChunkDone, Usage: &resp.Usage}
	close(out)
	return out, nil
}

func TestRetryRecoversFromTransportErrors(t *testing.T) {
	inner := &flakyProvider{failures: 2}
	provider := NewRetryingProvider(inner, 3, time.Millisecond)

	resp, err := provider.Complete(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Content)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryExhaustionSurfacesError(t *testing.T) {
	inner := &flakyProvider{failures: 100}
	provider := NewRetryingProvider(inner, 2, time.Millisecond)

	_, err := provider.Complete(context.Background(), nil, nil)
	require.Error(t, err)

	var pe *ProviderError
	assert.ErrorAs(t, err, &pe)
	assert.Equal(t, 3, inner.calls) // initial + 2 retries
}

func TestNonRetryableErrorIsNotRetried(t *testing.T) {
	inner := &staticErrProvider{err: errors.New("bad credentials config")}
	provider := NewRetryingProvider(inner, 5, time.Millisecond)

	_, err := provider.Complete(context.Background(), nil, nil)
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}

type staticErrProvider struct {
	err   error
	calls int
}

func (p *staticErrProvider) Name() string { return "static" }
func (p *staticErrProvider) Complete(context.Context, []Message, []ToolDefinition) (*Response, error) {
	p.calls++
	return nil, p.err
}
func (p *staticErrProvider) StreamComplete(context.Context, []Message, []ToolDefinition) (<-chan StreamChunk, error) {
	p.calls++
	return nil, p.err
}

func TestRetryStreamRecovers(t *testing.T) {
	inner := &flakyProvider{failures: 1}
	provider := NewRetryingProvider(inner, 2, time.Millisecond)

	stream, err := provider.StreamComplete(context.Background(), nil, nil)
	require.NoError(t, err)

	var sawDone bool
	var text string
	for chunk := range stream {
		switch chunk.Type {
		case ChunkDelta:
			text += chunk.Text
		case ChunkDone:
			sawDone = true
		}
	}
	assert.True(t, sawDone)
	assert.Equal(t, "recovered", text)
	assert.Equal(t, 2, inner.calls)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewTransportError("p", 500, errors.New("x"))))
	assert.True(t, IsRetryable(NewProtocolError("p", errors.New("missing done"))))
	assert.True(t, IsRetryable(ErrStreamClosed))
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(context.Canceled))
}
