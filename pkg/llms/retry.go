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
	"fmt"
	"log/slog"
	"time"
)

// RetryingProvider wraps a Provider with exponential-backoff retries for
// transport and protocol failures. Retries happen before any downstream
// consumer (hooks, the session log) observes the generation: a stream is
// only retried while no chunk has been delivered yet, so consumers see a
// single stream per turn regardless of retries.
type RetryingProvider struct {
	inner      Provider
	maxRetries int
	baseDelay  time.Duration
}

// NewRetryingProvider wraps inner. maxRetries is the number of retries
// after the initial attempt; baseDelay is doubled on each attempt.
func NewRetryingProvider(inner Provider, maxRetries int, baseDelay time.Duration) *RetryingProvider {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	return &RetryingProvider{inner: inner, maxRetries: maxRetries, baseDelay: baseDelay}
}

func (p *RetryingProvider) Name() string { return p.inner.Name() }

func (p *RetryingProvider) backoff(attempt int) time.Duration {
	return p.baseDelay * (1 << attempt)
}

func (p *RetryingProvider) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Complete retries the wrapped Complete call on retryable errors.
func (p *RetryingProvider) Complete(ctx context.Context, messages []Message, tools []ToolDefinition) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			slog.Warn("retrying provider call",
				"provider", p.inner.Name(), "attempt", attempt, "error", lastErr)
			if err := p.sleep(ctx, p.backoff(attempt-1)); err != nil {
				return nil, err
			}
		}
		resp, err := p.inner.Complete(ctx, messages, tools)
		if err == nil {
			return resp, nil
		}
		if !IsRetryable(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("provider failed after %d retries: %w", p.maxRetries, lastErr)
}

// StreamComplete retries stream establishment and streams that die before
// delivering any chunk. Once a chunk has been forwarded the stream is
// committed and failures surface to the consumer as a premature close.
func (p *RetryingProvider) StreamComplete(ctx context.Context, messages []Message, tools []ToolDefinition) (<-chan StreamChunk, error) {
	out := make(chan StreamChunk, 64)

	go func() {
		defer close(out)

		var lastErr error
		for attempt := 0; attempt <= p.maxRetries; attempt++ {
			if attempt > 0 {
				slog.Warn("retrying provider stream",
					"provider", p.inner.Name(), "attempt", attempt, "error", lastErr)
				if err := p.sleep(ctx, p.backoff(attempt-1)); err != nil {
					return
				}
			}

			inner, err := p.inner.StreamComplete(ctx, messages, tools)
			if err != nil {
				if !IsRetryable(err) {
					return
				}
				lastErr = err
				continue
			}

			delivered := false
			sawDone := false
			for chunk := range inner {
				if chunk.Type == ChunkDone {
					sawDone = true
				}
				select {
				case out <- chunk:
					delivered = true
				case <-ctx.Done():
					return
				}
			}

			if sawDone {
				return
			}
			if delivered {
				// Stream is committed; the runtime surfaces the missing
				// Done as a protocol failure.
				return
			}
			lastErr = ErrStreamClosed
		}

		slog.Error("provider stream failed after retries",
			"provider", p.inner.Name(), "retries", p.maxRetries, "error", lastErr)
	}()

	return out, nil
}
