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
	"fmt"
)

// Provider is the LLM abstraction the agent runtime consumes.
//
// StreamComplete returns a finite, non-restartable channel of chunks. The
// provider accumulates partial tool-call argument deltas and emits a single
// ChunkToolCall per call; it must emit exactly one ChunkDone and then close
// the channel.
type Provider interface {
	Name() string

	Complete(ctx context.Context, messages []Message, tools []ToolDefinition) (*Response, error)

	StreamComplete(ctx context.Context, messages []Message, tools []ToolDefinition) (<-chan StreamChunk, error)
}

// Error kinds for provider failures.
const (
	ErrKindTransport = "transport"
	ErrKindProtocol  = "protocol"
)

// ProviderError wraps a provider failure with its taxonomy kind.
// Transport errors (connection failures, status >= 400, malformed streams)
// and protocol errors (missing Done, missing fields) are both retryable.
type ProviderError struct {
	Kind     string
	Provider string
	Status   int
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s provider %s error (status %d): %v", e.Provider, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s provider %s error: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NewTransportError builds a transport-kind provider error.
func NewTransportError(provider string, status int, err error) *ProviderError {
	return &ProviderError{Kind: ErrKindTransport, Provider: provider, Status: status, Err: err}
}

// NewProtocolError builds a protocol-kind provider error.
func NewProtocolError(provider string, err error) *ProviderError {
	return &ProviderError{Kind: ErrKindProtocol, Provider: provider, Err: err}
}

// ErrStreamClosed reports a stream that ended without a Done chunk.
var ErrStreamClosed = errors.New("stream closed unexpectedly")

// IsRetryable reports whether err should be retried with backoff.
// All provider transport and protocol errors are retryable; everything else
// (including context cancellation) is not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var pe *ProviderError
	return errors.As(err, &pe) || errors.Is(err, ErrStreamClosed)
}
