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
	"context"
	"errors"

	"github.com/kadirpekel/quill/pkg/llms"
)

// StreamResult is the terminal outcome of a streaming run.
type StreamResult struct {
	SessionID string
	Messages  []llms.Message
	Err       error
}

// RunStreaming executes the task in its own goroutine, forwarding stream
// chunks on the first channel (bounded; a slow consumer applies
// backpressure to the provider) and delivering exactly one StreamResult on
// the second.
//
// Cancel by cancelling ctx: the runtime aborts at the next suspension
// point, lets in-flight tool calls finish, and terminates silently.
func (r *Runtime) RunStreaming(ctx context.Context, task string) (<-chan llms.StreamChunk, <-chan StreamResult) {
	chunks := make(chan llms.StreamChunk, 64)
	result := make(chan StreamResult, 1)

	emit := func(c llms.StreamChunk) bool {
		select {
		case chunks <- c:
			return true
		case <-ctx.Done():
			return false
		}
	}

	go func() {
		defer close(chunks)
		defer close(result)

		out, err := r.run(ctx, task, emit)

		res := StreamResult{SessionID: r.session.ID()}
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				// Cancellation is silent: no error surfaces.
				result <- res
				return
			}
			res.Err = err
			result <- res
			return
		}

		if messages, mErr := r.session.Messages(context.WithoutCancel(ctx)); mErr == nil {
			res.Messages = messages
		}
		res.SessionID = out.SessionID
		result <- res
	}()

	return chunks, result
}
