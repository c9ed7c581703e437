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

package session

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/kadirpekel/quill/pkg/llms"
)

// MemorySession is an in-memory Conversation. Sub-agents run on it so
// concurrent fan-out never shares a persistent session, and tests use it
// to avoid disk.
type MemorySession struct {
	id string

	mu       sync.Mutex
	messages []llms.Message
	usage    llms.TokenUsage
}

// NewMemorySession creates an empty in-memory session.
func NewMemorySession() *MemorySession {
	return &MemorySession{id: uuid.NewString()}
}

func (s *MemorySession) ID() string { return s.id }

func (s *MemorySession) Append(_ context.Context, m llms.Message) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, m)
	return int64(len(s.messages)), nil
}

func (s *MemorySession) Messages(_ context.Context) ([]llms.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]llms.Message, len(s.messages))
	copy(out, s.messages)
	return out, nil
}

func (s *MemorySession) RecordUsage(_ context.Context, _, inputTokens, outputTokens int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage.InputTokens += inputTokens
	s.usage.OutputTokens += outputTokens
	return nil
}

func (s *MemorySession) TotalUsage(_ context.Context) (llms.TokenUsage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage, nil
}
