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

package hooks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// envelope is one exported telemetry record.
type envelope struct {
	EventType   string `json:"event_type"`
	TimestampMS int64  `json:"timestamp_ms"`
	SessionID   string `json:"session_id,omitempty"`
	Payload     *Event `json:"payload"`
}

// TelemetryHook exports every lifecycle event as one JSON line. It never
// influences the agent: all events resolve to Continue.
type TelemetryHook struct {
	mu        sync.Mutex
	w         io.Writer
	sessionID string
	closer    io.Closer
}

// DefaultTelemetryPath returns the JSONL path for a session.
func DefaultTelemetryPath(sessionID string) string {
	return fmt.Sprintf("%s/quill-telemetry-%s.jsonl", os.TempDir(), sessionID)
}

// NewTelemetryHook writes JSONL envelopes to w.
func NewTelemetryHook(w io.Writer, sessionID string) *TelemetryHook {
	return &TelemetryHook{w: w, sessionID: sessionID}
}

// NewTelemetryFileHook appends JSONL envelopes to the file at path.
func NewTelemetryFileHook(path, sessionID string) (*TelemetryHook, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	h := NewTelemetryHook(f, sessionID)
	h.closer = f
	return h, nil
}

func (h *TelemetryHook) Matcher() string { return "" }

func (h *TelemetryHook) OnEvent(_ context.Context, event *Event) (Output, error) {
	env := envelope{
		EventType:   string(event.Kind),
		TimestampMS: time.Now().UnixMilli(),
		SessionID:   h.sessionID,
		Payload:     event,
	}
	line, err := json.Marshal(env)
	if err != nil {
		return Continue(), err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, err := h.w.Write(append(line, '\n')); err != nil {
		return Continue(), err
	}
	return Continue(), nil
}

// Close releases the underlying file, if any.
func (h *TelemetryHook) Close() error {
	if h.closer != nil {
		return h.closer.Close()
	}
	return nil
}
