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

// Package session persists conversations: an append-only message log, a
// per-turn usage table, and checkpoints supporting rollback.
//
// A session is owned by exactly one live agent runtime; concurrent writers
// on the same session are not supported (caller-enforced).
package session

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/kadirpekel/quill/pkg/llms"
)

// Conversation is the surface the agent runtime writes through. Both the
// SQLite-backed Session and MemorySession implement it.
type Conversation interface {
	ID() string
	Append(ctx context.Context, m llms.Message) (int64, error)
	Messages(ctx context.Context) ([]llms.Message, error)
	RecordUsage(ctx context.Context, turn, inputTokens, outputTokens int) error
	TotalUsage(ctx context.Context) (llms.TokenUsage, error)
}

// Info summarizes a stored session for listings.
type Info struct {
	ID        string
	CreatedAt time.Time
}

// Checkpoint is a stable cut in a session's message log.
type Checkpoint struct {
	ID        int64
	LastMsgID int64
	Label     string
	CreatedAt time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    created_at INTEGER NOT NULL,
    metadata TEXT
);
CREATE TABLE IF NOT EXISTS messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL REFERENCES sessions(id),
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    tool_call_id TEXT,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, id);
CREATE TABLE IF NOT EXISTS token_usage (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL REFERENCES sessions(id),
    turn INTEGER NOT NULL,
    input_tokens INTEGER NOT NULL,
    output_tokens INTEGER NOT NULL,
    created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS checkpoints (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL REFERENCES sessions(id),
    last_msg_id INTEGER NOT NULL,
    label TEXT NOT NULL,
    created_at INTEGER NOT NULL
);
`

// Store is the SQLite-backed session database.
type Store struct {
	db *sql.DB
}

// Open creates or opens the session database at path, creating parent
// directories and the schema as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open session db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize session schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// NewSession creates a session with a fresh id.
func (s *Store) NewSession(ctx context.Context) (*Session, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO sessions (id, created_at) VALUES (?, ?)", id, time.Now().Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return &Session{id: id, store: s}, nil
}

// LoadSession returns an existing session by id.
func (s *Store) LoadSession(ctx context.Context, id string) (*Session, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM sessions WHERE id = ?", id).Scan(&exists)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &Session{id: id, store: s}, nil
}

// ListSessions returns all sessions, newest first.
func (s *Store) ListSessions(ctx context.Context) ([]Info, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, created_at FROM sessions ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Info
	for rows.Next() {
		var info Info
		var ts int64
		if err := rows.Scan(&info.ID, &ts); err != nil {
			return nil, err
		}
		info.CreatedAt = time.Unix(ts, 0)
		out = append(out, info)
	}
	return out, rows.Err()
}

// Session is one stored conversation.
type Session struct {
	id    string
	store *Store
}

// ID returns the stable session id.
func (s *Session) ID() string { return s.id }

// Append stores a message and returns its row id. Messages are append-only
// during a turn; history is never overwritten.
func (s *Session) Append(ctx context.Context, m llms.Message) (int64, error) {
	var toolCallID any
	if m.ToolCallID != "" {
		toolCallID = m.ToolCallID
	}
	res, err := s.store.db.ExecContext(ctx,
		"INSERT INTO messages (session_id, role, content, tool_call_id, created_at) VALUES (?, ?, ?, ?, ?)",
		s.id, string(m.Role), m.Content, toolCallID, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to append message: %w", err)
	}
	return res.LastInsertId()
}

func scanMessages(rows *sql.Rows) ([]llms.Message, error) {
	defer rows.Close()
	var out []llms.Message
	for rows.Next() {
		var role, content string
		var toolCallID sql.NullString
		if err := rows.Scan(&role, &content, &toolCallID); err != nil {
			return nil, err
		}
		out = append(out, llms.Message{
			Role:       llms.Role(role),
			Content:    content,
			ToolCallID: toolCallID.String,
		})
	}
	return out, rows.Err()
}

// Messages returns the full message log in insertion order.
func (s *Session) Messages(ctx context.Context) ([]llms.Message, error) {
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT role, content, tool_call_id FROM messages WHERE session_id = ? ORDER BY id ASC", s.id)
	if err != nil {
		return nil, err
	}
	return scanMessages(rows)
}

// MessagesUpTo returns messages with row id <= lastMsgID (the bound is
// inclusive), in insertion order.
func (s *Session) MessagesUpTo(ctx context.Context, lastMsgID int64) ([]llms.Message, error) {
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT role, content, tool_call_id FROM messages WHERE session_id = ? AND id <= ? ORDER BY id ASC",
		s.id, lastMsgID)
	if err != nil {
		return nil, err
	}
	return scanMessages(rows)
}

// LastMessageID returns the highest message row id, or 0 when empty.
func (s *Session) LastMessageID(ctx context.Context) (int64, error) {
	var id sql.NullInt64
	err := s.store.db.QueryRowContext(ctx,
		"SELECT MAX(id) FROM messages WHERE session_id = ?", s.id).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id.Int64, nil
}

// RecordUsage stores one turn's token counts.
func (s *Session) RecordUsage(ctx context.Context, turn, inputTokens, outputTokens int) error {
	_, err := s.store.db.ExecContext(ctx,
		"INSERT INTO token_usage (session_id, turn, input_tokens, output_tokens, created_at) VALUES (?, ?, ?, ?, ?)",
		s.id, turn, inputTokens, outputTokens, time.Now().Unix())
	return err
}

// TotalUsage sums all recorded usage for the session.
func (s *Session) TotalUsage(ctx context.Context) (llms.TokenUsage, error) {
	var usage llms.TokenUsage
	err := s.store.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0) FROM token_usage WHERE session_id = ?",
		s.id).Scan(&usage.InputTokens, &usage.OutputTokens)
	return usage, err
}

// MakeCheckpoint records a stable cut at lastMsgID.
func (s *Session) MakeCheckpoint(ctx context.Context, lastMsgID int64, label string) (*Checkpoint, error) {
	now := time.Now().Unix()
	res, err := s.store.db.ExecContext(ctx,
		"INSERT INTO checkpoints (session_id, last_msg_id, label, created_at) VALUES (?, ?, ?, ?)",
		s.id, lastMsgID, label, now)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &Checkpoint{ID: id, LastMsgID: lastMsgID, Label: label, CreatedAt: time.Unix(now, 0)}, nil
}

// LatestCheckpoint returns the most recent checkpoint, or nil when none
// exists.
func (s *Session) LatestCheckpoint(ctx context.Context) (*Checkpoint, error) {
	var cp Checkpoint
	var ts int64
	err := s.store.db.QueryRowContext(ctx,
		"SELECT id, last_msg_id, label, created_at FROM checkpoints WHERE session_id = ? ORDER BY id DESC LIMIT 1",
		s.id).Scan(&cp.ID, &cp.LastMsgID, &cp.Label, &ts)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	cp.CreatedAt = time.Unix(ts, 0)
	return &cp, nil
}

// RollbackTo truncates the message log back to a checkpoint cut: rows with
// id > lastMsgID are deleted, restoring the history to exactly what it was
// when the checkpoint was recorded. Checkpoints past the cut are dropped
// with it.
func (s *Session) RollbackTo(ctx context.Context, lastMsgID int64) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM messages WHERE session_id = ? AND id > ?", s.id, lastMsgID); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM checkpoints WHERE session_id = ? AND last_msg_id > ?", s.id, lastMsgID); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}
	return tx.Commit()
}
