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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/quill/pkg/llms"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "quill.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestMessageRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	sess, err := store.NewSession(ctx)
	require.NoError(t, err)

	want := []llms.Message{
		llms.SystemMessage("sys"),
		llms.UserMessage("hello"),
		llms.AssistantMessage("[tool_call: echo({\"x\":1})]"),
		llms.ToolResultMessage("x=1", "call-1"),
		llms.AssistantMessage("done"),
	}
	for _, m := range want {
		_, err := sess.Append(ctx, m)
		require.NoError(t, err)
	}

	got, err := sess.Messages(ctx)
	require.NoError(t, err)
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Role, got[i].Role)
		assert.Equal(t, want[i].Content, got[i].Content)
		assert.Equal(t, want[i].ToolCallID, got[i].ToolCallID)
	}
}

func TestLoadSession(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	sess, err := store.NewSession(ctx)
	require.NoError(t, err)
	_, err = sess.Append(ctx, llms.UserMessage("hi"))
	require.NoError(t, err)

	loaded, err := store.LoadSession(ctx, sess.ID())
	require.NoError(t, err)
	messages, err := loaded.Messages(ctx)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "hi", messages[0].Content)

	_, err = store.LoadSession(ctx, "no-such-id")
	assert.Error(t, err)
}

func TestUsageMonotonicity(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	sess, err := store.NewSession(ctx)
	require.NoError(t, err)

	prev, err := sess.TotalUsage(ctx)
	require.NoError(t, err)

	for turn := 0; turn < 5; turn++ {
		require.NoError(t, sess.RecordUsage(ctx, turn, 10+turn, 5+turn))

		current, err := sess.TotalUsage(ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, current.InputTokens, prev.InputTokens)
		assert.GreaterOrEqual(t, current.OutputTokens, prev.OutputTokens)
		prev = current
	}

	assert.Equal(t, 10+11+12+13+14, prev.InputTokens)
	assert.Equal(t, 5+6+7+8+9, prev.OutputTokens)
}

func TestMessagesUpToIsInclusive(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	sess, err := store.NewSession(ctx)
	require.NoError(t, err)

	var ids []int64
	for _, text := range []string{"one", "two", "three"} {
		id, err := sess.Append(ctx, llms.UserMessage(text))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	got, err := sess.MessagesUpTo(ctx, ids[1])
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "one", got[0].Content)
	assert.Equal(t, "two", got[1].Content)
}

func TestRollbackRestoresCheckpointState(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	sess, err := store.NewSession(ctx)
	require.NoError(t, err)

	_, err = sess.Append(ctx, llms.UserMessage("keep-1"))
	require.NoError(t, err)
	lastID, err := sess.Append(ctx, llms.AssistantMessage("keep-2"))
	require.NoError(t, err)

	snapshot, err := sess.Messages(ctx)
	require.NoError(t, err)

	cp, err := sess.MakeCheckpoint(ctx, lastID, "before-experiment")
	require.NoError(t, err)

	_, err = sess.Append(ctx, llms.UserMessage("drop-1"))
	require.NoError(t, err)
	_, err = sess.Append(ctx, llms.AssistantMessage("drop-2"))
	require.NoError(t, err)

	require.NoError(t, sess.RollbackTo(ctx, cp.LastMsgID))

	restored, err := sess.Messages(ctx)
	require.NoError(t, err)
	assert.Equal(t, snapshot, restored)
}

func TestLatestCheckpoint(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	sess, err := store.NewSession(ctx)
	require.NoError(t, err)

	cp, err := sess.LatestCheckpoint(ctx)
	require.NoError(t, err)
	assert.Nil(t, cp)

	id1, err := sess.Append(ctx, llms.UserMessage("a"))
	require.NoError(t, err)
	_, err = sess.MakeCheckpoint(ctx, id1, "first")
	require.NoError(t, err)

	id2, err := sess.Append(ctx, llms.UserMessage("b"))
	require.NoError(t, err)
	_, err = sess.MakeCheckpoint(ctx, id2, "second")
	require.NoError(t, err)

	latest, err := sess.LatestCheckpoint(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "second", latest.Label)
	assert.Equal(t, id2, latest.LastMsgID)
}

func TestRollbackDropsStaleCheckpoints(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	sess, err := store.NewSession(ctx)
	require.NoError(t, err)

	id1, err := sess.Append(ctx, llms.UserMessage("a"))
	require.NoError(t, err)
	cp1, err := sess.MakeCheckpoint(ctx, id1, "first")
	require.NoError(t, err)

	id2, err := sess.Append(ctx, llms.UserMessage("b"))
	require.NoError(t, err)
	_, err = sess.MakeCheckpoint(ctx, id2, "second")
	require.NoError(t, err)

	require.NoError(t, sess.RollbackTo(ctx, cp1.LastMsgID))

	latest, err := sess.LatestCheckpoint(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "first", latest.Label)
}

func TestListSessions(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	s1, err := store.NewSession(ctx)
	require.NoError(t, err)
	s2, err := store.NewSession(ctx)
	require.NoError(t, err)

	infos, err := store.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)

	ids := []string{infos[0].ID, infos[1].ID}
	assert.Contains(t, ids, s1.ID())
	assert.Contains(t, ids, s2.ID())
}

func TestMemorySessionConversation(t *testing.T) {
	ctx := context.Background()
	sess := NewMemorySession()

	_, err := sess.Append(ctx, llms.UserMessage("hi"))
	require.NoError(t, err)
	require.NoError(t, sess.RecordUsage(ctx, 0, 3, 4))

	messages, err := sess.Messages(ctx)
	require.NoError(t, err)
	require.Len(t, messages, 1)

	usage, err := sess.TotalUsage(ctx)
	require.NoError(t, err)
	assert.Equal(t, llms.TokenUsage{InputTokens: 3, OutputTokens: 4}, usage)
}
