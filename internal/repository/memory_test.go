package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/fathima-sithara/dm-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func seed(t *testing.T, r *MemoryRepository, id, from, to, content string, minute int) *domain.Message {
	t.Helper()
	m := &domain.Message{
		ID:          id,
		SenderID:    from,
		RecipientID: to,
		Content:     content,
		Kind:        domain.KindText,
		ThreadID:    id,
		CreatedAt:   base.Add(time.Duration(minute) * time.Minute),
	}
	require.NoError(t, r.Insert(context.Background(), m))
	return m
}

func TestInsertReturnsCopies(t *testing.T) {
	r := NewMemoryRepository()
	m := seed(t, r, "m1", "alice", "bob", "hi", 0)
	m.Content = "changed"

	got, err := r.GetByID(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, "hi", got.Content)
	assert.NotNil(t, got.Reactions)

	_, err = r.GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestToggleReaction(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	seed(t, r, "m1", "alice", "bob", "hi", 0)

	m, err := r.ToggleReaction(ctx, "m1", "bob", "👍", base)
	require.NoError(t, err)
	require.Len(t, m.Reactions, 1)

	m, err = r.ToggleReaction(ctx, "m1", "bob", "❤️", base.Add(time.Second))
	require.NoError(t, err)
	require.Len(t, m.Reactions, 1)
	assert.Equal(t, "❤️", m.Reactions[0].Emoji)
	assert.Equal(t, base.Add(time.Second), m.Reactions[0].CreatedAt)

	m, err = r.ToggleReaction(ctx, "m1", "bob", "❤️", base)
	require.NoError(t, err)
	assert.Empty(t, m.Reactions)

	_, err = r.ToggleReaction(ctx, "missing", "bob", "👍", base)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveReaction(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	seed(t, r, "m1", "alice", "bob", "hi", 0)
	_, err := r.ToggleReaction(ctx, "m1", "bob", "👍", base)
	require.NoError(t, err)
	_, err = r.ToggleReaction(ctx, "m1", "alice", "😂", base)
	require.NoError(t, err)

	_, removed, err := r.RemoveReaction(ctx, "m1", "bob", "❤️")
	require.NoError(t, err)
	assert.False(t, removed)

	m, removed, err := r.RemoveReaction(ctx, "m1", "bob", "")
	require.NoError(t, err)
	assert.True(t, removed)
	require.Len(t, m.Reactions, 1)
	assert.Equal(t, "alice", m.Reactions[0].UserID)

	_, _, err = r.RemoveReaction(ctx, "missing", "bob", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMarkOneReadOnlyOnce(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	seed(t, r, "m1", "alice", "bob", "hi", 0)

	_, err := r.MarkOneRead(ctx, "m1", "alice", base)
	assert.ErrorIs(t, err, ErrNotFound, "sender cannot mark read")

	m, err := r.MarkOneRead(ctx, "m1", "bob", base)
	require.NoError(t, err)
	assert.True(t, m.Read)
	require.NotNil(t, m.ReadAt)

	_, err = r.MarkOneRead(ctx, "m1", "bob", base)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMarkConversationReadSharesTimestamp(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	seed(t, r, "m1", "alice", "bob", "one", 0)
	seed(t, r, "m2", "alice", "bob", "two", 1)
	seed(t, r, "m3", "bob", "alice", "three", 2)
	seed(t, r, "m4", "carol", "bob", "four", 3)

	n, err := r.MarkConversationRead(ctx, "alice", "bob", base)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	for _, id := range []string{"m1", "m2"} {
		m, _ := r.GetByID(ctx, id)
		assert.True(t, m.Read)
		assert.Equal(t, base, *m.ReadAt)
	}
	unread, err := r.CountUnread(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)
}

func TestListConversationFilters(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	seed(t, r, "m1", "alice", "bob", "Hello there", 0)
	seed(t, r, "m2", "bob", "alice", "general kenobi", 60)
	seed(t, r, "m3", "alice", "bob", "HELLO again", 24*60)
	seed(t, r, "m4", "alice", "carol", "hello carol", 5)

	all, err := r.ListConversation(ctx, ConversationQuery{UserID: "bob", CounterpartID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, []string{"m3", "m2", "m1"}, ids(all))

	hits, err := r.ListConversation(ctx, ConversationQuery{UserID: "alice", CounterpartID: "bob", Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, []string{"m3", "m1"}, ids(hits))

	window, err := r.ListConversation(ctx, ConversationQuery{
		UserID: "alice", CounterpartID: "bob",
		Start: base, End: base.Add(60 * time.Minute),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"m2", "m1"}, ids(window))

	older, err := r.ListConversation(ctx, ConversationQuery{
		UserID: "alice", CounterpartID: "bob", Before: base.Add(60 * time.Minute), Limit: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, ids(older))
}

func TestListThreadOnlyForParties(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	root := seed(t, r, "root", "alice", "bob", "root", 0)
	for i := 1; i <= 3; i++ {
		m := &domain.Message{
			ID: fmt.Sprintf("r%d", i), SenderID: "bob", RecipientID: "alice",
			Kind: domain.KindText, Content: "re", ThreadID: root.ID, ReplyTo: root.ID,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, r.Insert(ctx, m))
	}

	rows, err := r.ListThread(ctx, ThreadQuery{ThreadID: "root", ViewerID: "alice", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"r3", "r2"}, ids(rows))

	rows, err = r.ListThread(ctx, ThreadQuery{ThreadID: "root", ViewerID: "mallory"})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestScanForUserNewestFirst(t *testing.T) {
	r := NewMemoryRepository()
	seed(t, r, "m1", "alice", "bob", "a", 0)
	seed(t, r, "m2", "carol", "alice", "b", 1)
	seed(t, r, "m3", "bob", "carol", "c", 2)

	var seen []string
	err := r.ScanForUser(context.Background(), "alice", func(m *domain.Message) error {
		seen = append(seen, m.ID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"m2", "m1"}, seen)
}

func ids(ms []*domain.Message) []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.ID)
	}
	return out
}
