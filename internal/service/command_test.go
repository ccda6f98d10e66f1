package service

import (
	"context"
	"testing"

	"github.com/fathima-sithara/dm-service/internal/apperror"
	"github.com/fathima-sithara/dm-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendText(t *testing.T) {
	h := newHarness(t)

	v := h.text(t, "alice", "bob", "hi")

	assert.NotEmpty(t, v.ID)
	assert.Equal(t, v.ID, v.ThreadID)
	assert.Equal(t, domain.KindText, v.Kind)
	assert.False(t, v.Read)
	assert.Empty(t, v.Reactions)
	assert.Equal(t, "Alice", v.Sender.DisplayName)
	assert.True(t, v.Sender.Online)
	assert.Equal(t, "Bob", v.Recipient.DisplayName)
	assert.False(t, v.Recipient.Online)
	assert.Nil(t, v.ReplyPreview)

	events := h.emit.all()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventMessageCreated, events[0].Type)
	assert.Equal(t, "alice", events[0].From)
	assert.Equal(t, "bob", events[0].To)
	assert.Same(t, v, events[0].Payload)

	stored, err := h.repo.GetByID(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, v.ID, stored.ThreadID)
}

func TestSendByUsername(t *testing.T) {
	h := newHarness(t)

	v, err := h.cmd.Send(context.Background(), SendInput{SenderID: "alice", RecipientUsername: "@bob", Content: "yo"})
	require.NoError(t, err)
	assert.Equal(t, "bob", v.RecipientID)
}

func TestSendValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	cases := []struct {
		name string
		in   SendInput
		kind apperror.Kind
	}{
		{"blank text", SendInput{SenderID: "alice", RecipientID: "bob", Content: "  "}, apperror.InvalidArgument},
		{"no recipient", SendInput{SenderID: "alice", Content: "hi"}, apperror.InvalidArgument},
		{"bad kind", SendInput{SenderID: "alice", RecipientID: "bob", Kind: "sticker", Content: "x"}, apperror.InvalidArgument},
		{"media without url", SendInput{SenderID: "alice", RecipientID: "bob", Kind: domain.KindImage, Media: &domain.Media{}}, apperror.InvalidArgument},
		{"media missing", SendInput{SenderID: "alice", RecipientID: "bob", Kind: domain.KindAudio}, apperror.InvalidArgument},
		{"unknown recipient", SendInput{SenderID: "alice", RecipientID: "zed", Content: "hi"}, apperror.NotFound},
		{"unknown username", SendInput{SenderID: "alice", RecipientUsername: "zed", Content: "hi"}, apperror.NotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.cmd.Send(ctx, tc.in)
			require.Error(t, err)
			assert.Equal(t, tc.kind, apperror.KindOf(err))
		})
	}
	assert.Empty(t, h.emit.all())
}

func TestSendMedia(t *testing.T) {
	h := newHarness(t)

	v, err := h.cmd.Send(context.Background(), SendInput{
		SenderID: "alice", RecipientID: "bob", Kind: domain.KindAudio,
		Media: &domain.Media{URL: "https://cdn/voice.ogg", Duration: 4.5},
	})
	require.NoError(t, err)
	require.NotNil(t, v.Media)
	assert.Equal(t, 4.5, v.Media.Duration)
	assert.Empty(t, v.Content)
}

func TestSendTextDropsMedia(t *testing.T) {
	h := newHarness(t)

	v, err := h.cmd.Send(context.Background(), SendInput{
		SenderID: "alice", RecipientID: "bob", Content: "hi", Media: &domain.Media{URL: "x"},
	})
	require.NoError(t, err)
	assert.Nil(t, v.Media)
}

func TestReplyThreading(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	root := h.text(t, "alice", "bob", "root")
	reply, err := h.cmd.Send(ctx, SendInput{SenderID: "bob", RecipientID: "alice", Content: "re", ReplyTo: root.ID})
	require.NoError(t, err)
	assert.Equal(t, root.ID, reply.ThreadID)
	assert.Equal(t, root.ID, reply.ReplyTo)
	require.NotNil(t, reply.ReplyPreview)
	assert.Equal(t, "root", reply.ReplyPreview.Content)

	nested, err := h.cmd.Send(ctx, SendInput{SenderID: "alice", RecipientID: "bob", Content: "re re", ReplyTo: reply.ID})
	require.NoError(t, err)
	assert.Equal(t, root.ID, nested.ThreadID)
	assert.Equal(t, reply.ID, nested.ReplyTo)
}

func TestReplyToMissingParentStartsThread(t *testing.T) {
	h := newHarness(t)

	v, err := h.cmd.Send(context.Background(), SendInput{SenderID: "alice", RecipientID: "bob", Content: "re", ReplyTo: "gone"})
	require.NoError(t, err)
	assert.Equal(t, v.ID, v.ThreadID)
	assert.Equal(t, "gone", v.ReplyTo)
	assert.Nil(t, v.ReplyPreview)
}

func TestReplyToOtherConversationStartsThread(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	private := h.text(t, "alice", "bob", "private between alice and bob")

	v, err := h.cmd.Send(ctx, SendInput{SenderID: "carol", RecipientID: "dave", Content: "re", ReplyTo: private.ID})
	require.NoError(t, err)
	assert.Equal(t, v.ID, v.ThreadID)
	assert.Equal(t, private.ID, v.ReplyTo)
	assert.Nil(t, v.ReplyPreview)

	// alice is in both conversations, carol is not
	v, err = h.cmd.Send(ctx, SendInput{SenderID: "alice", RecipientID: "carol", Content: "fwd", ReplyTo: private.ID})
	require.NoError(t, err)
	assert.Equal(t, v.ID, v.ThreadID)
	assert.Nil(t, v.ReplyPreview)

	for _, ev := range h.emit.all() {
		if ev.From == "carol" || ev.To == "carol" {
			view, ok := ev.Payload.(*domain.MessageView)
			require.True(t, ok)
			assert.Nil(t, view.ReplyPreview)
		}
	}

	page, err := h.query.FetchThread(ctx, "carol", private.ThreadID, Page{})
	require.NoError(t, err)
	assert.Empty(t, page.Messages)
}

func TestEdit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	m := h.text(t, "alice", "bob", "helo")
	_, err := h.cmd.ToggleReaction(ctx, m.ID, "bob", "👍")
	require.NoError(t, err)

	_, err = h.cmd.Edit(ctx, m.ID, "bob", "hacked")
	assert.Equal(t, apperror.Unauthorized, apperror.KindOf(err))

	_, err = h.cmd.Edit(ctx, m.ID, "alice", " ")
	assert.Equal(t, apperror.InvalidArgument, apperror.KindOf(err))

	_, err = h.cmd.Edit(ctx, "missing", "alice", "x")
	assert.Equal(t, apperror.NotFound, apperror.KindOf(err))

	v, err := h.cmd.Edit(ctx, m.ID, "alice", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", v.Content)
	assert.True(t, v.Edited)
	require.NotNil(t, v.EditedAt)
	assert.True(t, v.EditedAt.After(v.CreatedAt))
	assert.Equal(t, m.ThreadID, v.ThreadID)
	assert.Len(t, v.Reactions, 1)
	assert.False(t, v.Read)

	events := h.emit.all()
	assert.Equal(t, domain.EventMessageEdited, events[len(events)-1].Type)
}

func TestToggleReactionRoundTrip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	m := h.text(t, "alice", "bob", "hi")
	_, err := h.cmd.ToggleReaction(ctx, m.ID, "alice", "🔥")
	require.NoError(t, err)

	rs, err := h.cmd.ToggleReaction(ctx, m.ID, "bob", "👍")
	require.NoError(t, err)
	assert.Len(t, rs, 2)

	rs, err = h.cmd.ToggleReaction(ctx, m.ID, "bob", "👍")
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, "alice", rs[0].UserID)
}

func TestToggleReactionReplaces(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	m := h.text(t, "alice", "bob", "hi")

	_, err := h.cmd.ToggleReaction(ctx, m.ID, "bob", "👍")
	require.NoError(t, err)
	rs, err := h.cmd.ToggleReaction(ctx, m.ID, "bob", "😂")
	require.NoError(t, err)

	require.Len(t, rs, 1)
	assert.Equal(t, "bob", rs[0].UserID)
	assert.Equal(t, "😂", rs[0].Emoji)

	events := h.emit.all()
	last := events[len(events)-1]
	assert.Equal(t, domain.EventReactionChanged, last.Type)
	assert.Equal(t, "bob", last.To)
	assert.Equal(t, "alice", last.From)
}

func TestToggleReactionErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	m := h.text(t, "alice", "bob", "hi")

	_, err := h.cmd.ToggleReaction(ctx, "missing", "bob", "👍")
	assert.Equal(t, apperror.NotFound, apperror.KindOf(err))

	_, err = h.cmd.ToggleReaction(ctx, m.ID, "bob", " ")
	assert.Equal(t, apperror.InvalidArgument, apperror.KindOf(err))

	_, err = h.cmd.ToggleReaction(ctx, m.ID, "carol", "👍")
	assert.Equal(t, apperror.Unauthorized, apperror.KindOf(err))
}

func TestRemoveReaction(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	m := h.text(t, "alice", "bob", "hi")
	_, err := h.cmd.ToggleReaction(ctx, m.ID, "bob", "👍")
	require.NoError(t, err)

	_, err = h.cmd.RemoveReaction(ctx, m.ID, "bob", "❤️")
	assert.ErrorIs(t, err, apperror.Missing("reaction not found"))

	rs, err := h.cmd.RemoveReaction(ctx, m.ID, "bob", "👍")
	require.NoError(t, err)
	assert.Empty(t, rs)

	_, err = h.cmd.RemoveReaction(ctx, m.ID, "bob", "")
	assert.ErrorIs(t, err, apperror.Missing("reaction not found"))

	_, err = h.cmd.RemoveReaction(ctx, "missing", "bob", "")
	assert.ErrorIs(t, err, apperror.Missing("message not found"))
}

func TestMarkOneReadTwice(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	m := h.text(t, "alice", "bob", "hi")

	_, err := h.cmd.MarkOneRead(ctx, m.ID, "alice")
	assert.ErrorIs(t, err, apperror.Missing("message not found or already read"))

	read, err := h.cmd.MarkOneRead(ctx, m.ID, "bob")
	require.NoError(t, err)
	assert.True(t, read.Read)

	_, err = h.cmd.MarkOneRead(ctx, m.ID, "bob")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.ErrorIs(t, err, apperror.Missing("message not found or already read"))
}

func TestMarkConversationRead(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.text(t, "alice", "bob", "1")
	h.text(t, "alice", "bob", "2")
	h.text(t, "carol", "bob", "3")

	n, err := h.cmd.MarkConversationRead(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	total, err := h.query.GetUnreadTotal(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestTyping(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.cmd.Typing(context.Background(), "alice", "bob", true))
	assert.Error(t, h.cmd.Typing(context.Background(), "alice", "", true))

	events := h.emit.all()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventTyping, events[0].Type)
	assert.Equal(t, []string{"bob"}, events[0].Targets())
}
