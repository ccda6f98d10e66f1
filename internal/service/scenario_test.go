package service

import (
	"context"
	"sync"
	"testing"

	"github.com/fathima-sithara/dm-service/internal/domain"
	"github.com/fathima-sithara/dm-service/internal/push"
	"github.com/fathima-sithara/dm-service/internal/realtime"
	"github.com/fathima-sithara/dm-service/internal/repository"
	"github.com/fathima-sithara/dm-service/internal/users"
	"github.com/fathima-sithara/dm-service/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestFirstMessageIsReadOnView(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	sent := h.text(t, "alice", "bob", "hi")
	assert.Equal(t, sent.ID, sent.ThreadID)
	assert.False(t, sent.Read)

	page, err := h.query.ListMessages(ctx, "bob", "alice", ListOptions{})
	require.NoError(t, err)
	require.Len(t, page.Messages, 1)
	assert.Equal(t, sent.ID, page.Messages[0].ID)
	assert.True(t, page.Messages[0].Read)
	assert.False(t, page.HasMore)

	stored, err := h.repo.GetByID(ctx, sent.ID)
	require.NoError(t, err)
	assert.True(t, stored.Read)

	total, err := h.query.GetUnreadTotal(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, total)

	convs, err := h.query.ListConversations(ctx, "bob", 1, 20)
	require.NoError(t, err)
	require.Len(t, convs.Items, 1)
	assert.Equal(t, "alice", convs.Items[0].User.ID)
	assert.Zero(t, convs.Items[0].UnreadCount)
	assert.Equal(t, "hi", convs.Items[0].LastMessage.Content)
}

func TestReplyJoinsThread(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	root := h.text(t, "alice", "bob", "R")
	reply, err := h.cmd.Send(ctx, SendInput{SenderID: "bob", RecipientID: "alice", Content: "X", ReplyTo: root.ID})
	require.NoError(t, err)
	assert.Equal(t, root.ID, reply.ThreadID)

	page, err := h.query.FetchThread(ctx, "alice", root.ID, Page{})
	require.NoError(t, err)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, root.ID, page.Messages[0].ID)
	assert.Equal(t, reply.ID, page.Messages[1].ID)
}

type jobRecorder struct {
	mu   sync.Mutex
	jobs []push.Job
}

func (q *jobRecorder) Submit(job push.Job) error {
	q.mu.Lock()
	q.jobs = append(q.jobs, job)
	q.mu.Unlock()
	return nil
}

func (q *jobRecorder) Close() error { return nil }

type bufferedChannel struct {
	id     string
	mu     sync.Mutex
	frames [][]byte
}

func (c *bufferedChannel) ID() string { return c.id }

func (c *bufferedChannel) Send(frame []byte) bool {
	c.mu.Lock()
	c.frames = append(c.frames, frame)
	c.mu.Unlock()
	return true
}

func (c *bufferedChannel) Close() {}

func TestOfflineRecipientGetsPush(t *testing.T) {
	log := zaptest.NewLogger(t).Sugar()
	reg := realtime.NewRegistry()
	queue := &jobRecorder{}
	fan := realtime.NewFanout(reg, log, realtime.WithPush(queue))

	bobConn := &bufferedChannel{id: "bob-1"}
	reg.Register("bob", bobConn)

	dir := users.NewMemoryDirectory(
		domain.UserSnippet{ID: "alice", Username: "alice", DisplayName: "Alice"},
		domain.UserSnippet{ID: "bob", Username: "bob", DisplayName: "Bob", Avatar: "bob.png"},
	)
	cmd := NewCommandService(repository.NewMemoryRepository(), dir, reg, fan, utils.NewClock(), log)

	sent, err := cmd.Send(context.Background(), SendInput{SenderID: "bob", RecipientID: "alice", Content: "are you there?"})
	require.NoError(t, err)
	assert.NotEmpty(t, sent.ID)
	assert.False(t, sent.Recipient.Online)

	fan.Close()

	require.Len(t, queue.jobs, 1)
	job := queue.jobs[0]
	assert.Equal(t, "alice", job.UserID)
	assert.Equal(t, "Bob", job.Notification.Title)
	assert.Equal(t, "are you there?", job.Notification.Body)
	assert.Equal(t, "/messages/bob", job.Notification.URL)
	assert.Equal(t, "dm-bob", job.Notification.Tag)
	assert.Equal(t, "bob.png", job.Notification.Icon)

	// the sender's own channel still receives the echo
	assert.Len(t, bobConn.frames, 1)
}

func TestOnlineRecipientGetsNoPush(t *testing.T) {
	log := zaptest.NewLogger(t).Sugar()
	reg := realtime.NewRegistry()
	queue := &jobRecorder{}
	fan := realtime.NewFanout(reg, log, realtime.WithPush(queue))

	aliceConn := &bufferedChannel{id: "alice-1"}
	reg.Register("alice", aliceConn)

	dir := users.NewMemoryDirectory(domain.UserSnippet{ID: "alice"}, domain.UserSnippet{ID: "bob"})
	cmd := NewCommandService(repository.NewMemoryRepository(), dir, reg, fan, utils.NewClock(), log)

	_, err := cmd.Send(context.Background(), SendInput{SenderID: "bob", RecipientID: "alice", Content: "ping"})
	require.NoError(t, err)
	fan.Close()

	assert.Empty(t, queue.jobs)
	assert.Len(t, aliceConn.frames, 1)
}
