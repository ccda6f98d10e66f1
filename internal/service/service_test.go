package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fathima-sithara/dm-service/internal/domain"
	"github.com/fathima-sithara/dm-service/internal/repository"
	"github.com/fathima-sithara/dm-service/internal/users"
	"github.com/fathima-sithara/dm-service/internal/utils"
	"go.uber.org/zap/zaptest"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []domain.Event
}

func (e *recordingEmitter) Emit(ev domain.Event) {
	e.mu.Lock()
	e.events = append(e.events, ev)
	e.mu.Unlock()
}

func (e *recordingEmitter) all() []domain.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.Event(nil), e.events...)
}

type onlineSet map[string]bool

func (o onlineSet) IsOnline(_ context.Context, id string) bool { return o[id] }

type harness struct {
	repo  *repository.MemoryRepository
	dir   *users.MemoryDirectory
	graph *users.MemoryGraph
	emit  *recordingEmitter
	cmd   *CommandService
	query *QueryService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := zaptest.NewLogger(t).Sugar()
	start := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	clock := utils.NewClockFrom(func() time.Time { return start })

	h := &harness{
		repo: repository.NewMemoryRepository(),
		dir: users.NewMemoryDirectory(
			domain.UserSnippet{ID: "alice", Username: "alice", DisplayName: "Alice", Avatar: "a.png"},
			domain.UserSnippet{ID: "bob", Username: "bob", DisplayName: "Bob"},
			domain.UserSnippet{ID: "carol", Username: "carol"},
			domain.UserSnippet{ID: "dave", Username: "dave"},
		),
		graph: users.NewMemoryGraph(),
		emit:  &recordingEmitter{},
	}
	presence := onlineSet{"alice": true}
	h.cmd = NewCommandService(h.repo, h.dir, presence, h.emit, clock, log)
	h.query = NewQueryService(h.repo, h.dir, h.graph, presence, clock, log)
	return h
}

func (h *harness) text(t *testing.T, from, to, content string) *domain.MessageView {
	t.Helper()
	v, err := h.cmd.Send(context.Background(), SendInput{SenderID: from, RecipientID: to, Content: content})
	if err != nil {
		t.Fatalf("send %s->%s: %v", from, to, err)
	}
	return v
}
