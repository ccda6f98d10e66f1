package service

import (
	"context"
	"errors"
	"time"

	"github.com/fathima-sithara/dm-service/internal/domain"
	"github.com/fathima-sithara/dm-service/internal/users"
	"go.uber.org/zap"
)

// Emitter receives realtime events once the write they describe has been
// stored. It must not block.
type Emitter interface {
	Emit(ev domain.Event)
}

type Presence interface {
	IsOnline(ctx context.Context, userID string) bool
}

type lastSeener interface {
	LastSeen(ctx context.Context, userID string) (time.Time, error)
}

type Clock interface {
	Now() time.Time
}

type nopEmitter struct{}

func (nopEmitter) Emit(domain.Event) {}

// snippets resolves display data for users and decorates it with presence.
type snippets struct {
	dir      users.Directory
	presence Presence
	log      *zap.SugaredLogger
}

func (s snippets) one(ctx context.Context, id string) *domain.UserSnippet {
	u, err := s.dir.FindByID(ctx, id)
	if err != nil {
		if !errors.Is(err, users.ErrNotFound) {
			s.log.Warnw("user lookup failed", "user_id", id, "err", err)
		}
		u = &domain.UserSnippet{ID: id}
	}
	s.decorate(ctx, u)
	return u
}

func (s snippets) many(ctx context.Context, ids []string) map[string]*domain.UserSnippet {
	found, err := s.dir.FindMany(ctx, ids)
	if err != nil {
		s.log.Warnw("user lookup failed", "count", len(ids), "err", err)
		found = map[string]*domain.UserSnippet{}
	}
	out := make(map[string]*domain.UserSnippet, len(ids))
	for _, id := range ids {
		u, ok := found[id]
		if !ok {
			u = &domain.UserSnippet{ID: id}
		}
		s.decorate(ctx, u)
		out[id] = u
	}
	return out
}

func (s snippets) decorate(ctx context.Context, u *domain.UserSnippet) {
	if s.presence == nil {
		u.Online = false
		return
	}
	u.Online = s.presence.IsOnline(ctx, u.ID)
	if ls, ok := s.presence.(lastSeener); ok {
		if t, err := ls.LastSeen(ctx, u.ID); err == nil {
			u.LastActive = &t
		}
	}
}

func (s snippets) view(ctx context.Context, m *domain.Message, parent *domain.Message) *domain.MessageView {
	people := s.many(ctx, []string{m.SenderID, m.RecipientID})
	return &domain.MessageView{
		Message:      m,
		Sender:       people[m.SenderID],
		Recipient:    people[m.RecipientID],
		ReplyPreview: domain.PreviewOf(parent),
	}
}
