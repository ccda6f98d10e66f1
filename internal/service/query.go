package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fathima-sithara/dm-service/internal/apperror"
	"github.com/fathima-sithara/dm-service/internal/domain"
	"github.com/fathima-sithara/dm-service/internal/pagination"
	"github.com/fathima-sithara/dm-service/internal/repository"
	"github.com/fathima-sithara/dm-service/internal/users"
	"go.uber.org/zap"
)

// Page is a backward cursor: Before is exclusive, zero means newest.
type Page struct {
	Before time.Time
	Limit  int
}

type ListOptions struct {
	Page
	Query string
	Start time.Time
	End   time.Time
}

type MessagePage struct {
	Messages []*domain.Message `json:"messages"`
	HasMore  bool              `json:"has_more"`
}

type QueryService struct {
	repo   repository.MessageRepository
	people snippets
	graph  users.Graph
	clock  Clock
	log    *zap.SugaredLogger
}

func NewQueryService(repo repository.MessageRepository, dir users.Directory, graph users.Graph, presence Presence, clock Clock, log *zap.SugaredLogger) *QueryService {
	return &QueryService{
		repo:   repo,
		people: snippets{dir: dir, presence: presence, log: log},
		graph:  graph,
		clock:  clock,
		log:    log,
	}
}

// ListMessages returns one page of the conversation in ascending order.
// Unread messages in the page addressed to the requester are marked read
// as a side effect, and the returned copies already show it.
func (s *QueryService) ListMessages(ctx context.Context, requesterID, counterpartID string, opts ListOptions) (*MessagePage, error) {
	if strings.TrimSpace(counterpartID) == "" {
		return nil, apperror.Invalid("counterpart is required")
	}
	if !opts.Start.IsZero() && !opts.End.IsZero() && opts.End.Before(opts.Start) {
		return nil, apperror.Invalid("end date is before start date")
	}
	limit := pagination.ClampLimit(opts.Limit)
	rows, err := s.repo.ListConversation(ctx, repository.ConversationQuery{
		UserID:        requesterID,
		CounterpartID: counterpartID,
		Before:        opts.Before,
		Start:         opts.Start,
		End:           opts.End,
		Text:          strings.TrimSpace(opts.Query),
		Limit:         limit + 1,
	})
	if err != nil {
		return nil, fmt.Errorf("list conversation: %w", err)
	}
	msgs, hasMore := pagination.Trim(rows, limit)

	var unread []string
	for _, m := range msgs {
		if m.RecipientID == requesterID && !m.Read {
			unread = append(unread, m.ID)
		}
	}
	if len(unread) > 0 {
		at := s.clock.Now()
		if _, err := s.repo.MarkRead(ctx, unread, requesterID, at); err != nil {
			return nil, fmt.Errorf("mark viewed messages read: %w", err)
		}
		for _, m := range msgs {
			if m.RecipientID == requesterID && !m.Read {
				m.Read = true
				readAt := at
				m.ReadAt = &readAt
			}
		}
	}
	return &MessagePage{Messages: msgs, HasMore: hasMore}, nil
}

func (s *QueryService) GetUnreadTotal(ctx context.Context, userID string) (int64, error) {
	n, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}

// SuggestContacts lists users with a mutual follow relation to userID.
func (s *QueryService) SuggestContacts(ctx context.Context, userID string) ([]*domain.UserSnippet, error) {
	if s.graph == nil {
		return []*domain.UserSnippet{}, nil
	}
	ids, err := users.Mutual(ctx, s.graph, userID)
	if err != nil {
		return nil, apperror.Wrap(apperror.Unavailable, "social graph unavailable", err)
	}
	found, err := s.people.dir.FindMany(ctx, ids)
	if err != nil {
		return nil, apperror.Wrap(apperror.Unavailable, "user directory unavailable", err)
	}
	out := make([]*domain.UserSnippet, 0, len(ids))
	for _, id := range ids {
		u, ok := found[id]
		if !ok {
			continue
		}
		s.people.decorate(ctx, u)
		out = append(out, u)
	}
	return out, nil
}
