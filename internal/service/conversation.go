package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/fathima-sithara/dm-service/internal/domain"
	"github.com/fathima-sithara/dm-service/internal/pagination"
)

type ConversationPage struct {
	Items    []*domain.Conversation `json:"items"`
	Total    int                    `json:"total"`
	Page     int                    `json:"page"`
	PageSize int                    `json:"page_size"`
	HasMore  bool                   `json:"has_more"`
}

type group struct {
	counterpart string
	last        *domain.Message
	unread      int64
}

// ListConversations groups every message userID took part in by
// counterpart, newest conversation first, then cuts one offset page.
func (s *QueryService) ListConversations(ctx context.Context, userID string, page, pageSize int) (*ConversationPage, error) {
	page, pageSize = pagination.ClampPage(page, pageSize)

	groups := map[string]*group{}
	err := s.repo.ScanForUser(ctx, userID, func(m *domain.Message) error {
		cp := m.Counterpart(userID)
		g, ok := groups[cp]
		if !ok {
			g = &group{counterpart: cp, last: m}
			groups[cp] = g
		} else if m.CreatedAt.After(g.last.CreatedAt) {
			g.last = m
		}
		if m.RecipientID == userID && !m.Read {
			g.unread++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan conversations: %w", err)
	}

	sorted := make([]*group, 0, len(groups))
	for _, g := range groups {
		sorted = append(sorted, g)
	}
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i].last.CreatedAt, sorted[j].last.CreatedAt
		if a.Equal(b) {
			return sorted[i].counterpart < sorted[j].counterpart
		}
		return a.After(b)
	})

	window, hasMore := pagination.Slice(sorted, page, pageSize)
	ids := make([]string, len(window))
	for i, g := range window {
		ids[i] = g.counterpart
	}
	people := s.people.many(ctx, ids)

	items := make([]*domain.Conversation, len(window))
	for i, g := range window {
		items[i] = &domain.Conversation{
			User:        people[g.counterpart],
			LastMessage: g.last,
			UnreadCount: g.unread,
		}
	}
	return &ConversationPage{
		Items:    items,
		Total:    len(sorted),
		Page:     page,
		PageSize: pageSize,
		HasMore:  hasMore,
	}, nil
}
