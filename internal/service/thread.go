package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/fathima-sithara/dm-service/internal/apperror"
	"github.com/fathima-sithara/dm-service/internal/domain"
	"github.com/fathima-sithara/dm-service/internal/pagination"
	"github.com/fathima-sithara/dm-service/internal/repository"
)

// ResolveThread gives the thread a reply to parent belongs to. Threads are
// flat: replying to a reply joins the original thread.
func ResolveThread(parent *domain.Message) string {
	if parent.ThreadID != "" {
		return parent.ThreadID
	}
	return parent.ID
}

// FetchThread pages through a thread with the same cursor rules as
// ListMessages. Only messages the viewer sent or received are returned.
func (s *QueryService) FetchThread(ctx context.Context, viewerID, threadID string, page Page) (*MessagePage, error) {
	if strings.TrimSpace(threadID) == "" {
		return nil, apperror.Invalid("thread id is required")
	}
	limit := pagination.ClampLimit(page.Limit)
	rows, err := s.repo.ListThread(ctx, repository.ThreadQuery{
		ThreadID: threadID,
		ViewerID: viewerID,
		Before:   page.Before,
		Limit:    limit + 1,
	})
	if err != nil {
		return nil, fmt.Errorf("list thread: %w", err)
	}
	msgs, hasMore := pagination.Trim(rows, limit)
	return &MessagePage{Messages: msgs, HasMore: hasMore}, nil
}
