package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fathima-sithara/dm-service/internal/domain"
)

var ErrNotFound = errors.New("not found")

// ConversationQuery selects messages between UserID and CounterpartID.
// Zero times and an empty Text disable the corresponding filter.
type ConversationQuery struct {
	UserID        string
	CounterpartID string
	Before        time.Time
	Start         time.Time
	End           time.Time
	Text          string
	Limit         int
}

type ThreadQuery struct {
	ThreadID string
	ViewerID string
	Before   time.Time
	Limit    int
}

// MessageRepository is the message log. Every list method returns rows
// newest first; single-document mutations are atomic.
type MessageRepository interface {
	Insert(ctx context.Context, m *domain.Message) error
	GetByID(ctx context.Context, id string) (*domain.Message, error)
	UpdateContent(ctx context.Context, id, content string, at time.Time) (*domain.Message, error)

	MarkConversationRead(ctx context.Context, counterpartID, readerID string, at time.Time) (int64, error)
	MarkOneRead(ctx context.Context, id, readerID string, at time.Time) (*domain.Message, error)
	MarkRead(ctx context.Context, ids []string, readerID string, at time.Time) (int64, error)

	ToggleReaction(ctx context.Context, id, userID, emoji string, at time.Time) (*domain.Message, error)
	// RemoveReaction drops userID's reaction (only if it is emoji, when emoji
	// is set). removed is false when there was nothing to drop.
	RemoveReaction(ctx context.Context, id, userID, emoji string) (m *domain.Message, removed bool, err error)

	ListConversation(ctx context.Context, q ConversationQuery) ([]*domain.Message, error)
	ListThread(ctx context.Context, q ThreadQuery) ([]*domain.Message, error)
	ScanForUser(ctx context.Context, userID string, fn func(*domain.Message) error) error
	CountUnread(ctx context.Context, userID string) (int64, error)
}
