package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fathima-sithara/dm-service/internal/domain"
)

// MemoryRepository keeps messages in process. Callers always get copies.
type MemoryRepository struct {
	mu   sync.RWMutex
	msgs map[string]*domain.Message
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{msgs: make(map[string]*domain.Message)}
}

func (r *MemoryRepository) Insert(_ context.Context, m *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.Reactions == nil {
		m.Reactions = []domain.Reaction{}
	}
	r.msgs[m.ID] = m.Clone()
	return nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (*domain.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.msgs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m.Clone(), nil
}

func (r *MemoryRepository) UpdateContent(_ context.Context, id, content string, at time.Time) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.msgs[id]
	if !ok {
		return nil, ErrNotFound
	}
	m.Content = content
	m.Edited = true
	m.EditedAt = &at
	return m.Clone(), nil
}

func (r *MemoryRepository) MarkConversationRead(_ context.Context, counterpartID, readerID string, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, m := range r.msgs {
		if m.SenderID == counterpartID && m.RecipientID == readerID && !m.Read {
			markRead(m, at)
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) MarkOneRead(_ context.Context, id, readerID string, at time.Time) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.msgs[id]
	if !ok || m.RecipientID != readerID || m.Read {
		return nil, ErrNotFound
	}
	markRead(m, at)
	return m.Clone(), nil
}

func (r *MemoryRepository) MarkRead(_ context.Context, ids []string, readerID string, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, id := range ids {
		m, ok := r.msgs[id]
		if ok && m.RecipientID == readerID && !m.Read {
			markRead(m, at)
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) ToggleReaction(_ context.Context, id, userID, emoji string, at time.Time) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.msgs[id]
	if !ok {
		return nil, ErrNotFound
	}
	prev, had := m.ReactionBy(userID)
	kept := make([]domain.Reaction, 0, len(m.Reactions)+1)
	for _, rc := range m.Reactions {
		if rc.UserID != userID {
			kept = append(kept, rc)
		}
	}
	if !had || prev.Emoji != emoji {
		kept = append(kept, domain.Reaction{UserID: userID, Emoji: emoji, CreatedAt: at})
	}
	m.Reactions = kept
	return m.Clone(), nil
}

func (r *MemoryRepository) RemoveReaction(_ context.Context, id, userID, emoji string) (*domain.Message, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.msgs[id]
	if !ok {
		return nil, false, ErrNotFound
	}
	kept := make([]domain.Reaction, 0, len(m.Reactions))
	removed := false
	for _, rc := range m.Reactions {
		if rc.UserID == userID && (emoji == "" || rc.Emoji == emoji) {
			removed = true
			continue
		}
		kept = append(kept, rc)
	}
	m.Reactions = kept
	return m.Clone(), removed, nil
}

func (r *MemoryRepository) ListConversation(_ context.Context, q ConversationQuery) ([]*domain.Message, error) {
	text := strings.ToLower(q.Text)
	return r.collect(q.Limit, func(m *domain.Message) bool {
		between := (m.SenderID == q.UserID && m.RecipientID == q.CounterpartID) ||
			(m.SenderID == q.CounterpartID && m.RecipientID == q.UserID)
		if !between || !inRange(m.CreatedAt, q.Before, q.Start, q.End) {
			return false
		}
		return text == "" || strings.Contains(strings.ToLower(m.Content), text)
	}), nil
}

func (r *MemoryRepository) ListThread(_ context.Context, q ThreadQuery) ([]*domain.Message, error) {
	return r.collect(q.Limit, func(m *domain.Message) bool {
		return m.ThreadID == q.ThreadID && m.Involves(q.ViewerID) &&
			inRange(m.CreatedAt, q.Before, time.Time{}, time.Time{})
	}), nil
}

func (r *MemoryRepository) ScanForUser(ctx context.Context, userID string, fn func(*domain.Message) error) error {
	rows := r.collect(0, func(m *domain.Message) bool { return m.Involves(userID) })
	for _, m := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(m); err != nil {
			return err
		}
	}
	return nil
}

func (r *MemoryRepository) CountUnread(_ context.Context, userID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, m := range r.msgs {
		if m.RecipientID == userID && !m.Read {
			n++
		}
	}
	return n, nil
}

// collect copies matching rows newest first, capped at limit when positive.
func (r *MemoryRepository) collect(limit int, match func(*domain.Message) bool) []*domain.Message {
	r.mu.RLock()
	out := []*domain.Message{}
	for _, m := range r.msgs {
		if match(m) {
			out = append(out, m.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func inRange(t, before, start, end time.Time) bool {
	if !before.IsZero() && !t.Before(before) {
		return false
	}
	if !start.IsZero() && t.Before(start) {
		return false
	}
	if !end.IsZero() && t.After(end) {
		return false
	}
	return true
}

func markRead(m *domain.Message, at time.Time) {
	m.Read = true
	t := at
	m.ReadAt = &t
}
