package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fathima-sithara/dm-service/internal/apperror"
	"github.com/fathima-sithara/dm-service/internal/domain"
	"github.com/fathima-sithara/dm-service/internal/metrics"
	"github.com/fathima-sithara/dm-service/internal/repository"
	"github.com/fathima-sithara/dm-service/internal/users"
	"github.com/fathima-sithara/dm-service/internal/utils"
	"go.uber.org/zap"
)

type SendInput struct {
	SenderID    string
	RecipientID string
	// RecipientUsername is used when RecipientID is empty.
	RecipientUsername string
	Kind              domain.Kind
	Content           string
	Media             *domain.Media
	ReplyTo           string
}

type CommandService struct {
	repo   repository.MessageRepository
	people snippets
	dir    users.Directory
	emit   Emitter
	clock  Clock
	log    *zap.SugaredLogger
}

func NewCommandService(repo repository.MessageRepository, dir users.Directory, presence Presence, emit Emitter, clock Clock, log *zap.SugaredLogger) *CommandService {
	if emit == nil {
		emit = nopEmitter{}
	}
	return &CommandService{
		repo:   repo,
		people: snippets{dir: dir, presence: presence, log: log},
		dir:    dir,
		emit:   emit,
		clock:  clock,
		log:    log,
	}
}

// Send stores a new message and announces it to both parties.
func (s *CommandService) Send(ctx context.Context, in SendInput) (*domain.MessageView, error) {
	kind := in.Kind
	if kind == "" {
		kind = domain.KindText
	}
	if !kind.Valid() {
		return nil, apperror.Invalid("unsupported message kind")
	}
	if in.SenderID == "" {
		return nil, apperror.Invalid("sender is required")
	}
	if strings.TrimSpace(in.RecipientID) == "" && strings.TrimSpace(in.RecipientUsername) == "" {
		return nil, apperror.Invalid("recipient is required")
	}
	media := in.Media
	if kind == domain.KindText {
		if strings.TrimSpace(in.Content) == "" {
			return nil, apperror.Invalid("message content is required")
		}
		media = nil
	} else if media == nil || strings.TrimSpace(media.URL) == "" {
		return nil, apperror.Invalid("media url is required")
	}

	recipient, err := s.findRecipient(ctx, in)
	if err != nil {
		return nil, err
	}

	m := &domain.Message{
		ID:          utils.NewID(),
		SenderID:    in.SenderID,
		RecipientID: recipient.ID,
		Content:     in.Content,
		Kind:        kind,
		Media:       media,
		ReplyTo:     in.ReplyTo,
		Reactions:   []domain.Reaction{},
		CreatedAt:   s.clock.Now(),
	}
	m.ThreadID = m.ID

	parent, err := s.replyParent(ctx, m)
	if err != nil {
		return nil, err
	}
	if parent != nil {
		m.ThreadID = ResolveThread(parent)
	}

	if err := s.repo.Insert(ctx, m); err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	metrics.MessagesSent.WithLabelValues(string(kind)).Inc()

	view := s.people.view(ctx, m, parent)
	s.emit.Emit(domain.Event{
		Type:    domain.EventMessageCreated,
		Payload: view,
		At:      m.CreatedAt,
		From:    m.SenderID,
		To:      m.RecipientID,
	})
	return view, nil
}

// replyParent loads the message m replies to. A parent outside m's
// conversation is treated like a missing one: nil, so m keeps reply_to but
// starts its own thread and shows no preview.
func (s *CommandService) replyParent(ctx context.Context, m *domain.Message) (*domain.Message, error) {
	if m.ReplyTo == "" {
		return nil, nil
	}
	p, err := s.repo.GetByID(ctx, m.ReplyTo)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("load reply parent: %w", err)
	}
	if !p.Involves(m.SenderID) || !p.Involves(m.RecipientID) {
		return nil, nil
	}
	return p, nil
}

// Edit replaces the content of a message. Only its sender may edit it.
func (s *CommandService) Edit(ctx context.Context, messageID, actorID, content string) (*domain.MessageView, error) {
	m, err := s.repo.GetByID(ctx, messageID)
	if err != nil {
		return nil, s.notFound(err, "message not found")
	}
	if m.SenderID != actorID {
		return nil, apperror.Forbidden("only the sender can edit this message")
	}
	if strings.TrimSpace(content) == "" {
		return nil, apperror.Invalid("message content is required")
	}

	updated, err := s.repo.UpdateContent(ctx, messageID, content, s.clock.Now())
	if err != nil {
		return nil, s.notFound(err, "message not found")
	}

	parent, _ := s.replyParent(ctx, updated)
	view := s.people.view(ctx, updated, parent)
	s.emit.Emit(domain.Event{
		Type:    domain.EventMessageEdited,
		Payload: view,
		At:      *updated.EditedAt,
		From:    updated.SenderID,
		To:      updated.RecipientID,
	})
	return view, nil
}

// ToggleReaction sets, replaces or clears the caller's reaction.
func (s *CommandService) ToggleReaction(ctx context.Context, messageID, userID, emoji string) ([]domain.Reaction, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return nil, apperror.Invalid("emoji is required")
	}
	m, err := s.repo.GetByID(ctx, messageID)
	if err != nil {
		return nil, s.notFound(err, "message not found")
	}
	if !m.Involves(userID) {
		return nil, apperror.Forbidden("not a participant of this conversation")
	}
	updated, err := s.repo.ToggleReaction(ctx, messageID, userID, emoji, s.clock.Now())
	if err != nil {
		return nil, s.notFound(err, "message not found")
	}
	s.emitReactions(updated, userID)
	return updated.Reactions, nil
}

// RemoveReaction clears the caller's reaction, or only a matching one
// when emoji is given.
func (s *CommandService) RemoveReaction(ctx context.Context, messageID, userID, emoji string) ([]domain.Reaction, error) {
	updated, removed, err := s.repo.RemoveReaction(ctx, messageID, userID, strings.TrimSpace(emoji))
	if err != nil {
		return nil, s.notFound(err, "message not found")
	}
	if !removed {
		return nil, apperror.Missing("reaction not found")
	}
	s.emitReactions(updated, userID)
	return updated.Reactions, nil
}

func (s *CommandService) emitReactions(m *domain.Message, actorID string) {
	s.emit.Emit(domain.Event{
		Type: domain.EventReactionChanged,
		Payload: domain.ReactionChange{
			MessageID: m.ID,
			ThreadID:  m.ThreadID,
			UserID:    actorID,
			Reactions: m.Reactions,
		},
		At:   s.clock.Now(),
		From: m.SenderID,
		To:   m.RecipientID,
	})
}

// MarkOneRead marks a single message read. A message that does not exist,
// is addressed to someone else or is already read all look the same.
func (s *CommandService) MarkOneRead(ctx context.Context, messageID, readerID string) (*domain.Message, error) {
	m, err := s.repo.MarkOneRead(ctx, messageID, readerID, s.clock.Now())
	if err != nil {
		return nil, s.notFound(err, "message not found or already read")
	}
	return m, nil
}

// MarkConversationRead marks everything counterpartID sent to readerID as read.
func (s *CommandService) MarkConversationRead(ctx context.Context, counterpartID, readerID string) (int64, error) {
	if strings.TrimSpace(counterpartID) == "" {
		return 0, apperror.Invalid("counterpart is required")
	}
	n, err := s.repo.MarkConversationRead(ctx, counterpartID, readerID, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("mark conversation read: %w", err)
	}
	return n, nil
}

// Typing relays a typing indicator to the counterpart only.
func (s *CommandService) Typing(ctx context.Context, fromID, toID string, typing bool) error {
	if strings.TrimSpace(toID) == "" {
		return apperror.Invalid("recipient is required")
	}
	s.emit.Emit(domain.Event{
		Type:    domain.EventTyping,
		Payload: domain.Typing{From: fromID, To: toID, Typing: typing},
		At:      s.clock.Now(),
		From:    fromID,
		To:      toID,
	})
	return nil
}

func (s *CommandService) findRecipient(ctx context.Context, in SendInput) (*domain.UserSnippet, error) {
	var (
		u   *domain.UserSnippet
		err error
	)
	if in.RecipientID != "" {
		u, err = s.dir.FindByID(ctx, in.RecipientID)
	} else {
		u, err = s.dir.FindByUsername(ctx, strings.TrimPrefix(strings.TrimSpace(in.RecipientUsername), "@"))
	}
	if errors.Is(err, users.ErrNotFound) {
		return nil, apperror.Missing("recipient not found")
	}
	if err != nil {
		return nil, apperror.Wrap(apperror.Unavailable, "user directory unavailable", err)
	}
	return u, nil
}

func (s *CommandService) notFound(err error, reason string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.Missing(reason)
	}
	return err
}
