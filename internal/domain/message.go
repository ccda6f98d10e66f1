package domain

import (
	"sort"
	"strings"
	"time"
)

type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindFile  Kind = "file"
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

func (k Kind) Valid() bool {
	switch k {
	case KindText, KindImage, KindFile, KindAudio, KindVideo:
		return true
	}
	return false
}

// Media is attached to every non-text message.
type Media struct {
	URL      string  `bson:"url" json:"url"`
	Duration float64 `bson:"duration,omitempty" json:"duration,omitempty"` // seconds, audio/video
	Poster   string  `bson:"poster,omitempty" json:"poster,omitempty"`
	FileName string  `bson:"file_name,omitempty" json:"file_name,omitempty"`
	Size     int64   `bson:"size,omitempty" json:"size,omitempty"`
}

type Reaction struct {
	UserID    string    `bson:"user_id" json:"user_id"`
	Emoji     string    `bson:"emoji" json:"emoji"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

type Message struct {
	ID          string     `bson:"_id" json:"id"`
	SenderID    string     `bson:"sender_id" json:"sender_id"`
	RecipientID string     `bson:"recipient_id" json:"recipient_id"`
	Content     string     `bson:"content,omitempty" json:"content,omitempty"`
	Kind        Kind       `bson:"kind" json:"kind"`
	Media       *Media     `bson:"media,omitempty" json:"media,omitempty"`
	ThreadID    string     `bson:"thread_id" json:"thread_id"`
	ReplyTo     string     `bson:"reply_to,omitempty" json:"reply_to,omitempty"`
	Reactions   []Reaction `bson:"reactions" json:"reactions"`
	Read        bool       `bson:"read" json:"read"`
	ReadAt      *time.Time `bson:"read_at,omitempty" json:"read_at,omitempty"`
	Edited      bool       `bson:"edited" json:"edited"`
	EditedAt    *time.Time `bson:"edited_at,omitempty" json:"edited_at,omitempty"`
	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
}

// Counterpart is the other party from user's point of view. A message to
// oneself has the user as its own counterpart.
func (m *Message) Counterpart(user string) string {
	if m.SenderID == user {
		return m.RecipientID
	}
	return m.SenderID
}

func (m *Message) Involves(user string) bool {
	return m.SenderID == user || m.RecipientID == user
}

func (m *Message) ReactionBy(user string) (Reaction, bool) {
	for _, r := range m.Reactions {
		if r.UserID == user {
			return r, true
		}
	}
	return Reaction{}, false
}

func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	c := *m
	if m.Media != nil {
		media := *m.Media
		c.Media = &media
	}
	c.Reactions = make([]Reaction, len(m.Reactions))
	copy(c.Reactions, m.Reactions)
	if m.ReadAt != nil {
		t := *m.ReadAt
		c.ReadAt = &t
	}
	if m.EditedAt != nil {
		t := *m.EditedAt
		c.EditedAt = &t
	}
	return &c
}

// ConversationKey names the pair regardless of direction.
func ConversationKey(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return strings.Join(pair, ":")
}
