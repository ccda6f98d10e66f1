package push

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/fathima-sithara/dm-service/internal/domain"
)

type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Icon  string `json:"icon,omitempty"`
	URL   string `json:"url"`
	Tag   string `json:"tag"`
}

type Result int

const (
	Skipped Result = iota
	Delivered
)

func (r Result) String() string {
	if r == Delivered {
		return "delivered"
	}
	return "skipped"
}

// Dispatcher sends one notification to every endpoint a user registered.
type Dispatcher interface {
	Dispatch(ctx context.Context, userID string, n Notification) (Result, error)
}

type Job struct {
	UserID       string       `json:"user_id"`
	Notification Notification `json:"notification"`
}

// Queue accepts jobs without blocking the caller on delivery.
type Queue interface {
	Submit(job Job) error
	Close() error
}

const maxBody = 140

var placeholders = map[domain.Kind]string{
	domain.KindImage: "Sent a photo",
	domain.KindFile:  "Sent a file",
	domain.KindAudio: "Sent a voice message",
	domain.KindVideo: "Sent a video",
}

// NotificationFor builds the offline alert for a new message.
func NotificationFor(v *domain.MessageView) Notification {
	title := v.Sender.Name()
	if title == "" {
		title = "New message"
	}
	body := v.Content
	if v.Kind != domain.KindText {
		if p, ok := placeholders[v.Kind]; ok && body == "" {
			body = p
		}
	}
	if utf8.RuneCountInString(body) > maxBody {
		body = string([]rune(body)[:maxBody-1]) + "…"
	}
	n := Notification{
		Title: title,
		Body:  body,
		URL:   fmt.Sprintf("/messages/%s", v.SenderID),
		Tag:   fmt.Sprintf("dm-%s", v.SenderID),
	}
	if v.Sender != nil {
		n.Icon = v.Sender.Avatar
	}
	return n
}
