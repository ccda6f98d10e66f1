package domain

type ReplyPreview struct {
	ID       string `json:"id"`
	SenderID string `json:"sender_id"`
	Content  string `json:"content,omitempty"`
	Kind     Kind   `json:"kind"`
}

func PreviewOf(m *Message) *ReplyPreview {
	if m == nil {
		return nil
	}
	return &ReplyPreview{ID: m.ID, SenderID: m.SenderID, Content: m.Content, Kind: m.Kind}
}

// MessageView is what send and edit hand back to clients.
type MessageView struct {
	*Message
	Sender       *UserSnippet  `json:"sender"`
	Recipient    *UserSnippet  `json:"recipient"`
	ReplyPreview *ReplyPreview `json:"reply_preview,omitempty"`
}

type Conversation struct {
	User        *UserSnippet `json:"user"`
	LastMessage *Message     `json:"last_message"`
	UnreadCount int64        `json:"unread_count"`
}
