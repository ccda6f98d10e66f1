package domain

import "time"

// UserSnippet is the display data attached to messages and conversations.
type UserSnippet struct {
	ID          string     `bson:"_id" json:"id"`
	Username    string     `bson:"username" json:"username,omitempty"`
	DisplayName string     `bson:"display_name" json:"display_name,omitempty"`
	Avatar      string     `bson:"avatar,omitempty" json:"avatar,omitempty"`
	Online      bool       `bson:"-" json:"online"`
	LastActive  *time.Time `bson:"last_active,omitempty" json:"last_active,omitempty"`
}

func (u *UserSnippet) Name() string {
	if u == nil {
		return ""
	}
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}
