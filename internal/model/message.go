package model

import "time"

// Participant is one of the configured chat members.
type Participant struct {
	ID          string    `json:"id"`
	Handle      string    `json:"username"`
	DisplayName string    `json:"display_name"`
	AvatarURL   *string   `json:"avatar_url"`
	CreatedAt   time.Time `json:"created_at"`
}

// Attachment describes an uploaded file referenced by a message.
type Attachment struct {
	URL      string `json:"url"`
	MIMEType string `json:"type"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
}

// Message represents a chat message. Rows are append-only.
type Message struct {
	ID         string      `json:"id"`
	SenderID   string      `json:"sender_id"`
	Content    *string     `json:"content"`
	ReplyToID  *string     `json:"reply_to_id"`
	Attachment *Attachment `json:"attachment,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Before reports whether m sorts before other under the (created_at, id) ordering.
func (m Message) Before(other Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID < other.ID
}

// MessageState holds one viewer's flags for one message.
type MessageState struct {
	ID          string    `json:"id"`
	MessageID   string    `json:"message_id"`
	UserID      string    `json:"user_id"`
	IsImportant bool      `json:"is_important"`
	IsDeleted   bool      `json:"is_deleted"`
	CreatedAt   time.Time `json:"created_at"`
}

// Reaction is a (message, user, emoji) triple.
type Reaction struct {
	ID        string    `json:"id"`
	MessageID string    `json:"message_id"`
	UserID    string    `json:"user_id"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

// ReactionPalette is the set of emoji offered by the picker.
var ReactionPalette = []string{"👍", "❤️", "😂", "😮", "😢", "🙏"}
