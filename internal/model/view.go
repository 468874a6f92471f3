package model

import "time"

// ReplyPreview is the resolved target of a reply.
type ReplyPreview struct {
	ID         string       `json:"id"`
	Sender     *Participant `json:"sender,omitempty"`
	Content    *string      `json:"content"`
	Attachment *Attachment  `json:"attachment,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}

// ReactionGroup is an emoji with the number of users who used it.
type ReactionGroup struct {
	Emoji   string   `json:"emoji"`
	Count   int      `json:"count"`
	UserIDs []string `json:"user_ids"`
}

// MessageView is a message enriched for a single viewer.
type MessageView struct {
	Message
	Sender         *Participant    `json:"sender,omitempty"`
	ReplyTo        *ReplyPreview   `json:"reply_to"`
	Reactions      []Reaction      `json:"reactions"`
	ReactionGroups []ReactionGroup `json:"reaction_groups"`
	IsImportant    bool            `json:"is_important"`
	// StateID is empty when the viewer has never annotated the message.
	StateID string `json:"state_id,omitempty"`
}

// ReactedBy reports whether userID holds the given emoji on this message.
func (v MessageView) ReactedBy(userID, emoji string) bool {
	for _, r := range v.Reactions {
		if r.UserID == userID && r.Emoji == emoji {
			return true
		}
	}
	return false
}

// NotificationKind classifies user-facing notifications.
type NotificationKind string

const (
	NotificationSuccess NotificationKind = "success"
	NotificationError   NotificationKind = "error"
	NotificationInfo    NotificationKind = "info"
)

// Notification is a toast-style message surfaced to a viewer.
type Notification struct {
	Kind    NotificationKind `json:"kind"`
	Message string           `json:"message"`
	At      time.Time        `json:"at"`
}

// Envelope types pushed over the websocket.
const (
	EnvelopeView         = "view"
	EnvelopeNotification = "notification"
)

// Envelope wraps a websocket push.
type Envelope struct {
	Type         string        `json:"type"`
	ViewerID     string        `json:"viewer_id"`
	Messages     []MessageView `json:"messages,omitempty"`
	Notification *Notification `json:"notification,omitempty"`
}
