package store

import (
	"context"
	"errors"

	"duochat/internal/model"
)

// Table names, also used as change feed topics.
const (
	TableParticipants  = "participants"
	TableMessages      = "messages"
	TableMessageStates = "message_states"
	TableReactions     = "reactions"
)

var (
	// ErrDuplicate is returned when an insert violates a unique key.
	ErrDuplicate = errors.New("duplicate row")
	// ErrNotFound is returned when an update or delete matches no row.
	ErrNotFound = errors.New("row not found")
)

// RowStore is the row-level persistence contract the chat core relies on.
// Message rows are never updated or deleted; state rows are never deleted.
type RowStore interface {
	ListParticipants(ctx context.Context) ([]model.Participant, error)
	UpsertParticipant(ctx context.Context, p model.Participant) (model.Participant, error)

	InsertMessage(ctx context.Context, m model.Message) (model.Message, error)
	GetMessage(ctx context.Context, id string) (model.Message, bool, error)
	ListMessages(ctx context.Context) ([]model.Message, error)

	// ListStates returns only the given user's annotation rows.
	ListStates(ctx context.Context, userID string) ([]model.MessageState, error)
	GetState(ctx context.Context, messageID, userID string) (model.MessageState, bool, error)
	InsertState(ctx context.Context, s model.MessageState) (model.MessageState, error)
	UpdateState(ctx context.Context, s model.MessageState) error

	ListReactions(ctx context.Context) ([]model.Reaction, error)
	FindReaction(ctx context.Context, messageID, userID, emoji string) (model.Reaction, bool, error)
	InsertReaction(ctx context.Context, r model.Reaction) (model.Reaction, error)
	DeleteReaction(ctx context.Context, messageID, userID, emoji string) error
}
