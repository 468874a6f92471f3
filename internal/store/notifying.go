package store

import (
	"context"

	"duochat/internal/logger"
	"duochat/internal/model"
)

// ChangePublisher announces that a table changed.
type ChangePublisher interface {
	Publish(ctx context.Context, table string) error
}

// Notifying decorates a RowStore so every successful write publishes a
// change event for its table, the way a hosted database's change capture would.
type Notifying struct {
	RowStore
	pub ChangePublisher
}

// NewNotifying wraps inner with change publication.
func NewNotifying(inner RowStore, pub ChangePublisher) *Notifying {
	return &Notifying{RowStore: inner, pub: pub}
}

// A publish failure never fails the write; the row is already committed.
func (n *Notifying) publish(ctx context.Context, table string) {
	if err := n.pub.Publish(ctx, table); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str(logger.FieldTable, table).Msg("change publish failed")
	}
}

func (n *Notifying) UpsertParticipant(ctx context.Context, p model.Participant) (model.Participant, error) {
	out, err := n.RowStore.UpsertParticipant(ctx, p)
	if err == nil {
		n.publish(ctx, TableParticipants)
	}
	return out, err
}

func (n *Notifying) InsertMessage(ctx context.Context, m model.Message) (model.Message, error) {
	out, err := n.RowStore.InsertMessage(ctx, m)
	if err == nil {
		n.publish(ctx, TableMessages)
	}
	return out, err
}

func (n *Notifying) InsertState(ctx context.Context, st model.MessageState) (model.MessageState, error) {
	out, err := n.RowStore.InsertState(ctx, st)
	if err == nil {
		n.publish(ctx, TableMessageStates)
	}
	return out, err
}

func (n *Notifying) UpdateState(ctx context.Context, st model.MessageState) error {
	err := n.RowStore.UpdateState(ctx, st)
	if err == nil {
		n.publish(ctx, TableMessageStates)
	}
	return err
}

func (n *Notifying) InsertReaction(ctx context.Context, r model.Reaction) (model.Reaction, error) {
	out, err := n.RowStore.InsertReaction(ctx, r)
	if err == nil {
		n.publish(ctx, TableReactions)
	}
	return out, err
}

func (n *Notifying) DeleteReaction(ctx context.Context, messageID, userID, emoji string) error {
	err := n.RowStore.DeleteReaction(ctx, messageID, userID, emoji)
	if err == nil {
		n.publish(ctx, TableReactions)
	}
	return err
}
