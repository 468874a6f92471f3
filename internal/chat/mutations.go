package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"duochat/internal/attachment"
	"duochat/internal/logger"
	"duochat/internal/model"
	"duochat/internal/store"
)

// SendInput is a new message as typed by the viewer.
type SendInput struct {
	Content   string
	ReplyToID string
	File      *attachment.File
}

// SendMessage uploads the attachment, if any, and then appends the message.
// A failed upload aborts the send before any row is written.
func (s *Session) SendMessage(ctx context.Context, in SendInput) (model.Message, error) {
	if strings.TrimSpace(in.Content) == "" && in.File == nil {
		return model.Message{}, ErrEmptyMessage
	}

	msg := model.Message{SenderID: s.viewer.ID}
	if in.Content != "" {
		content := in.Content
		msg.Content = &content
	}

	if in.ReplyToID != "" {
		if err := s.requireMessage(ctx, in.ReplyToID); err != nil {
			return model.Message{}, err
		}
		replyTo := in.ReplyToID
		msg.ReplyToID = &replyTo
	}

	if in.File != nil {
		att, err := s.upload(ctx, *in.File)
		if err != nil {
			return model.Message{}, err
		}
		msg.Attachment = &att
	}

	saved, err := s.store.InsertMessage(ctx, msg)
	if err != nil {
		return model.Message{}, s.writeFailed(ctx, "Failed to send message", err)
	}

	logger.Ctx(ctx).Info().Str(logger.FieldMessageID, saved.ID).Bool("attachment", saved.Attachment != nil).Msg("message sent")
	s.Invalidate()
	return saved, nil
}

func (s *Session) upload(ctx context.Context, f attachment.File) (model.Attachment, error) {
	if s.uploader == nil {
		s.notify(model.NotificationError, "Failed to upload attachment")
		return model.Attachment{}, fmt.Errorf("%w: no object store configured", ErrUploadFailed)
	}
	att, err := s.uploader.Upload(ctx, f)
	if errors.Is(err, attachment.ErrTooLarge) {
		s.notify(model.NotificationError, "File size must be less than "+humanize.IBytes(uint64(s.uploader.MaxBytes())))
		return model.Attachment{}, fmt.Errorf("%w: %w", ErrAttachmentTooLarge, err)
	}
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("attachment upload failed")
		s.notify(model.NotificationError, "Failed to upload attachment")
		return model.Attachment{}, fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	return att, nil
}

// SetImportant sets the viewer's important flag, preserving the deleted flag.
func (s *Session) SetImportant(ctx context.Context, messageID string, value bool) error {
	if err := s.requireMessage(ctx, messageID); err != nil {
		return err
	}
	err := s.upsertState(ctx, messageID, func(st *model.MessageState) { st.IsImportant = value })
	s.Invalidate()
	if err != nil {
		return s.writeFailed(ctx, "Failed to update message", err)
	}
	return nil
}

// ToggleImportant flips the viewer's important flag and returns the new value.
func (s *Session) ToggleImportant(ctx context.Context, messageID string) (bool, error) {
	if err := s.requireMessage(ctx, messageID); err != nil {
		return false, err
	}
	var value bool
	err := s.upsertState(ctx, messageID, func(st *model.MessageState) {
		st.IsImportant = !st.IsImportant
		value = st.IsImportant
	})
	s.Invalidate()
	if err != nil {
		return false, s.writeFailed(ctx, "Failed to update message", err)
	}
	return value, nil
}

// SetDeleted sets the viewer's deleted flag, preserving the important flag.
// The message row and other viewers are unaffected.
func (s *Session) SetDeleted(ctx context.Context, messageID string, value bool) error {
	if err := s.requireMessage(ctx, messageID); err != nil {
		return err
	}
	err := s.upsertState(ctx, messageID, func(st *model.MessageState) { st.IsDeleted = value })
	s.Invalidate()
	if err != nil {
		return s.writeFailed(ctx, "Failed to delete message", err)
	}
	if value {
		s.notify(model.NotificationSuccess, "Message deleted")
	}
	return nil
}

// ClearResult reports the outcome of ClearConversation.
type ClearResult struct {
	Cleared int      `json:"cleared"`
	Kept    int      `json:"kept"`
	Failed  []string `json:"failed"`
}

// ClearConversation marks every message currently visible to the viewer as
// deleted, skipping important ones when keepImportant is set. Each message is
// written independently: a failure is recorded and the loop continues, so the
// result may be partial.
func (s *Session) ClearConversation(ctx context.Context, keepImportant bool) (ClearResult, error) {
	view, err := s.CurrentView(ctx)
	if err != nil {
		return ClearResult{}, err
	}

	result := ClearResult{Failed: []string{}}
	var errs []error
	for _, mv := range view {
		if keepImportant && mv.IsImportant {
			result.Kept++
			continue
		}
		if err := s.upsertState(ctx, mv.ID, func(st *model.MessageState) { st.IsDeleted = true }); err != nil {
			result.Failed = append(result.Failed, mv.ID)
			errs = append(errs, fmt.Errorf("message %s: %w", mv.ID, err))
			continue
		}
		result.Cleared++
	}
	s.Invalidate()

	if len(errs) > 0 {
		logger.Ctx(ctx).Error().Err(errors.Join(errs...)).Int("cleared", result.Cleared).
			Int("failed", len(result.Failed)).Msg("conversation partially cleared")
		s.notify(model.NotificationError, fmt.Sprintf("Failed to clear %d message(s)", len(result.Failed)))
		return result, fmt.Errorf("%w: %w", ErrWriteFailed, errors.Join(errs...))
	}
	s.notify(model.NotificationSuccess, "Chat cleared")
	return result, nil
}

// ToggleReaction removes the viewer's emoji reaction if present and adds it
// otherwise. It reports whether the reaction is present afterwards. Losing an
// insert race to an identical toggle is not an error.
func (s *Session) ToggleReaction(ctx context.Context, messageID, emoji string) (bool, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return false, ErrInvalidEmoji
	}
	if err := s.requireMessage(ctx, messageID); err != nil {
		return false, err
	}
	defer s.Invalidate()

	_, found, err := s.store.FindReaction(ctx, messageID, s.viewer.ID, emoji)
	if err != nil {
		return false, s.writeFailed(ctx, "Failed to update reaction", err)
	}

	if found {
		if err := s.store.DeleteReaction(ctx, messageID, s.viewer.ID, emoji); err != nil {
			return true, s.writeFailed(ctx, "Failed to remove reaction", err)
		}
		return false, nil
	}

	_, err = s.store.InsertReaction(ctx, model.Reaction{MessageID: messageID, UserID: s.viewer.ID, Emoji: emoji})
	if err != nil && !errors.Is(err, store.ErrDuplicate) {
		return false, s.writeFailed(ctx, "Failed to add reaction", err)
	}
	return true, nil
}

// upsertState applies mutate to the viewer's state row for messageID,
// creating the row from the all-false default when absent. An insert that
// loses a race to a concurrent insert falls back to updating the winner's row.
func (s *Session) upsertState(ctx context.Context, messageID string, mutate func(*model.MessageState)) error {
	st, found, err := s.store.GetState(ctx, messageID, s.viewer.ID)
	if err != nil {
		return err
	}
	if found {
		mutate(&st)
		return s.store.UpdateState(ctx, st)
	}

	st = model.MessageState{MessageID: messageID, UserID: s.viewer.ID}
	mutate(&st)
	_, err = s.store.InsertState(ctx, st)
	if !errors.Is(err, store.ErrDuplicate) {
		return err
	}

	st, found, err = s.store.GetState(ctx, messageID, s.viewer.ID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("state for %s vanished after duplicate insert", messageID)
	}
	mutate(&st)
	return s.store.UpdateState(ctx, st)
}

func (s *Session) requireMessage(ctx context.Context, id string) error {
	_, found, err := s.store.GetMessage(ctx, id)
	if err != nil {
		s.notify(model.NotificationError, "Failed to load messages")
		return fmt.Errorf("%w: %w", ErrReadFailed, err)
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrUnknownMessage, id)
	}
	return nil
}

func (s *Session) writeFailed(ctx context.Context, msg string, err error) error {
	logger.Ctx(ctx).Error().Err(err).Msg(msg)
	s.notify(model.NotificationError, msg)
	return fmt.Errorf("%w: %w", ErrWriteFailed, err)
}
