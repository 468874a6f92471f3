package chat

import "errors"

var (
	// ErrWriteFailed means the row store rejected an insert, update or delete.
	// Only the operation that hit it is aborted.
	ErrWriteFailed = errors.New("write failed")
	// ErrReadFailed means the sources of a derivation could not be fetched.
	// The previous view stays in place.
	ErrReadFailed = errors.New("read failed")
	// ErrUploadFailed aborts a send; no message row is written.
	ErrUploadFailed = errors.New("attachment upload failed")

	ErrEmptyMessage       = errors.New("message needs content or an attachment")
	ErrAttachmentTooLarge = errors.New("attachment too large")
	ErrUnknownMessage     = errors.New("unknown message")
	ErrUnknownParticipant = errors.New("unknown participant")
	ErrInvalidEmoji       = errors.New("emoji is required")
)
