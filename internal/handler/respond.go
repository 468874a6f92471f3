package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"duochat/internal/chat"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps chat errors to an HTTP status and a client-facing message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		return http.StatusBadRequest, "content or file is required"
	case errors.Is(err, chat.ErrInvalidEmoji):
		return http.StatusBadRequest, "emoji is required"
	case errors.Is(err, chat.ErrAttachmentTooLarge):
		return http.StatusRequestEntityTooLarge, "File too large"
	case errors.Is(err, chat.ErrUnknownMessage):
		return http.StatusNotFound, "Message not found"
	case errors.Is(err, chat.ErrUnknownParticipant):
		return http.StatusNotFound, "Participant not found"
	case errors.Is(err, chat.ErrUploadFailed):
		return http.StatusBadGateway, "Failed to upload attachment"
	case errors.Is(err, chat.ErrReadFailed):
		return http.StatusServiceUnavailable, "Failed to load messages"
	default:
		return http.StatusInternalServerError, "Failed to save changes"
	}
}
