package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"duochat/internal/attachment"
	"duochat/internal/chat"
	"duochat/internal/logger"
	"duochat/internal/model"
)

// maxJSONBody limits JSON request bodies to 1MB
const maxJSONBody = 1 << 20

// session resolves the viewer and returns their session. It writes the error
// response itself and returns nil when the viewer is unknown.
func (h *Handler) session(w http.ResponseWriter, r *http.Request, route string) *chat.Session {
	viewer, err := h.viewerFor(r)
	if err != nil {
		status, msg := statusFor(err)
		logger.Ctx(r.Context()).Warn().Err(err).Msgf("[%s] ❌ Unknown viewer", route)
		writeError(w, status, msg)
		return nil
	}
	return h.Hub.Session(viewer)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, route string, err error) {
	status, msg := statusFor(err)
	ev := logger.Ctx(r.Context()).Warn()
	if status >= http.StatusInternalServerError {
		ev = logger.Ctx(r.Context()).Error()
	}
	ev.Err(err).Int(logger.FieldStatus, status).Msgf("[%s] ❌ %s", route, msg)
	writeError(w, status, msg)
}

// GetMessages handles GET /messages
// 閲覧者ごとの派生ビュー（削除済みを除き、作成日時順）を返す
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	const route = "GET /messages"
	s := h.session(w, r, route)
	if s == nil {
		return
	}

	view, err := s.CurrentView(r.Context())
	if err != nil {
		h.fail(w, r, route, err)
		return
	}
	if view == nil {
		view = []model.MessageView{}
	}

	logger.Ctx(r.Context()).Debug().Int("count", len(view)).Msgf("[%s] ✅ Returned view", route)
	writeJSON(w, http.StatusOK, view)
}

// GetImportant handles GET /messages/important
func (h *Handler) GetImportant(w http.ResponseWriter, r *http.Request) {
	const route = "GET /messages/important"
	s := h.session(w, r, route)
	if s == nil {
		return
	}

	view, err := s.CurrentView(r.Context())
	if err != nil {
		h.fail(w, r, route, err)
		return
	}
	writeJSON(w, http.StatusOK, chat.ImportantVault(view))
}

type createMessageRequest struct {
	Content   string `json:"content"`
	ReplyToID string `json:"reply_to_id"`
}

// CreateMessage handles POST /messages
// JSON とマルチパート（添付ファイル付き）の両方を受け付ける
func (h *Handler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	const route = "POST /messages"
	log := logger.Ctx(r.Context())

	s := h.session(w, r, route)
	if s == nil {
		return
	}

	var in chat.SendInput
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, h.Config.MaxAttachmentBytes+maxJSONBody)
		if err := r.ParseMultipartForm(maxJSONBody); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				log.Warn().Err(err).Msgf("[%s] ❌ Body too large", route)
				writeError(w, http.StatusRequestEntityTooLarge, "File too large")
				return
			}
			log.Warn().Err(err).Msgf("[%s] ❌ Bad Request", route)
			writeError(w, http.StatusBadRequest, "Invalid multipart body")
			return
		}
		defer r.MultipartForm.RemoveAll()

		in.Content = r.FormValue("content")
		in.ReplyToID = r.FormValue("reply_to_id")

		file, header, err := r.FormFile("file")
		switch {
		case errors.Is(err, http.ErrMissingFile):
		case err != nil:
			log.Warn().Err(err).Msgf("[%s] ❌ Bad file part", route)
			writeError(w, http.StatusBadRequest, "Invalid file")
			return
		default:
			defer file.Close()
			in.File = &attachment.File{
				Name:        header.Filename,
				ContentType: header.Header.Get("Content-Type"),
				Size:        header.Size,
				Body:        file,
			}
		}
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
		var req createMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			log.Warn().Err(err).Msgf("[%s] ❌ Bad Request", route)
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		in.Content = req.Content
		in.ReplyToID = req.ReplyToID
	}

	msg, err := s.SendMessage(r.Context(), in)
	if err != nil {
		h.fail(w, r, route, err)
		return
	}

	log.Info().Str(logger.FieldMessageID, msg.ID).Msgf("[%s] ✅ Created message", route)
	writeJSON(w, http.StatusCreated, msg)
}

// SetImportant handles PUT /messages/{id}/important
func (h *Handler) SetImportant(w http.ResponseWriter, r *http.Request) {
	const route = "PUT /messages/{id}/important"
	id := mux.Vars(r)["id"]

	s := h.session(w, r, route)
	if s == nil {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	var req struct {
		Value *bool `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Value == nil {
		logger.Ctx(r.Context()).Warn().Err(err).Msgf("[%s] ❌ Bad Request", route)
		writeError(w, http.StatusBadRequest, "value is required")
		return
	}

	if err := s.SetImportant(r.Context(), id, *req.Value); err != nil {
		h.fail(w, r, route, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "is_important": *req.Value})
}

// ToggleImportant handles POST /messages/{id}/important/toggle
func (h *Handler) ToggleImportant(w http.ResponseWriter, r *http.Request) {
	const route = "POST /messages/{id}/important/toggle"
	id := mux.Vars(r)["id"]

	s := h.session(w, r, route)
	if s == nil {
		return
	}

	value, err := s.ToggleImportant(r.Context(), id)
	if err != nil {
		h.fail(w, r, route, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "is_important": value})
}

// DeleteMessage handles DELETE /messages/{id}
// 閲覧者本人のビューからのみ削除する（メッセージ行自体は残る）
func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	const route = "DELETE /messages/{id}"
	id := mux.Vars(r)["id"]

	s := h.session(w, r, route)
	if s == nil {
		return
	}

	if err := s.SetDeleted(r.Context(), id, true); err != nil {
		h.fail(w, r, route, err)
		return
	}

	logger.Ctx(r.Context()).Info().Str(logger.FieldMessageID, id).Msgf("[%s] ✅ Deleted for viewer", route)
	w.WriteHeader(http.StatusNoContent)
}

// ToggleReaction handles POST /messages/{id}/reactions
func (h *Handler) ToggleReaction(w http.ResponseWriter, r *http.Request) {
	const route = "POST /messages/{id}/reactions"
	id := mux.Vars(r)["id"]

	s := h.session(w, r, route)
	if s == nil {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	var req struct {
		Emoji string `json:"emoji"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Ctx(r.Context()).Warn().Err(err).Msgf("[%s] ❌ Bad Request", route)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	present, err := s.ToggleReaction(r.Context(), id, req.Emoji)
	if err != nil {
		h.fail(w, r, route, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message_id": id, "emoji": strings.TrimSpace(req.Emoji), "reacted": present})
}

// ClearConversation handles POST /conversation/clear
func (h *Handler) ClearConversation(w http.ResponseWriter, r *http.Request) {
	const route = "POST /conversation/clear"

	s := h.session(w, r, route)
	if s == nil {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	var req struct {
		KeepImportant bool `json:"keep_important"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		logger.Ctx(r.Context()).Warn().Err(err).Msgf("[%s] ❌ Bad Request", route)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := s.ClearConversation(r.Context(), req.KeepImportant)
	if errors.Is(err, chat.ErrWriteFailed) {
		logger.Ctx(r.Context()).Error().Err(err).Int("failed", len(res.Failed)).Msgf("[%s] ❌ Partially cleared", route)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Failed to clear some messages", "result": res})
		return
	}
	if err != nil {
		h.fail(w, r, route, err)
		return
	}

	logger.Ctx(r.Context()).Info().Int("cleared", res.Cleared).Int("kept", res.Kept).Msgf("[%s] ✅ Cleared", route)
	writeJSON(w, http.StatusOK, res)
}
