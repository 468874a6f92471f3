package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"duochat/internal/logger"
	"duochat/internal/model"
)

const headerViewer = "X-Viewer"

// viewerFor resolves the acting participant from the X-Viewer header or the
// viewer query parameter, falling back to the persisted current viewer.
func (h *Handler) viewerFor(r *http.Request) (model.Participant, error) {
	ref := strings.TrimSpace(r.Header.Get(headerViewer))
	if ref == "" {
		ref = strings.TrimSpace(r.URL.Query().Get("viewer"))
	}
	if ref == "" {
		return h.Hub.CurrentViewer(r.Context())
	}
	return h.Hub.Resolve(ref)
}

// Healthz handles GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetParticipants handles GET /participants
func (h *Handler) GetParticipants(w http.ResponseWriter, r *http.Request) {
	viewer, err := h.viewerFor(r)
	if err != nil {
		status, msg := statusFor(err)
		logger.Ctx(r.Context()).Warn().Err(err).Msg("[GET /participants] ❌ Unknown viewer")
		writeError(w, status, msg)
		return
	}

	resp := map[string]any{
		"participants": h.Hub.Participants(),
		"current":      viewer,
	}
	if other, ok := h.Hub.Other(viewer.ID); ok {
		resp["other"] = other
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetViewer handles GET /viewer
func (h *Handler) GetViewer(w http.ResponseWriter, r *http.Request) {
	viewer, err := h.Hub.CurrentViewer(r.Context())
	if err != nil {
		status, msg := statusFor(err)
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, viewer)
}

// SwitchViewer handles PUT /viewer
func (h *Handler) SwitchViewer(w http.ResponseWriter, r *http.Request) {
	log := logger.Ctx(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req struct {
		Handle string `json:"handle"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Handle) == "" {
		log.Warn().Err(err).Msg("[PUT /viewer] ❌ Bad Request")
		writeError(w, http.StatusBadRequest, "handle is required")
		return
	}

	viewer, err := h.Hub.SwitchViewer(r.Context(), strings.TrimSpace(req.Handle))
	if err != nil {
		status, msg := statusFor(err)
		log.Warn().Err(err).Str("handle", req.Handle).Msg("[PUT /viewer] ❌ Switch failed")
		writeError(w, status, msg)
		return
	}

	log.Info().Str(logger.FieldViewer, viewer.ID).Msg("[PUT /viewer] ✅ Switched viewer")
	writeJSON(w, http.StatusOK, viewer)
}

// GetPalette handles GET /reactions/palette
func (h *Handler) GetPalette(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.ReactionPalette)
}
