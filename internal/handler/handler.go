package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"duochat/internal/chat"
	"duochat/internal/config"
)

// Handler holds application dependencies
type Handler struct {
	Hub    *chat.Hub
	Config config.Config
	// AttachmentDir is served under /attachments/ when set.
	AttachmentDir string

	upgrader websocket.Upgrader
}

// New creates a new Handler with the given dependencies
func New(hub *chat.Hub, cfg config.Config, attachmentDir string) *Handler {
	h := &Handler{
		Hub:           hub,
		Config:        cfg,
		AttachmentDir: attachmentDir,
	}
	h.upgrader = createUpgrader(h.isOriginAllowed)
	return h
}

// SetupRouter configures and returns the HTTP router
func (h *Handler) SetupRouter() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", h.Healthz).Methods("GET")

	// Participants
	r.HandleFunc("/participants", h.GetParticipants).Methods("GET")
	r.HandleFunc("/viewer", h.GetViewer).Methods("GET")
	r.HandleFunc("/viewer", h.SwitchViewer).Methods("PUT")

	// Messages
	r.HandleFunc("/messages", h.GetMessages).Methods("GET")
	r.HandleFunc("/messages", h.CreateMessage).Methods("POST")
	r.HandleFunc("/messages/important", h.GetImportant).Methods("GET")
	r.HandleFunc("/messages/{id}", h.DeleteMessage).Methods("DELETE")
	r.HandleFunc("/messages/{id}/important", h.SetImportant).Methods("PUT")
	r.HandleFunc("/messages/{id}/important/toggle", h.ToggleImportant).Methods("POST")
	r.HandleFunc("/messages/{id}/reactions", h.ToggleReaction).Methods("POST")
	r.HandleFunc("/conversation/clear", h.ClearConversation).Methods("POST")
	r.HandleFunc("/reactions/palette", h.GetPalette).Methods("GET")

	// WebSocket
	r.HandleFunc("/ws", h.HandleWebSocket).Methods("GET")

	if h.AttachmentDir != "" {
		r.PathPrefix("/attachments/").Handler(
			http.StripPrefix("/attachments/", http.FileServer(http.Dir(h.AttachmentDir))),
		).Methods("GET")
	}

	return r
}

func (h *Handler) isOriginAllowed(origin string) bool {
	for _, allowed := range h.Config.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}

	return false
}
