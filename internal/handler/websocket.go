package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"duochat/internal/logger"
	"duochat/internal/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// createUpgrader creates a WebSocket upgrader that admits only allowed origins
func createUpgrader(allowed func(origin string) bool) websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return allowed(r.Header.Get("Origin"))
		},
	}
}

// HandleWebSocket handles GET /ws
// 閲覧者のビューが再計算されるたびに view を、操作結果ごとに notification を送る
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	log := logger.Ctx(r.Context())

	viewer, err := h.viewerFor(r)
	if err != nil {
		status, msg := statusFor(err)
		log.Warn().Err(err).Msg("[GET /ws] ❌ Unknown viewer")
		writeError(w, status, msg)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("[GET /ws] WebSocket upgrade error")
		return
	}

	session := h.Hub.Session(viewer)
	envelopes, stop := session.Listen()

	connLog := log.With().Str(logger.FieldViewer, viewer.ID).Logger()
	connLog.Info().Msg("[WebSocket] Client connected")

	if view, ok := session.View(); ok {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(model.Envelope{Type: model.EnvelopeView, ViewerID: viewer.ID, Messages: view}); err != nil {
			stop()
			conn.Close()
			return
		}
	}

	go writePump(conn, envelopes, connLog)
	readPump(conn, connLog)

	stop()
	connLog.Info().Msg("[WebSocket] Client disconnected")
}

// readPump drains client frames to keep the connection alive and returns
// when the client goes away.
func readPump(conn *websocket.Conn, log zerolog.Logger) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("[WebSocket] read error")
			}
			return
		}
	}
}

// writePump is the only writer once started. It exits when envelopes is closed.
func writePump(conn *websocket.Conn, envelopes <-chan model.Envelope, log zerolog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case env, ok := <-envelopes:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(env); err != nil {
				log.Debug().Err(err).Msg("[WebSocket] write error")
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
