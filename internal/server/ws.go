package server

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/dotest/exam-platform/internal/identity"
	"github.com/dotest/exam-platform/internal/session"
)

// WSUpgrader handles WebSocket upgrades (configure CORS/security as needed).
var WSUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// SessionEvents handles GET /ws/sessions: streams the active session's
// snapshot followed by its advisory events (time warnings, finished)
// until the session ends or the client disconnects.
func (h *Handlers) SessionEvents(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Active(identity.FromContext(r.Context()))
	if err != nil {
		http.Error(w, "no active session", http.StatusNotFound)
		return
	}

	conn, err := WSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	logger := h.logger.With().Str("session_id", sess.ID()).Logger()

	// Reader only detects disconnects; clients send nothing meaningful.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := conn.WriteJSON(map[string]interface{}{
		"type":     "snapshot",
		"snapshot": sess.Snapshot(),
	}); err != nil {
		return
	}

	for {
		select {
		case <-done:
			return
		case ev, ok := <-sess.Events():
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				logger.Warn().Err(err).Msg("event write failed")
				return
			}
			if ev.Type == session.EventFinished {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session finished"))
				return
			}
		}
	}
}
