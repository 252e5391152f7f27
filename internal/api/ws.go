package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	wsWriteTimeout = 10 * time.Second
	wsReadLimit    = 16 * 1024
)

// wsIncoming is one user message over the socket.
type wsIncoming struct {
	Message string `json:"message"`
}

// wsOutgoing is one assistant reply.
type wsOutgoing struct {
	SessionID string `json:"session_id"`
	Response  string `json:"response"`
	Error     string `json:"error,omitempty"`
}

// handleWebSocket runs one chat session per connection. The session id is
// minted on connect; history survives the socket through the durable log.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	conn.SetReadLimit(wsReadLimit)

	for {
		var in wsIncoming
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("websocket read failed: %v", err)
			}
			return
		}
		if in.Message == "" {
			continue
		}

		out := wsOutgoing{SessionID: sessionID}
		answer, err := s.orchestrator.HandleTurn(r.Context(), sessionID, "", in.Message)
		if err != nil {
			out.Error = err.Error()
		} else {
			out.Response = answer
		}

		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(out); err != nil {
			s.log.Debug("websocket write failed: %v", err)
			return
		}
	}
}
