package gateway

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/soyeahso/ochre/internal/conversation"
)

// inboundEnvelope is one client-to-server WebSocket message.
type inboundEnvelope struct {
	Type      string          `json:"type"`
	RequestID string          `json:"requestId"`
	Payload   json.RawMessage `json:"payload"`
}

// chatSendPayload is the payload of an inbound chat.send message.
type chatSendPayload struct {
	Content string `json:"content"`
	Model   string `json:"model,omitempty"`
}

// handleSessionWS upgrades the connection and runs the per-session message
// loop: hello gets a snapshot reply, chat.send submits a run, anything else
// gets a run.error envelope back.
func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	sess, err := s.sessions.GetSession(sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sess == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	socket, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	socket.SetReadLimit(maxWSPayload)

	conn := newWSConn(socket)
	s.hub.Register(sessionID, conn)
	defer func() {
		s.hub.Unregister(sessionID, conn)
		conn.Close()
	}()

	conv := s.convs.Get(sessionID)
	s.log.Info().Str("sessionId", sessionID).Str("connId", conn.id).Msg("ws session open")

	for {
		_, raw, err := socket.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Str("connId", conn.id).Msg("ws session closed")
			} else {
				s.log.Warn().Err(err).Str("connId", conn.id).Msg("ws read error")
			}
			return
		}

		var msg inboundEnvelope
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.sendRunError(conn, "", "invalid message: "+err.Error())
			continue
		}

		switch msg.Type {
		case "hello":
			s.sendSnapshot(conn, conv)
		case "chat.send":
			s.handleChatSend(conn, conv, msg)
		default:
			s.sendRunError(conn, msg.RequestID, "unknown message type: "+msg.Type)
		}
	}
}

func (s *Server) handleChatSend(conn *wsConn, conv *conversation.Conversation, msg inboundEnvelope) {
	var payload chatSendPayload
	if msg.Payload != nil {
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			s.sendRunError(conn, msg.RequestID, "invalid chat.send payload: "+err.Error())
			return
		}
	}

	requestID := strings.TrimSpace(msg.RequestID)
	if requestID == "" {
		s.sendRunError(conn, "", "missing requestId")
		return
	}
	if strings.TrimSpace(payload.Content) == "" {
		return
	}

	if err := conv.Submit(requestID, payload.Content, payload.Model); err != nil {
		s.log.Error().Err(err).Str("requestId", requestID).Msg("submit failed")
		s.sendRunError(conn, requestID, err.Error())
	}
}

// sendSnapshot replies to the requesting connection only; other clients of
// the session already have live state.
func (s *Server) sendSnapshot(conn *wsConn, conv *conversation.Conversation) {
	snap, err := conv.SnapshotView()
	if err != nil {
		s.sendRunError(conn, "", "snapshot failed: "+err.Error())
		return
	}
	if err := conn.SendJSON(conversation.Event{
		Type:    conversation.TypeSnapshot,
		Payload: snap,
	}); err != nil {
		s.log.Warn().Err(err).Str("connId", conn.id).Msg("snapshot send failed")
	}
}

func (s *Server) sendRunError(conn *wsConn, requestID, message string) {
	if err := conn.SendJSON(conversation.Event{
		Type:      conversation.TypeRunError,
		RequestID: requestID,
		Payload:   conversation.ErrorPayload{Error: message},
	}); err != nil {
		s.log.Warn().Err(err).Str("connId", conn.id).Msg("error send failed")
	}
}
