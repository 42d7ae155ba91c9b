package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"partyhub/chat"
	apperrors "partyhub/errors"
	"partyhub/identity"
	"partyhub/middleware"
	"partyhub/models"
	"partyhub/presence"
	"partyhub/util"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for dev (restrict in production)
	},
}

// WSHandler owns the push channel: it upgrades the connection, registers it
// in the presence registry, and feeds send-intents to the message router.
type WSHandler struct {
	Router   *chat.Router
	Presence *presence.Registry
	Sessions *util.Sessions
	Users    *identity.Resolver
}

func (h *WSHandler) Handle(w http.ResponseWriter, r *http.Request) {
	// Session token from query string for clients that cannot send cookies
	// on the upgrade request, falling back to the authenticated context.
	userID := int64(0)
	if token := r.URL.Query().Get("token"); token != "" {
		userID = h.Sessions.UserID(token)
	}
	if userID == 0 {
		if ctxUserID, ok := r.Context().Value(middleware.UserIDKey).(int64); ok {
			userID = ctxUserID
		}
	}
	if userID == 0 {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	h.Presence.Register(userID, conn)
	log.Printf("User %d connected via WebSocket", userID)

	defer func() {
		h.Presence.Unregister(conn)
		log.Printf("User %d disconnected from WebSocket", userID)
	}()

	conn.WriteJSON(models.WSMessage{
		Type: models.WSTypeConnected,
		Data: map[string]string{"status": "connected"},
	})

	for {
		var msg models.WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			log.Printf("WebSocket read error for user %d: %v", userID, err)
			break
		}

		switch msg.Type {
		case models.WSTypeSendMessage:
			h.handleSendMessage(conn, userID, msg.Data)
		case "ping":
			conn.WriteJSON(models.WSMessage{Type: "pong", Data: "pong"})
		default:
			log.Printf("Unknown message type from user %d: %s", userID, msg.Type)
		}
	}
}

// handleSendMessage routes one send-intent. Failures are surfaced as an
// error event on the same connection; the connection stays open.
func (h *WSHandler) handleSendMessage(conn *websocket.Conn, userID int64, data interface{}) {
	raw, err := json.Marshal(data)
	if err != nil {
		log.Printf("Error marshaling send intent: %v", err)
		return
	}
	var payload models.SendMessagePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		wsError(conn, "Malformed message")
		return
	}

	// The socket's authenticated identity is authoritative; a mismatching
	// sender handle is rejected rather than trusted.
	if payload.SenderUsername != "" {
		senderID, err := h.Users.Resolve(payload.SenderUsername)
		if err != nil || senderID != userID {
			wsError(conn, "Sender does not match connection")
			return
		}
	}

	if payload.GroupName != "" {
		if _, err := h.Router.SendToGroup(userID, payload.GroupName, payload.Message); err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				wsError(conn, "Group not found")
			} else {
				wsError(conn, "Error sending message")
			}
		}
		return
	}

	if payload.RecipientUsername == "" {
		wsError(conn, "Recipient or group required")
		return
	}
	if _, err := h.Router.SendDirect(userID, payload.RecipientUsername, payload.Message); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			wsError(conn, "Recipient not found")
		} else {
			wsError(conn, "Error sending message")
		}
	}
}

func wsError(conn *websocket.Conn, message string) {
	if err := conn.WriteJSON(models.WSMessage{
		Type: models.WSTypeError,
		Data: models.WSErrorPayload{Message: message},
	}); err != nil {
		log.Printf("Error writing error event: %v", err)
	}
}
