package handlers

import (
	"encoding/json"
	"net/http"

	"room-match-backend/internal/middleware"
	"room-match-backend/internal/services"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// clientMessage is what a connected client sends to manage its room
// subscriptions.
type clientMessage struct {
	Action string `json:"action"` // "subscribe" or "unsubscribe"
	RoomID string `json:"room_id"`
}

// WebSocketHandler handles WebSocket connections
type WebSocketHandler struct {
	hub         *services.Hub
	userService *services.UserService
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *services.Hub, userService *services.UserService) *WebSocketHandler {
	return &WebSocketHandler{
		hub:         hub,
		userService: userService,
	}
}

// HandleWebSocket handles GET /ws. Auth comes from a token query
// parameter since browsers cannot set headers on websocket dials.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.ValidateWebSocketToken(r.URL.Query().Get("token"), h.userService)
	if err != nil {
		respondError(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	if err := h.hub.Register(userID, conn); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to register WebSocket connection")
		conn.Close()
		return
	}
	defer h.hub.Unregister(userID)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("user_id", userID).Msg("WebSocket read failed")
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Debug().Err(err).Str("user_id", userID).Msg("Ignoring malformed websocket message")
			continue
		}

		switch msg.Action {
		case "subscribe":
			if msg.RoomID == "" {
				continue
			}
			if err := h.hub.SubscribeRoom(userID, msg.RoomID); err != nil {
				log.Error().Err(err).
					Str("user_id", userID).
					Str("room_id", msg.RoomID).
					Msg("Room subscription failed")
			}
		case "unsubscribe":
			h.hub.UnsubscribeRoom(userID, msg.RoomID)
		default:
			log.Debug().Str("action", msg.Action).Msg("Unknown websocket action")
		}
	}
}
