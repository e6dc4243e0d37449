package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"room-match-backend/internal/realtime"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const resyncTimeout = 10 * time.Second

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string          `json:"type"`
	Table   string          `json:"table,omitempty"`
	RoomID  string          `json:"room_id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Data    interface{}     `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

type wsClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	// roomID -> subscription handles for that room's change streams.
	roomSubs map[string][]*realtime.Subscription
	matchSub *realtime.Subscription
}

// Hub relays record-store change events to connected websocket clients.
// Interest in a room is expressed through the multiplexer, so any number
// of clients watching the same room share one upstream stream.
type Hub struct {
	mu      sync.RWMutex
	mux     *realtime.Multiplexer
	rooms   *RoomService
	clients map[string]*wsClient
}

// NewHub creates a new websocket hub
func NewHub(mux *realtime.Multiplexer, rooms *RoomService) *Hub {
	return &Hub{
		mux:     mux,
		rooms:   rooms,
		clients: make(map[string]*wsClient),
	}
}

// Register registers a websocket connection for a user, replacing any
// previous one, and opens the user's match event stream.
func (h *Hub) Register(userID string, conn *websocket.Conn) error {
	h.mu.Lock()
	if existing, ok := h.clients[userID]; ok {
		h.releaseClientLocked(existing)
		existing.conn.Close()
	}
	client := &wsClient{
		conn:     conn,
		roomSubs: make(map[string][]*realtime.Subscription),
	}
	h.clients[userID] = client
	h.mu.Unlock()

	matchSub, err := h.mux.Register(
		realtime.Key{Table: "matches"},
		func(ev realtime.Event) { h.relayMatchEvent(userID, ev) },
		func() { h.send(userID, WSMessage{Type: "resync", Table: "matches"}) },
	)
	if err != nil {
		return fmt.Errorf("failed to open match stream: %w", err)
	}

	h.mu.Lock()
	if h.clients[userID] == client {
		client.matchSub = matchSub
	} else {
		// The connection was replaced while we were subscribing.
		matchSub.Release()
	}
	h.mu.Unlock()

	log.Info().Str("user_id", userID).Msg("WebSocket connection registered")
	return nil
}

// Unregister removes a user's connection and releases every subscription
// handle it held.
func (h *Hub) Unregister(userID string) {
	h.mu.Lock()
	client, ok := h.clients[userID]
	if ok {
		h.releaseClientLocked(client)
		delete(h.clients, userID)
	}
	h.mu.Unlock()

	if ok {
		client.conn.Close()
		log.Info().Str("user_id", userID).Msg("WebSocket connection unregistered")
	}
}

func (h *Hub) releaseClientLocked(client *wsClient) {
	if client.matchSub != nil {
		client.matchSub.Release()
		client.matchSub = nil
	}
	for roomID, subs := range client.roomSubs {
		for _, sub := range subs {
			sub.Release()
		}
		delete(client.roomSubs, roomID)
	}
}

// SubscribeRoom registers the user for change events on a room's record
// and its participant set. Idempotent per (user, room).
func (h *Hub) SubscribeRoom(userID, roomID string) error {
	h.mu.Lock()
	client, ok := h.clients[userID]
	if !ok {
		h.mu.Unlock()
		return fmt.Errorf("user %s is not connected", userID)
	}
	if _, already := client.roomSubs[roomID]; already {
		h.mu.Unlock()
		return nil
	}
	// Reserve the slot so a concurrent subscribe does not double-register.
	client.roomSubs[roomID] = nil
	h.mu.Unlock()

	keys := []realtime.Key{
		{Table: "rooms", Filter: "id=" + roomID},
		{Table: "participants", Filter: "room_id=" + roomID},
	}

	subs := make([]*realtime.Subscription, 0, len(keys))
	for _, key := range keys {
		table := key.Table
		sub, err := h.mux.Register(key,
			func(ev realtime.Event) {
				h.send(userID, WSMessage{Type: "change", Table: table, RoomID: roomID, Payload: ev.Payload})
			},
			func() { h.resyncRoom(userID, roomID) },
		)
		if err != nil {
			for _, s := range subs {
				s.Release()
			}
			h.mu.Lock()
			delete(client.roomSubs, roomID)
			h.mu.Unlock()
			return fmt.Errorf("failed to subscribe to room %s: %w", roomID, err)
		}
		subs = append(subs, sub)
	}

	h.mu.Lock()
	_, reserved := client.roomSubs[roomID]
	if h.clients[userID] != client || !reserved {
		// The client disconnected or unsubscribed while we were
		// registering; don't leak the handles.
		h.mu.Unlock()
		for _, s := range subs {
			s.Release()
		}
		return nil
	}
	client.roomSubs[roomID] = subs
	h.mu.Unlock()

	log.Debug().Str("user_id", userID).Str("room_id", roomID).Msg("Room subscription added")
	return nil
}

// UnsubscribeRoom releases the user's subscription handles for a room.
func (h *Hub) UnsubscribeRoom(userID, roomID string) {
	h.mu.Lock()
	client, ok := h.clients[userID]
	var subs []*realtime.Subscription
	if ok {
		subs = client.roomSubs[roomID]
		delete(client.roomSubs, roomID)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.Release()
	}
}

// resyncRoom pushes a full room snapshot after a connection recovery, so
// the client replaces any state it built from possibly-missed events.
func (h *Hub) resyncRoom(userID, roomID string) {
	ctx, cancel := context.WithTimeout(context.Background(), resyncTimeout)
	defer cancel()

	details, err := h.rooms.Details(ctx, roomID)
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID).Msg("Failed to fetch room snapshot for resync")
		h.send(userID, WSMessage{Type: "resync", Table: "rooms", RoomID: roomID})
		return
	}

	h.send(userID, WSMessage{Type: "room_state", RoomID: roomID, Data: details})
}

// relayMatchEvent forwards a match change to the user if they are one of
// the two parties. The match stream is shared and unfiltered upstream, so
// the party check happens here.
func (h *Hub) relayMatchEvent(userID string, ev realtime.Event) {
	var match struct {
		UserA string `json:"user_a"`
		UserB string `json:"user_b"`
	}
	if err := json.Unmarshal(ev.Payload, &match); err != nil {
		log.Warn().Err(err).Msg("Unreadable match event payload")
		return
	}
	if match.UserA != userID && match.UserB != userID {
		return
	}
	h.send(userID, WSMessage{Type: "match", Table: "matches", Payload: ev.Payload})
}

// IsOnline checks if a user has a live connection
func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// send delivers a message to a user's connection, dropping the
// connection on a write failure.
func (h *Hub) send(userID string, message WSMessage) {
	h.mu.RLock()
	client, ok := h.clients[userID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	data, err := json.Marshal(message)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal websocket message")
		return
	}

	client.writeMu.Lock()
	err = client.conn.WriteMessage(websocket.TextMessage, data)
	client.writeMu.Unlock()
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Dropping websocket connection after write failure")
		h.Unregister(userID)
	}
}

// Close releases every client and its subscriptions. For shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make(map[string]*wsClient, len(h.clients))
	for id, c := range h.clients {
		clients[id] = c
		h.releaseClientLocked(c)
		delete(h.clients, id)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.conn.Close()
	}
}
