package hub

import (
	"context"
	"sync"

	pkglog "github.com/Hajira-org/hajira-chat/pkg/log"
	"github.com/Hajira-org/hajira-chat/pkg/metrics"
)

// Hub tracks the connections of this relay instance and the rooms they are
// in.
type Hub struct {
	clients    map[string]*Client            // clientID -> client
	rooms      map[string]map[string]*Client // roomKey -> clientID -> client
	register   chan *Client
	unregister chan *Client
	broadcast  chan *RoomMessage
	done       chan struct{}
	mu         sync.RWMutex
}

// RoomMessage is a frame for every local member of a room but Exclude.
type RoomMessage struct {
	RoomKey string
	Message []byte
	Exclude string // Client ID to exclude
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *RoomMessage, 256),
		done:       make(chan struct{}),
	}
}

// Run serves registrations and broadcasts until ctx ends, then closes
// every client.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		h.mu.Lock()
		for id, client := range h.clients {
			client.close()
			delete(h.clients, id)
		}
		h.rooms = make(map[string]map[string]*Client)
		h.mu.Unlock()
		metrics.RelayConnections.Set(0)
		metrics.RelayRooms.Set(0)
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			metrics.RelayConnections.Inc()
			l := pkglog.L()
			l.Debug().Str(pkglog.FieldConnID, client.ID).Msg("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				h.leaveLocked(client)
				delete(h.clients, client.ID)
				client.close()
				metrics.RelayConnections.Dec()
			}
			h.mu.Unlock()
			l := pkglog.L()
			l.Debug().Str(pkglog.FieldConnID, client.ID).Msg("client unregistered")

		case msg := <-h.broadcast:
			h.mu.RLock()
			for clientID, client := range h.rooms[msg.RoomKey] {
				if clientID == msg.Exclude {
					continue
				}
				if client.enqueue(msg.Message) {
					metrics.RelayDeliveries.Inc()
				} else {
					go h.Unregister(client)
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.close()
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// JoinRoom moves client into roomKey, leaving its previous room.
func (h *Hub) JoinRoom(client *Client, roomKey string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.leaveLocked(client)
	if _, ok := h.rooms[roomKey]; !ok {
		h.rooms[roomKey] = make(map[string]*Client)
		metrics.RelayRooms.Inc()
	}
	h.rooms[roomKey][client.ID] = client
	client.setRoom(roomKey)
}

// LeaveRoom removes client from its room and returns the room it left.
func (h *Hub) LeaveRoom(client *Client) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.leaveLocked(client)
}

func (h *Hub) leaveLocked(client *Client) string {
	roomKey := client.Room()
	if roomKey == "" {
		return ""
	}
	if members, ok := h.rooms[roomKey]; ok {
		delete(members, client.ID)
		if len(members) == 0 {
			delete(h.rooms, roomKey)
			metrics.RelayRooms.Dec()
		}
	}
	client.setRoom("")
	return roomKey
}

// BroadcastToRoom queues data for every local member of roomKey except
// the client with ID exclude.
func (h *Hub) BroadcastToRoom(roomKey string, data []byte, exclude string) {
	select {
	case h.broadcast <- &RoomMessage{RoomKey: roomKey, Message: data, Exclude: exclude}:
	case <-h.done:
	}
}

// RoomMemberCount returns the number of local members of roomKey.
func (h *Hub) RoomMemberCount(roomKey string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomKey])
}

// ClientCount returns the number of registered connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
