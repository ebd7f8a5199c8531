package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/apex/log"

	"civiceye/models"
)

// Hub manages WebSocket connections and broadcasts the flagged report feed.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Outbound messages fanned out to every client
	broadcast chan []byte

	// Register requests from clients
	Register chan *Client

	// Unregister requests from clients
	Unregister chan *Client

	mutex sync.RWMutex

	// Statistics
	lastFlaggedID    string
	connectedClients int
}

// NewHub creates a new WebSocket hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mutex.Lock()
			h.clients[client] = true
			h.connectedClients = len(h.clients)
			h.mutex.Unlock()
			log.Infof("websocket client connected, total clients: %d", h.connectedClients)

		case client := <-h.Unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.connectedClients = len(h.clients)
			}
			h.mutex.Unlock()
			log.Infof("websocket client disconnected, total clients: %d", h.connectedClients)

		case message := <-h.broadcast:
			// Clients that cannot keep up are dropped.
			h.mutex.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.connectedClients = len(h.clients)
			h.mutex.Unlock()
		}
	}
}

// BroadcastFlagged pushes a flagged report event to all connected clients.
func (h *Hub) BroadcastFlagged(event models.FlaggedEvent) {
	message := models.BroadcastMessage{
		Type:      "flagged_report",
		Data:      event,
		Timestamp: time.Now(),
	}

	data, err := json.Marshal(message)
	if err != nil {
		log.Errorf("failed to marshal broadcast message: %v", err)
		return
	}

	h.mutex.Lock()
	h.lastFlaggedID = event.Report.ReportID
	clients := h.connectedClients
	h.mutex.Unlock()

	h.broadcast <- data
	log.Debugf("broadcast flagged report %s to %d clients", event.Report.ReportID, clients)
}

// GetStats returns the client count and the last flagged report id.
func (h *Hub) GetStats() (int, string) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.connectedClients, h.lastFlaggedID
}
