// Package services provides business logic services
package services

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
)

// IncidentHub relays incident events from the NATS bus to connected
// WebSocket clients. Every client sees every event; dashboards filter
// on their side.
type IncidentHub struct {
	natsConn *nats.Conn
	natsSub  *nats.Subscription

	clients   map[*IncidentClient]bool
	clientsMu sync.RWMutex

	register   chan *IncidentClient
	unregister chan *IncidentClient
}

// IncidentClient represents one connected dashboard
type IncidentClient struct {
	hub        *IncidentHub
	conn       *websocket.Conn
	send       chan []byte
	remoteAddr string
}

// clientMessage is the inbound control format
type clientMessage struct {
	Type string `json:"type"`
}

// NewIncidentHub creates a hub bound to the given NATS connection
func NewIncidentHub(natsConn *nats.Conn) *IncidentHub {
	return &IncidentHub{
		natsConn:   natsConn,
		clients:    make(map[*IncidentClient]bool),
		register:   make(chan *IncidentClient),
		unregister: make(chan *IncidentClient),
	}
}

// Register adds a client to the hub
func (h *IncidentHub) Register(client *IncidentClient) {
	h.register <- client
}

// Run starts the hub's main loop and the bus subscription. The loop
// keeps draining (un)registrations even without a subscription, so a
// failed subscribe never leaves websocket handlers blocked on Register.
func (h *IncidentHub) Run() {
	if h.natsConn != nil {
		var err error
		h.natsSub, err = h.natsConn.Subscribe("incidents.>", func(msg *nats.Msg) {
			h.broadcast(msg.Data)
		})
		if err != nil {
			log.Printf("❌ Incident hub failed to subscribe to bus, dashboards will see no events: %v", err)
		}
	}

	log.Println("📺 Incident hub started")

	for {
		select {
		case client := <-h.register:
			h.clientsMu.Lock()
			h.clients[client] = true
			h.clientsMu.Unlock()
			log.Printf("📺 Dashboard connected: %s", client.remoteAddr)

		case client := <-h.unregister:
			h.clientsMu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.clientsMu.Unlock()
			log.Printf("📺 Dashboard disconnected: %s", client.remoteAddr)
		}
	}
}

// broadcast fans an event out to every connected client. A client with
// a full buffer misses the event instead of stalling the rest.
func (h *IncidentHub) broadcast(data []byte) {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	for client := range h.clients {
		select {
		case client.send <- data:
		default:
		}
	}
}

// HubStats holds hub statistics
type HubStats struct {
	Clients int `json:"clients"`
}

func (h *IncidentHub) Stats() HubStats {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return HubStats{Clients: len(h.clients)}
}

// handleControl processes one inbound client message
func (h *IncidentHub) handleControl(c *IncidentClient, raw []byte) {
	var msg clientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Printf("⚠️ Invalid message from %s: %v", c.remoteAddr, err)
		return
	}

	switch msg.Type {
	case "ping":
		c.sendPong()
	default:
		log.Printf("⚠️ Unknown message type: %s", msg.Type)
	}
}
