package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/srihari1306/SafeVisionAI/internal/services"
)

var (
	incidentHub *services.IncidentHub
	upgrader    = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return true // Allow all origins for now
		},
	}
)

// SetIncidentHub sets the hub for the feed handlers
func SetIncidentHub(hub *services.IncidentHub) {
	incidentHub = hub
}

// HandleIncidentWebSocket upgrades a dashboard connection and attaches
// it to the incident hub
// GET /ws/incidents
func HandleIncidentWebSocket(c *gin.Context) {
	if incidentHub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "incident hub not initialized"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("⚠️ WebSocket upgrade failed: %v", err)
		return
	}

	client := services.NewIncidentClient(incidentHub, conn, c.ClientIP())
	incidentHub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

// GetHubStats returns incident hub statistics
// GET /api/feeds/stats
func GetHubStats(c *gin.Context) {
	if incidentHub == nil {
		c.JSON(http.StatusOK, gin.H{"enabled": false})
		return
	}

	stats := incidentHub.Stats()
	c.JSON(http.StatusOK, gin.H{
		"enabled": true,
		"clients": stats.Clients,
	})
}
