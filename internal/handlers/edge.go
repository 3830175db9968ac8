package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// EdgeNodeStatus is the last known state of one edge node. The
// registry is in-memory only; a restart simply waits for the next
// heartbeat round.
type EdgeNodeStatus struct {
	NodeID    string                 `json:"nodeId"`
	Status    string                 `json:"status"`
	Resources map[string]interface{} `json:"resources,omitempty"`
	Runners   []interface{}          `json:"runners,omitempty"`
	Queue     map[string]interface{} `json:"queueStats,omitempty"`
	LastSeen  time.Time              `json:"lastSeen"`
}

var (
	edgeNodes   = make(map[string]*EdgeNodeStatus)
	edgeNodesMu sync.RWMutex
)

// heartbeatRequest mirrors the edge heartbeat body
type heartbeatRequest struct {
	NodeID    string                 `json:"nodeId"`
	Status    string                 `json:"status"`
	Resources map[string]interface{} `json:"resources"`
	Runners   []interface{}          `json:"runners"`
	Queue     map[string]interface{} `json:"queueStats"`
}

// EdgeHeartbeat records an edge node status report
// POST /api/edge/heartbeat
func EdgeHeartbeat(c *gin.Context) {
	var req heartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.NodeID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nodeId is required"})
		return
	}

	edgeNodesMu.Lock()
	edgeNodes[req.NodeID] = &EdgeNodeStatus{
		NodeID:    req.NodeID,
		Status:    req.Status,
		Resources: req.Resources,
		Runners:   req.Runners,
		Queue:     req.Queue,
		LastSeen:  time.Now(),
	}
	edgeNodesMu.Unlock()

	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

// ListEdgeNodes returns the known edge nodes and their last heartbeat
// GET /api/edge/nodes
func ListEdgeNodes(c *gin.Context) {
	edgeNodesMu.RLock()
	nodes := make([]*EdgeNodeStatus, 0, len(edgeNodes))
	for _, n := range edgeNodes {
		nodes = append(nodes, n)
	}
	edgeNodesMu.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"nodes": nodes,
		"count": len(nodes),
	})
}
