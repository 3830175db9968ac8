// Package edgeserver exposes the local status API of an edge node
package edgeserver

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/srihari1306/SafeVisionAI/internal/config"
	"github.com/srihari1306/SafeVisionAI/internal/forwardq"
	"github.com/srihari1306/SafeVisionAI/internal/gateway"
	"github.com/srihari1306/SafeVisionAI/internal/inference"
)

// Server serves health, status and metrics for one edge node
type Server struct {
	cfgMgr    *config.Manager
	runners   []*inference.Runner
	gw        *gateway.Gateway
	queue     *forwardq.Queue
	startedAt time.Time
	engine    *gin.Engine
}

// New builds the edge HTTP server around the running components
func New(cfgMgr *config.Manager, runners []*inference.Runner, gw *gateway.Gateway, queue *forwardq.Queue) *Server {
	s := &Server{
		cfgMgr:    cfgMgr,
		runners:   runners,
		gw:        gw,
		queue:     queue,
		startedAt: time.Now(),
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.Default())

	r.GET("/healthz", s.handleHealth)
	r.GET("/api/status", s.handleStatus)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.engine = r
	return s
}

// Run blocks serving on the given port
func (s *Server) Run(port int) error {
	addr := fmt.Sprintf(":%d", port)
	log.Printf("🌐 Edge status server listening on %s", addr)
	return s.engine.Run(addr)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.startedAt).String(),
	})
}

// RunnerStatus is the per-camera slice of the status report
type RunnerStatus struct {
	SourceID string          `json:"sourceId"`
	Stats    inference.Stats `json:"stats"`
}

func (s *Server) handleStatus(c *gin.Context) {
	cfg := s.cfgMgr.Get()

	runners := make([]RunnerStatus, 0, len(s.runners))
	for _, r := range s.runners {
		runners = append(runners, RunnerStatus{
			SourceID: r.SourceID(),
			Stats:    r.Stats(),
		})
	}

	resources := gin.H{}
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		resources["cpuPercent"] = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		resources["memPercent"] = vm.UsedPercent
	}

	status := gin.H{
		"nodeName":  cfg.NodeName,
		"nodeModel": cfg.NodeModel,
		"uptime":    time.Since(s.startedAt).String(),
		"cameras":   len(cfg.Cameras),
		"runners":   runners,
		"resources": resources,
	}
	if s.gw != nil {
		status["gateway"] = s.gw.Stats()
	}
	if s.queue != nil {
		status["queue"] = s.queue.GetStats()
	}

	c.JSON(http.StatusOK, status)
}
