package main

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/srihari1306/SafeVisionAI/internal/database"
	"github.com/srihari1306/SafeVisionAI/internal/handlers"
	"github.com/srihari1306/SafeVisionAI/internal/natsserver"
	"github.com/srihari1306/SafeVisionAI/internal/retrain"
	"github.com/srihari1306/SafeVisionAI/internal/services"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Connect to database
	if err := database.Connect(); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
	defer database.Close()

	// Start embedded NATS server for incident events
	natsPort := 4222
	if raw := os.Getenv("NATS_PORT"); raw != "" {
		if p, err := strconv.Atoi(raw); err == nil {
			natsPort = p
		}
	}
	natsCfg := natsserver.DefaultConfig()
	natsCfg.Port = natsPort
	natsServer, err := natsserver.New(natsCfg)
	if err != nil {
		log.Fatalf("❌ Failed to start NATS server: %v", err)
	}
	defer natsServer.Shutdown()
	handlers.SetEventBus(natsServer)

	// Incident hub for dashboard WebSockets
	incidentHub := services.NewIncidentHub(natsServer.Conn())
	go incidentHub.Run()
	handlers.SetIncidentHub(incidentHub)
	log.Println("📺 Incident hub initialized")

	// Retraining coordinator
	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = "./data"
	}
	corpusPath := os.Getenv("CORPUS_PATH")
	if corpusPath == "" {
		corpusPath = filepath.Join(dataDir, "corpus", "accident_corpus.json")
	}
	coordinator := retrain.New(database.DB, retrain.Config{
		CorpusPath:  corpusPath,
		ArtifactDir: filepath.Join(dataDir, "models"),
	}, nil)
	handlers.SetCoordinator(coordinator)
	log.Printf("🧠 Retraining coordinator ready (model version %d)", coordinator.CurrentVersion())

	// Setup Gin router
	if os.Getenv("ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	// CORS middleware
	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowMethods = []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Auth-Token", "X-Node-ID"}
	router.Use(cors.New(corsCfg))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	// Prometheus metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes and incident WebSocket
	handlers.RegisterRoutes(router)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "3001"
	}

	log.Printf("🚀 Server running on http://localhost:%s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
