package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/srihari1306/SafeVisionAI/internal/authority"
	"github.com/srihari1306/SafeVisionAI/internal/capture"
	"github.com/srihari1306/SafeVisionAI/internal/classifier"
	"github.com/srihari1306/SafeVisionAI/internal/config"
	"github.com/srihari1306/SafeVisionAI/internal/edgeserver"
	"github.com/srihari1306/SafeVisionAI/internal/evidence"
	"github.com/srihari1306/SafeVisionAI/internal/forwardq"
	"github.com/srihari1306/SafeVisionAI/internal/gateway"
	"github.com/srihari1306/SafeVisionAI/internal/inference"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

const heartbeatInterval = 30 * time.Second

func main() {
	configPath := flag.String("config", "/etc/safevision/config.json", "Path to config file")
	dataDir := flag.String("data", "/var/lib/safevision", "Path to data directory")
	webPort := flag.Int("port", 8080, "Status server port")
	showVersion := flag.Bool("version", false, "Show version")
	flag.Parse()

	if *showVersion {
		fmt.Printf("SafeVision Edge v%s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	log.Printf("🚀 Starting SafeVision Edge v%s", version)

	// Initialize config manager
	cfgMgr, err := config.NewManager(*configPath, *dataDir)
	if err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}
	cfg := cfgMgr.Get()

	if !cfgMgr.IsConfigured() {
		log.Fatalf("❌ No central server configured in %s", *configPath)
	}

	// Load the classifier
	modelPath := cfg.Detection.ModelPath
	if modelPath == "" {
		log.Fatalf("❌ No model path configured")
	}
	cls, err := classifier.LoadClassifier(modelPath)
	if err != nil {
		log.Fatalf("❌ Failed to load classifier: %v", err)
	}
	log.Printf("🧠 Classifier loaded (version %d)", cls.Version())

	// Evidence store
	store, err := evidence.NewStore(cfgMgr.GetEvidenceDir())
	if err != nil {
		log.Fatalf("Failed to initialize evidence store: %v", err)
	}

	// Central client and forward queue
	client := authority.NewClient(cfg.Central.ServerURL, cfg.Central.NodeID, cfg.Central.AuthToken)
	queue, err := forwardq.New(cfgMgr.GetQueueDir(), client)
	if err != nil {
		log.Fatalf("Failed to initialize forward queue: %v", err)
	}

	// Alert gateway
	gw := gateway.New(gateway.Config{
		Cooldown: time.Duration(cfg.Detection.CooldownSeconds) * time.Second,
	}, store, client, queue)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue.StartProcessor(ctx)

	// One runner and capture reader per enabled camera
	var runners []*inference.Runner
	for _, cam := range cfg.Cameras {
		if !cam.Enabled {
			continue
		}
		if cam.FeaturePipe == "" {
			log.Printf("⚠️ Camera %s has no feature pipe, skipping", cam.DeviceID)
			continue
		}

		runner := inference.NewRunner(inference.Config{
			SourceID:   cam.DeviceID,
			Lat:        cam.Lat,
			Lng:        cam.Lng,
			WindowSize: cfg.Detection.WindowSize,
			Threshold:  cfg.Detection.Threshold,
		}, cls, gw)
		runners = append(runners, runner)

		go runner.Run(ctx)
		go capture.NewReader(cam.DeviceID, cam.FeaturePipe, runner).Run(ctx)

		log.Printf("🎥 Watching camera %s (%s)", cam.DeviceID, cam.Name)
	}
	if len(runners) == 0 {
		log.Println("⚠️ No cameras enabled, running management-only")
	}

	// Heartbeats to central
	go runHeartbeats(ctx, client, runners, queue)

	// Status server
	webServer := edgeserver.New(cfgMgr, runners, gw, queue)
	go func() {
		if err := webServer.Run(*webPort); err != nil {
			log.Fatalf("Status server failed: %v", err)
		}
	}()

	log.Printf("✅ SafeVision Edge running")
	log.Printf("🌐 Status: http://localhost:%d", *webPort)
	log.Printf("📤 Central: %s", cfg.Central.ServerURL)

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("🛑 Shutting down...")
	cancel()
	queue.Stop()
}

// runHeartbeats reports node status to central on a fixed interval
func runHeartbeats(ctx context.Context, client *authority.Client, runners []*inference.Runner, queue *forwardq.Queue) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := make([]interface{}, 0, len(runners))
			for _, r := range runners {
				stats = append(stats, map[string]interface{}{
					"sourceId": r.SourceID(),
					"stats":    r.Stats(),
				})
			}

			hbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := client.SendHeartbeat(hbCtx, authority.Heartbeat{
				Status:  "active",
				Runners: stats,
				Queue:   queue.GetStats(),
			})
			cancel()
			if err != nil {
				log.Printf("⚠️ Heartbeat failed: %v", err)
			}
		}
	}
}
