// Package inference drives the rolling classification loop for one signal source
package inference

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"github.com/srihari1306/SafeVisionAI/internal/classifier"
	"github.com/srihari1306/SafeVisionAI/internal/detection"
	"github.com/srihari1306/SafeVisionAI/internal/gateway"
	"github.com/srihari1306/SafeVisionAI/internal/window"
)

// AlertSink receives detection events that crossed the threshold.
type AlertSink interface {
	Submit(ctx context.Context, ev *detection.Event) error
}

// Config holds per-source runner settings.
type Config struct {
	SourceID string
	Lat      float64
	Lng      float64

	WindowSize int
	Threshold  float64

	// ClassifyTimeout bounds each classifier call. Zero means 5s.
	ClassifyTimeout time.Duration

	// EvidenceFunc returns the raw snapshot for the current moment
	// (e.g. the latest JPEG frame). When nil, the sample window itself
	// is encoded as evidence.
	EvidenceFunc func() ([]byte, string)
}

// Runner turns one continuous signal into discrete detection events.
// Observe never blocks; a single goroutine per runner classifies the
// rolling window so two calls for the same source never overlap, while
// independent sources run fully in parallel.
type Runner struct {
	cfg  Config
	cls  classifier.Classifier
	sink AlertSink
	win  *window.Window

	// wake is buffered(1): if classification cannot keep up, newer
	// samples still overwrite the oldest window slot and the pending
	// nudge covers them all. Freshness over completeness.
	wake chan struct{}

	samples         atomic.Uint64
	classifications atomic.Uint64
	detections      atomic.Uint64
	errors          atomic.Uint64

	latency *LatencyTracker
	rate    *RateTracker
}

// NewRunner creates a runner for one source.
func NewRunner(cfg Config, cls classifier.Classifier, sink AlertSink) *Runner {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 50
	}
	if cfg.ClassifyTimeout <= 0 {
		cfg.ClassifyTimeout = 5 * time.Second
	}
	return &Runner{
		cfg:     cfg,
		cls:     cls,
		sink:    sink,
		win:     window.New(cfg.WindowSize),
		wake:    make(chan struct{}, 1),
		latency: NewLatencyTracker(),
		rate:    NewRateTracker(time.Second),
	}
}

// SourceID returns the source this runner serves.
func (r *Runner) SourceID() string {
	return r.cfg.SourceID
}

// Observe appends a sample to the window and nudges the classification
// loop. It never blocks, whatever the classifier is doing.
func (r *Runner) Observe(s window.Sample) {
	r.win.Push(s)
	r.samples.Add(1)
	r.rate.Tick()
	samplesIngested.WithLabelValues(r.cfg.SourceID).Inc()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Run blocks classifying the window each time new samples arrive, until
// the context is cancelled. Detection is stride-1 rolling: the window
// keeps sliding whether or not an event fired.
func (r *Runner) Run(ctx context.Context) {
	log.Printf("🎥 Runner started for source %s (window=%d threshold=%.2f)",
		r.cfg.SourceID, r.cfg.WindowSize, r.cfg.Threshold)

	for {
		select {
		case <-ctx.Done():
			log.Printf("🎥 Runner stopped for source %s", r.cfg.SourceID)
			return
		case <-r.wake:
		}

		if !r.win.Full() {
			continue
		}
		r.classifyOnce(ctx)
	}
}

// classifyOnce scores the current window and submits an event when the
// confidence crosses the threshold.
func (r *Runner) classifyOnce(ctx context.Context) {
	snap := r.win.Snapshot()

	cctx, cancel := context.WithTimeout(ctx, r.cfg.ClassifyTimeout)
	start := time.Now()
	confidence, err := r.cls.Classify(cctx, snap)
	elapsed := time.Since(start)
	cancel()

	r.classifications.Add(1)
	r.latency.Record(elapsed)
	inferenceLatency.WithLabelValues(r.cfg.SourceID).Observe(elapsed.Seconds())

	if err != nil {
		// Fail open on inference: an error never raises an alert.
		r.errors.Add(1)
		classifierErrors.WithLabelValues(r.cfg.SourceID).Inc()
		log.Printf("⚠️ Classifier error on %s: %v", r.cfg.SourceID, err)
		return
	}

	if confidence <= r.cfg.Threshold {
		return
	}

	ev := &detection.Event{
		SourceID:   r.cfg.SourceID,
		Timestamp:  time.Now(),
		Confidence: confidence,
		Lat:        r.cfg.Lat,
		Lng:        r.cfg.Lng,
	}
	if r.cfg.EvidenceFunc != nil {
		ev.Evidence, ev.EvidenceExt = r.cfg.EvidenceFunc()
	} else {
		ev.Evidence, _ = json.Marshal(snap)
		ev.EvidenceExt = "json"
	}

	r.detections.Add(1)
	detectionsEmitted.WithLabelValues(r.cfg.SourceID).Inc()
	log.Printf("🚨 Detection on %s: confidence %.1f%%", r.cfg.SourceID, confidence*100)

	// A cooldown suppression is an intended drop, not a fault; the
	// gateway already accounts for it.
	if err := r.sink.Submit(ctx, ev); err != nil && !errors.Is(err, gateway.ErrSuppressed) {
		log.Printf("⚠️ Alert submit failed for %s: %v", r.cfg.SourceID, err)
	}
}

// Stats is a point-in-time snapshot of runner counters and latency.
type Stats struct {
	SourceID        string  `json:"sourceId"`
	Samples         uint64  `json:"samples"`
	Classifications uint64  `json:"classifications"`
	Detections      uint64  `json:"detections"`
	Errors          uint64  `json:"errors"`
	MeanLatencyMs   float64 `json:"meanLatencyMs"`
	MinLatencyMs    float64 `json:"minLatencyMs"`
	MaxLatencyMs    float64 `json:"maxLatencyMs"`
	P95LatencyMs    float64 `json:"p95LatencyMs"`
	SampleRate      float64 `json:"sampleRate"`
}

// Stats returns current counters and latency figures.
func (r *Runner) Stats() Stats {
	lat := r.latency.Summary()
	current := r.rate.Rate()
	achievedRate.WithLabelValues(r.cfg.SourceID).Set(current)

	return Stats{
		SourceID:        r.cfg.SourceID,
		Samples:         r.samples.Load(),
		Classifications: r.classifications.Load(),
		Detections:      r.detections.Load(),
		Errors:          r.errors.Load(),
		MeanLatencyMs:   lat.MeanMs,
		MinLatencyMs:    lat.MinMs,
		MaxLatencyMs:    lat.MaxMs,
		P95LatencyMs:    lat.P95Ms,
		SampleRate:      current,
	}
}
