// Package capture feeds decoded feature frames into the inference
// runners. The video decoder runs out of process and writes one JSON
// array of floats per line to a pipe; this side only parses and
// forwards.
package capture

import (
	"bufio"
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/srihari1306/SafeVisionAI/internal/window"
)

// Observer receives parsed feature frames
type Observer interface {
	Observe(s window.Sample)
}

// Reader tails one feature stream and forwards frames to an observer
type Reader struct {
	sourceID string
	path     string
	observer Observer

	// reopen delay after EOF or open failure
	retryDelay time.Duration
}

// NewReader creates a reader for the given stream path
func NewReader(sourceID, path string, observer Observer) *Reader {
	return &Reader{
		sourceID:   sourceID,
		path:       path,
		observer:   observer,
		retryDelay: 2 * time.Second,
	}
}

// Run tails the stream until the context is cancelled. The decoder may
// restart at any time, so EOF and open failures just wait and reopen.
func (r *Reader) Run(ctx context.Context) {
	log.Printf("🎥 [%s] Capture reader started on %s", r.sourceID, r.path)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := r.readOnce(ctx); err != nil {
			log.Printf("⚠️ [%s] Stream unavailable: %v", r.sourceID, err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(r.retryDelay):
		}
	}
}

// readOnce consumes the stream until EOF or cancellation
func (r *Reader) readOnce(ctx context.Context) error {
	f, err := os.Open(r.path)
	if err != nil {
		return err
	}
	defer f.Close()

	malformed := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		var frame window.Sample
		if err := json.Unmarshal(scanner.Bytes(), &frame); err != nil || len(frame) == 0 {
			malformed++
			continue
		}
		r.observer.Observe(frame)
	}

	if malformed > 0 {
		log.Printf("⚠️ [%s] Skipped %d malformed frames", r.sourceID, malformed)
	}
	return scanner.Err()
}
