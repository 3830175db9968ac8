package inference

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srihari1306/SafeVisionAI/internal/detection"
	"github.com/srihari1306/SafeVisionAI/internal/gateway"
	"github.com/srihari1306/SafeVisionAI/internal/window"
)

// stubClassifier returns a fixed confidence or error.
type stubClassifier struct {
	mu         sync.Mutex
	confidence float64
	err        error
	calls      int
	delay      time.Duration
}

func (s *stubClassifier) Classify(ctx context.Context, samples []window.Sample) (float64, error) {
	s.mu.Lock()
	s.calls++
	conf, err, delay := s.confidence, s.err, s.delay
	s.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	return conf, err
}

func (s *stubClassifier) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// captureSink records submitted events.
type captureSink struct {
	mu     sync.Mutex
	events []*detection.Event
}

func (c *captureSink) Submit(ctx context.Context, ev *detection.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *captureSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func (c *captureSink) first() *detection.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.events) == 0 {
		return nil
	}
	return c.events[0]
}

func startRunner(t *testing.T, r *Runner) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx)
	return cancel
}

func feed(r *Runner, n int) {
	for i := 0; i < n; i++ {
		r.Observe(window.Sample{float32(i)})
	}
}

func TestRunnerEmitsEventAboveThreshold(t *testing.T) {
	cls := &stubClassifier{confidence: 0.95}
	sink := &captureSink{}
	r := NewRunner(Config{
		SourceID:   "CAM-1",
		Lat:        13.0,
		Lng:        80.0,
		WindowSize: 5,
		Threshold:  0.9,
	}, cls, sink)
	defer startRunner(t, r)()

	feed(r, 5)

	require.Eventually(t, func() bool { return sink.count() >= 1 }, time.Second, 5*time.Millisecond)

	ev := sink.first()
	assert.Equal(t, "CAM-1", ev.SourceID)
	assert.InDelta(t, 0.95, ev.Confidence, 1e-9)
	assert.InDelta(t, 13.0, ev.Lat, 1e-9)
	assert.InDelta(t, 80.0, ev.Lng, 1e-9)
	assert.NotEmpty(t, ev.Evidence)
	assert.Equal(t, "json", ev.EvidenceExt)
}

func TestRunnerSilentBelowThreshold(t *testing.T) {
	cls := &stubClassifier{confidence: 0.5}
	sink := &captureSink{}
	r := NewRunner(Config{SourceID: "CAM-2", WindowSize: 4, Threshold: 0.9}, cls, sink)
	defer startRunner(t, r)()

	feed(r, 10)

	require.Eventually(t, func() bool { return cls.callCount() >= 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, sink.count())
}

func TestRunnerNoClassificationDuringWarmup(t *testing.T) {
	cls := &stubClassifier{confidence: 1.0}
	sink := &captureSink{}
	r := NewRunner(Config{SourceID: "CAM-3", WindowSize: 10, Threshold: 0.5}, cls, sink)
	defer startRunner(t, r)()

	feed(r, 9)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 0, cls.callCount())
	assert.Equal(t, 0, sink.count())
}

func TestRunnerClassifierErrorIsNoDetection(t *testing.T) {
	cls := &stubClassifier{err: errors.New("model not loaded")}
	sink := &captureSink{}
	r := NewRunner(Config{SourceID: "CAM-4", WindowSize: 3, Threshold: 0.5}, cls, sink)
	defer startRunner(t, r)()

	feed(r, 6)

	require.Eventually(t, func() bool { return r.Stats().Errors >= 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, sink.count())
}

func TestRunnerKeepsSlidingAfterDetection(t *testing.T) {
	cls := &stubClassifier{confidence: 0.99}
	sink := &captureSink{}
	r := NewRunner(Config{SourceID: "CAM-5", WindowSize: 3, Threshold: 0.9}, cls, sink)
	defer startRunner(t, r)()

	feed(r, 3)
	require.Eventually(t, func() bool { return sink.count() >= 1 }, time.Second, 5*time.Millisecond)

	// More samples keep producing classifications; detection is not
	// edge-triggered one-shot.
	before := cls.callCount()
	feed(r, 3)
	require.Eventually(t, func() bool { return cls.callCount() > before }, time.Second, 5*time.Millisecond)
}

func TestObserveNeverBlocksOnSlowClassifier(t *testing.T) {
	cls := &stubClassifier{confidence: 0.1, delay: 50 * time.Millisecond}
	sink := &captureSink{}
	r := NewRunner(Config{SourceID: "CAM-6", WindowSize: 2, Threshold: 0.9}, cls, sink)
	defer startRunner(t, r)()

	start := time.Now()
	feed(r, 200)
	elapsed := time.Since(start)

	// 200 observations while a classification takes 50ms each: ingestion
	// must not be serialized behind the classifier.
	assert.Less(t, elapsed, 40*time.Millisecond)
	assert.Equal(t, uint64(200), r.Stats().Samples)
}

// suppressSink rejects every event as cooldown-suppressed.
type suppressSink struct {
	mu    sync.Mutex
	calls int
}

func (s *suppressSink) Submit(ctx context.Context, ev *detection.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return fmt.Errorf("%w: source %s", gateway.ErrSuppressed, ev.SourceID)
}

func (s *suppressSink) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// logBuffer is a concurrency-safe sink for the standard logger.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRunnerQuietOnCooldownSuppression(t *testing.T) {
	logs := &logBuffer{}
	log.SetOutput(logs)
	defer log.SetOutput(os.Stderr)

	cls := &stubClassifier{confidence: 0.95}
	sink := &suppressSink{}
	r := NewRunner(Config{SourceID: "CAM-7", WindowSize: 3, Threshold: 0.9}, cls, sink)
	defer startRunner(t, r)()

	feed(r, 3)

	require.Eventually(t, func() bool { return sink.callCount() >= 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	assert.Contains(t, logs.String(), "Detection on CAM-7")
	assert.NotContains(t, logs.String(), "Alert submit failed")
}

func TestRunnerStatsLatency(t *testing.T) {
	tr := NewLatencyTracker()
	tr.Record(10 * time.Millisecond)
	tr.Record(20 * time.Millisecond)
	tr.Record(30 * time.Millisecond)

	s := tr.Summary()
	assert.Equal(t, 3, s.Count)
	assert.InDelta(t, 20.0, s.MeanMs, 0.5)
	assert.InDelta(t, 10.0, s.MinMs, 0.5)
	assert.InDelta(t, 30.0, s.MaxMs, 0.5)
}
