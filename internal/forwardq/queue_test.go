package forwardq

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srihari1306/SafeVisionAI/internal/detection"
)

type stubSender struct {
	mu    sync.Mutex
	fail  int // fail this many sends before succeeding
	sends int
}

func (s *stubSender) Send(ctx context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends++
	if s.sends <= s.fail {
		return errors.New("connection refused")
	}
	return nil
}

func testEvent() *detection.Event {
	return &detection.Event{
		SourceID:   "CAM-1",
		Timestamp:  time.Now(),
		Confidence: 0.93,
	}
}

func TestQueueDeliversOnRetry(t *testing.T) {
	sender := &stubSender{fail: 2}
	q, err := New(t.TempDir(), sender)
	require.NoError(t, err)

	require.NoError(t, q.Enqueue(testEvent(), "accident_x.jpg"))
	assert.Equal(t, 1, q.GetStats().Pending)

	ctx := context.Background()
	q.ProcessPending(ctx) // fail 1
	q.ProcessPending(ctx) // fail 2
	q.ProcessPending(ctx) // success

	stats := q.GetStats()
	assert.Equal(t, 0, stats.Pending)
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 0, stats.Failed)
}

func TestQueueParksAfterMaxRetries(t *testing.T) {
	sender := &stubSender{fail: 1000}
	q, err := New(t.TempDir(), sender)
	require.NoError(t, err)

	require.NoError(t, q.Enqueue(testEvent(), ""))

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		q.ProcessPending(ctx)
	}

	stats := q.GetStats()
	assert.Equal(t, 0, stats.Pending)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, q.maxRetries, sender.sends)
}

func TestStartProcessorReturnsAndStopWaits(t *testing.T) {
	q, err := New(t.TempDir(), &stubSender{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// StartProcessor registers the worker before returning, so an
	// immediate Stop must wait for it rather than racing past wg.Wait.
	done := make(chan struct{})
	go func() {
		q.StartProcessor(ctx)
		q.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("StartProcessor or Stop blocked")
	}
}

func TestQueueSurvivesRestart(t *testing.T) {
	dir := t.TempDir()

	q1, err := New(dir, nil)
	require.NoError(t, err)
	require.NoError(t, q1.Enqueue(testEvent(), "accident_y.jpg"))

	// Reopen over the same directory: the pending entry is still there.
	q2, err := New(dir, &stubSender{})
	require.NoError(t, err)
	assert.Equal(t, 1, q2.GetStats().Pending)

	q2.ProcessPending(context.Background())
	assert.Equal(t, 1, q2.GetStats().Processed)
}
