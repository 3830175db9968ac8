package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srihari1306/SafeVisionAI/internal/detection"
	"github.com/srihari1306/SafeVisionAI/internal/evidence"
)

type stubForwarder struct {
	mu      sync.Mutex
	err     error
	reports []*detection.Event
}

func (s *stubForwarder) Report(ctx context.Context, ev *detection.Event, locator string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	s.reports = append(s.reports, ev)
	return int64(len(s.reports)), nil
}

func (s *stubForwarder) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reports)
}

type stubQueue struct {
	mu      sync.Mutex
	entries int
}

func (q *stubQueue) Enqueue(ev *detection.Event, locator string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries++
	return nil
}

func newTestGateway(t *testing.T, cooldown time.Duration, fwd Forwarder, retry RetryQueue) *Gateway {
	t.Helper()
	store, err := evidence.NewStore(t.TempDir())
	require.NoError(t, err)
	return New(Config{Cooldown: cooldown}, store, fwd, retry)
}

func event(source string) *detection.Event {
	return &detection.Event{
		SourceID:    source,
		Timestamp:   time.Now(),
		Confidence:  0.95,
		Lat:         13.0,
		Lng:         80.0,
		Evidence:    []byte("jpeg-bytes"),
		EvidenceExt: "jpg",
	}
}

func TestCooldownSuppressesSameSource(t *testing.T) {
	fwd := &stubForwarder{}
	g := newTestGateway(t, 300*time.Second, fwd, nil)

	require.NoError(t, g.Submit(context.Background(), event("CAM-1")))

	err := g.Submit(context.Background(), event("CAM-1"))
	assert.ErrorIs(t, err, ErrSuppressed)

	assert.Equal(t, 1, fwd.count())
	stats := g.Stats()
	assert.Equal(t, uint64(2), stats.Submitted)
	assert.Equal(t, uint64(1), stats.Suppressed)
	assert.Equal(t, uint64(1), stats.Forwarded)
}

func TestDifferentSourcesDoNotSuppressEachOther(t *testing.T) {
	fwd := &stubForwarder{}
	g := newTestGateway(t, 300*time.Second, fwd, nil)

	require.NoError(t, g.Submit(context.Background(), event("CAM-1")))
	require.NoError(t, g.Submit(context.Background(), event("CAM-2")))

	assert.Equal(t, 2, fwd.count())
	assert.Equal(t, uint64(0), g.Stats().Suppressed)
}

func TestCooldownExpires(t *testing.T) {
	fwd := &stubForwarder{}
	g := newTestGateway(t, 30*time.Millisecond, fwd, nil)

	require.NoError(t, g.Submit(context.Background(), event("CAM-1")))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, g.Submit(context.Background(), event("CAM-1")))

	assert.Equal(t, 2, fwd.count())
}

func TestForwardFailureKeepsCooldownAndEvidence(t *testing.T) {
	fwd := &stubForwarder{err: errors.New("connection refused")}
	retry := &stubQueue{}
	store, err := evidence.NewStore(t.TempDir())
	require.NoError(t, err)
	g := New(Config{Cooldown: 300 * time.Second}, store, fwd, retry)

	// Forward fails but the call is not an error for the caller.
	require.NoError(t, g.Submit(context.Background(), event("CAM-1")))

	// Cooldown was set before the forward: the next event is
	// suppressed even though nothing reached the authority.
	err = g.Submit(context.Background(), event("CAM-1"))
	assert.ErrorIs(t, err, ErrSuppressed)

	stats := g.Stats()
	assert.Equal(t, uint64(1), stats.ForwardFailures)
	assert.Equal(t, uint64(1), stats.Suppressed)
	assert.Equal(t, 1, retry.entries)

	remaining, ok := g.CooldownRemaining("CAM-1")
	assert.True(t, ok)
	assert.Greater(t, remaining, time.Duration(0))
}

func TestConcurrentSubmitsOnePasses(t *testing.T) {
	fwd := &stubForwarder{}
	g := newTestGateway(t, 300*time.Second, fwd, nil)

	const n = 32
	var wg sync.WaitGroup
	var suppressed atomic32
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := g.Submit(context.Background(), event("CAM-1")); errors.Is(err, ErrSuppressed) {
				suppressed.inc()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, fwd.count())
	assert.Equal(t, int32(n-1), suppressed.load())
}

type atomic32 struct {
	mu sync.Mutex
	v  int32
}

func (a *atomic32) inc() {
	a.mu.Lock()
	a.v++
	a.mu.Unlock()
}

func (a *atomic32) load() int32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.v
}
