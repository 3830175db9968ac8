// Package gateway relays detection events to the incident authority with per-source cooldown suppression
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	cache "github.com/patrickmn/go-cache"

	"github.com/srihari1306/SafeVisionAI/internal/detection"
	"github.com/srihari1306/SafeVisionAI/internal/evidence"
)

// ErrSuppressed is returned when an event is dropped because its source
// is still inside the cooldown window. Suppressed events are not queued
// or retried.
var ErrSuppressed = errors.New("alert suppressed by cooldown")

// Forwarder delivers an event to the incident authority.
type Forwarder interface {
	Report(ctx context.Context, ev *detection.Event, evidenceLocator string) (incidentID int64, err error)
}

// RetryQueue accepts events whose forward failed, for bounded retry.
type RetryQueue interface {
	Enqueue(ev *detection.Event, evidenceLocator string) error
}

// Config holds gateway settings.
type Config struct {
	// Cooldown is the minimum time between two accepted alerts from
	// the same source. Zero means 300s, matching the detector default.
	Cooldown time.Duration
}

// Gateway deduplicates detection events per source and forwards the
// survivors. Safe for concurrent use from multiple sources.
type Gateway struct {
	cooldown  time.Duration
	cooldowns *cache.Cache
	evidence  *evidence.Store
	fwd       Forwarder
	retry     RetryQueue

	submitted   atomic.Uint64
	suppressed  atomic.Uint64
	forwarded   atomic.Uint64
	forwardFail atomic.Uint64
}

// New creates a gateway. retry may be nil to disable the forward retry
// queue.
func New(cfg Config, store *evidence.Store, fwd Forwarder, retry RetryQueue) *Gateway {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 300 * time.Second
	}
	return &Gateway{
		cooldown:  cfg.Cooldown,
		cooldowns: cache.New(cfg.Cooldown, 10*time.Minute),
		evidence:  store,
		fwd:       fwd,
		retry:     retry,
	}
}

// Submit applies the cooldown check, persists evidence locally and
// forwards the event. Cooldown state is written before the forward is
// attempted, so a failed forward never reopens the window. Forward
// failures are recovered here (logged, counted, queued for retry) and
// are not surfaced to the caller; the event counts as delivered to the
// local record.
func (g *Gateway) Submit(ctx context.Context, ev *detection.Event) error {
	g.submitted.Add(1)

	// Atomic check-then-set per source: Add fails while a live entry
	// exists, so two near-simultaneous events for one source cannot
	// both escape suppression. Sources never suppress each other.
	if err := g.cooldowns.Add(ev.SourceID, ev.Timestamp, cache.DefaultExpiration); err != nil {
		g.suppressed.Add(1)
		alertsSuppressed.WithLabelValues(ev.SourceID).Inc()
		log.Printf("⏳ Alert suppressed for %s (cooldown %s active)", ev.SourceID, g.cooldown)
		return fmt.Errorf("%w: source %s", ErrSuppressed, ev.SourceID)
	}

	// Local evidence is independent of forwarding. A write failure is
	// logged and the forward still goes out.
	locator := ""
	if len(ev.Evidence) > 0 {
		var err error
		locator, err = g.evidence.Put(ev.Evidence, ev.EvidenceExt)
		if err != nil {
			log.Printf("⚠️ Evidence write failed for %s: %v", ev.SourceID, err)
		} else {
			log.Printf("📸 Evidence saved: %s", locator)
		}
	}

	incidentID, err := g.fwd.Report(ctx, ev, locator)
	if err != nil {
		g.forwardFail.Add(1)
		forwardFailures.WithLabelValues(ev.SourceID).Inc()
		log.Printf("❌ Forward failed for %s: %v", ev.SourceID, err)
		if g.retry != nil {
			if qErr := g.retry.Enqueue(ev, locator); qErr != nil {
				log.Printf("⚠️ Failed to queue event for retry: %v", qErr)
			}
		}
		return nil
	}

	g.forwarded.Add(1)
	alertsForwarded.WithLabelValues(ev.SourceID).Inc()
	log.Printf("✅ Alert forwarded for %s: incident #%d", ev.SourceID, incidentID)
	return nil
}

// CooldownRemaining reports how long the source stays suppressed, and
// whether an entry exists at all.
func (g *Gateway) CooldownRemaining(sourceID string) (time.Duration, bool) {
	v, expires, ok := g.cooldowns.GetWithExpiration(sourceID)
	if !ok || v == nil {
		return 0, false
	}
	remaining := time.Until(expires)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// Stats is a point-in-time snapshot of gateway counters.
type Stats struct {
	Submitted       uint64 `json:"submitted"`
	Suppressed      uint64 `json:"suppressed"`
	Forwarded       uint64 `json:"forwarded"`
	ForwardFailures uint64 `json:"forwardFailures"`
	ActiveCooldowns int    `json:"activeCooldowns"`
}

// Stats returns current counters.
func (g *Gateway) Stats() Stats {
	return Stats{
		Submitted:       g.submitted.Load(),
		Suppressed:      g.suppressed.Load(),
		Forwarded:       g.forwarded.Load(),
		ForwardFailures: g.forwardFail.Load(),
		ActiveCooldowns: g.cooldowns.ItemCount(),
	}
}
