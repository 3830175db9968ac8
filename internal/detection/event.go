// Package detection defines the event emitted when a classifier crosses the alert threshold
package detection

import "time"

// Event is a single above-threshold classification, tied to one source
// and timestamp. Immutable once created.
type Event struct {
	SourceID   string    `json:"sourceId"`
	Timestamp  time.Time `json:"timestamp"`
	Confidence float64   `json:"confidence"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`

	// Evidence is the raw snapshot bytes for CCTV sources, or the
	// JSON-encoded sample window for sensor sources.
	Evidence    []byte `json:"-"`
	EvidenceExt string `json:"-"`
}
