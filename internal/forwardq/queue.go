// Package forwardq retries alert forwards that failed, backed by the local filesystem
package forwardq

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/srihari1306/SafeVisionAI/internal/detection"
)

// EntryStatus represents the processing status
type EntryStatus string

const (
	StatusPending EntryStatus = "pending"
	StatusSent    EntryStatus = "sent"
	StatusFailed  EntryStatus = "failed"
)

// Entry is one queued forward attempt. The evidence itself already
// lives in the local evidence store; the entry carries its locator.
type Entry struct {
	ID              string          `json:"id"`
	Event           detection.Event `json:"event"`
	EvidenceLocator string          `json:"evidenceLocator,omitempty"`
	Status          EntryStatus     `json:"status"`
	Retries         int             `json:"retries"`
	Error           string          `json:"error,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// Sender re-attempts delivery of a queued entry.
type Sender interface {
	Send(ctx context.Context, entry *Entry) error
}

// Stats holds queue statistics
type Stats struct {
	Pending   int `json:"pending"`
	Failed    int `json:"failed"`
	Processed int `json:"processed"`
}

// Queue is a file-backed retry queue with a bounded retry budget.
// Entries exhausting their retries are parked in the failed directory;
// the local evidence store remains the durable record either way.
type Queue struct {
	pendingDir string
	sentDir    string
	failedDir  string
	sender     Sender

	maxRetries  int
	retryDelay  time.Duration
	processRate time.Duration

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu    sync.RWMutex
	stats Stats
}

// New creates a queue rooted at baseDir.
func New(baseDir string, sender Sender) (*Queue, error) {
	q := &Queue{
		pendingDir:  filepath.Join(baseDir, "pending"),
		sentDir:     filepath.Join(baseDir, "sent"),
		failedDir:   filepath.Join(baseDir, "failed"),
		sender:      sender,
		maxRetries:  5,
		retryDelay:  5 * time.Second,
		processRate: 5 * time.Second,
		stopChan:    make(chan struct{}),
	}

	for _, dir := range []string{q.pendingDir, q.sentDir, q.failedDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	q.recount()
	return q, nil
}

// Enqueue adds a failed forward for retry.
func (q *Queue) Enqueue(ev *detection.Event, evidenceLocator string) error {
	entry := &Entry{
		ID:              uuid.New().String(),
		Event:           *ev,
		EvidenceLocator: evidenceLocator,
		Status:          StatusPending,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}

	if err := q.save(entry, q.pendingDir); err != nil {
		return err
	}

	q.mu.Lock()
	q.stats.Pending++
	q.mu.Unlock()

	log.Printf("📤 Forward queued for retry: %s (%s)", entry.ID[:8], ev.SourceID)
	return nil
}

// StartProcessor starts the background retry loop.
func (q *Queue) StartProcessor(ctx context.Context) {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()

		ticker := time.NewTicker(q.processRate)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-q.stopChan:
				return
			case <-ticker.C:
				q.processBatch(ctx)
			}
		}
	}()
}

// Stop halts the retry loop.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() { close(q.stopChan) })
	q.wg.Wait()
}

// GetStats returns current queue statistics.
func (q *Queue) GetStats() Stats {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.stats
}

// ProcessPending makes one pass over the pending entries, oldest first.
func (q *Queue) ProcessPending(ctx context.Context) {
	q.processBatch(ctx)
}

func (q *Queue) processBatch(ctx context.Context) {
	if q.sender == nil {
		return
	}

	entries, err := q.loadDir(q.pendingDir)
	if err != nil {
		log.Printf("⚠️ Failed to load pending entries: %v", err)
		return
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})

	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		q.processEntry(ctx, entry)
	}
}

func (q *Queue) processEntry(ctx context.Context, entry *Entry) {
	err := q.sender.Send(ctx, entry)
	entry.UpdatedAt = time.Now()

	if err == nil {
		entry.Status = StatusSent
		entry.Error = ""
		q.save(entry, q.sentDir)
		q.remove(q.pendingDir, entry.ID)

		q.mu.Lock()
		q.stats.Pending--
		q.stats.Processed++
		q.mu.Unlock()

		log.Printf("✅ Queued forward delivered: %s", entry.ID[:8])
		return
	}

	entry.Retries++
	entry.Error = err.Error()

	if entry.Retries >= q.maxRetries {
		entry.Status = StatusFailed
		q.save(entry, q.failedDir)
		q.remove(q.pendingDir, entry.ID)

		q.mu.Lock()
		q.stats.Pending--
		q.stats.Failed++
		q.mu.Unlock()

		log.Printf("❌ Forward failed permanently: %s (%s)", entry.ID[:8], entry.Event.SourceID)
		return
	}

	q.save(entry, q.pendingDir)
	log.Printf("🔄 Forward retry %d/%d: %s", entry.Retries, q.maxRetries, entry.ID[:8])
}

func (q *Queue) save(entry *Entry, dir string) error {
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, entry.ID+".json"), data, 0644)
}

func (q *Queue) remove(dir, id string) error {
	return os.Remove(filepath.Join(dir, id+".json"))
}

func (q *Queue) loadDir(dir string) ([]*Entry, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var entries []*Entry
	for _, f := range files {
		if f.IsDir() || filepath.Ext(f.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, f.Name()))
		if err != nil {
			log.Printf("⚠️ Failed to read queue entry %s: %v", f.Name(), err)
			continue
		}
		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil {
			log.Printf("⚠️ Failed to parse queue entry %s: %v", f.Name(), err)
			continue
		}
		entries = append(entries, &entry)
	}
	return entries, nil
}

func (q *Queue) recount() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stats.Pending = q.countDir(q.pendingDir)
	q.stats.Failed = q.countDir(q.failedDir)
	q.stats.Processed = q.countDir(q.sentDir)
}

func (q *Queue) countDir(dir string) int {
	files, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	count := 0
	for _, f := range files {
		if !f.IsDir() && filepath.Ext(f.Name()) == ".json" {
			count++
		}
	}
	return count
}
