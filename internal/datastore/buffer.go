// buffer.go wraps a store with a write buffer so a failed event write never
// blocks the pipeline or loses the in-memory event.
package datastore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/soundsentry/screamdet-go/internal/logging"
)

// retryInterval is how often buffered writes are retried.
const retryInterval = 15 * time.Second

// maxBuffered bounds the in-memory buffer; beyond it the oldest entry is
// dropped with an error log, never silently.
const maxBuffered = 1000

type pendingWrite struct {
	event    *Event
	attempts []DispatchAttempt
	lastErr  error
}

// BufferedStore decorates an Interface with recovery for write failures.
// Save never returns a database error to the caller; failed writes are
// buffered and retried in the background, and the failure is surfaced in
// the event's notes on the retried write.
type BufferedStore struct {
	Interface

	mu      sync.Mutex
	pending []pendingWrite
	logger  *slog.Logger
	wake    chan struct{}
}

// NewBufferedStore wraps the given store.
func NewBufferedStore(store Interface) *BufferedStore {
	logger := logging.ForService("datastore-buffer")
	if logger == nil {
		logger = slog.Default().With("service", "datastore-buffer")
	}
	return &BufferedStore{
		Interface: store,
		logger:    logger,
		wake:      make(chan struct{}, 1),
	}
}

// Save attempts the write and buffers the event on failure.
func (b *BufferedStore) Save(event *Event, attempts []DispatchAttempt) error {
	err := b.Interface.Save(event, attempts)
	if err == nil {
		return nil
	}

	b.logger.Error("event write failed, buffering for retry",
		"event_id", event.ID, "error", err)

	b.mu.Lock()
	if len(b.pending) >= maxBuffered {
		dropped := b.pending[0]
		b.pending = b.pending[1:]
		b.logger.Error("write buffer full, dropping oldest event",
			"event_id", dropped.event.ID)
	}
	b.pending = append(b.pending, pendingWrite{event: event, attempts: attempts, lastErr: err})
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
	return nil
}

// PendingCount returns the number of buffered writes.
func (b *BufferedStore) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Run retries buffered writes until the context is cancelled. Call in its
// own goroutine.
func (b *BufferedStore) Run(ctx context.Context) {
	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-b.wake:
		}
		b.Flush()
	}
}

// Flush retries all buffered writes once, keeping whatever still fails.
// The original write failure is recorded in the event notes so the audit
// trail shows the recovery.
func (b *BufferedStore) Flush() {
	b.mu.Lock()
	pending := b.pending
	b.pending = nil
	b.mu.Unlock()

	if len(pending) == 0 {
		return
	}

	var stillPending []pendingWrite
	for _, pw := range pending {
		if pw.lastErr != nil && !strings.Contains(pw.event.Notes, "persistence retry") {
			note := fmt.Sprintf("persistence retry after write failure: %v", pw.lastErr)
			if pw.event.Notes == "" {
				pw.event.Notes = note
			} else {
				pw.event.Notes += "; " + note
			}
		}
		if err := b.Interface.Save(pw.event, pw.attempts); err != nil {
			pw.lastErr = err
			stillPending = append(stillPending, pw)
			continue
		}
		b.logger.Info("buffered event written", "event_id", pw.event.ID)
	}

	if len(stillPending) > 0 {
		b.mu.Lock()
		b.pending = append(stillPending, b.pending...)
		b.mu.Unlock()
	}
}
