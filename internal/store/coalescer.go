package store

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultCoalesceDelay is the trailing-debounce window for batched
// persistence of rapid edits.
const DefaultCoalesceDelay = 500 * time.Millisecond

// WriteCoalescer batches rapid record updates (typically node drags and
// keystrokes) into one bulk write that fires after the edits go quiet.
// Callers must tolerate in-memory state being transiently ahead of the
// durable copy; Flush forces the pending batch through.
type WriteCoalescer struct {
	store *Store
	delay time.Duration
	log   *slog.Logger

	mu      sync.Mutex
	pending map[StoreName]map[string]any
	timer   *time.Timer
	closed  bool
}

// NewWriteCoalescer builds a coalescer in front of the store. A delay of 0
// uses DefaultCoalesceDelay.
func NewWriteCoalescer(s *Store, delay time.Duration) *WriteCoalescer {
	if delay <= 0 {
		delay = DefaultCoalesceDelay
	}
	return &WriteCoalescer{
		store:   s,
		delay:   delay,
		log:     s.log,
		pending: make(map[StoreName]map[string]any),
	}
}

// Enqueue schedules an upsert. Later records for the same key replace
// earlier pending ones, so only the newest state is written.
func (c *WriteCoalescer) Enqueue(name StoreName, rec any) error {
	key, err := recordKey(name, rec)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	byKey, ok := c.pending[name]
	if !ok {
		byKey = make(map[string]any)
		c.pending[name] = byKey
	}
	byKey[key] = rec

	if c.timer == nil {
		c.timer = time.AfterFunc(c.delay, c.fire)
	} else {
		c.timer.Reset(c.delay)
	}
	return nil
}

func (c *WriteCoalescer) fire() {
	if err := c.Flush(context.Background()); err != nil {
		c.log.Warn("coalesced write failed", "err", err)
	}
}

// Flush writes the pending batch now. Safe to call at any time; used on
// shutdown for deterministic persistence.
func (c *WriteCoalescer) Flush(ctx context.Context) error {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	batch := c.pending
	c.pending = make(map[StoreName]map[string]any)
	c.mu.Unlock()

	for name, byKey := range batch {
		recs := make([]any, 0, len(byKey))
		for _, rec := range byKey {
			recs = append(recs, rec)
		}
		if err := c.store.BulkPut(ctx, name, recs); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes and stops accepting work.
func (c *WriteCoalescer) Close(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return c.Flush(ctx)
}
