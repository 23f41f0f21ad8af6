package synchronizer

import (
	"context"
	"fmt"
	"sync"

	"bansync/internal/models"
)

// LatestFetcher returns the most recently created record, or nil if the
// store is empty.
type LatestFetcher interface {
	GetLatest(ctx context.Context) (*models.BanRecord, error)
}

// Cursor is the highest record id the new-record scan has already seen.
// It starts at the newest id in the store the first time it is read, so a
// restart does not replay the backlog. It is never persisted.
type Cursor struct {
	mu          sync.Mutex
	source      LatestFetcher
	value       uint
	initialized bool
}

// NewCursor returns a cursor that initializes itself from source on first use.
func NewCursor(source LatestFetcher) *Cursor {
	return &Cursor{source: source}
}

// NewCursorAt returns a cursor already positioned at id.
func NewCursorAt(id uint) *Cursor {
	return &Cursor{value: id, initialized: true}
}

// Current returns the cursor, loading the baseline from the store if this
// is the first call. A failed load leaves the cursor uninitialized so the
// next call retries.
func (c *Cursor) Current(ctx context.Context) (uint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		return c.value, nil
	}
	if c.source == nil {
		c.initialized = true
		return c.value, nil
	}

	latest, err := c.source.GetLatest(ctx)
	if err != nil {
		return 0, fmt.Errorf("load cursor baseline: %w", err)
	}
	if latest != nil && latest.ID > c.value {
		c.value = latest.ID
	}
	c.initialized = true
	return c.value, nil
}

// Advance raises the cursor to id. Lower values are ignored.
func (c *Cursor) Advance(id uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id > c.value {
		c.value = id
	}
}

// Initialized reports whether the baseline has been established.
func (c *Cursor) Initialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialized
}
