package notecal

import (
	"context"
	"sync"
)

// CacheStats tracks cache effectiveness.
type CacheStats struct {
	Hits     int64
	Misses   int64
	Rebuilds int64
}

type rebuildState struct {
	done chan struct{}
	err  error
}

// EventCache memoizes parse results keyed by source id, plus a flattened
// all-events list for calendar views. Writers must invalidate on source
// mutation. Rebuilds are single-flight: concurrent callers wait on the
// in-flight scan instead of starting a second one.
type EventCache struct {
	mu       sync.RWMutex
	bySource map[string][]Event
	all      []Event
	allValid bool
	pending  *rebuildState
	stats    CacheStats
}

func NewEventCache() *EventCache {
	return &EventCache{
		bySource: make(map[string][]Event),
	}
}

// Events returns the cached events for a source id.
func (c *EventCache) Events(sourceID string) ([]Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	events, ok := c.bySource[sourceID]
	if ok {
		c.stats.Hits++
	} else {
		c.stats.Misses++
	}
	return events, ok
}

// Set stores fresh parse results for a source and marks the flattened list
// stale.
func (c *EventCache) Set(sourceID string, events []Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.bySource[sourceID] = events
	c.allValid = false
}

// Invalidate drops a single source's entry.
func (c *EventCache) Invalidate(sourceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.bySource, sourceID)
	c.allValid = false
}

// InvalidateAll drops everything.
func (c *EventCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.bySource = make(map[string][]Event)
	c.all = nil
	c.allValid = false
}

// All returns the flattened event list, rebuilding it from the per-source
// map when stale.
func (c *EventCache) All() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.allValid {
		c.all = c.all[:0]
		for _, events := range c.bySource {
			c.all = append(c.all, events...)
		}
		c.allValid = true
	}

	out := make([]Event, len(c.all))
	copy(out, c.all)
	return out
}

// Stats returns a snapshot of the cache counters.
func (c *EventCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// Rebuild re-scans every note from the source and replaces the cache
// contents. A rebuild already in flight is joined, not duplicated.
func (c *EventCache) Rebuild(ctx context.Context, source NoteSource) error {
	c.mu.Lock()
	if c.pending != nil {
		st := c.pending
		c.mu.Unlock()
		select {
		case <-st.done:
			return st.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	st := &rebuildState{done: make(chan struct{})}
	c.pending = st
	c.mu.Unlock()

	fresh, err := scanAllEvents(ctx, source)

	c.mu.Lock()
	if err == nil {
		c.bySource = fresh
		c.allValid = false
		c.stats.Rebuilds++
	}
	st.err = err
	c.pending = nil
	c.mu.Unlock()
	close(st.done)

	return err
}

func scanAllEvents(ctx context.Context, source NoteSource) (map[string][]Event, error) {
	fresh := make(map[string][]Event)

	page := 0
	for {
		notes, hasMore, err := source.ListNotes(ctx, page, notePageSize)
		if err != nil {
			return nil, wrapError("cache.rebuild", err)
		}
		for _, note := range notes {
			if events := ParseEvents(note.ID, note.Title, note.Body); len(events) > 0 {
				fresh[note.ID] = events
			}
		}
		if !hasMore {
			return fresh, nil
		}
		page++
	}
}
