package pipeline

import (
	"sync"
	"time"

	"github.com/user/lei-da-rua/internal/types"
)

type dedupEntry struct {
	result     types.OperationResult
	insertedAt time.Time
}

type inflightOp struct {
	done   chan struct{}
	result types.OperationResult
}

// DedupCache remembers operation results for the idempotency window.
// It is in-process by design: scaling the pipeline across processes
// degrades idempotency to per-process best effort, a known limitation.
type DedupCache struct {
	mu       sync.RWMutex
	entries  map[string]dedupEntry
	inflight map[string]*inflightOp

	ttl           time.Duration
	sweepInterval time.Duration
	stopChan      chan struct{}
	stopOnce      sync.Once
}

// NewDedupCache creates a TTL cache with periodic sweep eviction
func NewDedupCache(ttl, sweepInterval time.Duration) *DedupCache {
	return &DedupCache{
		entries:       make(map[string]dedupEntry),
		inflight:      make(map[string]*inflightOp),
		ttl:           ttl,
		sweepInterval: sweepInterval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the eviction sweep loop
func (c *DedupCache) Start() {
	ticker := time.NewTicker(c.sweepInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.Evict()
			case <-c.stopChan:
				return
			}
		}
	}()
}

// Stop halts the eviction sweep loop. Safe to call repeatedly and
// without a prior Start.
func (c *DedupCache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})
}

// Reserve claims an operation id for execution. A result already cached
// inside the TTL window comes back with hit=true. When another caller
// holds the reservation, Reserve blocks until that execution commits
// and returns its result. hit=false means the caller owns the id and
// must Commit a result for it.
func (c *DedupCache) Reserve(operationID string) (types.OperationResult, bool) {
	c.mu.Lock()
	if entry, exists := c.entries[operationID]; exists && time.Since(entry.insertedAt) <= c.ttl {
		c.mu.Unlock()
		return entry.result, true
	}
	if op, exists := c.inflight[operationID]; exists {
		c.mu.Unlock()
		<-op.done
		return op.result, true
	}
	c.inflight[operationID] = &inflightOp{done: make(chan struct{})}
	c.mu.Unlock()
	return types.OperationResult{}, false
}

// Commit publishes the result for a reserved operation id and releases
// any callers blocked on the reservation
func (c *DedupCache) Commit(operationID string, result types.OperationResult) {
	c.mu.Lock()
	c.entries[operationID] = dedupEntry{
		result:     result,
		insertedAt: time.Now(),
	}
	op, reserved := c.inflight[operationID]
	if reserved {
		op.result = result
		delete(c.inflight, operationID)
	}
	c.mu.Unlock()

	if reserved {
		close(op.done)
	}
}

// Get returns the cached result for an operation id inside the TTL window
func (c *DedupCache) Get(operationID string) (types.OperationResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[operationID]
	if !exists || time.Since(entry.insertedAt) > c.ttl {
		return types.OperationResult{}, false
	}
	return entry.result, true
}

// Evict drops every entry older than the TTL and returns how many
func (c *DedupCache) Evict() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := 0
	for operationID, entry := range c.entries {
		if time.Since(entry.insertedAt) > c.ttl {
			delete(c.entries, operationID)
			evicted++
		}
	}
	return evicted
}

// Len returns the number of cached entries, expired or not
func (c *DedupCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
