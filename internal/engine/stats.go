package engine

import "sync"

// Stats is a point-in-time snapshot of the engine counters.
// The counter fields are monotonically non-decreasing until ResetStats.
type Stats struct {
	TotalRequests     uint64  `json:"totalRequests"`
	DuplicateRequests uint64  `json:"duplicateRequests"`
	BatchedRequests   uint64  `json:"batchedRequests"`
	CacheHits         uint64  `json:"cacheHits"`
	CostSaved         float64 `json:"costSaved"`
	CurrentPending    int     `json:"currentPending"`
	CurrentBatches    int     `json:"currentBatches"`
	Efficiency        float64 `json:"efficiency"`
}

// counters holds the process-wide accumulators behind GetStats
type counters struct {
	mu                sync.Mutex
	totalRequests     uint64
	duplicateRequests uint64
	batchedRequests   uint64
	cacheHits         uint64
	costSaved         float64
}

func (c *counters) recordTotal() {
	c.mu.Lock()
	c.totalRequests++
	c.mu.Unlock()
}

// recordDuplicate counts a caller that attached to an existing entry,
// crediting its declared cost as saved
func (c *counters) recordDuplicate(cost float64) {
	c.mu.Lock()
	c.duplicateRequests++
	c.costSaved += cost
	c.mu.Unlock()
}

func (c *counters) recordBatched() {
	c.mu.Lock()
	c.batchedRequests++
	c.mu.Unlock()
}

func (c *counters) recordCacheHit() {
	c.mu.Lock()
	c.cacheHits++
	c.mu.Unlock()
}

// snapshot returns the counter values; derived and gauge fields are
// filled in by the engine
func (c *counters) snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		TotalRequests:     c.totalRequests,
		DuplicateRequests: c.duplicateRequests,
		BatchedRequests:   c.batchedRequests,
		CacheHits:         c.cacheHits,
		CostSaved:         c.costSaved,
	}
}

// reset zeroes all counters (explicit maintenance only)
func (c *counters) reset() {
	c.mu.Lock()
	c.totalRequests = 0
	c.duplicateRequests = 0
	c.batchedRequests = 0
	c.cacheHits = 0
	c.costSaved = 0
	c.mu.Unlock()
}
