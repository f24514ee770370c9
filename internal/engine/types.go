package engine

import (
	"time"

	"coalescer/internal/request"
)

// Config holds the engine timing and sizing parameters.
// Zero values fall back to the defaults below, so a zero Config is usable.
type Config struct {
	MaxPendingTime   time.Duration // max time a request may stay pending before the reaper fails it
	ReaperInterval   time.Duration // interval between reaper sweeps
	BatchDelay       time.Duration // accumulation window before a batch flushes
	MaxBatchSize     int           // member count that forces an immediate flush
	StaggerDelay     time.Duration // per-member delay within a flushed batch
	MaxConcurrentOps int           // max simultaneous operation executions, 0 means unbounded
}

// Default engine parameters
const (
	DefaultMaxPendingTime = 30 * time.Second
	DefaultReaperInterval = 60 * time.Second
	DefaultBatchDelay     = 100 * time.Millisecond
	DefaultMaxBatchSize   = 10
	DefaultStaggerDelay   = 50 * time.Millisecond
)

// DefaultConfig returns the default engine configuration
func DefaultConfig() Config {
	return Config{
		MaxPendingTime: DefaultMaxPendingTime,
		ReaperInterval: DefaultReaperInterval,
		BatchDelay:     DefaultBatchDelay,
		MaxBatchSize:   DefaultMaxBatchSize,
		StaggerDelay:   DefaultStaggerDelay,
	}
}

// normalize fills zero fields with defaults
func (c Config) normalize() Config {
	if c.MaxPendingTime == 0 {
		c.MaxPendingTime = DefaultMaxPendingTime
	}
	if c.ReaperInterval == 0 {
		c.ReaperInterval = DefaultReaperInterval
	}
	if c.BatchDelay == 0 {
		c.BatchDelay = DefaultBatchDelay
	}
	if c.MaxBatchSize == 0 {
		c.MaxBatchSize = DefaultMaxBatchSize
	}
	if c.StaggerDelay == 0 {
		c.StaggerDelay = DefaultStaggerDelay
	}
	return c
}

// Options describes a single submission to Execute
type Options struct {
	Priority  request.Priority       // batch ordering and eager-flush triggering
	Cost      float64                // caller-declared cost unit, opaque to the engine
	Metadata  map[string]interface{} // caller-side bookkeeping, passed through untouched
	Batchable bool                   // route through the batch coordinator on a registry miss
	BatchType string                 // batch grouping key, required when Batchable
	Kind      string                 // caller-declared operation kind, used for result cache opt-out
}

// PendingInfo is a read-only snapshot of a currently pending request
type PendingInfo struct {
	Key      string        `json:"key"`
	Age      time.Duration `json:"age"`
	Priority string        `json:"priority"`
	Cost     float64       `json:"cost"`
}

// outcome is the terminal result fanned out to waiters
type outcome struct {
	value interface{}
	err   error
}

// waiter receives exactly one outcome; buffered so fan-out never blocks
type waiter chan outcome

// pendingRequest tracks one in-flight execution and everyone waiting on it.
// All mutation happens under the engine mutex; waiters are drained atomically
// with removal from the pending map.
type pendingRequest struct {
	id        string
	key       string
	createdAt time.Time
	priority  request.Priority
	cost      float64
	metadata  map[string]interface{}
	batchType string
	waiters   []waiter
	batching  bool // still parked in an open batch window
}
