package request

import (
	"context"
	"fmt"
)

// Operation is the deferred computation wrapped by the engine.
// It is invoked at most once per deduplication key; the engine only
// knows it as something that produces a value or fails.
type Operation func(ctx context.Context) (interface{}, error)

// Priority controls batch ordering and eager-flush triggering.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

// String returns the priority name used in logs and stats output
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	default:
		return fmt.Sprintf("unknown(%d)", int(p))
	}
}

// ParsePriority parses a priority name, defaulting to normal
func ParsePriority(s string) Priority {
	switch s {
	case "low":
		return PriorityLow
	case "high":
		return PriorityHigh
	default:
		return PriorityNormal
	}
}
