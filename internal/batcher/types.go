package batcher

import (
	"context"
	"fmt"
	"time"

	"coalescer/internal/request"
)

// Member represents a single batchable request assigned to a window
type Member struct {
	ID       string           // pending request id
	Key      string           // deduplication key
	Type     string           // batch grouping key
	Priority request.Priority // batch ordering and eager-flush trigger
	Op       request.Operation
	// Deliver resolves the member's waiters. It must be invoked exactly
	// once per member, by the runner or by orchestration failure handling.
	Deliver func(value interface{}, err error)
}

// Runner executes a flushed member's stored operation.
// Implementations own result fan-out via Member.Deliver.
type Runner interface {
	RunMember(ctx context.Context, m *Member)
}

// Config holds the window lifecycle parameters
type Config struct {
	BatchDelay   time.Duration // accumulation window before a scheduled flush
	MaxBatchSize int           // member count that forces an immediate flush
	StaggerDelay time.Duration // per-member delay within a flushed batch
}

// OrchestrationError reports a batch-level failure that happened before
// individual member results could be determined
type OrchestrationError struct {
	Cause error
}

func (e *OrchestrationError) Error() string {
	return fmt.Sprintf("batch orchestration failed: %v", e.Cause)
}

func (e *OrchestrationError) Unwrap() error {
	return e.Cause
}
