// Package engine coalesces semantically identical concurrent requests and
// routes compatible ones into timed batches.
//
// The engine guarantees at most one live execution of the wrapped operation
// per deduplication key: late-arriving callers for an in-flight key attach
// as additional waiters and share the single result. Requests marked
// batchable accumulate into type-scoped windows handled by the batch
// coordinator. All pending state is in-memory and lost on restart.
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"coalescer/internal/batcher"
	"coalescer/internal/cache"
	"coalescer/internal/request"
)

// Engine is the request coalescing and adaptive batching engine.
// Construct with New; Close stops the background reaper and fails all
// outstanding waiters.
type Engine struct {
	cfg         Config
	logger      zerolog.Logger
	resultCache cache.Cache
	coordinator *batcher.Coordinator
	sem         *semaphore.Weighted // nil when MaxConcurrentOps is 0
	stats       counters

	mu      sync.Mutex
	pending map[string]*pendingRequest // dedup key -> unresolved request
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an engine and starts its background reaper.
// A nil resultCache disables memoization.
func New(cfg Config, resultCache cache.Cache, logger zerolog.Logger) *Engine {
	cfg = cfg.normalize()

	if resultCache == nil {
		resultCache = cache.NewNoopCache()
	}

	ctx, cancel := context.WithCancel(context.Background())

	e := &Engine{
		cfg:         cfg,
		logger:      logger.With().Str("component", "engine").Logger(),
		resultCache: resultCache,
		pending:     make(map[string]*pendingRequest),
		ctx:         ctx,
		cancel:      cancel,
	}

	if cfg.MaxConcurrentOps > 0 {
		e.sem = semaphore.NewWeighted(int64(cfg.MaxConcurrentOps))
	}

	e.coordinator = batcher.NewCoordinator(batcher.Config{
		BatchDelay:   cfg.BatchDelay,
		MaxBatchSize: cfg.MaxBatchSize,
		StaggerDelay: cfg.StaggerDelay,
	}, logger)
	e.coordinator.SetRunner(e)

	e.wg.Add(1)
	go e.reaperLoop()

	return e
}

// Execute submits an operation under a deduplication key and blocks until
// the shared execution resolves. Identical concurrent keys trigger the
// operation at most once; batchable misses route through the batch
// coordinator instead of executing directly.
func (e *Engine) Execute(ctx context.Context, op request.Operation, key string, opts Options) (interface{}, error) {
	e.stats.recordTotal()

	// Memoized results short-circuit everything else
	if !opts.Batchable && cache.IsCacheable(opts.Kind) {
		if v, ok := e.resultCache.Get(key); ok {
			e.stats.recordCacheHit()
			e.logger.Debug().Str("key", key).Msg("result cache hit")
			return v, nil
		}
	}

	e.mu.Lock()

	if e.closed {
		e.mu.Unlock()
		return nil, ErrEngineClosed
	}

	// Registry hit: attach as an additional waiter, no new execution
	if pr, ok := e.pending[key]; ok {
		w := make(waiter, 1)
		pr.waiters = append(pr.waiters, w)
		e.mu.Unlock()

		e.stats.recordDuplicate(opts.Cost)
		e.logger.Debug().Str("key", key).Msg("joined in-flight request")
		return e.await(ctx, w)
	}

	pr := &pendingRequest{
		id:        uuid.New().String(),
		key:       key,
		createdAt: time.Now(),
		priority:  opts.Priority,
		cost:      opts.Cost,
		metadata:  opts.Metadata,
		batchType: opts.BatchType,
	}
	w := make(waiter, 1)
	pr.waiters = []waiter{w}
	e.pending[key] = pr

	if opts.Batchable {
		pr.batching = true
		e.mu.Unlock()

		e.stats.recordBatched()
		e.coordinator.Submit(e.ctx, &batcher.Member{
			ID:       pr.id,
			Key:      key,
			Type:     opts.BatchType,
			Priority: opts.Priority,
			Op:       op,
			Deliver: func(v interface{}, err error) {
				e.resolve(key, pr.id, v, err)
			},
		})
		return e.await(ctx, w)
	}

	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.run(e.ctx, op, key, pr.id, cache.IsCacheable(opts.Kind))
	}()

	return e.await(ctx, w)
}

// RunMember executes a flushed batch member's stored operation.
// Implements batcher.Runner.
func (e *Engine) RunMember(ctx context.Context, m *batcher.Member) {
	e.mu.Lock()
	pr, ok := e.pending[m.Key]
	if !ok || pr.id != m.ID {
		// Cancelled or cleared while staggered; waiters already resolved
		e.mu.Unlock()
		return
	}
	// Leaving the window: from here the member behaves like a direct
	// in-flight entry and falls under the reaper again
	pr.batching = false
	e.mu.Unlock()

	// Batch results are never memoized; batched keys are expected to be
	// one-shot groupings rather than repeated lookups
	e.run(ctx, m.Op, m.Key, m.ID, false)
}

// run invokes the operation exactly once and fans the outcome out
func (e *Engine) run(ctx context.Context, op request.Operation, key, id string, cacheable bool) {
	if e.sem != nil {
		if err := e.sem.Acquire(ctx, 1); err != nil {
			e.resolve(key, id, nil, err)
			return
		}
		defer e.sem.Release(1)
	}

	value, err := invoke(ctx, op)

	if err == nil && cacheable {
		e.resultCache.Set(key, value)
	}

	e.resolve(key, id, value, err)
}

// invoke runs the wrapped operation, converting panics into errors so a
// misbehaving operation cannot take down the fan-out path
func invoke(ctx context.Context, op request.Operation) (value interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("operation panicked: %v", r)
		}
	}()
	return op(ctx)
}

// resolve removes the entry and drains its waiters in join order.
// The id guard keeps a stale completion (for a key that was cancelled and
// resubmitted) from resolving the successor entry.
func (e *Engine) resolve(key, id string, value interface{}, err error) {
	e.mu.Lock()
	pr, ok := e.pending[key]
	if !ok || pr.id != id {
		e.mu.Unlock()
		return
	}
	delete(e.pending, key)
	waiters := pr.waiters
	pr.waiters = nil
	e.mu.Unlock()

	for _, w := range waiters {
		w <- outcome{value: value, err: err}
	}

	if err != nil {
		e.logger.Debug().Str("key", key).Err(err).Int("waiters", len(waiters)).Msg("request failed")
	}
}

// await blocks until the waiter resolves or the caller's context ends.
// An abandoned waiter slot stays attached; fan-out into the buffered
// channel cannot block, so nothing leaks past resolution.
func (e *Engine) await(ctx context.Context, w waiter) (interface{}, error) {
	select {
	case o := <-w:
		return o.value, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// CancelRequest fails only the given key's outstanding waiters with
// ErrCancelled and removes the entry. Other keys and other batch windows
// are unaffected. Returns true if a pending entry existed.
func (e *Engine) CancelRequest(key string) bool {
	e.mu.Lock()
	pr, ok := e.pending[key]
	if !ok {
		e.mu.Unlock()
		return false
	}
	delete(e.pending, key)
	waiters := pr.waiters
	pr.waiters = nil
	batching := pr.batching
	e.mu.Unlock()

	if batching {
		e.coordinator.Remove(pr.batchType, pr.id)
	}

	for _, w := range waiters {
		w <- outcome{err: ErrCancelled}
	}

	e.logger.Debug().Str("key", key).Int("waiters", len(waiters)).Msg("request cancelled")
	return true
}

// ClearPending discards all pending and batched state, failing every
// outstanding waiter with ErrCleared. Continuations are never silently
// dropped. Used for shutdown and test isolation.
func (e *Engine) ClearPending() {
	// Drain the coordinator first so no timer can flush mid-clear; the
	// drained members' entries are still in the pending map and get
	// failed below along with everything else.
	e.coordinator.DrainAll()

	e.mu.Lock()
	pending := e.pending
	e.pending = make(map[string]*pendingRequest)
	e.mu.Unlock()

	cleared := 0
	for _, pr := range pending {
		for _, w := range pr.waiters {
			w <- outcome{err: ErrCleared}
		}
		cleared += len(pr.waiters)
		pr.waiters = nil
	}

	if cleared > 0 {
		e.logger.Info().Int("waiters", cleared).Msg("cleared pending state")
	}
}

// GetStats returns a snapshot of the engine counters and gauges
func (e *Engine) GetStats() Stats {
	s := e.stats.snapshot()

	e.mu.Lock()
	s.CurrentPending = len(e.pending)
	e.mu.Unlock()

	s.CurrentBatches = e.coordinator.OpenWindows()

	if s.TotalRequests > 0 {
		s.Efficiency = float64(s.DuplicateRequests+s.BatchedRequests) / float64(s.TotalRequests)
	}
	return s
}

// GetPendingRequests lists currently pending requests, oldest first
func (e *Engine) GetPendingRequests() []PendingInfo {
	now := time.Now()

	e.mu.Lock()
	entries := make([]*pendingRequest, 0, len(e.pending))
	for _, pr := range e.pending {
		entries = append(entries, pr)
	}
	e.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].createdAt.Before(entries[j].createdAt)
	})

	infos := make([]PendingInfo, len(entries))
	for i, pr := range entries {
		infos[i] = PendingInfo{
			Key:      pr.key,
			Age:      now.Sub(pr.createdAt),
			Priority: pr.priority.String(),
			Cost:     pr.cost,
		}
	}
	return infos
}

// ResetStats zeroes all counters. Explicit maintenance only; the engine
// never resets them on its own.
func (e *Engine) ResetStats() {
	e.stats.reset()
}

// Close stops the background reaper, fails all outstanding waiters with
// ErrCleared and releases the result cache. Safe to call more than once.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	e.cancel()
	e.ClearPending()
	e.wg.Wait()
	e.resultCache.Close()

	e.logger.Info().Msg("engine closed")
}
