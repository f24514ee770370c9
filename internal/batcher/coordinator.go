package batcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Coordinator owns all open windows, keyed by batch type.
// Distinct batch types never share a window.
type Coordinator struct {
	cfg     Config
	windows map[string]*Window // batch type -> open window
	runner  Runner
	logger  zerolog.Logger
	mu      sync.RWMutex
}

// NewCoordinator creates a new batch coordinator
func NewCoordinator(cfg Config, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		cfg:     cfg,
		windows: make(map[string]*Window),
		logger:  logger.With().Str("component", "batcher").Logger(),
	}
}

// SetRunner sets the member runner
func (c *Coordinator) SetRunner(runner Runner) {
	c.mu.Lock()
	c.runner = runner
	c.mu.Unlock()
}

// Submit adds a member to the open window for its type, opening a new
// window when none exists. The window flushes immediately when it reaches
// the maximum batch size or when the joining member has high priority;
// otherwise the scheduled flush fires after the batch delay.
func (c *Coordinator) Submit(ctx context.Context, m *Member) {
	c.mu.Lock()

	window := c.windows[m.Type]
	if window == nil || window.IsEmpty() {
		window = NewWindow(m.Type, c.cfg.BatchDelay)
		c.windows[m.Type] = window
		c.logger.Debug().
			Str("windowId", window.ID()).
			Str("type", m.Type).
			Msg("opened batch window")
	}

	flushNow := window.Add(m, c.cfg.MaxBatchSize)

	// The timer only arms once, for the first member
	window.StartTimer(func() {
		c.flush(ctx, window)
	})

	c.mu.Unlock()

	if flushNow {
		window.StopTimer()
		go c.flush(ctx, window)
	}
}

// Remove removes a member that is still parked in an open window.
// Returns true if the member was found and removed before any flush.
func (c *Coordinator) Remove(batchType, memberID string) bool {
	c.mu.RLock()
	window := c.windows[batchType]
	c.mu.RUnlock()

	if window == nil {
		return false
	}
	return window.Remove(memberID)
}

// OpenWindows returns the number of currently open windows
func (c *Coordinator) OpenWindows() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	count := 0
	for _, w := range c.windows {
		if !w.IsEmpty() {
			count++
		}
	}
	return count
}

// DrainAll cancels every timer and removes all open windows without
// executing their members. The returned members have NOT been delivered;
// the caller owes each of them a terminal outcome.
func (c *Coordinator) DrainAll() []*Member {
	c.mu.Lock()
	windows := c.windows
	c.windows = make(map[string]*Window)
	c.mu.Unlock()

	var drained []*Member
	for _, w := range windows {
		w.StopTimer()
		drained = append(drained, w.TakeMembers()...)
	}

	if len(drained) > 0 {
		c.logger.Info().Int("members", len(drained)).Msg("drained open batch windows")
	}
	return drained
}

// flush executes the window as an ordered, staggered group.
// The window is removed from the open-window table before any member's
// operation starts, so a new window can open for the same type at once.
func (c *Coordinator) flush(ctx context.Context, window *Window) {
	c.mu.Lock()
	// A later Submit may already have opened a successor window for this
	// type; only remove the table entry if it still points at us.
	if c.windows[window.Type()] == window {
		delete(c.windows, window.Type())
	}
	runner := c.runner
	c.mu.Unlock()

	members := window.TakeMembers()
	if len(members) == 0 {
		return
	}

	// Priority order, submission order as the tie-break
	sort.SliceStable(members, func(i, j int) bool {
		return members[i].Priority > members[j].Priority
	})

	if runner == nil {
		err := &OrchestrationError{Cause: errors.New("batch runner not set")}
		for _, m := range members {
			m.Deliver(nil, err)
		}
		return
	}

	c.logger.Debug().
		Str("windowId", window.ID()).
		Str("type", window.Type()).
		Int("members", len(members)).
		Msg("flushing batch window")

	dispatched := 0
	defer func() {
		if r := recover(); r != nil {
			err := &OrchestrationError{Cause: fmt.Errorf("panic during flush: %v", r)}
			c.logger.Error().
				Str("windowId", window.ID()).
				Interface("panic", r).
				Msg("batch flush panicked")
			for _, m := range members[dispatched:] {
				m.Deliver(nil, err)
			}
		}
	}()

	for i, m := range members {
		delay := time.Duration(i) * c.cfg.StaggerDelay
		go c.runStaggered(ctx, runner, m, delay)
		dispatched++
	}
}

// runStaggered waits out the member's stagger delay, then runs it
func (c *Coordinator) runStaggered(ctx context.Context, runner Runner, m *Member, delay time.Duration) {
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-ctx.Done():
			m.Deliver(nil, &OrchestrationError{Cause: ctx.Err()})
			return
		}
	}

	runner.RunMember(ctx, m)
}
