package batcher

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"coalescer/internal/request"
)

// Window accumulates batchable requests of a single type.
// The window exclusively owns its membership list; members leave it only
// by flush, by removal (cancellation) or by drain.
type Window struct {
	id          string
	batchType   string
	scheduledAt time.Time
	members     []*Member
	timer       *time.Timer
	flushing    bool // prevents adding during flush
	mu          sync.Mutex
}

// NewWindow creates a new window for the given batch type
func NewWindow(batchType string, batchDelay time.Duration) *Window {
	return &Window{
		id:          uuid.New().String(),
		batchType:   batchType,
		scheduledAt: time.Now().Add(batchDelay),
		members:     make([]*Member, 0),
	}
}

// ID returns the window id
func (w *Window) ID() string {
	return w.id
}

// Type returns the batch type this window groups
func (w *Window) Type() string {
	return w.batchType
}

// Add appends a member to the window.
// Returns true if the window should be flushed immediately (maximum size
// reached or the joining member has high priority).
func (w *Window) Add(m *Member, maxSize int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.flushing {
		return false
	}

	w.members = append(w.members, m)

	return len(w.members) >= maxSize || m.Priority == request.PriorityHigh
}

// StartTimer starts the scheduled flush timer if not already started
func (w *Window) StartTimer(onFlush func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer == nil && !w.flushing {
		w.timer = time.AfterFunc(time.Until(w.scheduledAt), onFlush)
	}
}

// StopTimer cancels the scheduled flush
func (w *Window) StopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

// TakeMembers takes all members from the window for flushing.
// Returns nil if already flushing or no members.
func (w *Window) TakeMembers() []*Member {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.flushing || len(w.members) == 0 {
		return nil
	}

	w.flushing = true
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}

	members := w.members
	w.members = nil

	return members
}

// Remove removes a member by id (key-scoped cancellation).
// Returns true if the member was still parked in the window.
func (w *Window) Remove(memberID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.flushing {
		return false
	}

	for i, m := range w.members {
		if m.ID == memberID {
			w.members = append(w.members[:i], w.members[i+1:]...)
			return true
		}
	}
	return false
}

// Size returns the current member count
func (w *Window) Size() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.members)
}

// IsEmpty returns true if the window has no pending members
func (w *Window) IsEmpty() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.members) == 0 && !w.flushing
}
