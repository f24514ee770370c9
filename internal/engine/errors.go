package engine

import "errors"

// ErrTimeout is delivered to waiters whose entry exceeded the maximum
// pending time without resolving. Synthetic; never produced by the
// wrapped operation itself.
var ErrTimeout = errors.New("request timed out")

// ErrCancelled is delivered to waiters of a key removed via CancelRequest
var ErrCancelled = errors.New("request cancelled")

// ErrCleared is delivered to every outstanding waiter when pending state
// is discarded via ClearPending or engine shutdown
var ErrCleared = errors.New("pending state cleared")

// ErrEngineClosed is returned to callers submitting after Close
var ErrEngineClosed = errors.New("engine closed")
