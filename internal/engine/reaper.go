package engine

import "time"

// reaperLoop periodically fails and evicts entries that have waited past
// the maximum pending time. This is the only elapsed-time removal path;
// members parked in an open batch window are skipped because the batch
// delay already bounds their wait.
func (e *Engine) reaperLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.ReaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.sweep()
		}
	}
}

// sweep evicts expired entries. Failures here must never crash the host
// process, so the sweep recovers its own panics.
func (e *Engine) sweep() {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().Interface("panic", r).Msg("reaper sweep panicked")
		}
	}()

	now := time.Now()

	var expired []*pendingRequest
	e.mu.Lock()
	for key, pr := range e.pending {
		if pr.batching {
			continue
		}
		if now.Sub(pr.createdAt) > e.cfg.MaxPendingTime {
			delete(e.pending, key)
			expired = append(expired, pr)
		}
	}
	e.mu.Unlock()

	for _, pr := range expired {
		waiters := pr.waiters
		pr.waiters = nil
		for _, w := range waiters {
			w <- outcome{err: ErrTimeout}
		}

		e.logger.Warn().
			Str("key", pr.key).
			Dur("age", now.Sub(pr.createdAt)).
			Int("waiters", len(waiters)).
			Msg("request timed out")
	}
}
