// Package batcher accumulates batchable requests into time-boxed,
// type-scoped windows and flushes them as ordered, staggered groups.
//
// A window opens when the first batchable request of a type arrives and
// flushes either when its timer fires, when it reaches the maximum batch
// size, or immediately when a high priority request joins. Flushed members
// execute their own stored operation; one member's failure never fails its
// siblings.
package batcher
