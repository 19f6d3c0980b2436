// Package pool schedules batch compression across a bounded set of workers.
// It derives the worker count from CPU topology and options, partitions the
// task list into static chunks, relays per-unit progress and error messages,
// and folds chunk results into one order-independent batch result. Small
// batches bypass the pool through a semaphore-bounded in-process path.
package pool
