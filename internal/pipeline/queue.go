// Package pipeline implements the block queue, block cache, buffer pool,
// reader pool, and writer loop — the concurrent core that moves pixel
// blocks from input files to the output raster.
package pipeline

import (
	"context"

	"github.com/neilflood/moamosaic/internal/planner"
	"github.com/neilflood/moamosaic/internal/raster"
)

// BlockReadResult is one reader worker's contribution to one output block:
// a single file's clipped read, already padded to the block's full
// XSize×YSize with the null value filling whatever the file didn't cover.
type BlockReadResult struct {
	BlockIndex int
	FileIndex  int
	Block      planner.BlockSpec
	Data       raster.Array
}

// Queue is the bounded MPSC channel between reader workers and the writer
// loop. Its capacity bounds how many fully-read blocks may sit unwritten
// at once, which is what keeps the pipeline's memory footprint bounded
// regardless of how large the mosaic is — reader workers block on Put
// once it fills, rather than reading arbitrarily far ahead of the writer.
type Queue struct {
	ch chan BlockReadResult
}

// NewQueue builds a Queue with the given capacity (in blocks).
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{ch: make(chan BlockReadResult, capacity)}
}

// Put enqueues r, blocking if the queue is full until either room frees up
// or ctx is canceled (the fail-fast path: a reader fault cancels the
// shared context, unsticking every blocked Put rather than deadlocking).
func (q *Queue) Put(ctx context.Context, r BlockReadResult) error {
	select {
	case q.ch <- r:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get blocks until a result is available, the queue is closed (ok=false),
// or ctx is canceled.
func (q *Queue) Get(ctx context.Context) (BlockReadResult, bool, error) {
	select {
	case r, ok := <-q.ch:
		return r, ok, nil
	case <-ctx.Done():
		return BlockReadResult{}, false, ctx.Err()
	}
}

// Len reports how many results currently sit in the queue, unconsumed —
// the blockQueueSize gauge spec.md §3/§6 calls for.
func (q *Queue) Len() int { return len(q.ch) }

// Close signals that no more results will ever be put. Callers must ensure
// every reader worker has returned before calling Close.
func (q *Queue) Close() { close(q.ch) }
