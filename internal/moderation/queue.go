package moderation

import (
	"context"
	"sync/atomic"
)

// Queue is a bounded, channel-backed FIFO with newest-wins overflow: when
// full, TryPush evicts the oldest queued item before inserting the new one.
// It is the hand-off primitive between every pair of adjacent pipeline
// stages (§5). Unlike util.RingBuffer in the reference repo — a
// snapshot/history buffer with no consuming semantics — this type is a
// single-consumer work queue with a blocking, timeout-bounded Pop so workers
// can shut down promptly (§5 Suspension points).
type Queue[T any] struct {
	ch       chan T
	overflow atomic.Uint64
}

// NewQueue creates a Queue with the given capacity.
func NewQueue[T any](capacity int) *Queue[T] {
	return &Queue[T]{ch: make(chan T, capacity)}
}

// TryPush inserts item, evicting the oldest queued item first if full.
// Never blocks longer than the time to drain one stale item.
func (q *Queue[T]) TryPush(item T) {
	for {
		select {
		case q.ch <- item:
			return
		default:
		}
		select {
		case <-q.ch:
			q.overflow.Add(1)
		default:
			// Raced with a concurrent consumer that just drained the
			// channel; retry the push immediately.
		}
	}
}

// Pop blocks for up to the context's lifetime waiting for an item, returning
// ok=false on cancellation. Callers derive a 1-second-timeout context so
// shutdown is prompt (§5).
func (q *Queue[T]) Pop(ctx context.Context) (item T, ok bool) {
	select {
	case item, ok = <-q.ch:
		return item, ok
	case <-ctx.Done():
		return item, false
	}
}

// TryPop returns the next item without blocking, ok=false if empty.
func (q *Queue[T]) TryPop() (item T, ok bool) {
	select {
	case item, ok = <-q.ch:
		return item, ok
	default:
		return item, false
	}
}

// Len returns the number of items currently queued.
func (q *Queue[T]) Len() int { return len(q.ch) }

// Overflows returns the total number of evict-oldest events observed.
func (q *Queue[T]) Overflows() uint64 { return q.overflow.Load() }
