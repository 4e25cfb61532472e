// Copyright (c) 2025 Paul Cager
//
// This file is part of hid-proxy.
//
// hid-proxy is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@paulcager.org for commercial licensing options.

// Package queue provides the bounded FIFO queues joining the keyboard-facing
// and host-facing halves of the proxy. Two overflow policies exist and each
// queue commits to exactly one of them:
//
//   - drop-oldest: PushDropOldest never blocks. When the queue is full the
//     oldest element is evicted to admit the new one. Live input uses this;
//     a stalled host must never wedge keystroke capture.
//
//   - backpressure: Push blocks until space frees or the context ends. Macro
//     playback uses this so long expansions are paced, not truncated.
package queue

import (
	"context"
	"sync/atomic"
)

// Queue is a bounded FIFO of T backed by a buffered channel. All methods are
// safe for concurrent use.
type Queue[T any] struct {
	ch    chan T
	drops atomic.Uint64
}

// New creates a queue with the given capacity. Capacity must be positive.
func New[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		panic("queue: capacity must be positive")
	}
	return &Queue[T]{ch: make(chan T, capacity)}
}

// PushDropOldest enqueues v, evicting the oldest queued element if the queue
// is full. It never blocks. It returns true if an element was dropped to
// make room.
func (q *Queue[T]) PushDropOldest(v T) bool {
	dropped := false
	for {
		select {
		case q.ch <- v:
			return dropped
		default:
		}
		select {
		case <-q.ch:
			q.drops.Add(1)
			dropped = true
		default:
			// A consumer raced us to the oldest element; retry the send.
		}
	}
}

// Push enqueues v, blocking while the queue is full. It returns ctx.Err() if
// the context ends first.
func (q *Queue[T]) Push(ctx context.Context, v T) error {
	select {
	case q.ch <- v:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pop removes and returns the oldest element without blocking. ok is false
// if the queue is empty.
func (q *Queue[T]) Pop() (v T, ok bool) {
	select {
	case v = <-q.ch:
		return v, true
	default:
		return v, false
	}
}

// PopWait removes and returns the oldest element, blocking until one is
// available or the context ends.
func (q *Queue[T]) PopWait(ctx context.Context) (T, error) {
	select {
	case v := <-q.ch:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// C exposes the receive side of the queue for use in select loops.
func (q *Queue[T]) C() <-chan T {
	return q.ch
}

// Len returns the number of queued elements.
func (q *Queue[T]) Len() int {
	return len(q.ch)
}

// Cap returns the queue capacity.
func (q *Queue[T]) Cap() int {
	return cap(q.ch)
}

// Drops returns the number of elements evicted by PushDropOldest since the
// queue was created.
func (q *Queue[T]) Drops() uint64 {
	return q.drops.Load()
}
