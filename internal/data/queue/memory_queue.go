// Package queue buffers update events between the dev session and the
// history writer.
package queue

import (
	"context"
	"io"
	"sync"
	"time"

	"vinec/internal/core/ports"
	"vinec/internal/shared/observability"
)

type EnqueueResult string

const (
	EnqueueAccepted EnqueueResult = "accepted"
	EnqueueDropped  EnqueueResult = "dropped"
)

type MemoryQueue struct {
	ch     chan ports.UpdateEvent
	mu     sync.RWMutex
	closed bool
}

func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &MemoryQueue{ch: make(chan ports.UpdateEvent, capacity)}
}

// Enqueue never blocks. A full or closed queue drops the event.
func (q *MemoryQueue) Enqueue(event ports.UpdateEvent) EnqueueResult {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return EnqueueDropped
	}
	select {
	case q.ch <- event:
		return EnqueueAccepted
	default:
		observability.UpdateQueueDropped.Inc()
		return EnqueueDropped
	}
}

// Publish adapts the queue to ports.UpdatePublisher.
func (q *MemoryQueue) Publish(event ports.UpdateEvent) {
	q.Enqueue(event)
}

// DequeueBatch waits up to wait for the first event, then takes whatever
// else is immediately available up to maxItems. A closed, drained queue
// returns io.EOF.
func (q *MemoryQueue) DequeueBatch(ctx context.Context, maxItems int, wait time.Duration) ([]ports.UpdateEvent, error) {
	if maxItems <= 0 {
		maxItems = 1
	}
	batch := make([]ports.UpdateEvent, 0, maxItems)

	var timer <-chan time.Time
	if wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		timer = t.C
	}

	select {
	case event, ok := <-q.ch:
		if !ok {
			return nil, io.EOF
		}
		batch = append(batch, event)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer:
		return nil, nil
	default:
		if wait <= 0 {
			return nil, nil
		}
		select {
		case event, ok := <-q.ch:
			if !ok {
				return nil, io.EOF
			}
			batch = append(batch, event)
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer:
			return nil, nil
		}
	}

	for len(batch) < maxItems {
		select {
		case event, ok := <-q.ch:
			if !ok {
				return batch, io.EOF
			}
			batch = append(batch, event)
		default:
			return batch, nil
		}
	}
	return batch, nil
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	close(q.ch)
	return nil
}

func (q *MemoryQueue) Len() int {
	if q == nil {
		return 0
	}
	return len(q.ch)
}
