package app

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"time"

	"vinec/internal/core/ports"
	"vinec/internal/data/queue"
)

const (
	historyBatchSize     = 32
	historyFlushInterval = 200 * time.Millisecond
)

type pruner interface {
	Prune(before time.Time) (int64, error)
}

// HistoryWriter moves published events from a bounded queue into a history
// store off the update path. Events the queue cannot take are dropped.
type HistoryWriter struct {
	store     ports.HistoryStore
	queue     *queue.MemoryQueue
	retention time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

func NewHistoryWriter(store ports.HistoryStore, capacity int, retention time.Duration) *HistoryWriter {
	return &HistoryWriter{
		store:     store,
		queue:     queue.NewMemoryQueue(capacity),
		retention: retention,
	}
}

// Publish implements ports.UpdatePublisher.
func (w *HistoryWriter) Publish(event ports.UpdateEvent) {
	w.queue.Publish(event)
}

func (w *HistoryWriter) Start() {
	if w.cancel != nil {
		return
	}
	w.prune()
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.run(ctx)
}

func (w *HistoryWriter) run(ctx context.Context) {
	defer close(w.done)
	for {
		batch, err := w.queue.DequeueBatch(ctx, historyBatchSize, historyFlushInterval)
		w.save(batch)
		if err != nil {
			if !stderrors.Is(err, io.EOF) && !stderrors.Is(err, context.Canceled) {
				slog.Warn("history queue dequeue failed", "error", err)
				continue
			}
			return
		}
	}
}

func (w *HistoryWriter) save(batch []ports.UpdateEvent) {
	for _, event := range batch {
		if err := w.store.SaveEvent(event); err != nil {
			slog.Warn("history write failed", "file", event.FileID, "error", err)
		}
	}
}

func (w *HistoryWriter) prune() {
	p, ok := w.store.(pruner)
	if !ok || w.retention <= 0 {
		return
	}
	n, err := p.Prune(time.Now().UTC().Add(-w.retention))
	if err != nil {
		slog.Warn("history prune failed", "error", err)
		return
	}
	if n > 0 {
		slog.Info("pruned history", "events", n)
	}
}

// Close stops the worker and writes whatever is still queued. ctx bounds
// the drain.
func (w *HistoryWriter) Close(ctx context.Context) error {
	if err := w.queue.Close(); err != nil {
		return err
	}
	if w.done == nil {
		return w.drain(ctx)
	}
	select {
	case <-w.done:
	case <-ctx.Done():
		w.cancel()
		return ctx.Err()
	}
	w.cancel()
	return nil
}

func (w *HistoryWriter) drain(ctx context.Context) error {
	for {
		batch, err := w.queue.DequeueBatch(ctx, historyBatchSize, 0)
		w.save(batch)
		if stderrors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
	}
}
