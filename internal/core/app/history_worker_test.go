package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"vinec/internal/core/ports"
	"vinec/internal/data/history"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryWriterPersistsEvents(t *testing.T) {
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer store.Close()

	old := ports.UpdateEvent{FileID: "/p/Old.vine.ts", Kind: "reload", Timestamp: time.Now().UTC().Add(-48 * time.Hour)}
	require.NoError(t, store.SaveEvent(old))

	w := NewHistoryWriter(store, 8, 24*time.Hour)
	w.Start()
	for i := 0; i < 3; i++ {
		w.Publish(ports.UpdateEvent{FileID: "/p/A.vine.ts", Kind: "render", Timestamp: time.Now().UTC()})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, w.Close(ctx))

	events, err := store.LoadEvents(time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, events, 3, "expected the pruned event to be gone and the queued ones saved")
	for _, e := range events {
		assert.Equal(t, "/p/A.vine.ts", e.FileID)
	}
}

func TestHistoryWriterCloseWithoutStart(t *testing.T) {
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer store.Close()

	w := NewHistoryWriter(store, 4, 0)
	w.Publish(ports.UpdateEvent{FileID: "/p/A.vine.ts", Kind: "style"})
	require.NoError(t, w.Close(context.Background()))

	events, err := store.LoadEvents(time.Time{}, 0)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestSessionFeedsHistory(t *testing.T) {
	a, _, dir := newTestApp(t)
	store, err := history.Open(filepath.Join(dir, ".vinec", "history.db"))
	require.NoError(t, err)
	defer store.Close()

	w := NewHistoryWriter(store, 8, 0)
	a.AddPublisher(w)
	w.Start()

	counter := filepath.Join(dir, "Counter.vine.ts")
	writeFile(t, counter, counterSrc)
	a.HandleChanges(context.Background(), []string{counter})
	require.NoError(t, w.Close(context.Background()))

	events, err := store.LoadFiltered(history.Filter{SessionID: a.SessionID})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "file added", events[0].Reason)
}
