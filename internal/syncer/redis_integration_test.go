package syncer

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worklog/api/internal/document"
	"worklog/api/internal/store"
)

func TestTwoClientsConvergeOverRedis(t *testing.T) {
	server := miniredis.RunT(t)
	ctx := context.Background()

	open := func() *Orchestrator {
		st, err := store.NewRedisStore(ctx, "redis://"+server.Addr(), "main")
		require.NoError(t, err)
		t.Cleanup(func() { _ = st.Close() })
		o := New(st, Options{Debounce: time.Hour})
		t.Cleanup(func() { _ = o.Close() })
		require.NoError(t, o.Watch(ctx))
		require.NoError(t, o.Load(ctx))
		return o
	}
	writer := open()
	reader := open()

	reader.Focus(document.KeyCurrentTaskDescription)
	require.NoError(t, reader.Edit(func(doc *document.Document) error {
		doc.CurrentTaskDescription = "reader is typing"
		return nil
	}))

	require.NoError(t, writer.Update(ctx, func(doc *document.Document) error {
		doc.CurrentTask = "shared task"
		doc.CurrentTaskDescription = "writer text"
		return nil
	}))

	require.Eventually(t, func() bool {
		return reader.Snapshot().CurrentTask == "shared task"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "reader is typing", reader.Snapshot().CurrentTaskDescription)
}

func TestLateChangeNotificationKeepsNewerWrites(t *testing.T) {
	server := miniredis.RunT(t)
	ctx := context.Background()

	st, err := store.NewRedisStore(ctx, "redis://"+server.Addr(), "main")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	o := New(st, Options{Debounce: time.Hour})
	t.Cleanup(func() { _ = o.Close() })
	require.NoError(t, o.Watch(ctx))
	require.NoError(t, o.Load(ctx))

	require.NoError(t, o.Update(ctx, addTodo("a")))
	require.NoError(t, o.Update(ctx, addTodo("b")))

	// A notification for the first write delivered after the second settled.
	server.Publish("worklog:document:main:changes", "main")
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, []string{"a", "b"}, todoIDs(o.Snapshot()))

	require.NoError(t, o.Update(ctx, addTodo("c")))
	stored, err := st.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, todoIDs(stored))
}
