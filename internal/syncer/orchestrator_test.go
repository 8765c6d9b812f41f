package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worklog/api/internal/document"
)

func newLoaded(t *testing.T, st *fakeStore, opts Options) *Orchestrator {
	t.Helper()
	o := New(st, opts)
	t.Cleanup(func() { _ = o.Close() })
	require.NoError(t, o.Load(context.Background()))
	return o
}

func addTodo(id string) func(doc *document.Document) error {
	return func(doc *document.Document) error {
		doc.Todos = append(doc.Todos, document.Todo{ID: id, Text: id, CreatedAt: "2024-05-01T08:00:00.000Z"})
		return nil
	}
}

func todoIDs(doc document.Document) []string {
	ids := make([]string, 0, len(doc.Todos))
	for _, todo := range doc.Todos {
		ids = append(ids, todo.ID)
	}
	return ids
}

func TestGateSuppressesWritesBeforeLoad(t *testing.T) {
	st := &fakeStore{}
	existing := document.Empty()
	existing.CurrentTask = "persisted"
	st.set(existing)

	o := New(st, Options{})
	defer o.Close()

	assert.ErrorIs(t, <-o.PersistAsync(), ErrNotLoaded)
	assert.ErrorIs(t, o.Persist(context.Background()), ErrNotLoaded)
	assert.ErrorIs(t, o.ScheduleWrite(), ErrNotLoaded)
	assert.ErrorIs(t, o.Update(context.Background(), addTodo("a")), ErrNotLoaded)
	assert.ErrorIs(t, o.Edit(addTodo("a")), ErrNotLoaded)
	assert.False(t, o.FlushWrites())
	assert.Zero(t, st.writeCount())
	assert.Equal(t, StateUnloaded, o.State())
}

func TestLoadMissingRowUsesEmptyDocument(t *testing.T) {
	st := &fakeStore{}
	o := newLoaded(t, st, Options{})

	assert.Equal(t, StateLoaded, o.State())
	assert.Equal(t, document.Empty(), o.Snapshot())
	assert.Zero(t, st.writeCount())

	// Loaded is terminal: a second Load does not read again.
	require.NoError(t, o.Load(context.Background()))
	assert.Equal(t, 1, st.readCount())
}

func TestLoadFailureBlocksUntilRetry(t *testing.T) {
	st := &fakeStore{readErr: errors.New("connection refused")}
	o := New(st, Options{})
	defer o.Close()

	err := o.Load(context.Background())
	var readErr *StoreReadError
	require.ErrorAs(t, err, &readErr)
	assert.Equal(t, StateError, o.State())
	assert.ErrorIs(t, <-o.PersistAsync(), ErrNotLoaded)

	st.mu.Lock()
	st.readErr = nil
	st.mu.Unlock()

	require.NoError(t, o.Load(context.Background()))
	assert.Equal(t, StateLoaded, o.State())
}

func TestLoadWhileLoading(t *testing.T) {
	gate := make(chan struct{})
	st := &fakeStore{readGate: gate}
	o := New(st, Options{})
	defer o.Close()

	done := make(chan error, 1)
	go func() { done <- o.Load(context.Background()) }()

	require.Eventually(t, func() bool { return o.State() == StateLoading }, time.Second, time.Millisecond)
	assert.ErrorIs(t, o.Load(context.Background()), ErrLoadInProgress)
	assert.ErrorIs(t, o.Reload(context.Background()), ErrLoadInProgress)

	close(gate)
	require.NoError(t, <-done)
	assert.Equal(t, StateLoaded, o.State())
}

func TestReloadPicksUpStoredState(t *testing.T) {
	st := &fakeStore{}
	o := newLoaded(t, st, Options{})

	changed := document.Empty()
	changed.CurrentTask = "from elsewhere"
	st.set(changed)

	require.NoError(t, o.Reload(context.Background()))
	assert.Equal(t, "from elsewhere", o.Snapshot().CurrentTask)
	assert.Equal(t, StateLoaded, o.State())
}

func TestBackToBackWritesKeepCallOrder(t *testing.T) {
	gate := make(chan struct{})
	st := &fakeStore{writeGate: gate}
	o := newLoaded(t, st, Options{})

	require.NoError(t, o.apply(addTodo("a")))
	first := o.PersistAsync()
	require.NoError(t, o.apply(addTodo("b")))
	second := o.PersistAsync()

	close(gate)
	require.NoError(t, <-first)
	require.NoError(t, <-second)

	assert.Equal(t, 2, st.writeCount())
	assert.Equal(t, []string{"a", "b"}, todoIDs(st.lastWrite()))
	assert.Equal(t, 1, st.maxInFlight)
}

func TestConcurrentUpdatesAllPersist(t *testing.T) {
	st := &fakeStore{writeDelay: 5 * time.Millisecond}
	o := newLoaded(t, st, Options{})

	var wg sync.WaitGroup
	for _, id := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			assert.NoError(t, o.Update(context.Background(), addTodo(id)))
		}(id)
	}
	wg.Wait()

	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, todoIDs(st.lastWrite()))
	assert.Equal(t, 1, st.maxInFlight)
}

func TestUpdateRendersBeforeWrite(t *testing.T) {
	var mu sync.Mutex
	var events []string
	record := func(event string) {
		mu.Lock()
		events = append(events, event)
		mu.Unlock()
	}

	st := &fakeStore{onWrite: func(document.Document) { record("write") }}
	o := New(st, Options{View: ViewFunc(func(document.Document) { record("render") })})
	defer o.Close()
	require.NoError(t, o.Load(context.Background()))

	mu.Lock()
	events = nil
	mu.Unlock()

	require.NoError(t, o.Update(context.Background(), addTodo("a")))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"render", "write"}, events)
}

func TestUpdateSwallowsWriteFailure(t *testing.T) {
	st := &fakeStore{writeErr: errors.New("disk full")}
	o := newLoaded(t, st, Options{})

	require.NoError(t, o.Update(context.Background(), addTodo("a")))
	assert.Equal(t, []string{"a"}, todoIDs(o.Snapshot()))

	var writeErr *StoreWriteError
	assert.ErrorAs(t, <-o.PersistAsync(), &writeErr)
}

func TestUpdateMutateErrorLeavesMirror(t *testing.T) {
	st := &fakeStore{}
	o := newLoaded(t, st, Options{})
	boom := errors.New("boom")

	err := o.Update(context.Background(), func(doc *document.Document) error {
		doc.CurrentTask = "half done"
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "", o.Snapshot().CurrentTask)
	assert.Zero(t, st.writeCount())
}

func TestDebouncedWritesCollapse(t *testing.T) {
	st := &fakeStore{}
	o := newLoaded(t, st, Options{Debounce: time.Hour})

	for _, text := range []string{"t", "ty", "typ"} {
		text := text
		require.NoError(t, o.Edit(func(doc *document.Document) error {
			doc.CurrentTaskDescription = text
			return nil
		}))
	}
	assert.Zero(t, st.writeCount())
	assert.True(t, o.WritePending())

	assert.True(t, o.FlushWrites())
	assert.Equal(t, 1, st.writeCount())
	assert.Equal(t, "typ", st.lastWrite().CurrentTaskDescription)
	assert.False(t, o.FlushWrites())
}

func TestDebouncedWriteFiresAfterQuietPeriod(t *testing.T) {
	st := &fakeStore{}
	o := newLoaded(t, st, Options{Debounce: 20 * time.Millisecond})

	for i := 0; i < 3; i++ {
		require.NoError(t, o.ScheduleWrite())
	}
	require.Eventually(t, func() bool { return st.writeCount() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, st.writeCount())
}

func TestRemoteMergeSkipsFocusedField(t *testing.T) {
	st := &fakeStore{}
	o := newLoaded(t, st, Options{Debounce: time.Hour})

	o.Focus(document.KeyCurrentTaskDescription)
	require.NoError(t, o.Edit(func(doc *document.Document) error {
		doc.CurrentTaskDescription = "typing in progress"
		return nil
	}))

	remote := document.Empty()
	remote.CurrentTask = "remote task"
	remote.CurrentTaskDescription = "remote description"
	o.HandleRemote(remote)

	snapshot := o.Snapshot()
	assert.Equal(t, "typing in progress", snapshot.CurrentTaskDescription)
	assert.Equal(t, "remote task", snapshot.CurrentTask)

	o.Blur(document.KeyCurrentTaskDescription)
	o.HandleRemote(remote)
	assert.Equal(t, "remote description", o.Snapshot().CurrentTaskDescription)
}

func TestFocusIsCounted(t *testing.T) {
	st := &fakeStore{}
	o := newLoaded(t, st, Options{})

	o.Focus(document.KeyCurrentTask)
	o.Focus(document.KeyCurrentTask)
	o.Blur(document.KeyCurrentTask)

	remote := document.Empty()
	remote.CurrentTask = "remote"
	o.HandleRemote(remote)
	assert.Equal(t, "", o.Snapshot().CurrentTask)
}

func TestRemoteIgnoredBeforeLoad(t *testing.T) {
	o := New(&fakeStore{}, Options{})
	defer o.Close()

	remote := document.Empty()
	remote.CurrentTask = "early"
	o.HandleRemote(remote)
	assert.Equal(t, "", o.Snapshot().CurrentTask)
}

func TestRemoteDeferredWhileWriteInFlight(t *testing.T) {
	gate := make(chan struct{})
	st := &fakeStore{writeGate: gate}
	o := newLoaded(t, st, Options{})

	require.NoError(t, o.apply(func(doc *document.Document) error {
		doc.CurrentTask = "local"
		return nil
	}))
	done := o.PersistAsync()

	// An echo of older state arrives before our write lands.
	stale := document.Empty()
	stale.CurrentTask = "stale"
	o.HandleRemote(stale)
	assert.Equal(t, "local", o.Snapshot().CurrentTask)

	readsBefore := st.readCount()
	close(gate)
	require.NoError(t, <-done)

	require.Eventually(t, func() bool { return st.readCount() > readsBefore }, time.Second, time.Millisecond)
	assert.Equal(t, "local", o.Snapshot().CurrentTask)
}

func TestRemoteMergeClearsDanglingReferences(t *testing.T) {
	st := &fakeStore{}
	o := newLoaded(t, st, Options{})

	remote := document.Empty()
	remote.CurrentTodoID = document.StringPtr("gone")
	o.HandleRemote(remote)
	assert.Nil(t, o.Snapshot().CurrentTodoID)
}

func TestWatchDeliversRemoteChanges(t *testing.T) {
	st := &fakeStore{}
	o := newLoaded(t, st, Options{})
	require.NoError(t, o.Watch(context.Background()))

	remote := document.Empty()
	remote.CurrentTask = "pushed"
	st.notify(remote)
	assert.Equal(t, "pushed", o.Snapshot().CurrentTask)
}

func TestWritesNormalizeDates(t *testing.T) {
	st := &fakeStore{}
	o := newLoaded(t, st, Options{})

	require.NoError(t, o.Update(context.Background(), func(doc *document.Document) error {
		doc.StartTime = document.StringPtr("2024-05-01T11:00:00+02:00")
		doc.Questions = []document.Question{{ID: "q", CreatedAt: "1714554000000"}}
		return nil
	}))

	written := st.lastWrite()
	assert.Equal(t, "2024-05-01T09:00:00.000Z", *written.StartTime)
	assert.Equal(t, "2024-05-01T09:00:00.000Z", written.Questions[0].CreatedAt)
}

func TestCloseFlushesPendingWrite(t *testing.T) {
	st := &fakeStore{}
	o := New(st, Options{Debounce: time.Hour})
	require.NoError(t, o.Load(context.Background()))
	require.NoError(t, o.Edit(func(doc *document.Document) error {
		doc.CurrentTaskDescription = "last words"
		return nil
	}))

	require.NoError(t, o.Close())
	assert.Equal(t, 1, st.writeCount())
	assert.Equal(t, "last words", st.lastWrite().CurrentTaskDescription)
	assert.ErrorIs(t, <-o.PersistAsync(), ErrClosed)
	require.NoError(t, o.Close())
}

func TestCloseKeepsDebouncedWriteRacingTimer(t *testing.T) {
	for i := 0; i < 50; i++ {
		st := &fakeStore{}
		o := New(st, Options{Debounce: time.Microsecond})
		require.NoError(t, o.Load(context.Background()))
		require.NoError(t, o.Edit(func(doc *document.Document) error {
			doc.CurrentTaskDescription = "last words"
			return nil
		}))

		require.NoError(t, o.Close())
		require.Equal(t, 1, st.writeCount(), "iteration %d", i)
		assert.Equal(t, "last words", st.lastWrite().CurrentTaskDescription)
	}
}

func TestPersistHonoursContext(t *testing.T) {
	gate := make(chan struct{})
	st := &fakeStore{writeGate: gate}
	o := newLoaded(t, st, Options{})
	defer close(gate)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, o.Persist(ctx), context.DeadlineExceeded)
}
