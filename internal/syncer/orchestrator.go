// Package syncer keeps the client's local mirror of the document consistent with the store:
// it gates writes until the first load, serializes persistence through one worker, debounces
// high-frequency edits and merges remote changes without touching fields the user is editing.
package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"worklog/api/internal/document"
	"worklog/api/internal/logging"
	"worklog/api/internal/store"
)

// DefaultDebounce is the quiet period before a scheduled write runs.
const DefaultDebounce = 1000 * time.Millisecond

// View is refreshed with a copy of the mirror after every local or remote change.
type View interface {
	Render(doc document.Document)
}

// ViewFunc adapts a function to View.
type ViewFunc func(doc document.Document)

func (f ViewFunc) Render(doc document.Document) { f(doc) }

type Options struct {
	Debounce time.Duration
	View     View
}

type writeJob struct {
	done chan error
}

type Orchestrator struct {
	store     store.Store
	view      View
	debouncer *Debouncer

	// ctx bounds store calls made by the worker; cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	doc      document.Document
	state    LoadState
	focused  map[string]int
	jobs     []writeJob
	pending  int
	deferred bool
	closed   bool
	sub      *store.Subscription

	wake       chan struct{}
	stop       chan struct{}
	workerDone chan struct{}
}

// New starts the write worker. Call Close to flush and stop it.
func New(st store.Store, opts Options) *Orchestrator {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		store:      st,
		view:       opts.View,
		debouncer:  NewDebouncer(opts.Debounce),
		ctx:        ctx,
		cancel:     cancel,
		doc:        document.Empty(),
		focused:    make(map[string]int),
		wake:       make(chan struct{}, 1),
		stop:       make(chan struct{}),
		workerDone: make(chan struct{}),
	}
	go o.run()
	return o
}

func (o *Orchestrator) State() LoadState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Snapshot returns a deep copy of the mirror.
func (o *Orchestrator) Snapshot() document.Document {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.doc.Clone()
}

// Load reads the document and opens the write gate. It is a no-op once Loaded.
func (o *Orchestrator) Load(ctx context.Context) error {
	o.mu.Lock()
	switch o.state {
	case StateLoaded:
		o.mu.Unlock()
		return nil
	case StateLoading:
		o.mu.Unlock()
		return ErrLoadInProgress
	}
	o.state = StateLoading
	o.mu.Unlock()
	return o.read(ctx)
}

// Reload re-reads the document even when Loaded. The gate is closed while the read runs.
func (o *Orchestrator) Reload(ctx context.Context) error {
	o.mu.Lock()
	if o.state == StateLoading {
		o.mu.Unlock()
		return ErrLoadInProgress
	}
	o.state = StateLoading
	o.mu.Unlock()
	return o.read(ctx)
}

func (o *Orchestrator) read(ctx context.Context) error {
	doc, err := o.store.Read(ctx)
	if errors.Is(err, store.ErrNotFound) {
		doc, err = document.Empty(), nil
	}

	o.mu.Lock()
	if err != nil {
		o.state = StateError
		o.mu.Unlock()
		logging.Error("document load failed", "error", err)
		return &StoreReadError{Err: err}
	}
	o.doc = doc
	o.state = StateLoaded
	snapshot := o.doc.Clone()
	o.mu.Unlock()

	o.render(snapshot)
	return nil
}

// Watch subscribes to remote changes. Notifications before Load completes are ignored.
func (o *Orchestrator) Watch(ctx context.Context) error {
	sub, err := o.store.Subscribe(ctx, o.HandleRemote)
	if err != nil {
		return err
	}
	o.mu.Lock()
	previous := o.sub
	o.sub = sub
	o.mu.Unlock()
	if previous != nil {
		_ = previous.Close()
	}
	return nil
}

// Focus marks a top-level field as bound to an input the user is editing.
func (o *Orchestrator) Focus(field string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.focused[field]++
}

func (o *Orchestrator) Blur(field string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.focused[field] <= 1 {
		delete(o.focused, field)
		return
	}
	o.focused[field]--
}

// Update runs one mutation sequence: mutate, refresh the view, then persist and wait for the
// write to settle. A mutate error leaves the mirror unchanged. Write failures are logged and
// swallowed.
func (o *Orchestrator) Update(ctx context.Context, mutate func(doc *document.Document) error) error {
	if err := o.apply(mutate); err != nil {
		return err
	}
	err := o.Persist(ctx)
	var writeErr *StoreWriteError
	if errors.As(err, &writeErr) {
		return nil
	}
	return err
}

// Edit mutates and refreshes the view like Update but schedules a debounced write instead.
func (o *Orchestrator) Edit(mutate func(doc *document.Document) error) error {
	if err := o.apply(mutate); err != nil {
		return err
	}
	return o.ScheduleWrite()
}

func (o *Orchestrator) apply(mutate func(doc *document.Document) error) error {
	o.mu.Lock()
	if o.state != StateLoaded {
		o.mu.Unlock()
		return ErrNotLoaded
	}
	working := o.doc.Clone()
	if err := mutate(&working); err != nil {
		o.mu.Unlock()
		return err
	}
	o.doc = working
	snapshot := o.doc.Clone()
	o.mu.Unlock()

	o.render(snapshot)
	return nil
}

// Persist enqueues an immediate write and waits for it to settle.
func (o *Orchestrator) Persist(ctx context.Context) error {
	select {
	case err := <-o.PersistAsync():
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PersistAsync enqueues an immediate write. Writes run one at a time in call order, and each
// snapshots the mirror when it starts, so a later write carries every earlier mutation.
func (o *Orchestrator) PersistAsync() <-chan error {
	done := make(chan error, 1)

	o.mu.Lock()
	switch {
	case o.closed:
		o.mu.Unlock()
		done <- ErrClosed
		return done
	case o.state != StateLoaded:
		o.mu.Unlock()
		done <- ErrNotLoaded
		return done
	}
	o.jobs = append(o.jobs, writeJob{done: done})
	o.pending++
	o.mu.Unlock()

	select {
	case o.wake <- struct{}{}:
	default:
	}
	return done
}

// ScheduleWrite requests a write after the debounce period, replacing any pending request.
func (o *Orchestrator) ScheduleWrite() error {
	o.mu.Lock()
	loaded := o.state == StateLoaded
	closed := o.closed
	o.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if !loaded {
		return ErrNotLoaded
	}
	o.debouncer.Schedule(func() {
		if err := <-o.PersistAsync(); err != nil {
			logging.Warn("debounced write failed", "error", err)
		}
	})
	return nil
}

// FlushWrites runs a pending debounced write now and waits for it.
func (o *Orchestrator) FlushWrites() bool {
	return o.debouncer.Flush()
}

// WritePending reports whether a debounced write is waiting.
func (o *Orchestrator) WritePending() bool {
	return o.debouncer.Pending()
}

// HandleRemote merges a change notification. While an accepted write is unsettled the
// notification is deferred; once the queue drains the store is re-read and merged instead.
func (o *Orchestrator) HandleRemote(remote document.Document) {
	o.mu.Lock()
	if o.state != StateLoaded {
		o.mu.Unlock()
		return
	}
	if o.pending > 0 {
		o.deferred = true
		o.mu.Unlock()
		return
	}
	o.mergeLocked(remote)
	snapshot := o.doc.Clone()
	o.mu.Unlock()

	o.render(snapshot)
}

// mergeLocked overwrites the mirror with remote except for focused fields.
func (o *Orchestrator) mergeLocked(remote document.Document) {
	if len(o.focused) == 0 {
		o.doc = remote.Clone()
		o.doc.ClearDanglingReferences()
		return
	}
	remoteFields, err := remote.Fields()
	if err != nil {
		logging.Warn("remote merge skipped", "error", err)
		return
	}
	localFields, err := o.doc.Fields()
	if err != nil {
		logging.Warn("remote merge skipped", "error", err)
		return
	}
	for field := range o.focused {
		if value, ok := localFields[field]; ok {
			remoteFields[field] = value
		}
	}
	merged, err := document.FromFields(remoteFields)
	if err != nil {
		logging.Warn("remote merge skipped", "error", err)
		return
	}
	merged.ClearDanglingReferences()
	o.doc = merged
}

func (o *Orchestrator) run() {
	defer close(o.workerDone)
	for {
		select {
		case <-o.wake:
			o.drain()
		case <-o.stop:
			o.drain()
			return
		}
	}
}

func (o *Orchestrator) drain() {
	for {
		o.mu.Lock()
		if len(o.jobs) == 0 {
			o.mu.Unlock()
			return
		}
		job := o.jobs[0]
		o.jobs = o.jobs[1:]
		document.NormalizeDates(&o.doc)
		snapshot := o.doc.Clone()
		o.mu.Unlock()

		err := o.store.Write(o.ctx, snapshot)
		if err != nil {
			err = &StoreWriteError{Err: err}
			logging.Error("document write failed", "error", err)
		}
		job.done <- err
		o.settle()
	}
}

func (o *Orchestrator) settle() {
	o.mu.Lock()
	o.pending--
	reconcile := o.pending == 0 && o.deferred
	if reconcile {
		o.deferred = false
	}
	o.mu.Unlock()
	if reconcile {
		o.reconcile()
	}
}

// reconcile merges the authoritative stored state after deferred notifications.
func (o *Orchestrator) reconcile() {
	doc, err := o.store.Read(o.ctx)
	if err != nil {
		logging.Warn("reconcile read failed", "error", err)
		return
	}
	o.mu.Lock()
	if o.pending > 0 {
		// Another write was accepted meanwhile; retry after it settles.
		o.deferred = true
		o.mu.Unlock()
		return
	}
	o.mergeLocked(doc)
	snapshot := o.doc.Clone()
	o.mu.Unlock()
	o.render(snapshot)
}

func (o *Orchestrator) render(doc document.Document) {
	if o.view != nil {
		o.view.Render(doc)
	}
}

// Close flushes a pending debounced write, drains the queue and stops the subscription. A
// debounced write whose timer already fired is waited for.
func (o *Orchestrator) Close() error {
	o.debouncer.Flush()
	o.debouncer.Wait()

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	sub := o.sub
	o.sub = nil
	o.mu.Unlock()

	if sub != nil {
		_ = sub.Close()
	}
	close(o.stop)
	<-o.workerDone
	o.cancel()
	return nil
}
