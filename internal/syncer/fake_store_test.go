package syncer

import (
	"context"
	"sync"
	"time"

	"worklog/api/internal/document"
	"worklog/api/internal/store"
)

type fakeStore struct {
	mu          sync.Mutex
	doc         *document.Document
	writes      []document.Document
	reads       int
	readErr     error
	writeErr    error
	readGate    chan struct{}
	writeGate   chan struct{}
	writeDelay  time.Duration
	inFlight    int
	maxInFlight int
	onWrite     func(doc document.Document)
	onChange    func(doc document.Document)
}

func (f *fakeStore) Read(ctx context.Context) (document.Document, error) {
	f.mu.Lock()
	gate := f.readGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.readErr != nil {
		return document.Document{}, f.readErr
	}
	if f.doc == nil {
		return document.Document{}, store.ErrNotFound
	}
	return f.doc.Clone(), nil
}

func (f *fakeStore) Write(ctx context.Context, doc document.Document) error {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	gate := f.writeGate
	delay := f.writeDelay
	onWrite := f.onWrite
	f.mu.Unlock()

	if onWrite != nil {
		onWrite(doc)
	}
	if gate != nil {
		<-gate
	}
	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--
	if f.writeErr != nil {
		return f.writeErr
	}
	stored := doc.Clone()
	f.doc = &stored
	f.writes = append(f.writes, doc.Clone())
	return nil
}

func (f *fakeStore) Subscribe(ctx context.Context, onChange func(document.Document)) (*store.Subscription, error) {
	f.mu.Lock()
	f.onChange = onChange
	f.mu.Unlock()
	return store.StartSubscription(ctx, func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	}), nil
}

func (f *fakeStore) Ping(context.Context) error { return nil }
func (f *fakeStore) Close() error                { return nil }

func (f *fakeStore) set(doc document.Document) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.doc = &doc
}

func (f *fakeStore) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func (f *fakeStore) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

func (f *fakeStore) lastWrite() document.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes[len(f.writes)-1].Clone()
}

func (f *fakeStore) notify(doc document.Document) {
	f.mu.Lock()
	onChange := f.onChange
	f.mu.Unlock()
	onChange(doc)
}
