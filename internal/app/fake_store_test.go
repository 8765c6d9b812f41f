package app

import (
	"context"
	"errors"
	"sync"

	"worklog/api/internal/document"
	"worklog/api/internal/store"
)

type fakeStore struct {
	mu       sync.Mutex
	doc      *document.Document
	reads    int
	writes   []document.Document
	onChange func(document.Document)

	subscriptions int
	drop          chan struct{}

	readFn func(context.Context) (document.Document, error)
	pingFn func(context.Context) error
}

func (f *fakeStore) Read(ctx context.Context) (document.Document, error) {
	f.mu.Lock()
	f.reads++
	readFn := f.readFn
	doc := f.doc
	f.mu.Unlock()
	if readFn != nil {
		return readFn(ctx)
	}
	if doc == nil {
		return document.Document{}, store.ErrNotFound
	}
	return doc.Clone(), nil
}

func (f *fakeStore) Write(_ context.Context, doc document.Document) error {
	f.mu.Lock()
	stored := doc.Clone()
	f.doc = &stored
	f.writes = append(f.writes, doc.Clone())
	onChange := f.onChange
	f.mu.Unlock()
	if onChange != nil {
		onChange(doc.Clone())
	}
	return nil
}

func (f *fakeStore) Subscribe(ctx context.Context, onChange func(document.Document)) (*store.Subscription, error) {
	drop := make(chan struct{})
	f.mu.Lock()
	f.onChange = onChange
	f.subscriptions++
	f.drop = drop
	f.mu.Unlock()
	return store.StartSubscription(ctx, func(ctx context.Context) error {
		defer func() {
			f.mu.Lock()
			f.onChange = nil
			f.mu.Unlock()
		}()
		select {
		case <-ctx.Done():
			return nil
		case <-drop:
			return errors.New("connection lost")
		}
	}), nil
}

// dropFeed ends the current subscription as a lost connection would.
func (f *fakeStore) dropFeed() {
	f.mu.Lock()
	defer f.mu.Unlock()
	close(f.drop)
}

func (f *fakeStore) subscriptionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscriptions
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

func (f *fakeStore) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}
