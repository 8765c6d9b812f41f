package applier

import (
	"context"
	"sync"

	"worklog/api/internal/document"
	"worklog/api/internal/store"
)

type memStore struct {
	mu  sync.Mutex
	doc *document.Document
}

func (m *memStore) Read(context.Context) (document.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.doc == nil {
		return document.Document{}, store.ErrNotFound
	}
	return m.doc.Clone(), nil
}

func (m *memStore) Write(_ context.Context, doc document.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := doc.Clone()
	m.doc = &stored
	return nil
}

func (m *memStore) Subscribe(ctx context.Context, _ func(document.Document)) (*store.Subscription, error) {
	return store.StartSubscription(ctx, func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	}), nil
}

func (m *memStore) Ping(context.Context) error { return nil }
func (m *memStore) Close() error                { return nil }
