// Package store persists the single worklog document and streams change notifications for it.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"worklog/api/internal/document"
)

// ErrNotFound is returned by Read when the document row does not exist yet.
var ErrNotFound = errors.New("document not found")

const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Store is the cloud-held document. It does no merging: Write replaces the whole row.
type Store interface {
	Read(ctx context.Context) (document.Document, error)
	Write(ctx context.Context, doc document.Document) error
	// Subscribe delivers every change to the configured document until the subscription is closed.
	Subscribe(ctx context.Context, onChange func(document.Document)) (*Subscription, error)
	Ping(ctx context.Context) error
	Close() error
}

type Options struct {
	Backend     string
	DatabaseURL string
	RedisURL    string
	DocumentID  string
	// Migrate applies the embedded schema migrations on open (postgres only).
	Migrate bool
}

// OpenStore connects to the configured backend.
func OpenStore(ctx context.Context, opts Options) (Store, error) {
	if strings.TrimSpace(opts.DocumentID) == "" {
		return nil, errors.New("document id is required")
	}
	switch strings.ToLower(opts.Backend) {
	case BackendPostgres:
		db, err := Open(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if opts.Migrate {
			if err := ApplyMigrations(ctx, db); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
		return NewPostgresStore(db, opts.DatabaseURL, opts.DocumentID), nil
	case BackendRedis:
		return NewRedisStore(ctx, opts.RedisURL, opts.DocumentID)
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}

// Subscription is a running change feed.
type Subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	mu  sync.Mutex
	err error
}

// StartSubscription runs feed on its own goroutine until ctx is cancelled or Close is called.
// A non-nil error from feed that is not caused by cancellation is reported by Err.
func StartSubscription(ctx context.Context, feed func(ctx context.Context) error) *Subscription {
	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(sub.done)
		err := feed(subCtx)
		if err != nil && subCtx.Err() == nil {
			sub.mu.Lock()
			sub.err = err
			sub.mu.Unlock()
		}
	}()
	return sub
}

// Close stops the feed and waits for it to exit.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	<-s.done
	return nil
}

func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
