package search

import (
	"context"
	"sync"

	"worklog/api/internal/document"
	"worklog/api/internal/logging"
)

// Backend is the external index. *Meili implements it.
type Backend interface {
	Healthy() bool
	Search(documentID string, q Query) ([]Result, int, error)
	IndexEntries(entries []EntryRecord) error
	DeleteEntries(keys []string) error
}

// Source loads the current document for the fallback scan.
type Source func(ctx context.Context) (document.Document, error)

// Service is the facade that tries Meilisearch first and falls back to scanning the document.
type Service struct {
	backend    Backend
	source     Source
	documentID string

	mu      sync.Mutex
	indexed map[string]struct{}
}

// NewService creates a search service. backend may be nil when Meilisearch is not configured.
func NewService(backend Backend, documentID string, source Source) *Service {
	return &Service{
		backend:    backend,
		source:     source,
		documentID: documentID,
		indexed:    make(map[string]struct{}),
	}
}

func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.backend != nil && s.backend.Healthy() {
		results, total, err := s.backend.Search(s.documentID, q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text, Source: "index"}
		}
		logging.FromContext(ctx).Warn("search index error, falling back to scan", "error", err)
	}

	doc, err := s.source(ctx)
	if err != nil {
		logging.FromContext(ctx).Warn("search fallback could not load document", "error", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text, Source: "scan"}
	}
	results, total := Scan(s.documentID, doc, q)
	return Response{Results: results, Total: total, Query: q.Text, Source: "scan"}
}

// Sync pushes doc's entries to the index and removes entries that disappeared since the last sync.
func (s *Service) Sync(doc document.Document) error {
	if s.backend == nil || !s.backend.Healthy() {
		return nil
	}

	entries := Entries(s.documentID, doc)
	current := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		current[entry.Key] = struct{}{}
	}

	s.mu.Lock()
	removed := make([]string, 0)
	for key := range s.indexed {
		if _, ok := current[key]; !ok {
			removed = append(removed, key)
		}
	}
	s.mu.Unlock()

	if err := s.backend.IndexEntries(entries); err != nil {
		return err
	}
	if err := s.backend.DeleteEntries(removed); err != nil {
		return err
	}

	s.mu.Lock()
	s.indexed = current
	s.mu.Unlock()
	return nil
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
