package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"worklog/api/internal/document"
	"worklog/api/internal/gateway"
	"worklog/api/internal/history"
	"worklog/api/internal/logging"
	"worklog/api/internal/search"
	"worklog/api/internal/store"
)

const historyAuthor = "worklog-api"

// Service backs the HTTP surface: the assistant gateway plus the document it serves.
type Service struct {
	documentID string
	store      store.Store
	assistant  *gateway.Service
	history    *history.Service
	search     *search.Service

	reads singleflight.Group
}

// New wires the service. searchBackend may be nil; search then scans the stored document.
func New(documentID string, dataStore store.Store, assistant *gateway.Service, historyService *history.Service, searchBackend search.Backend) *Service {
	s := &Service{
		documentID: documentID,
		store:      dataStore,
		assistant:  assistant,
		history:    historyService,
	}
	s.search = search.NewService(searchBackend, documentID, s.Document)
	return s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Document returns the stored document; a missing row reads as the empty document.
// Concurrent callers share one store read.
func (s *Service) Document(ctx context.Context) (document.Document, error) {
	value, err, _ := s.reads.Do(s.documentID, func() (any, error) {
		doc, err := s.store.Read(ctx)
		if errors.Is(err, store.ErrNotFound) {
			return document.Empty(), nil
		}
		if err != nil {
			return nil, fmt.Errorf("read document: %w", err)
		}
		return doc, nil
	})
	if err != nil {
		return document.Document{}, err
	}
	return value.(document.Document).Clone(), nil
}

// SaveDocument replaces the whole document after normalizing its dates.
func (s *Service) SaveDocument(ctx context.Context, payload []byte) (document.Document, error) {
	if len(strings.TrimSpace(string(payload))) == 0 {
		return document.Document{}, domainError(http.StatusBadRequest, "INVALID_BODY", "Document body is required", nil)
	}
	doc, err := document.Decode(payload)
	if err != nil {
		return document.Document{}, domainError(http.StatusBadRequest, "INVALID_DOCUMENT", "Document is not valid", err.Error())
	}
	document.NormalizeDates(&doc)
	doc.ClearDanglingReferences()
	if err := s.store.Write(ctx, doc); err != nil {
		return document.Document{}, fmt.Errorf("write document: %w", err)
	}
	return doc, nil
}

func (s *Service) Assist(ctx context.Context, body []byte) (int, gateway.Response) {
	req, err := gateway.DecodeRequest(body)
	if err != nil {
		return gateway.ErrorResponse(ctx, err)
	}
	return s.assistant.Respond(ctx, req)
}

func (s *Service) History(limit int) ([]history.Commit, error) {
	return s.history.History(s.documentID, limit)
}

func (s *Service) Version(hash string) (document.Document, history.Commit, error) {
	return s.history.Version(s.documentID, hash)
}

func (s *Service) Search(ctx context.Context, q search.Query) search.Response {
	return s.search.Search(ctx, q)
}

// RecordChange commits a history version and refreshes the search index for doc.
func (s *Service) RecordChange(ctx context.Context, doc document.Document) {
	logger := logging.FromContext(ctx)
	commit, created, err := s.history.Record(s.documentID, doc, historyAuthor)
	if err != nil {
		logger.Error("record document history", "document_id", s.documentID, "error", err)
	} else if created {
		logger.Debug("document version recorded", "document_id", s.documentID, "hash", commit.Hash)
	}
	if err := s.search.Sync(doc); err != nil {
		logger.Warn("sync search index", "document_id", s.documentID, "error", err)
	}
}

// Bootstrap records the current stored state so history and search start in step with the store.
func (s *Service) Bootstrap(ctx context.Context) error {
	doc, err := s.store.Read(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("bootstrap read: %w", err)
	}
	s.RecordChange(ctx, doc)
	return nil
}

// WatchChanges consumes the store change feed until the subscription is closed.
func (s *Service) WatchChanges(ctx context.Context) (*store.Subscription, error) {
	return s.store.Subscribe(ctx, func(doc document.Document) {
		s.RecordChange(ctx, doc)
	})
}

// Follow keeps feed alive until ctx ends. A feed that stops on its own is replaced after
// retry, and the stored document is recorded again to cover anything missed meanwhile.
func (s *Service) Follow(ctx context.Context, feed *store.Subscription, retry time.Duration) {
	for {
		select {
		case <-ctx.Done():
			_ = feed.Close()
			return
		case <-feed.Done():
		}
		logging.Warn("change feed stopped", "document_id", s.documentID, "error", feed.Err())

		next, ok := s.resubscribe(ctx, retry)
		if !ok {
			return
		}
		feed = next
		logging.Info("change feed restored", "document_id", s.documentID)
		if err := s.Bootstrap(ctx); err != nil {
			logging.Warn("catch-up after resubscribe failed", "error", err)
		}
	}
}

func (s *Service) resubscribe(ctx context.Context, retry time.Duration) (*store.Subscription, bool) {
	timer := time.NewTimer(retry)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, false
		case <-timer.C:
		}
		feed, err := s.WatchChanges(ctx)
		if err == nil {
			return feed, true
		}
		logging.Warn("change feed resubscribe failed", "document_id", s.documentID, "error", err)
		timer.Reset(retry)
	}
}
