package search

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worklog/api/internal/document"
)

func sampleDocument() document.Document {
	doc := document.Empty()
	doc.Records = []document.Record{{ID: "r1", Task: "Write Report", Description: "quarterly numbers", StartTime: "2024-05-01T09:00:00.000Z"}}
	doc.Todos = []document.Todo{{ID: "t1", Text: "email the report", CreatedAt: "2024-05-01T08:00:00.000Z"}}
	doc.DailyPlans = []document.DailyPlan{{ID: "p1", Date: "2024-05-01", Title: "Wednesday", Items: []string{"report", "gym"}}}
	doc.Questions = []document.Question{{ID: "q1", Question: "Why is CI slow?", Insight: "cache misses"}}
	return doc
}

type fakeBackend struct {
	healthy  bool
	results  []Result
	err      error
	indexed  []EntryRecord
	deleted  []string
	searches int
}

func (f *fakeBackend) Healthy() bool { return f.healthy }

func (f *fakeBackend) Search(documentID string, q Query) ([]Result, int, error) {
	f.searches++
	return f.results, len(f.results), f.err
}

func (f *fakeBackend) IndexEntries(entries []EntryRecord) error {
	f.indexed = append([]EntryRecord(nil), entries...)
	return nil
}

func (f *fakeBackend) DeleteEntries(keys []string) error {
	f.deleted = append(f.deleted, keys...)
	return nil
}

func staticSource(doc document.Document) Source {
	return func(context.Context) (document.Document, error) { return doc, nil }
}

func TestScanIsCaseInsensitive(t *testing.T) {
	results, total := Scan("main", sampleDocument(), Query{Text: "REPORT"})
	assert.Equal(t, 3, total)

	types := make([]string, 0, len(results))
	for _, result := range results {
		types = append(types, string(result.Type))
	}
	sort.Strings(types)
	assert.Equal(t, []string{"plan", "record", "todo"}, types)
}

func TestScanFilterAndPaging(t *testing.T) {
	results, total := Scan("main", sampleDocument(), Query{Text: "report", FilterType: ResultTodo})
	assert.Equal(t, 1, total)
	require.Len(t, results, 1)
	assert.Equal(t, "t1", results[0].ID)

	results, total = Scan("main", sampleDocument(), Query{Text: "report", Limit: 1, Offset: 1})
	assert.Equal(t, 3, total)
	assert.Len(t, results, 1)

	results, _ = Scan("main", sampleDocument(), Query{Text: "report", Offset: 10})
	assert.Empty(t, results)

	results, total = Scan("main", sampleDocument(), Query{Text: "  "})
	assert.Zero(t, total)
	assert.NotNil(t, results)
}

func TestIndexKeySanitizes(t *testing.T) {
	assert.Equal(t, "main_todo_abc-123", indexKey("main", ResultTodo, "abc-123"))
	assert.Equal(t, "my_doc_plan_a_b", indexKey("my doc", ResultPlan, "a/b"))
}

func TestServiceFallsBackWithoutBackend(t *testing.T) {
	svc := NewService(nil, "main", staticSource(sampleDocument()))
	resp := svc.Search(context.Background(), Query{Text: "cache"})
	assert.Equal(t, "scan", resp.Source)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, ResultQuestion, resp.Results[0].Type)
}

func TestServiceUsesHealthyBackend(t *testing.T) {
	backend := &fakeBackend{healthy: true, results: []Result{{Type: ResultTodo, ID: "x"}}}
	svc := NewService(backend, "main", staticSource(sampleDocument()))

	resp := svc.Search(context.Background(), Query{Text: "anything"})
	assert.Equal(t, "index", resp.Source)
	assert.Equal(t, 1, resp.Total)
}

func TestServiceFallsBackOnBackendError(t *testing.T) {
	backend := &fakeBackend{healthy: true, err: errors.New("down")}
	svc := NewService(backend, "main", staticSource(sampleDocument()))

	resp := svc.Search(context.Background(), Query{Text: "gym"})
	assert.Equal(t, "scan", resp.Source)
	assert.Len(t, resp.Results, 1)
	assert.Equal(t, 1, backend.searches)
}

func TestServiceSourceErrorYieldsEmpty(t *testing.T) {
	svc := NewService(nil, "main", func(context.Context) (document.Document, error) {
		return document.Document{}, errors.New("store down")
	})
	resp := svc.Search(context.Background(), Query{Text: "x"})
	assert.Empty(t, resp.Results)
	assert.NotNil(t, resp.Results)
}

func TestSyncDeletesRemovedEntries(t *testing.T) {
	backend := &fakeBackend{healthy: true}
	svc := NewService(backend, "main", staticSource(document.Empty()))

	doc := sampleDocument()
	require.NoError(t, svc.Sync(doc))
	assert.Len(t, backend.indexed, 4)
	assert.Empty(t, backend.deleted)

	doc.Todos = []document.Todo{}
	require.NoError(t, svc.Sync(doc))
	assert.Len(t, backend.indexed, 3)
	assert.Equal(t, []string{"main_todo_t1"}, backend.deleted)
}

func TestSyncSkipsUnhealthyBackend(t *testing.T) {
	backend := &fakeBackend{healthy: false}
	svc := NewService(backend, "main", staticSource(document.Empty()))
	require.NoError(t, svc.Sync(sampleDocument()))
	assert.Empty(t, backend.indexed)
}

func TestNewMeiliUnreachableIsUnhealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"message":"down","code":"unavailable","type":"system","link":""}`))
	}))
	defer server.Close()

	m := NewMeili(server.URL, "")
	defer m.Close()
	assert.False(t, m.Healthy())

	_, _, err := m.Search("main", Query{Text: "x"})
	assert.Error(t, err)

	svc := NewService(m, "main", staticSource(sampleDocument()))
	resp := svc.Search(context.Background(), Query{Text: "gym"})
	assert.Equal(t, "scan", resp.Source)
}
