// Package search finds worklog entries by text. Meilisearch serves queries when it is configured
// and healthy; otherwise the current document is scanned directly.
package search

import (
	"strings"

	"worklog/api/internal/document"
)

// ResultType identifies the kind of entry in a search result.
type ResultType string

const (
	ResultRecord   ResultType = "record"
	ResultTodo     ResultType = "todo"
	ResultPlan     ResultType = "plan"
	ResultQuestion ResultType = "question"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type    ResultType `json:"type"`
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Snippet string     `json:"snippet"`
	Date    string     `json:"date"`
}

// Query describes a search request.
type Query struct {
	Text       string
	FilterType ResultType // empty = all types
	Limit      int
	Offset     int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
	Source  string   `json:"source"`
}

// EntryRecord is the data we index for one entry.
type EntryRecord struct {
	Key        string     `json:"key"`
	ID         string     `json:"id"`
	DocumentID string     `json:"documentId"`
	Kind       ResultType `json:"kind"`
	Title      string     `json:"title"`
	Body       string     `json:"body"`
	Date       string     `json:"date"`
}

func (e EntryRecord) result() Result {
	return Result{Type: e.Kind, ID: e.ID, Title: e.Title, Snippet: e.Body, Date: e.Date}
}

// Entries flattens every searchable entry of doc.
func Entries(documentID string, doc document.Document) []EntryRecord {
	entries := make([]EntryRecord, 0, len(doc.Records)+len(doc.Todos)+len(doc.DailyPlans)+len(doc.Questions))
	for _, record := range doc.Records {
		entries = append(entries, newEntry(documentID, ResultRecord, record.ID, record.Task, record.Description, record.StartTime))
	}
	for _, todo := range doc.Todos {
		entries = append(entries, newEntry(documentID, ResultTodo, todo.ID, todo.Text, "", todo.CreatedAt))
	}
	for _, plan := range doc.DailyPlans {
		entries = append(entries, newEntry(documentID, ResultPlan, plan.ID, plan.Title, strings.Join(plan.Items, "\n"), plan.Date))
	}
	for _, question := range doc.Questions {
		entries = append(entries, newEntry(documentID, ResultQuestion, question.ID, question.Question, question.Insight, question.CreatedAt))
	}
	return entries
}

func newEntry(documentID string, kind ResultType, id, title, body, date string) EntryRecord {
	return EntryRecord{
		Key:        indexKey(documentID, kind, id),
		ID:         id,
		DocumentID: documentID,
		Kind:       kind,
		Title:      title,
		Body:       body,
		Date:       date,
	}
}

// indexKey builds a Meilisearch primary key; only [A-Za-z0-9_-] are allowed there.
func indexKey(documentID string, kind ResultType, id string) string {
	raw := documentID + "_" + string(kind) + "_" + id
	out := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

// Scan is the fallback searcher: a case-insensitive substring match over the document.
func Scan(documentID string, doc document.Document, q Query) ([]Result, int) {
	needle := strings.ToLower(strings.TrimSpace(q.Text))
	if needle == "" {
		return []Result{}, 0
	}
	matches := make([]Result, 0)
	for _, entry := range Entries(documentID, doc) {
		if q.FilterType != "" && entry.Kind != q.FilterType {
			continue
		}
		if strings.Contains(strings.ToLower(entry.Title), needle) || strings.Contains(strings.ToLower(entry.Body), needle) {
			matches = append(matches, entry.result())
		}
	}
	total := len(matches)
	return page(matches, q.Offset, limitOrDefault(q.Limit)), total
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return 20
	}
	return limit
}

func page(results []Result, offset, limit int) []Result {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(results) {
		return []Result{}
	}
	end := offset + limit
	if end > len(results) {
		end = len(results)
	}
	return results[offset:end]
}
