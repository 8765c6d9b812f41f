// Package tracker implements the timer session and entry operations on a document.
// Operations are pure mutations; callers run them through the sync orchestrator.
package tracker

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"worklog/api/internal/document"
	"worklog/api/internal/util"
)

var (
	ErrSessionActive   = errors.New("a session is already active")
	ErrNoSession       = errors.New("no active session")
	ErrAlreadyPaused   = errors.New("session is already paused")
	ErrNotPaused       = errors.New("session is not paused")
	ErrEmptyText       = errors.New("text must not be empty")
	ErrUnknownTodo     = errors.New("todo not found")
	ErrUnknownPlan     = errors.New("plan not found")
	ErrTodoAlreadyDone = errors.New("todo is already done")
)

// Tracker carries the clock so tests can pin time.
type Tracker struct {
	now func() time.Time
}

func New(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{now: now}
}

func (t *Tracker) stamp() string {
	return document.FormatTime(t.now())
}

type StartOptions struct {
	Description string
	PlanID      string
	TodoID      string
}

// Start opens a timer session. Only one session may be active.
func (t *Tracker) Start(doc *document.Document, task string, opts StartOptions) error {
	task = strings.TrimSpace(task)
	if task == "" {
		return ErrEmptyText
	}
	if doc.Active() {
		return ErrSessionActive
	}
	if opts.PlanID != "" && !doc.HasPlan(opts.PlanID) {
		return fmt.Errorf("%w: %s", ErrUnknownPlan, opts.PlanID)
	}
	if opts.TodoID != "" && !doc.HasTodo(opts.TodoID) {
		return fmt.Errorf("%w: %s", ErrUnknownTodo, opts.TodoID)
	}

	stamp := t.stamp()
	doc.CurrentTask = task
	doc.CurrentTaskDescription = opts.Description
	doc.StartTime = document.StringPtr(stamp)
	doc.PausedTime = nil
	doc.IsPaused = false
	doc.CurrentPlanID = optional(opts.PlanID)
	doc.CurrentTodoID = optional(opts.TodoID)
	started, _ := document.ParseTime(stamp)
	setOrigin(doc, started, 0)
	return nil
}

func (t *Tracker) Pause(doc *document.Document) error {
	if !doc.Active() {
		return ErrNoSession
	}
	if doc.IsPaused {
		return ErrAlreadyPaused
	}
	doc.IsPaused = true
	doc.PausedTime = document.StringPtr(t.stamp())
	return nil
}

// Resume shifts startTime forward by the paused interval so elapsed time excludes the pause.
// The real start stays available to Stop.
func (t *Tracker) Resume(doc *document.Document) error {
	if !doc.Active() {
		return ErrNoSession
	}
	if !doc.IsPaused || doc.PausedTime == nil {
		return ErrNotPaused
	}
	start, err := document.ParseTime(*doc.StartTime)
	if err != nil {
		return fmt.Errorf("parse start time: %w", err)
	}
	paused, err := document.ParseTime(*doc.PausedTime)
	if err != nil {
		return fmt.Errorf("parse paused time: %w", err)
	}
	began, tracked := origin(*doc, start)
	now := t.now()
	if gap := now.Sub(paused); gap > 0 {
		start = start.Add(gap)
	}
	shifted := document.FormatTime(start)
	doc.StartTime = document.StringPtr(shifted)
	if tracked {
		start, _ = document.ParseTime(shifted)
		setOrigin(doc, began, start.Sub(began))
	} else {
		clearOrigin(doc)
	}
	doc.PausedTime = nil
	doc.IsPaused = false
	return nil
}

// Elapsed is the active time of the current session.
func (t *Tracker) Elapsed(doc document.Document) (time.Duration, error) {
	if !doc.Active() {
		return 0, ErrNoSession
	}
	start, err := document.ParseTime(*doc.StartTime)
	if err != nil {
		return 0, fmt.Errorf("parse start time: %w", err)
	}
	end := t.now()
	if doc.IsPaused && doc.PausedTime != nil {
		if paused, err := document.ParseTime(*doc.PausedTime); err == nil {
			end = paused
		}
	}
	if end.Before(start) {
		return 0, nil
	}
	return end.Sub(start), nil
}

// Stop closes the session into a Record and clears the session fields.
func (t *Tracker) Stop(doc *document.Document) (document.Record, error) {
	elapsed, err := t.Elapsed(*doc)
	if err != nil {
		return document.Record{}, err
	}
	start, _ := document.ParseTime(*doc.StartTime)
	end := start.Add(elapsed)
	began := start
	if at, ok := origin(*doc, start); ok {
		began = at
	}

	record := document.Record{
		ID:              util.NewID(""),
		Task:            doc.CurrentTask,
		Description:     doc.CurrentTaskDescription,
		StartTime:       document.FormatTime(began),
		EndTime:         document.FormatTime(end),
		DurationSeconds: int64(elapsed / time.Second),
		PlanID:          doc.CurrentPlanID,
		TodoID:          doc.CurrentTodoID,
		CreatedAt:       t.stamp(),
	}
	doc.Records = append(doc.Records, record)

	doc.CurrentTask = ""
	doc.CurrentTaskDescription = ""
	doc.StartTime = nil
	doc.PausedTime = nil
	doc.IsPaused = false
	doc.CurrentPlanID = nil
	doc.CurrentTodoID = nil
	clearOrigin(doc)
	return record, nil
}

func (t *Tracker) AddTodo(doc *document.Document, text string) (document.Todo, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return document.Todo{}, ErrEmptyText
	}
	todo := document.Todo{ID: util.NewID(""), Text: text, CreatedAt: t.stamp()}
	doc.Todos = append(doc.Todos, todo)
	return todo, nil
}

// CompleteTodo accepts a full id or a unique prefix of one.
func (t *Tracker) CompleteTodo(doc *document.Document, id string) (document.Todo, error) {
	index, err := findTodo(*doc, id)
	if err != nil {
		return document.Todo{}, err
	}
	todo := &doc.Todos[index]
	if todo.Done {
		return *todo, ErrTodoAlreadyDone
	}
	todo.Done = true
	todo.CompletedAt = document.StringPtr(t.stamp())
	return *todo, nil
}

// AddPlan records a plan for date (YYYY-MM-DD, or today when empty).
func (t *Tracker) AddPlan(doc *document.Document, date, title string, items []string) (document.DailyPlan, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return document.DailyPlan{}, ErrEmptyText
	}
	if strings.TrimSpace(date) == "" {
		date = t.now().In(time.Local).Format(document.DateLayout)
	} else {
		date = document.NormalizeDate(date)
	}
	cleaned := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			cleaned = append(cleaned, item)
		}
	}
	plan := document.DailyPlan{ID: util.NewID(""), Date: date, Title: title, Items: cleaned, CreatedAt: t.stamp()}
	doc.DailyPlans = append(doc.DailyPlans, plan)
	return plan, nil
}

func (t *Tracker) AddQuestion(doc *document.Document, question, insight string) (document.Question, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return document.Question{}, ErrEmptyText
	}
	entry := document.Question{ID: util.NewID(""), Question: question, Insight: strings.TrimSpace(insight), CreatedAt: t.stamp()}
	doc.Questions = append(doc.Questions, entry)
	return entry, nil
}

func findTodo(doc document.Document, id string) (int, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return -1, ErrUnknownTodo
	}
	match := -1
	for i, todo := range doc.Todos {
		if todo.ID == id {
			return i, nil
		}
		if strings.HasPrefix(todo.ID, id) {
			if match >= 0 {
				return -1, fmt.Errorf("ambiguous todo id %q", id)
			}
			match = i
		}
	}
	if match < 0 {
		return -1, fmt.Errorf("%w: %s", ErrUnknownTodo, id)
	}
	return match, nil
}

func optional(id string) *string {
	if id == "" {
		return nil
	}
	return document.StringPtr(id)
}
