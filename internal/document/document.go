// Package document defines the single persisted worklog document, the whitelist that bounds
// assistant-proposed patches, and the pure operations (merge, normalize, clone) over it.
package document

import (
	"encoding/json"
	"fmt"
)

// Top-level JSON keys of the document.
const (
	KeyRecords                = "records"
	KeyDailyPlans             = "dailyPlans"
	KeyTodos                  = "todos"
	KeyQuestions              = "questions"
	KeyCurrentTask            = "currentTask"
	KeyCurrentTaskDescription = "currentTaskDescription"
	KeyStartTime              = "startTime"
	KeyPausedTime             = "pausedTime"
	KeyIsPaused               = "isPaused"
	KeyCurrentPlanID          = "currentPlanId"
	KeyCurrentTodoID          = "currentTodoId"
)

type Record struct {
	ID              string  `json:"id"`
	Task            string  `json:"task"`
	Description     string  `json:"description"`
	StartTime       string  `json:"startTime"`
	EndTime         string  `json:"endTime"`
	DurationSeconds int64   `json:"durationSeconds"`
	PlanID          *string `json:"planId,omitempty"`
	TodoID          *string `json:"todoId,omitempty"`
	CreatedAt       string  `json:"createdAt"`

	// Extra holds keys this package does not model, written back unchanged.
	Extra map[string]json.RawMessage `json:"-"`
}

type DailyPlan struct {
	ID        string   `json:"id"`
	Date      string   `json:"date"`
	Title     string   `json:"title"`
	Items     []string `json:"items"`
	CreatedAt string   `json:"createdAt"`

	Extra map[string]json.RawMessage `json:"-"`
}

type Todo struct {
	ID          string  `json:"id"`
	Text        string  `json:"text"`
	Done        bool    `json:"done"`
	CreatedAt   string  `json:"createdAt"`
	CompletedAt *string `json:"completedAt,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// Question is a recorded question or insight.
type Question struct {
	ID        string `json:"id"`
	Question  string `json:"question"`
	Insight   string `json:"insight"`
	CreatedAt string `json:"createdAt"`

	Extra map[string]json.RawMessage `json:"-"`
}

// Document is all persisted application state for one user.
type Document struct {
	Records                []Record    `json:"records"`
	DailyPlans             []DailyPlan `json:"dailyPlans"`
	Todos                  []Todo      `json:"todos"`
	Questions              []Question  `json:"questions"`
	CurrentTask            string      `json:"currentTask"`
	CurrentTaskDescription string      `json:"currentTaskDescription"`
	StartTime              *string     `json:"startTime"`
	PausedTime             *string     `json:"pausedTime"`
	IsPaused               bool        `json:"isPaused"`
	CurrentPlanID          *string     `json:"currentPlanId"`
	CurrentTodoID          *string     `json:"currentTodoId"`

	// Extra holds top-level keys this package does not model, and any modelled key whose
	// value did not fit its type. Both are written back verbatim.
	Extra map[string]json.RawMessage `json:"-"`
}

// Empty returns the default document used when no row exists yet.
func Empty() Document {
	return Document{
		Records:    []Record{},
		DailyPlans: []DailyPlan{},
		Todos:      []Todo{},
		Questions:  []Question{},
	}
}

// Decode parses a stored payload. Missing collections decode as empty slices. Values that do
// not fit their field are kept verbatim in Extra rather than failing the decode.
func Decode(data []byte) (Document, error) {
	doc := Empty()
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("decode document: %w", err)
	}
	doc.fillEmpty()
	return doc, nil
}

// Encode marshals the document for storage.
func (d Document) Encode() ([]byte, error) {
	d.fillEmpty()
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return data, nil
}

// Active reports whether a timer session is running or paused.
func (d Document) Active() bool {
	return d.StartTime != nil
}

func (d Document) HasPlan(id string) bool {
	for _, plan := range d.DailyPlans {
		if plan.ID == id {
			return true
		}
	}
	return false
}

func (d Document) HasTodo(id string) bool {
	for _, todo := range d.Todos {
		if todo.ID == id {
			return true
		}
	}
	return false
}

// ClearDanglingReferences nils currentPlanId/currentTodoId when they point at missing entries.
func (d *Document) ClearDanglingReferences() {
	if d.CurrentPlanID != nil && !d.HasPlan(*d.CurrentPlanID) {
		d.CurrentPlanID = nil
	}
	if d.CurrentTodoID != nil && !d.HasTodo(*d.CurrentTodoID) {
		d.CurrentTodoID = nil
	}
}

// Fields returns the document as a map of top-level keys to their encoded values.
func (d Document) Fields() (map[string]json.RawMessage, error) {
	data, err := d.Encode()
	if err != nil {
		return nil, err
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("split document fields: %w", err)
	}
	return fields, nil
}

// FromFields is the inverse of Fields.
func FromFields(fields map[string]json.RawMessage) (Document, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return Document{}, fmt.Errorf("join document fields: %w", err)
	}
	return Decode(data)
}

// Clone returns a deep copy so callers outside the owner never share slices or pointers.
func (d Document) Clone() Document {
	out := d
	out.Records = make([]Record, len(d.Records))
	for i, record := range d.Records {
		record.PlanID = clonePtr(record.PlanID)
		record.TodoID = clonePtr(record.TodoID)
		record.Extra = cloneExtra(record.Extra)
		out.Records[i] = record
	}
	out.DailyPlans = make([]DailyPlan, len(d.DailyPlans))
	for i, plan := range d.DailyPlans {
		plan.Items = append(make([]string, 0, len(plan.Items)), plan.Items...)
		plan.Extra = cloneExtra(plan.Extra)
		out.DailyPlans[i] = plan
	}
	out.Todos = make([]Todo, len(d.Todos))
	for i, todo := range d.Todos {
		todo.CompletedAt = clonePtr(todo.CompletedAt)
		todo.Extra = cloneExtra(todo.Extra)
		out.Todos[i] = todo
	}
	out.Questions = make([]Question, len(d.Questions))
	for i, question := range d.Questions {
		question.Extra = cloneExtra(question.Extra)
		out.Questions[i] = question
	}
	out.StartTime = clonePtr(d.StartTime)
	out.PausedTime = clonePtr(d.PausedTime)
	out.CurrentPlanID = clonePtr(d.CurrentPlanID)
	out.CurrentTodoID = clonePtr(d.CurrentTodoID)
	out.Extra = cloneExtra(d.Extra)
	return out
}

func (d *Document) fillEmpty() {
	if d.Records == nil {
		d.Records = []Record{}
	}
	if d.DailyPlans == nil {
		d.DailyPlans = []DailyPlan{}
	}
	if d.Todos == nil {
		d.Todos = []Todo{}
	}
	if d.Questions == nil {
		d.Questions = []Question{}
	}
	for i := range d.DailyPlans {
		if d.DailyPlans[i].Items == nil {
			d.DailyPlans[i].Items = []string{}
		}
	}
}

func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func clonePtr(value *string) *string {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}

// StringPtr is a convenience for the nullable id and time fields.
func StringPtr(value string) *string {
	return &value
}

func (d Document) MarshalJSON() ([]byte, error) {
	w := newFieldWriter(d.Extra)
	w.set(KeyRecords, orEmpty(d.Records), len(d.Records) == 0)
	w.set(KeyDailyPlans, orEmpty(d.DailyPlans), len(d.DailyPlans) == 0)
	w.set(KeyTodos, orEmpty(d.Todos), len(d.Todos) == 0)
	w.set(KeyQuestions, orEmpty(d.Questions), len(d.Questions) == 0)
	w.set(KeyCurrentTask, d.CurrentTask, d.CurrentTask == "")
	w.set(KeyCurrentTaskDescription, d.CurrentTaskDescription, d.CurrentTaskDescription == "")
	w.set(KeyStartTime, d.StartTime, d.StartTime == nil)
	w.set(KeyPausedTime, d.PausedTime, d.PausedTime == nil)
	w.set(KeyIsPaused, d.IsPaused, !d.IsPaused)
	w.set(KeyCurrentPlanID, d.CurrentPlanID, d.CurrentPlanID == nil)
	w.set(KeyCurrentTodoID, d.CurrentTodoID, d.CurrentTodoID == nil)
	return w.marshal()
}

func (d *Document) UnmarshalJSON(data []byte) error {
	r, err := readFields(data)
	if err != nil || r == nil {
		return err
	}
	list(r, KeyRecords, &d.Records)
	list(r, KeyDailyPlans, &d.DailyPlans)
	list(r, KeyTodos, &d.Todos)
	list(r, KeyQuestions, &d.Questions)
	r.str(KeyCurrentTask, &d.CurrentTask)
	r.str(KeyCurrentTaskDescription, &d.CurrentTaskDescription)
	r.strPtr(KeyStartTime, &d.StartTime)
	r.strPtr(KeyPausedTime, &d.PausedTime)
	r.boolean(KeyIsPaused, &d.IsPaused)
	r.strPtr(KeyCurrentPlanID, &d.CurrentPlanID)
	r.strPtr(KeyCurrentTodoID, &d.CurrentTodoID)
	d.Extra = r.rest()
	return nil
}

func (rec Record) MarshalJSON() ([]byte, error) {
	w := newFieldWriter(rec.Extra)
	w.set("id", rec.ID, rec.ID == "")
	w.set("task", rec.Task, rec.Task == "")
	w.set("description", rec.Description, rec.Description == "")
	w.set("startTime", rec.StartTime, rec.StartTime == "")
	w.set("endTime", rec.EndTime, rec.EndTime == "")
	w.set("durationSeconds", rec.DurationSeconds, rec.DurationSeconds == 0)
	w.optional("planId", rec.PlanID)
	w.optional("todoId", rec.TodoID)
	w.set("createdAt", rec.CreatedAt, rec.CreatedAt == "")
	return w.marshal()
}

func (rec *Record) UnmarshalJSON(data []byte) error {
	r, err := readFields(data)
	if err != nil || r == nil {
		return err
	}
	r.str("id", &rec.ID)
	r.str("task", &rec.Task)
	r.str("description", &rec.Description)
	r.str("startTime", &rec.StartTime)
	r.str("endTime", &rec.EndTime)
	r.integer("durationSeconds", &rec.DurationSeconds)
	r.strPtr("planId", &rec.PlanID)
	r.strPtr("todoId", &rec.TodoID)
	r.str("createdAt", &rec.CreatedAt)
	rec.Extra = r.rest()
	return nil
}

func (p DailyPlan) MarshalJSON() ([]byte, error) {
	items := p.Items
	if items == nil {
		items = []string{}
	}
	w := newFieldWriter(p.Extra)
	w.set("id", p.ID, p.ID == "")
	w.set("date", p.Date, p.Date == "")
	w.set("title", p.Title, p.Title == "")
	w.set("items", items, len(items) == 0)
	w.set("createdAt", p.CreatedAt, p.CreatedAt == "")
	return w.marshal()
}

func (p *DailyPlan) UnmarshalJSON(data []byte) error {
	r, err := readFields(data)
	if err != nil || r == nil {
		return err
	}
	r.str("id", &p.ID)
	r.str("date", &p.Date)
	r.str("title", &p.Title)
	r.strings("items", &p.Items)
	r.str("createdAt", &p.CreatedAt)
	p.Extra = r.rest()
	return nil
}

func (t Todo) MarshalJSON() ([]byte, error) {
	w := newFieldWriter(t.Extra)
	w.set("id", t.ID, t.ID == "")
	w.set("text", t.Text, t.Text == "")
	w.set("done", t.Done, !t.Done)
	w.set("createdAt", t.CreatedAt, t.CreatedAt == "")
	w.optional("completedAt", t.CompletedAt)
	return w.marshal()
}

func (t *Todo) UnmarshalJSON(data []byte) error {
	r, err := readFields(data)
	if err != nil || r == nil {
		return err
	}
	r.str("id", &t.ID)
	r.str("text", &t.Text)
	r.boolean("done", &t.Done)
	r.str("createdAt", &t.CreatedAt)
	r.strPtr("completedAt", &t.CompletedAt)
	t.Extra = r.rest()
	return nil
}

func (q Question) MarshalJSON() ([]byte, error) {
	w := newFieldWriter(q.Extra)
	w.set("id", q.ID, q.ID == "")
	w.set("question", q.Question, q.Question == "")
	w.set("insight", q.Insight, q.Insight == "")
	w.set("createdAt", q.CreatedAt, q.CreatedAt == "")
	return w.marshal()
}

func (q *Question) UnmarshalJSON(data []byte) error {
	r, err := readFields(data)
	if err != nil || r == nil {
		return err
	}
	r.str("id", &q.ID)
	r.str("question", &q.Question)
	r.str("insight", &q.Insight)
	r.str("createdAt", &q.CreatedAt)
	q.Extra = r.rest()
	return nil
}
