package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worklog/api/internal/document"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTracker() (*Tracker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	return New(clock.Now), clock
}

func TestStartStopRecordsDuration(t *testing.T) {
	tr, clock := newTracker()
	doc := document.Empty()

	require.NoError(t, tr.Start(&doc, "write report", StartOptions{Description: "q2"}))
	assert.Equal(t, "2024-05-01T09:00:00.000Z", *doc.StartTime)
	assert.ErrorIs(t, tr.Start(&doc, "other", StartOptions{}), ErrSessionActive)

	clock.Advance(90 * time.Minute)
	record, err := tr.Stop(&doc)
	require.NoError(t, err)

	assert.Equal(t, int64(5400), record.DurationSeconds)
	assert.Equal(t, "write report", record.Task)
	assert.Equal(t, "q2", record.Description)
	assert.Equal(t, "2024-05-01T10:30:00.000Z", record.EndTime)
	assert.Len(t, doc.Records, 1)
	assert.False(t, doc.Active())
	assert.Equal(t, "", doc.CurrentTask)
	assert.Nil(t, doc.PausedTime)
}

func TestPausedTimeIsExcluded(t *testing.T) {
	tr, clock := newTracker()
	doc := document.Empty()

	require.NoError(t, tr.Start(&doc, "focus", StartOptions{}))
	clock.Advance(10 * time.Minute)
	require.NoError(t, tr.Pause(&doc))
	assert.ErrorIs(t, tr.Pause(&doc), ErrAlreadyPaused)

	clock.Advance(30 * time.Minute)
	elapsed, err := tr.Elapsed(doc)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, elapsed)

	require.NoError(t, tr.Resume(&doc))
	assert.ErrorIs(t, tr.Resume(&doc), ErrNotPaused)
	clock.Advance(5 * time.Minute)

	record, err := tr.Stop(&doc)
	require.NoError(t, err)
	assert.Equal(t, int64(15*60), record.DurationSeconds)
	assert.Equal(t, "2024-05-01T09:00:00.000Z", record.StartTime)
	assert.Equal(t, "2024-05-01T09:45:00.000Z", record.EndTime)
	assert.Nil(t, doc.Extra)
}

func TestRecordStartSurvivesSeveralPauses(t *testing.T) {
	tr, clock := newTracker()
	doc := document.Empty()

	require.NoError(t, tr.Start(&doc, "focus", StartOptions{}))
	for i := 0; i < 3; i++ {
		clock.Advance(10 * time.Minute)
		require.NoError(t, tr.Pause(&doc))
		clock.Advance(1500 * time.Millisecond)
		require.NoError(t, tr.Resume(&doc))
	}
	// Persisted and read back between operations.
	data, err := doc.Encode()
	require.NoError(t, err)
	doc, err = document.Decode(data)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	record, err := tr.Stop(&doc)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01T09:00:00.000Z", record.StartTime)
	assert.Equal(t, int64(31*60), record.DurationSeconds)
}

func TestRecordStartFallsBackWhenSessionReplaced(t *testing.T) {
	tr, clock := newTracker()
	doc := document.Empty()

	require.NoError(t, tr.Start(&doc, "focus", StartOptions{}))
	// Another client rewrote the session start.
	doc.StartTime = document.StringPtr("2024-05-01T09:20:00.000Z")
	clock.Advance(30 * time.Minute)

	record, err := tr.Stop(&doc)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01T09:20:00.000Z", record.StartTime)
	assert.Equal(t, int64(10*60), record.DurationSeconds)
}

func TestStopWhilePaused(t *testing.T) {
	tr, clock := newTracker()
	doc := document.Empty()

	require.NoError(t, tr.Start(&doc, "focus", StartOptions{}))
	clock.Advance(time.Minute)
	require.NoError(t, tr.Pause(&doc))
	clock.Advance(time.Hour)

	record, err := tr.Stop(&doc)
	require.NoError(t, err)
	assert.Equal(t, int64(60), record.DurationSeconds)
}

func TestSessionErrorsWithoutStart(t *testing.T) {
	tr, _ := newTracker()
	doc := document.Empty()

	assert.ErrorIs(t, tr.Pause(&doc), ErrNoSession)
	assert.ErrorIs(t, tr.Resume(&doc), ErrNoSession)
	_, err := tr.Stop(&doc)
	assert.ErrorIs(t, err, ErrNoSession)
	assert.ErrorIs(t, tr.Start(&doc, "  ", StartOptions{}), ErrEmptyText)
}

func TestStartLinksPlanAndTodo(t *testing.T) {
	tr, _ := newTracker()
	doc := document.Empty()
	todo, err := tr.AddTodo(&doc, "ship it")
	require.NoError(t, err)
	plan, err := tr.AddPlan(&doc, "", "Wednesday", []string{"ship", " "})
	require.NoError(t, err)

	assert.ErrorIs(t, tr.Start(&doc, "x", StartOptions{TodoID: "missing"}), ErrUnknownTodo)
	require.NoError(t, tr.Start(&doc, "x", StartOptions{TodoID: todo.ID, PlanID: plan.ID}))
	assert.Equal(t, todo.ID, *doc.CurrentTodoID)

	record, err := tr.Stop(&doc)
	require.NoError(t, err)
	assert.Equal(t, plan.ID, *record.PlanID)
	assert.Nil(t, doc.CurrentPlanID)
	assert.Equal(t, []string{"ship"}, plan.Items)
}

func TestCompleteTodoByPrefix(t *testing.T) {
	tr, _ := newTracker()
	doc := document.Empty()
	todo, err := tr.AddTodo(&doc, "write tests")
	require.NoError(t, err)

	done, err := tr.CompleteTodo(&doc, todo.ID[:8])
	require.NoError(t, err)
	assert.True(t, done.Done)
	assert.Equal(t, "2024-05-01T09:00:00.000Z", *done.CompletedAt)
	assert.True(t, doc.Todos[0].Done)

	_, err = tr.CompleteTodo(&doc, todo.ID)
	assert.ErrorIs(t, err, ErrTodoAlreadyDone)
	_, err = tr.CompleteTodo(&doc, "nope")
	assert.ErrorIs(t, err, ErrUnknownTodo)
}

func TestAddPlanNormalizesDate(t *testing.T) {
	tr, _ := newTracker()
	doc := document.Empty()

	plan, err := tr.AddPlan(&doc, "2024-05-03", "Friday", nil)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-03", plan.Date)
	assert.NotNil(t, plan.Items)

	_, err = tr.AddPlan(&doc, "", " ", nil)
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestAddQuestion(t *testing.T) {
	tr, _ := newTracker()
	doc := document.Empty()

	entry, err := tr.AddQuestion(&doc, "why slow?", "n+1 query")
	require.NoError(t, err)
	assert.Equal(t, "n+1 query", entry.Insight)
	assert.Len(t, doc.Questions, 1)

	_, err = tr.AddQuestion(&doc, "", "x")
	assert.ErrorIs(t, err, ErrEmptyText)
}
