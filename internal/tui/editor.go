package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"worklog/api/internal/document"
)

// Editor is the part of the sync orchestrator the TUI drives.
type Editor interface {
	Snapshot() document.Document
	Focus(field string)
	Blur(field string)
	Edit(mutate func(doc *document.Document) error) error
	FlushWrites() bool
	WritePending() bool
}

// Feed carries rendered documents from the orchestrator into the bubbletea loop. Render never
// blocks: an undelivered document is replaced by the newer one.
type Feed struct {
	ch chan document.Document
}

func NewFeed() *Feed {
	return &Feed{ch: make(chan document.Document, 1)}
}

func (f *Feed) Render(doc document.Document) {
	for {
		select {
		case f.ch <- doc:
			return
		default:
		}
		select {
		case <-f.ch:
		default:
		}
	}
}

func (f *Feed) wait() tea.Cmd {
	return func() tea.Msg {
		return docMsg(<-f.ch)
	}
}

type docMsg document.Document

// Model edits currentTaskDescription.
type Model struct {
	editor Editor
	feed   *Feed

	doc     document.Document
	editing bool
	input   []rune
	err     error
	width   int
}

func New(editor Editor, feed *Feed) *Model {
	return &Model{
		editor: editor,
		feed:   feed,
		doc:    editor.Snapshot(),
	}
}

func (m *Model) Init() tea.Cmd {
	return m.feed.wait()
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.editing {
			return m.handleEditKey(msg)
		}
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case docMsg:
		m.doc = document.Document(msg)
		return m, m.feed.wait()
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.editor.FlushWrites()
		return m, tea.Quit
	case "e", "enter":
		m.beginEdit()
	}
	return m, nil
}

func (m *Model) handleEditKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		m.endEdit()
		return m, tea.Quit
	case tea.KeyEsc, tea.KeyEnter:
		m.endEdit()
	case tea.KeyBackspace:
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
			m.push()
		}
	case tea.KeySpace:
		m.input = append(m.input, ' ')
		m.push()
	case tea.KeyRunes:
		m.input = append(m.input, msg.Runes...)
		m.push()
	}
	return m, nil
}

func (m *Model) beginEdit() {
	m.editor.Focus(document.KeyCurrentTaskDescription)
	m.editing = true
	m.input = []rune(m.editor.Snapshot().CurrentTaskDescription)
	m.err = nil
}

func (m *Model) endEdit() {
	m.editing = false
	m.editor.FlushWrites()
	m.editor.Blur(document.KeyCurrentTaskDescription)
	m.doc = m.editor.Snapshot()
}

// push copies the input into the mirror and schedules a debounced write.
func (m *Model) push() {
	value := string(m.input)
	m.err = m.editor.Edit(func(doc *document.Document) error {
		doc.CurrentTaskDescription = value
		return nil
	})
}

func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(StyleTitle.Render("worklog"))
	b.WriteString("\n")

	task := m.doc.CurrentTask
	if task == "" {
		b.WriteString(StyleLabel.Render("no active task"))
	} else {
		state := "running"
		if m.doc.IsPaused {
			state = "paused"
		}
		b.WriteString(StyleLabel.Render("task ") + StyleTask.Render(task) + StyleLabel.Render(" ("+state+")"))
	}
	b.WriteString("\n\n")

	description := m.doc.CurrentTaskDescription
	box := StyleBox
	if m.editing {
		description = string(m.input) + "█"
		box = StyleEditingBox
	}
	if m.width > 4 {
		box = box.Width(m.width - 4)
	}
	b.WriteString(StyleLabel.Render("description"))
	b.WriteString("\n")
	b.WriteString(box.Render(description))
	b.WriteString("\n")

	switch {
	case m.err != nil:
		b.WriteString(StyleError.Render(fmt.Sprintf("error: %v", m.err)))
	case m.editor.WritePending():
		b.WriteString(StyleStatus.Render("saving…"))
	default:
		b.WriteString(StyleSaved.Render("saved"))
	}
	b.WriteString("\n")

	help := "e edit · q quit"
	if m.editing {
		help = "enter/esc done · ctrl+c quit"
	}
	b.WriteString(StyleHelp.Render(help))
	return b.String()
}
