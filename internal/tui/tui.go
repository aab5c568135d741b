// Package tui provides the interactive todo list.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"todoapp/backend"
	"todoapp/internal/state"
)

const newTodoPlaceholder = "What needs to be done?"

// Focus indicates which part of the screen receives keys
type Focus int

const (
	FocusHeader Focus = iota
	FocusList
)

// Options configures the UI.
type Options struct {
	// ErrorTimeout dismisses an error banner after this long. 0 keeps it until dismissed.
	ErrorTimeout time.Duration
}

// itemEdit is the inline editor of one todo.
type itemEdit struct {
	input  textinput.Model
	saving bool
}

// Model represents the TUI state
type Model struct {
	store *state.Store

	focus  Focus
	cursor int
	input  textinput.Model

	// editing is the id whose inline editor has the keys, 0 for none.
	editing int
	edits   map[int]*itemEdit

	spinner      spinner.Model
	help         help.Model
	keys         keyMap
	styles       styles
	errorTimeout time.Duration

	width  int
	height int
}

// errorExpiredMsg asks to hide the error numbered seq.
type errorExpiredMsg struct {
	seq uint64
}

// New creates a model over store. The store must not be used elsewhere while
// the program runs.
func New(store *state.Store, opts Options) *Model {
	ti := textinput.New()
	ti.Placeholder = newTodoPlaceholder
	ti.CharLimit = 256
	ti.Prompt = ""
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot

	return &Model{
		store:        store,
		focus:        FocusHeader,
		input:        ti,
		edits:        make(map[int]*itemEdit),
		spinner:      sp,
		help:         help.New(),
		keys:         defaultKeyMap(),
		styles:       defaultStyles(),
		errorTimeout: opts.ErrorTimeout,
	}
}

// Init loads the collection.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.store.Load(), m.spinner.Tick, textinput.Blink)
}

// Update handles messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	seq := m.store.ErrorSeq()
	cmd := m.update(msg)
	return m, tea.Batch(cmd, m.expireError(seq))
}

func (m *Model) update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return cmd

	case errorExpiredMsg:
		m.store.DismissErrorSeq(msg.seq)
		return nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case state.CreatedMsg:
		m.store.Apply(msg)
		if !msg.Failed() {
			m.input.Reset()
		}
		if m.focus == FocusHeader {
			return m.input.Focus()
		}
		return nil

	case state.UpdatedMsg:
		m.store.Apply(msg)
		m.settleEdit(msg.ID, msg.Failed())
		m.clampCursor()
		return nil

	case state.DeletedMsg:
		m.store.Apply(msg)
		m.settleEdit(msg.ID, msg.Err != nil)
		m.clampCursor()
		return nil

	case state.LoadedMsg, state.ToggledAllMsg:
		m.store.Apply(msg)
		m.clampCursor()
		return nil
	}

	if m.focus == FocusHeader && m.editing == 0 {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return cmd
	}
	return nil
}

// expireError schedules hiding of an error raised since seq.
func (m *Model) expireError(seq uint64) tea.Cmd {
	current := m.store.ErrorSeq()
	if m.errorTimeout <= 0 || current == seq || m.store.Error() == state.NoError {
		return nil
	}
	return tea.Tick(m.errorTimeout, func(time.Time) tea.Msg {
		return errorExpiredMsg{seq: current}
	})
}

// settleEdit closes the editor of id once its commit succeeded. A failed
// commit leaves the editor open with the draft.
func (m *Model) settleEdit(id int, failed bool) {
	e, ok := m.edits[id]
	if !ok || !e.saving {
		return
	}
	if failed {
		e.saving = false
		e.input.Focus()
		return
	}
	m.closeEdit(id)
}

func (m *Model) closeEdit(id int) {
	delete(m.edits, id)
	if m.editing == id {
		m.editing = 0
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if msg.String() == "ctrl+c" {
		return tea.Quit
	}
	if m.editing != 0 {
		return m.handleEditKey(msg)
	}
	if m.focus == FocusHeader {
		return m.handleHeaderKey(msg)
	}
	return m.handleListKey(msg)
}

func (m *Model) handleHeaderKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "tab", "esc":
		m.focus = FocusList
		m.input.Blur()
		return nil
	case "enter":
		if m.store.Pending() != nil {
			return nil
		}
		cmd := m.store.Create(m.input.Value())
		if cmd != nil {
			m.input.Blur()
		}
		return cmd
	}
	if m.store.Pending() != nil {
		return nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

func (m *Model) handleEditKey(msg tea.KeyMsg) tea.Cmd {
	id := m.editing
	e := m.edits[id]
	if e == nil {
		m.editing = 0
		return nil
	}

	switch msg.String() {
	case "esc":
		m.closeEdit(id)
		return nil
	case "enter":
		if e.saving {
			return nil
		}
		action, cmd := m.store.Edit(id, e.input.Value())
		if action == state.EditKeep || cmd == nil {
			m.closeEdit(id)
			return nil
		}
		e.saving = true
		e.input.Blur()
		return cmd
	}
	if e.saving {
		return nil
	}
	var cmd tea.Cmd
	e.input, cmd = e.input.Update(msg)
	return cmd
}

func (m *Model) handleListKey(msg tea.KeyMsg) tea.Cmd {
	visible := m.store.Visible()

	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit
	case key.Matches(msg, m.keys.Focus):
		m.focus = FocusHeader
		if m.store.Pending() == nil {
			return m.input.Focus()
		}
		return nil
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return nil
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(visible)-1 {
			m.cursor++
		}
		return nil
	case key.Matches(msg, m.keys.ToggleAll):
		return m.store.ToggleAll()
	case key.Matches(msg, m.keys.ClearCompleted):
		return m.store.DeleteCompleted()
	case key.Matches(msg, m.keys.NextFilter):
		m.setFilter(m.store.Filter().Next())
		return nil
	case key.Matches(msg, m.keys.FilterAll):
		m.setFilter(state.FilterAll)
		return nil
	case key.Matches(msg, m.keys.FilterActive):
		m.setFilter(state.FilterActive)
		return nil
	case key.Matches(msg, m.keys.FilterDone):
		m.setFilter(state.FilterCompleted)
		return nil
	case key.Matches(msg, m.keys.Reload):
		return m.store.Load()
	case key.Matches(msg, m.keys.Dismiss):
		m.store.DismissError()
		return nil
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return nil
	}

	todo, ok := m.selected(visible)
	if !ok || m.store.IsBusy(todo.ID) {
		return nil
	}

	switch {
	case key.Matches(msg, m.keys.Toggle):
		return m.store.Toggle(todo.ID)
	case key.Matches(msg, m.keys.Delete):
		return m.store.Delete(todo.ID)
	case key.Matches(msg, m.keys.Edit):
		return m.openEdit(todo)
	}
	return nil
}

func (m *Model) openEdit(todo backend.Todo) tea.Cmd {
	ti := textinput.New()
	ti.Prompt = ""
	ti.CharLimit = 256
	ti.SetValue(todo.Title)
	ti.CursorEnd()
	m.edits[todo.ID] = &itemEdit{input: ti}
	m.editing = todo.ID
	return m.edits[todo.ID].input.Focus()
}

func (m *Model) setFilter(f state.Filter) {
	m.store.SetFilter(f)
	m.clampCursor()
}

func (m *Model) selected(visible []backend.Todo) (backend.Todo, bool) {
	if m.cursor < 0 || m.cursor >= len(visible) {
		return backend.Todo{}, false
	}
	return visible[m.cursor], true
}

func (m *Model) clampCursor() {
	n := len(m.store.Visible())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// View renders the UI
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(m.styles.title.Render("todos"))
	b.WriteString("\n")

	body := m.renderHeader() + "\n" + m.renderList()
	if m.store.Len() > 0 {
		body += "\n" + m.renderFooter()
	}
	if m.focus == FocusHeader && m.editing == 0 {
		b.WriteString(m.styles.pane.Render(body))
	} else {
		b.WriteString(m.styles.focused.Render(body))
	}
	b.WriteString("\n")

	if msg := m.store.Error(); msg != state.NoError {
		b.WriteString(m.styles.banner.Render("✕ " + msg.String() + "  (x to dismiss)"))
		b.WriteString("\n")
	}

	b.WriteString(m.styles.help.Render(m.help.View(m.keys)))
	return b.String()
}

func (m *Model) renderHeader() string {
	toggle := "  "
	if m.store.Len() > 0 {
		if m.store.AllCompleted() {
			toggle = m.styles.allDone.Render("❯ ")
		} else {
			toggle = m.styles.toggleAll.Render("❯ ")
		}
	}
	if m.store.Pending() != nil {
		return toggle + m.styles.disabled.Render(newTodoPlaceholder) + "  " + m.styles.pending.Render("Adding…")
	}
	return toggle + m.input.View()
}

func (m *Model) renderList() string {
	visible := m.store.Visible()
	pending := m.store.Pending()

	if len(visible) == 0 && pending == nil {
		if m.store.Loading() {
			return m.spinner.View() + " Loading..."
		}
		return ""
	}

	var lines []string
	for i, todo := range visible {
		lines = append(lines, m.renderItem(todo, i == m.cursor && m.focus == FocusList))
	}
	if pending != nil {
		lines = append(lines, m.styles.pending.Render("  "+m.spinner.View()+" [ ] "+pending.Title))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderItem(todo backend.Todo, selected bool) string {
	cursor := "  "
	if selected {
		cursor = "> "
	}

	mark := " "
	if m.store.IsBusy(todo.ID) {
		mark = m.spinner.View()
	}

	check := "[ ]"
	if todo.Completed {
		check = "[x]"
	}

	if e, ok := m.edits[todo.ID]; ok {
		return cursor + mark + " " + check + " " + e.input.View()
	}

	title := todo.Title
	switch {
	case selected:
		title = m.styles.selected.Render(title)
	case todo.Completed:
		title = m.styles.completed.Render(title)
	}
	return cursor + mark + " " + check + " " + title
}

func (m *Model) renderFooter() string {
	var b strings.Builder
	b.WriteString(itemsLeft(m.store.ActiveCount()))
	b.WriteString("  ")

	for _, f := range state.Filters {
		if f == m.store.Filter() {
			b.WriteString(m.styles.filterOn.Render(f.Title()))
		} else {
			b.WriteString(m.styles.filter.Render(f.Title()))
		}
	}

	if m.store.HasCompleted() {
		b.WriteString("  ")
		if m.store.Clearing() {
			b.WriteString(m.styles.disabled.Render("Clear completed"))
		} else {
			b.WriteString("Clear completed")
		}
	}
	return b.String()
}

func itemsLeft(n int) string {
	if n == 1 {
		return "1 item left"
	}
	return fmt.Sprintf("%d items left", n)
}

// Focused returns which part of the screen has focus.
func (m *Model) Focused() Focus {
	return m.focus
}

// Editing returns the id under edit, 0 for none.
func (m *Model) Editing() int {
	return m.editing
}
