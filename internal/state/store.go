// Package state holds the todo collection and the operations that change it.
//
// Operations never block: each one validates and marks state synchronously and
// returns a tea.Cmd that talks to the remote collection. The command's result
// message is reduced by Apply, which must only be called from the event loop.
package state

import (
	"context"
	"io"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"todoapp/backend"
)

// Remote is the part of backend.Collection the store talks to.
type Remote interface {
	List(ctx context.Context, userID int) ([]backend.Todo, error)
	Create(ctx context.Context, todo backend.Todo) (backend.Todo, error)
	Update(ctx context.Context, todo backend.Todo) (backend.Todo, error)
	Delete(ctx context.Context, id int) error
}

// Options configures a Store.
type Options struct {
	UserID int
	// MaxConcurrency caps the requests issued by one bulk operation. 0 is unbounded.
	MaxConcurrency int
	Filter         Filter
	Logger         *log.Logger
}

// Store is the single owner of client-side todo state.
type Store struct {
	ctx            context.Context
	api            Remote
	userID         int
	maxConcurrency int
	log            *log.Logger

	todos    []backend.Todo
	pending  *backend.Todo
	busy     map[int]int
	filter   Filter
	err      Message
	errSeq   uint64
	loading  bool
	clearing int
}

// New creates an empty store bound to api.
func New(ctx context.Context, api Remote, opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Store{
		ctx:            ctx,
		api:            api,
		userID:         opts.UserID,
		maxConcurrency: opts.MaxConcurrency,
		log:            logger,
		todos:          []backend.Todo{},
		busy:           make(map[int]int),
		filter:         opts.Filter,
	}
}

// =============================================================================
// Operations
// =============================================================================

// Load fetches the collection for the configured user.
func (s *Store) Load() tea.Cmd {
	s.loading = true
	ctx, api, userID := s.ctx, s.api, s.userID
	return func() tea.Msg {
		todos, err := api.List(ctx, userID)
		return LoadedMsg{Todos: todos, Err: err}
	}
}

// Create adds a todo titled title (trimmed). It returns nil when the title is
// blank, which sets EmptyTitle, or while another create is outstanding.
func (s *Store) Create(title string) tea.Cmd {
	title = strings.TrimSpace(title)
	if title == "" {
		s.setError(EmptyTitle)
		return nil
	}
	if s.pending != nil {
		s.log.Debug("create refused, placeholder outstanding", "title", title)
		return nil
	}

	placeholder := backend.Todo{ID: backend.PendingID, UserID: s.userID, Title: title}
	s.pending = &placeholder

	ctx, api := s.ctx, s.api
	return func() tea.Msg {
		created, err := api.Create(ctx, placeholder)
		return CreatedMsg{Title: title, Todo: created, Err: err}
	}
}

// Rename stores a new title for id. The caller decides blank and unchanged
// titles with ResolveEdit.
func (s *Store) Rename(id int, title string) tea.Cmd {
	return s.update(id, func(t *backend.Todo) { t.Title = title })
}

// SetCompleted stores the completion flag for id.
func (s *Store) SetCompleted(id int, completed bool) tea.Cmd {
	return s.update(id, func(t *backend.Todo) { t.Completed = completed })
}

// Toggle flips the completion flag for id.
func (s *Store) Toggle(id int) tea.Cmd {
	return s.update(id, func(t *backend.Todo) { t.Completed = !t.Completed })
}

func (s *Store) update(id int, change func(*backend.Todo)) tea.Cmd {
	idx := backend.IndexOf(s.todos, id)
	if idx < 0 {
		return nil
	}
	next := s.todos[idx]
	change(&next)
	s.mark(id)

	ctx, api := s.ctx, s.api
	return func() tea.Msg {
		updated, err := api.Update(ctx, next)
		return UpdatedMsg{ID: id, Todo: updated, Err: err}
	}
}

// Edit commits an item edit: unchanged exits, blank deletes, otherwise renames.
func (s *Store) Edit(id int, draft string) (EditAction, tea.Cmd) {
	idx := backend.IndexOf(s.todos, id)
	if idx < 0 {
		return EditKeep, nil
	}
	action, title := ResolveEdit(s.todos[idx].Title, draft)
	switch action {
	case EditDelete:
		return action, s.Delete(id)
	case EditRename:
		return action, s.Rename(id, title)
	}
	return action, nil
}

// ToggleAll completes every active todo, or reopens all of them when none is
// active. Updates run concurrently and are committed locally only if every one
// succeeds.
func (s *Store) ToggleAll() tea.Cmd {
	if len(s.todos) == 0 {
		return nil
	}

	target := !s.AllCompleted()
	var affected []backend.Todo
	var ids []int
	for _, t := range s.todos {
		if t.Completed != target {
			t.Completed = target
			affected = append(affected, t)
			ids = append(ids, t.ID)
		}
	}
	s.mark(ids...)

	ctx, api, maxConcurrency := s.ctx, s.api, s.maxConcurrency
	return func() tea.Msg {
		results := FanOut(ctx, maxConcurrency, affected,
			func(ctx context.Context, t backend.Todo) (backend.Todo, error) {
				return api.Update(ctx, t)
			})
		return ToggledAllMsg{IDs: ids, Target: target, Err: FirstError(results)}
	}
}

// DeleteCompleted deletes every completed todo with independent requests; each
// one settles on its own. It returns nil when nothing is completed or a
// previous clear is still in flight.
func (s *Store) DeleteCompleted() tea.Cmd {
	if s.clearing > 0 {
		return nil
	}

	sem := newLimiter(s.maxConcurrency)
	var cmds []tea.Cmd
	for _, t := range s.todos {
		if t.Completed {
			s.mark(t.ID)
			cmds = append(cmds, s.deleteCmd(t.ID, true, sem))
		}
	}
	if len(cmds) == 0 {
		return nil
	}
	s.clearing = len(cmds)
	return tea.Batch(cmds...)
}

// Delete removes id.
func (s *Store) Delete(id int) tea.Cmd {
	if backend.IndexOf(s.todos, id) < 0 {
		return nil
	}
	s.mark(id)
	return s.deleteCmd(id, false, nil)
}

func (s *Store) deleteCmd(id int, batch bool, sem limiter) tea.Cmd {
	ctx, api := s.ctx, s.api
	return func() tea.Msg {
		if err := sem.acquire(ctx); err != nil {
			return DeletedMsg{ID: id, Err: err, Batch: batch}
		}
		defer sem.release()
		return DeletedMsg{ID: id, Err: api.Delete(ctx, id), Batch: batch}
	}
}

// DismissError clears the current error message.
func (s *Store) DismissError() {
	s.err = NoError
}

// DismissErrorSeq clears the error only if it is still the one numbered seq.
func (s *Store) DismissErrorSeq(seq uint64) bool {
	if seq != s.errSeq || s.err == NoError {
		return false
	}
	s.err = NoError
	return true
}

// SetFilter changes the visible subset.
func (s *Store) SetFilter(f Filter) {
	s.filter = f
}

// =============================================================================
// Reducer
// =============================================================================

// Apply reduces an operation result into the store. It reports whether msg
// belonged to the store.
func (s *Store) Apply(msg tea.Msg) bool {
	switch msg := msg.(type) {
	case LoadedMsg:
		s.loading = false
		if msg.Err != nil {
			s.log.Warn("load failed", "op", "load", "err", msg.Err)
			s.setError(LoadFailed)
			return true
		}
		s.todos = s.sanitise(msg.Todos)
		s.err = NoError
		s.log.Debug("loaded", "op", "load", "count", len(s.todos))

	case CreatedMsg:
		s.pending = nil
		if msg.Failed() {
			if msg.Err == nil {
				s.log.Warn("create echoed without id", "op", "create", "title", msg.Title)
			} else {
				s.log.Warn("create failed", "op", "create", "title", msg.Title, "err", msg.Err)
			}
			s.setError(AddFailed)
			return true
		}
		if idx := backend.IndexOf(s.todos, msg.Todo.ID); idx >= 0 {
			s.log.Warn("create echoed an existing id", "op", "create", "id", msg.Todo.ID)
			s.todos[idx] = msg.Todo
		} else {
			s.todos = append(s.todos, msg.Todo)
		}
		s.log.Debug("created", "op", "create", "id", msg.Todo.ID)

	case UpdatedMsg:
		s.unmark(msg.ID)
		if msg.Failed() {
			s.log.Warn("update failed", "op", "update", "id", msg.ID, "err", msg.Err)
			s.setError(UpdateFailed)
			return true
		}
		idx := backend.IndexOf(s.todos, msg.ID)
		if idx < 0 {
			return true
		}
		updated := msg.Todo
		if updated.ID != msg.ID {
			s.log.Warn("update echoed a different id", "op", "update", "id", msg.ID, "echo", updated.ID)
			updated.ID = msg.ID
		}
		s.todos[idx] = updated
		s.log.Debug("updated", "op", "update", "id", msg.ID)

	case ToggledAllMsg:
		s.unmark(msg.IDs...)
		if msg.Err != nil {
			s.log.Warn("toggle all failed", "op", "toggle_all", "ids", msg.IDs, "err", msg.Err)
			s.setError(UpdateFailed)
			return true
		}
		for _, id := range msg.IDs {
			if idx := backend.IndexOf(s.todos, id); idx >= 0 {
				s.todos[idx].Completed = msg.Target
			}
		}
		s.log.Debug("toggled all", "op", "toggle_all", "ids", msg.IDs, "completed", msg.Target)

	case DeletedMsg:
		s.unmark(msg.ID)
		if msg.Batch && s.clearing > 0 {
			s.clearing--
		}
		if msg.Err != nil {
			s.log.Warn("delete failed", "op", "delete", "id", msg.ID, "err", msg.Err)
			s.setError(DeleteFailed)
			return true
		}
		if idx := backend.IndexOf(s.todos, msg.ID); idx >= 0 {
			s.todos = append(s.todos[:idx:idx], s.todos[idx+1:]...)
		}
		s.log.Debug("deleted", "op", "delete", "id", msg.ID)

	default:
		return false
	}
	return true
}

// sanitise drops sentinel and duplicate ids from a server listing.
func (s *Store) sanitise(todos []backend.Todo) []backend.Todo {
	out := make([]backend.Todo, 0, len(todos))
	seen := make(map[int]bool, len(todos))
	for _, t := range todos {
		if t.ID == backend.PendingID || seen[t.ID] {
			s.log.Warn("dropping todo with invalid id", "op", "load", "id", t.ID, "title", t.Title)
			continue
		}
		seen[t.ID] = true
		out = append(out, t)
	}
	return out
}

func (s *Store) setError(m Message) {
	s.err = m
	s.errSeq++
}

func (s *Store) mark(ids ...int) {
	for _, id := range ids {
		s.busy[id]++
	}
}

func (s *Store) unmark(ids ...int) {
	for _, id := range ids {
		if s.busy[id] <= 1 {
			delete(s.busy, id)
		} else {
			s.busy[id]--
		}
	}
}

// =============================================================================
// Accessors
// =============================================================================

// Todos returns a copy of the collection.
func (s *Store) Todos() []backend.Todo {
	return append([]backend.Todo(nil), s.todos...)
}

// Visible returns the todos matching the current filter.
func (s *Store) Visible() []backend.Todo {
	return FilterTodos(s.todos, s.filter)
}

// Get returns the todo with id.
func (s *Store) Get(id int) (backend.Todo, bool) {
	idx := backend.IndexOf(s.todos, id)
	if idx < 0 {
		return backend.Todo{}, false
	}
	return s.todos[idx], true
}

// Pending returns the placeholder of an outstanding create, or nil.
func (s *Store) Pending() *backend.Todo {
	if s.pending == nil {
		return nil
	}
	p := *s.pending
	return &p
}

// IsBusy reports whether id has a request in flight. The placeholder id is always busy.
func (s *Store) IsBusy(id int) bool {
	return id == backend.PendingID || s.busy[id] > 0
}

// BusyIDs returns the ids with requests in flight, ascending.
func (s *Store) BusyIDs() []int {
	ids := make([]int, 0, len(s.busy))
	for id := range s.busy {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// ActiveCount is the number of todos not completed.
func (s *Store) ActiveCount() int {
	n := 0
	for _, t := range s.todos {
		if !t.Completed {
			n++
		}
	}
	return n
}

// HasCompleted reports whether any todo is completed.
func (s *Store) HasCompleted() bool {
	return s.ActiveCount() < len(s.todos)
}

// AllCompleted reports whether the collection is non-empty and fully completed.
func (s *Store) AllCompleted() bool {
	return len(s.todos) > 0 && s.ActiveCount() == 0
}

// Len is the size of the collection.
func (s *Store) Len() int {
	return len(s.todos)
}

// Error returns the current error message, if any.
func (s *Store) Error() Message {
	return s.err
}

// ErrorSeq numbers the current error message.
func (s *Store) ErrorSeq() uint64 {
	return s.errSeq
}

// Filter returns the current filter.
func (s *Store) Filter() Filter {
	return s.filter
}

// Loading reports whether a Load is in flight.
func (s *Store) Loading() bool {
	return s.loading
}

// Clearing reports whether a DeleteCompleted batch is still in flight.
func (s *Store) Clearing() bool {
	return s.clearing > 0
}

// UserID returns the owner the store works for.
func (s *Store) UserID() int {
	return s.userID
}
