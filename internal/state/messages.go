package state

import "todoapp/backend"

// Message is a user-facing error from the fixed taxonomy.
type Message string

const (
	NoError      Message = ""
	LoadFailed   Message = "Unable to load todos"
	AddFailed    Message = "Unable to add a todo"
	UpdateFailed Message = "Unable to update a todo"
	DeleteFailed Message = "Unable to delete a todo"
	EmptyTitle   Message = "Title should not be empty"
)

func (m Message) String() string { return string(m) }

// LoadedMsg carries the result of Load.
type LoadedMsg struct {
	Todos []backend.Todo
	Err   error
}

// CreatedMsg carries the result of Create.
type CreatedMsg struct {
	Title string
	Todo  backend.Todo
	Err   error
}

// Failed reports whether the create did not produce a stored todo.
// An echo without an id is a failure.
func (m CreatedMsg) Failed() bool {
	return m.Err != nil || m.Todo.ID == backend.PendingID
}

// UpdatedMsg carries the result of a single-item update.
type UpdatedMsg struct {
	ID   int
	Todo backend.Todo
	Err  error
}

// Failed reports whether the update was rejected.
func (m UpdatedMsg) Failed() bool {
	return m.Err != nil
}

// DeletedMsg carries the result of one delete. Batch is set for deletes
// issued by DeleteCompleted.
type DeletedMsg struct {
	ID    int
	Err   error
	Batch bool
}

// ToggledAllMsg carries the settled result of a ToggleAll batch.
type ToggledAllMsg struct {
	IDs    []int
	Target bool
	Err    error
}
