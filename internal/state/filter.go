package state

import (
	"strings"

	"todoapp/backend"
	"todoapp/internal/utils"
)

// Filter selects which todos are visible. It never changes the collection.
type Filter int

const (
	FilterAll Filter = iota
	FilterActive
	FilterCompleted
)

// Filters lists every filter in display order.
var Filters = []Filter{FilterAll, FilterActive, FilterCompleted}

// String returns the filter name used in config and on the command line.
func (f Filter) String() string {
	switch f {
	case FilterActive:
		return "active"
	case FilterCompleted:
		return "completed"
	default:
		return "all"
	}
}

// Title is the label shown in the footer.
func (f Filter) Title() string {
	switch f {
	case FilterActive:
		return "Active"
	case FilterCompleted:
		return "Completed"
	default:
		return "All"
	}
}

// Route is the location-fragment form of the filter.
func (f Filter) Route() string {
	switch f {
	case FilterActive:
		return "#/active"
	case FilterCompleted:
		return "#/completed"
	default:
		return "#/"
	}
}

// Next cycles All -> Active -> Completed -> All.
func (f Filter) Next() Filter {
	return Filters[(int(f)+1)%len(Filters)]
}

// FilterNames returns the accepted filter names.
func FilterNames() []string {
	names := make([]string, len(Filters))
	for i, f := range Filters {
		names[i] = f.String()
	}
	return names
}

// ParseFilter accepts a filter name ("active") or route ("#/active").
// The empty string and "#" mean all.
func ParseFilter(s string) (Filter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all", "#", "#/":
		return FilterAll, nil
	case "active", "#/active":
		return FilterActive, nil
	case "completed", "#/completed":
		return FilterCompleted, nil
	}
	return FilterAll, utils.ErrInvalidFilter(s, FilterNames())
}

// Matches reports whether t is visible under f.
func (f Filter) Matches(t backend.Todo) bool {
	switch f {
	case FilterActive:
		return !t.Completed
	case FilterCompleted:
		return t.Completed
	default:
		return true
	}
}

// FilterTodos returns the todos visible under f in their original order.
// The input slice is not modified.
func FilterTodos(todos []backend.Todo, f Filter) []backend.Todo {
	out := make([]backend.Todo, 0, len(todos))
	for _, t := range todos {
		if f.Matches(t) {
			out = append(out, t)
		}
	}
	return out
}

// LoadingFor builds a busy set from todos, keyed by id.
func LoadingFor(todos []backend.Todo) map[int]bool {
	set := make(map[int]bool, len(todos))
	for _, t := range todos {
		set[t.ID] = true
	}
	return set
}
