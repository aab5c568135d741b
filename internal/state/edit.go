package state

import "strings"

// EditAction is the outcome of committing an item edit.
type EditAction int

const (
	// EditKeep leaves the todo untouched and exits edit mode.
	EditKeep EditAction = iota
	// EditDelete removes the todo; an emptied title means delete.
	EditDelete
	// EditRename stores the trimmed draft as the new title.
	EditRename
)

func (a EditAction) String() string {
	switch a {
	case EditDelete:
		return "delete"
	case EditRename:
		return "rename"
	default:
		return "keep"
	}
}

// ResolveEdit decides what committing draft over stored does and returns the
// trimmed draft.
func ResolveEdit(stored, draft string) (EditAction, string) {
	title := strings.TrimSpace(draft)
	switch {
	case title == stored:
		return EditKeep, title
	case title == "":
		return EditDelete, title
	default:
		return EditRename, title
	}
}
