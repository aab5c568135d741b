package backend

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// PendingID is the id carried by a todo that has not been persisted yet.
// Remote collections never assign it.
const PendingID = 0

// ErrNotFound is returned by stores when a todo id does not exist.
var ErrNotFound = errors.New("todo not found")

// Todo represents a single task record owned by one user.
type Todo struct {
	ID        int    `json:"id"`
	UserID    int    `json:"userId"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// IsPending reports whether the todo is an unpersisted placeholder.
func (t Todo) IsPending() bool {
	return t.ID == PendingID
}

// Collection defines the remote todo collection every client operation goes through
type Collection interface {
	// List returns every todo owned by userID in insertion order.
	List(ctx context.Context, userID int) ([]Todo, error)
	// Create persists a todo without id and returns it with the assigned id.
	Create(ctx context.Context, todo Todo) (Todo, error)
	// Update stores the full record and returns the canonical copy.
	Update(ctx context.Context, todo Todo) (Todo, error)
	Delete(ctx context.Context, id int) error

	// Connection management
	Close() error
}

// IndexOf returns the position of the todo with the given id, or -1.
func IndexOf(todos []Todo, id int) int {
	for i, t := range todos {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// GenerateRequestID returns a UUID v4 used to correlate client and server logs.
func GenerateRequestID() string {
	return uuid.New().String()
}
