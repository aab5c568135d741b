package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "modernc.org/sqlite"
	"todoapp/backend"
)

// Backend implements backend.Collection using SQLite
type Backend struct {
	db   *sql.DB
	path string
}

// New creates a new SQLite backend and initializes the database schema
func New(path string) (*Backend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection serialises writers and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	b := &Backend{db: db, path: path}
	if err := b.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return b, nil
}

// Path returns the database path the backend was opened with.
func (b *Backend) Path() string {
	return b.path
}

// initSchema creates the database tables if they don't exist
func (b *Backend) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS todos (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			title TEXT NOT NULL,
			completed INTEGER NOT NULL DEFAULT 0,
			created TEXT NOT NULL,
			modified TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_todos_user_id ON todos(user_id);
	`

	_, err := b.db.Exec(schema)
	return err
}

// scanner is an interface satisfied by both *sql.Rows and *sql.Row
type scanner interface {
	Scan(dest ...any) error
}

func scanTodo(s scanner) (backend.Todo, error) {
	var t backend.Todo
	err := s.Scan(&t.ID, &t.UserID, &t.Title, &t.Completed)
	return t, err
}

// List returns all todos owned by userID in insertion order
func (b *Backend) List(ctx context.Context, userID int) ([]backend.Todo, error) {
	rows, err := b.db.QueryContext(ctx,
		"SELECT id, user_id, title, completed FROM todos WHERE user_id = ? ORDER BY id",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	todos := []backend.Todo{}
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, err
		}
		todos = append(todos, t)
	}
	return todos, rows.Err()
}

// Get returns a single todo by id
func (b *Backend) Get(ctx context.Context, id int) (backend.Todo, error) {
	row := b.db.QueryRowContext(ctx,
		"SELECT id, user_id, title, completed FROM todos WHERE id = ?",
		id,
	)
	t, err := scanTodo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return backend.Todo{}, backend.ErrNotFound
	}
	return t, err
}

// Create inserts a todo and returns it with the assigned id. Any id on the input is ignored.
func (b *Backend) Create(ctx context.Context, todo backend.Todo) (backend.Todo, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := b.db.ExecContext(ctx,
		`INSERT INTO todos (user_id, title, completed, created, modified) VALUES (?, ?, ?, ?, ?)`,
		todo.UserID, todo.Title, todo.Completed, now, now,
	)
	if err != nil {
		return backend.Todo{}, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return backend.Todo{}, err
	}

	todo.ID = int(id)
	return todo, nil
}

// Update replaces title and completed of an existing todo
func (b *Backend) Update(ctx context.Context, todo backend.Todo) (backend.Todo, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := b.db.ExecContext(ctx,
		`UPDATE todos SET user_id = ?, title = ?, completed = ?, modified = ? WHERE id = ?`,
		todo.UserID, todo.Title, todo.Completed, now, todo.ID,
	)
	if err != nil {
		return backend.Todo{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return backend.Todo{}, backend.ErrNotFound
	}

	return b.Get(ctx, todo.ID)
}

// Delete removes a todo
func (b *Backend) Delete(ctx context.Context, id int) error {
	res, err := b.db.ExecContext(ctx, "DELETE FROM todos WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return backend.ErrNotFound
	}
	return nil
}

// Close closes the database connection
func (b *Backend) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

// Verify interface compliance at compile time
var _ backend.Collection = (*Backend)(nil)
