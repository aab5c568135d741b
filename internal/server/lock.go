package server

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrDatabaseLocked is returned when another server already owns the database.
var ErrDatabaseLocked = errors.New("database is in use by another todoapp server")

// DBLock is an exclusive lock on a database file, held for the server's lifetime.
type DBLock struct {
	flock *flock.Flock
}

// LockPath returns the lock file guarding dbPath.
func LockPath(dbPath string) string {
	return dbPath + ".lock"
}

// AcquireDBLock takes the lock for dbPath without waiting.
func AcquireDBLock(dbPath string) (*DBLock, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	fl := flock.New(LockPath(dbPath))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock database: %w", err)
	}
	if !locked {
		return nil, ErrDatabaseLocked
	}
	return &DBLock{flock: fl}, nil
}

// Release unlocks the database.
func (l *DBLock) Release() error {
	if l == nil || l.flock == nil {
		return nil
	}
	return l.flock.Unlock()
}
