// Package store persists bug records. Each SaveBug is an atomic whole-record
// upsert; a failed save leaves the previously stored record intact.
package store

import (
	"context"
	"errors"

	"provify/internal/bug"
)

// DefaultDBPath is the default relative path for the SQLite DB. Open creates
// the parent directory.
const DefaultDBPath = ".provify/provify.db"

// ErrNotFound is returned when no bug has the requested ID.
var ErrNotFound = errors.New("bug not found")

// Filter narrows ListBugs. Zero fields match everything.
type Filter struct {
	Status  bug.Status
	Package string
}

func (f Filter) match(b *bug.Bug) bool {
	if f.Status != "" && b.Status != f.Status {
		return false
	}
	if f.Package != "" && b.Package != f.Package {
		return false
	}
	return true
}

// Store is the persistence facade for bugs. Domain and CLI use only this
// interface; the implementation is SQL (SQLite or Postgres) or in-memory.
type Store interface {
	LoadBug(ctx context.Context, id string) (*bug.Bug, error)
	SaveBug(ctx context.Context, b *bug.Bug) error
	DeleteBug(ctx context.Context, id string) error
	// ListBugs returns matching bugs, newest first.
	ListBugs(ctx context.Context, f Filter) ([]*bug.Bug, error)
}
