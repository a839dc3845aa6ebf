package table

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get and Update when no row has the given id.
var ErrNotFound = errors.New("table: record not found")

// ErrClosed is returned by any operation on a closed store.
var ErrClosed = errors.New("table: store closed")

// Record is one stored queue item.
type Record struct {
	ID             uint64
	Payload        []byte
	InvisibleUntil time.Time
	CreatedAt      time.Time
	// DeletedAt is nil for active rows and set for tombstoned rows.
	DeletedAt *time.Time
}

// Tombstones selects rows by soft-delete state.
type Tombstones int

const (
	// AnyRows matches active and tombstoned rows.
	AnyRows Tombstones = iota
	// ActiveRows matches rows without DeletedAt.
	ActiveRows
	// DeletedRows matches rows with DeletedAt set.
	DeletedRows
)

// Filter is the predicate for Scan, Count and DeleteWhere. The zero Filter
// matches every row.
type Filter struct {
	// VisibleAt, when non-zero, keeps rows with InvisibleUntil <= VisibleAt.
	VisibleAt time.Time
	// Tombstones restricts rows by soft-delete state.
	Tombstones Tombstones
	// Since, when set, keeps rows with CreatedAt >= *Since.
	Since *time.Time
	// Limit caps the number of rows returned by Scan. Zero means no limit.
	Limit int
}

// Match reports whether r satisfies f. Backends that cannot push the
// predicate down evaluate it row by row with Match.
func (f Filter) Match(r *Record) bool {
	if !f.VisibleAt.IsZero() && r.InvisibleUntil.After(f.VisibleAt) {
		return false
	}
	switch f.Tombstones {
	case ActiveRows:
		if r.DeletedAt != nil {
			return false
		}
	case DeletedRows:
		if r.DeletedAt == nil {
			return false
		}
	}
	if f.Since != nil && r.CreatedAt.Before(*f.Since) {
		return false
	}
	return true
}

// Store is a persisted, id-ordered collection of records. Implementations
// are not required to be safe for concurrent use; the queue engine
// serializes access per store.
type Store interface {
	// Insert assigns r.ID and persists r.
	Insert(ctx context.Context, r *Record) error
	Get(ctx context.Context, id uint64) (Record, error)
	// Update overwrites the row with r.ID.
	Update(ctx context.Context, r Record) error
	// Delete removes the row with id. Deleting an absent row is not an error.
	Delete(ctx context.Context, id uint64) error
	// Scan returns matching rows ordered by id ascending.
	Scan(ctx context.Context, f Filter) ([]Record, error)
	Count(ctx context.Context, f Filter) (int, error)
	// DeleteWhere removes every matching row and returns how many were removed.
	DeleteWhere(ctx context.Context, f Filter) (int, error)
	Close() error
}

// Backend opens stores at named locations and owns their on-disk layout.
type Backend interface {
	Name() string
	// Location maps a queue kind and name to a storage location under dataDir.
	Location(dataDir, kind, name string) string
	Open(ctx context.Context, location string) (Store, error)
	// Remove deletes all files of a location. The store must not be open.
	Remove(location string) error
}
