package shortener

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no committed record matches.
	ErrNotFound = errors.New("record not found")
	// ErrCodeExists is returned by Reserve when the code is already taken.
	ErrCodeExists = errors.New("code already exists")
	// ErrNotReserved is returned by Commit when the code holds no placeholder.
	ErrNotReserved = errors.New("code not reserved")
)

// Reserver claims a code with a create-if-absent placeholder.
type Reserver interface {
	Reserve(ctx context.Context, code Code) error
}

// RecordGetter looks up a committed record by code.
type RecordGetter interface {
	Get(ctx context.Context, code Code) (*Record, error)
}

// Store is the document store the registry runs on. Placeholders created by
// Reserve are invisible to Get and FindByURLKey until committed.
type Store interface {
	Reserver
	RecordGetter

	// FindByURLKey returns every committed record carrying key.
	FindByURLKey(ctx context.Context, key URLKey) ([]*Record, error)

	// Commit turns the placeholder for record.Code into record, provided no
	// other record owns record.URLKey. If one does, the placeholder is dropped
	// and the owner is returned with created=false. The check and the write are
	// a single atomic step.
	Commit(ctx context.Context, record *Record) (stored *Record, created bool, err error)

	// Release drops an uncommitted placeholder. Committed records are untouched.
	Release(ctx context.Context, code Code) error

	// Update overwrites the mutable fields of a committed record.
	Update(ctx context.Context, code Code, update RecordUpdate) (*Record, error)
}
