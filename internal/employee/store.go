package employee

import "context"

// RecordStore persists employee records keyed by account id.
type RecordStore interface {
	Get(ctx context.Context, id string) (Record, error)
	// Create inserts a new record and fails with ErrAlreadyExists if the id is taken.
	Create(ctx context.Context, rec Record) (Record, error)
	// Update applies a partial write and returns the stored result.
	Update(ctx context.Context, id string, upd Update) (Record, error)
	ListByRole(ctx context.Context, role Role) ([]Record, error)
}
