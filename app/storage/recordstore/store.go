package recordstore

import (
	"context"
	"errors"
)

// Record is a loosely-typed row: string keys, string values. Services own
// their field names; the store only reserves "id" and "user_id".
type Record map[string]string

// Ref is an opaque handle to a stored row, valid for Update.
type Ref string

var ErrNotFound = errors.New("record not found")

// Store is the generic persistence surface the assistant core runs on.
// Collections are created lazily on first append.
type Store interface {
	// Get returns all records of a collection, optionally filtered by user.
	// An empty userID returns every record.
	Get(ctx context.Context, collection, userID string) ([]Record, error)

	// Append inserts a record. A missing "id" field is assigned.
	Append(ctx context.Context, collection string, rec Record) error

	// Update merges partial into the record at ref, field by field.
	Update(ctx context.Context, collection string, ref Ref, partial Record) error

	// FindRef locates a record by its "id" field, falling back to "key".
	FindRef(ctx context.Context, collection, userID, id string) (Ref, bool, error)
}

func matches(rec Record, id string) bool {
	if rec["id"] == id {
		return true
	}

	return rec["key"] != "" && rec["key"] == id
}
