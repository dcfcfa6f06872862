/*
store.go - Persistence interface for journal entries

PURPOSE:
  Defines the interface between the journal and the database. The Store
  keeps append-only semantics; implementations live in store/sqlite
  (production) and generic/store (in-memory, for tests and CLI runs).

APPEND-ONLY CONTRACT:
  - Append(): single entry write
  - AppendBatch(): atomic multi-entry write
  - NO Update() or Delete() methods exist
*/
package generic

import "context"

// Store handles persistence of journal entries. Append-only.
type Store interface {
	// Append persists an entry. Returns ErrDuplicateIdempotencyKey if the key exists.
	Append(ctx context.Context, e Entry) error

	// AppendBatch persists multiple entries atomically.
	// Either all succeed or none do.
	AppendBatch(ctx context.Context, es []Entry) error

	// Load returns all entries for a stream, ordered by EffectiveAt.
	Load(ctx context.Context, streamID string) ([]Entry, error)

	// LoadRange returns entries effective in [from, to].
	LoadRange(ctx context.Context, streamID string, from, to TimePoint) ([]Entry, error)

	// Exists checks if an idempotency key already exists.
	Exists(ctx context.Context, idempotencyKey string) (bool, error)
}
