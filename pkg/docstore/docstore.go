// Package docstore defines the optional secondary document store behind the
// results log. The primary file store is always the source of truth; a
// docstore exists purely to make querying cheap, so every implementation
// must tolerate being absent, slow or broken without affecting callers.
package docstore

import (
	"context"
	"encoding/json"
)

// Store is the document store contract consumed by the results log.
type Store interface {
	// Insert stores a document under (collection, id), overwriting any
	// previous document with the same id.
	Insert(ctx context.Context, collection, id string, doc any) error

	// InsertIfAbsent stores the document only when the id is unseen and
	// reports whether it inserted. Losing the race is not an error; the
	// startup sync relies on that.
	InsertIfAbsent(ctx context.Context, collection, id string, doc any) (bool, error)

	// Count returns the number of documents in a collection.
	Count(ctx context.Context, collection string) (int64, error)

	// Find returns up to limit documents, newest first.
	Find(ctx context.Context, collection string, limit int) ([]json.RawMessage, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
}
