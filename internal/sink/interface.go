// Package sink contains the downstream stores a snapshot is propagated to.
package sink

import (
	"context"
	"errors"

	"github.com/syncdata/cdc-relay/internal/domain"
)

// ErrMissingID is returned when a document has no key to be stored under.
var ErrMissingID = errors.New("document has no " + domain.IDField)

// DocumentSink keeps a full-replacement copy of each row, keyed by _id.
type DocumentSink interface {
	// Upsert replaces the document whose key is snapshot._id, inserting it
	// when absent.
	Upsert(ctx context.Context, snapshot domain.Snapshot) error
	// Delete removes the document with the given key. Deleting a missing
	// document is not an error.
	Delete(ctx context.Context, key any) error
}

// SearchSink keeps a searchable, merge-updated copy of each row.
type SearchSink interface {
	// UpsertAsUpdate merges snapshot into the indexed document, inserting it
	// when absent.
	UpsertAsUpdate(ctx context.Context, snapshot domain.Snapshot) error
	// Delete removes the indexed document with the given key. Deleting a
	// missing document is not an error.
	Delete(ctx context.Context, key any) error
}
