package store

import (
	"context"
	"errors"

	"github.com/presensync/presensync/backend/go-services/internal/models"
)

var (
	ErrNotFound    = errors.New("document not found")
	ErrExists      = errors.New("document already exists")
	ErrInvalidPath = errors.New("invalid document path")
)

// Doc is one document read from a collection.
type Doc struct {
	Path string
	ID   string
	Data models.Fields
}

// Filter selects documents whose fields equal every given value.
type Filter map[string]interface{}

func (f Filter) matches(data models.Fields) bool {
	for k, v := range f {
		if data[k] != v {
			return false
		}
	}
	return true
}

// Snapshot is the full, filtered content of a collection at one point in time.
type Snapshot struct {
	Docs []Doc
	Err  error
}

// Write is one entry of a batch.
type Write struct {
	Path  string
	Data  models.Fields
	Merge bool
}

// Store is a path-addressed document database. Document paths have an even
// number of segments (collection/id[/collection/id...]); collection paths an odd one.
//
// Every call is atomic for a single document only; there are no multi-document
// transactions.
type Store interface {
	// Get returns ErrNotFound when the document does not exist.
	Get(ctx context.Context, path string) (models.Fields, error)
	// Set writes data. With merge the given fields are merged into an existing
	// document (created when absent); without it the document is replaced.
	Set(ctx context.Context, path string, data models.Fields, merge bool) error
	// Create writes data only when the document does not exist yet; ErrExists otherwise.
	Create(ctx context.Context, path string, data models.Fields) error
	// Update merges partial fields into an existing document; ErrNotFound otherwise.
	Update(ctx context.Context, path string, data models.Fields) error
	// Delete removes the document. Deleting a missing document is not an error.
	Delete(ctx context.Context, path string) error
	// List returns the documents directly under collection, ordered by id.
	List(ctx context.Context, collection string, filter Filter) ([]Doc, error)
	// Subscribe streams a snapshot of collection now and after every change.
	// The channel is closed when ctx is done. Slow readers only see the latest snapshot.
	Subscribe(ctx context.Context, collection string, filter Filter) (<-chan Snapshot, error)
	// Batch applies several writes in one call.
	Batch(ctx context.Context, writes []Write) error
}
