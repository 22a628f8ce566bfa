// Package docstore persists small shared documents (the credential vault,
// the active session, the mutation queue, the device id, the last visited
// path) as opaque blobs keyed by name.
//
// Each document is a single shared value; callers that depend on the latest
// state must re-read before mutating (read-modify-persist), since documents
// survive process restarts and are shared between components.
package docstore

import "context"

type Store interface {
	// Get returns the document value, or nil when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put creates or replaces the document.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes the document. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Clear removes every document.
	Clear(ctx context.Context) error
}
