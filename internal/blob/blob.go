// Package blob provides optional secondary storage for the dataset artifact.
package blob

import "context"

// Store writes one named artifact to a storage backend.
type Store interface {
	Put(ctx context.Context, name string, data []byte) error
}

// Noop discards everything. The default when mirroring is not configured.
type Noop struct{}

// Put does nothing.
func (Noop) Put(context.Context, string, []byte) error {
	return nil
}
