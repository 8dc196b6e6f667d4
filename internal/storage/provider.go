// Package storage defines the blob storage provider used to archive run
// artifacts (output snapshots and run reports) independently of any
// specific backend.
package storage

import (
	"context"
)

// Provider is a blob store that can persist a run artifact under a key.
type Provider interface {
	Save(ctx context.Context, objectName string, data []byte) error
}

// NoOpProvider discards every artifact. It backs runs where archiving is
// disabled.
type NoOpProvider struct{}

// Save does nothing and always returns nil.
func (n *NoOpProvider) Save(_ context.Context, _ string, _ []byte) error {
	return nil
}
