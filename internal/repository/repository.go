package repository

import (
	"context"

	"virtnet/internal/domain"
)

// SnapshotStore persists the virtual network between runs
type SnapshotStore interface {
	// Load returns the stored snapshot, or nil when nothing is stored
	Load(ctx context.Context) (*domain.Snapshot, error)

	// Save replaces the stored snapshot
	Save(ctx context.Context, snapshot *domain.Snapshot) error

	// Delete removes the stored snapshot; deleting nothing is not an error
	Delete(ctx context.Context) error

	// Close releases resources
	Close() error
}
