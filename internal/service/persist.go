package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"virtnet/internal/domain"
)

// SnapshotWriter persists mirror snapshots
type SnapshotWriter interface {
	Save(ctx context.Context, snap *domain.Snapshot) error
}

// PersistOnChange returns a handler that saves the snapshot carried by
// every mutating event. Save failures are logged and passed to onError;
// they never fail the operation that triggered them.
func PersistOnChange(store SnapshotWriter, logger *zap.Logger, onError func(error)) Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("persist")

	return func(ev Event) {
		if !ev.Type.Mutated() || ev.Snapshot == nil {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := store.Save(ctx, ev.Snapshot); err != nil {
			logger.Error("failed to save virtual network",
				zap.String("event", string(ev.Type)),
				zap.Error(err))
			if onError != nil {
				onError(err)
			}
			return
		}
		logger.Debug("saved virtual network",
			zap.String("event", string(ev.Type)),
			zap.Int("nodes", len(ev.Snapshot.Nodes)),
			zap.Int("edges", len(ev.Snapshot.Edges)))
	}
}
