package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"virtnet/internal/adapter"
	"virtnet/internal/config"
	"virtnet/internal/repository"
	"virtnet/internal/repository/jsonfile"
	"virtnet/internal/repository/sqlite"
	"virtnet/internal/service"
)

// buildSource creates the neighbor source selected by cfg.Source
func buildSource(cfg *config.Config, logger *zap.Logger) (adapter.Source, error) {
	switch adapter.SourceKind(cfg.Source) {
	case adapter.SourceNeo4j:
		return adapter.NewNeo4jSource(adapter.Neo4jConfig{
			URI:              cfg.Neo4j.URI,
			Username:         cfg.Neo4j.Username,
			Password:         cfg.Neo4j.Password,
			Database:         cfg.Neo4j.Database,
			OrgUnits:         cfg.Neo4j.OrgUnits,
			AddressSpace:     cfg.Neo4j.AddressSpace,
			QueriesPerSecond: cfg.Neo4j.QueriesPerSecond,
			Burst:            cfg.Neo4j.Burst,
		}, logger)

	case adapter.SourceFixture:
		return adapter.NewFixtureSource(cfg.Fixture.Path, logger), nil

	case adapter.SourceNmap:
		opts := []adapter.NmapOption{
			adapter.WithOSDetection(cfg.Nmap.OSDetection),
			adapter.WithSkipHostDiscovery(cfg.Nmap.SkipHostDiscovery),
		}
		if d := cfg.Nmap.Timeout.Duration(); d > 0 {
			opts = append(opts, adapter.WithTimeout(d))
		}
		if cfg.Nmap.Ports != "" {
			opts = append(opts, adapter.WithPortRange(cfg.Nmap.Ports))
		}
		if cfg.Nmap.ServiceDetection != nil {
			opts = append(opts, adapter.WithServiceDetection(*cfg.Nmap.ServiceDetection))
		}
		return adapter.NewNmapSource(cfg.Nmap.Targets, logger, opts...)
	}
	return nil, fmt.Errorf("unknown source %q", cfg.Source)
}

// openStore opens the snapshot backend selected by cfg.Backend
func openStore(cfg config.StorageConfig) (repository.SnapshotStore, error) {
	switch cfg.Backend {
	case "", "jsonfile":
		return jsonfile.New(cfg.Path), nil
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
		return sqlite.New(cfg.Path)
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}

// warmStart restores the stored snapshot, or populates from the source
// when nothing is stored. A failed population leaves an empty mirror that
// clients can fill through the fetch endpoints.
func warmStart(ctx context.Context, svc *service.NetworkService, store repository.SnapshotStore, logger *zap.Logger) error {
	snap, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if snap != nil && !snap.IsEmpty() {
		svc.Restore(snap)
		return nil
	}

	if _, err := svc.Populate(ctx); err != nil {
		logger.Warn("initial population failed; starting empty", zap.Error(err))
	}
	return nil
}
