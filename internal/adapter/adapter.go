package adapter

import (
	"context"

	"virtnet/internal/domain"
)

// SourceKind names a neighbor source implementation
type SourceKind string

const (
	// SourceNeo4j queries the topology graph database
	SourceNeo4j SourceKind = "neo4j"
	// SourceFixture serves a graph loaded from a YAML or JSON file
	SourceFixture SourceKind = "fixture"
	// SourceNmap builds neighborhoods from live nmap scans
	SourceNmap SourceKind = "nmap"
)

// Source defines the interface for external graphs the virtual network is
// expanded from.
type Source interface {
	// Name returns the unique identifier for this source
	Name() string

	// Start connects to the backing system (called once on startup)
	Start(ctx context.Context) error

	// Stop releases connections
	Stop(ctx context.Context) error

	// Neighbors returns the neighborhood of a seed node. The relation
	// pattern depends on the seed kind: organization unit to subnets,
	// subnet to addresses, address to the host, service, software and
	// vulnerability chain. The seed itself is included when known.
	Neighbors(ctx context.Context, seedID string, kind domain.NodeKind) (*domain.GraphFragment, error)

	// Initial returns the elements shown before anything is expanded
	Initial(ctx context.Context) (*domain.GraphFragment, error)
}

// Reloader is implemented by sources backed by a file that can be re-read
type Reloader interface {
	Reload() error
}
