package adapter

import (
	"context"
	"fmt"
	"net/netip"
	"os"
	"slices"
	"sync"

	"go.uber.org/zap"

	"virtnet/internal/codec"
	"virtnet/internal/domain"
	"virtnet/internal/netaddr"
)

// FixtureSource serves neighborhoods from a graph file. It is what the
// server runs against when no database is configured, and what the watcher
// reloads when the file changes.
type FixtureSource struct {
	path   string
	logger *zap.Logger

	mu    sync.RWMutex
	nodes map[string]domain.Node
	order []string
	adj   map[string][]domain.Edge
}

// NewFixtureSource creates a source for the YAML or JSON file at path
func NewFixtureSource(path string, logger *zap.Logger) *FixtureSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FixtureSource{
		path:   path,
		logger: logger.Named("fixture"),
	}
}

// Name returns the source identifier
func (f *FixtureSource) Name() string {
	return string(SourceFixture)
}

// Path returns the backing file
func (f *FixtureSource) Path() string {
	return f.path
}

// Start loads the file
func (f *FixtureSource) Start(ctx context.Context) error {
	return f.Reload()
}

// Stop is a no-op
func (f *FixtureSource) Stop(ctx context.Context) error {
	return nil
}

// Reload re-reads the backing file. The previous graph stays in place when
// the file cannot be parsed.
func (f *FixtureSource) Reload() error {
	c, err := codec.ForPath(f.path)
	if err != nil {
		return err
	}
	file, err := os.Open(f.path)
	if err != nil {
		return fmt.Errorf("open fixture: %w", err)
	}
	defer file.Close()

	frag, err := c.Parse(file)
	if err != nil {
		return fmt.Errorf("parse %s: %w", f.path, err)
	}
	f.Load(frag)
	f.logger.Info("fixture loaded",
		zap.String("path", f.path),
		zap.Int("nodes", len(frag.Nodes)),
		zap.Int("edges", len(frag.Edges)))
	return nil
}

// Load replaces the served graph
func (f *FixtureSource) Load(frag *domain.GraphFragment) {
	nodes := make(map[string]domain.Node, len(frag.Nodes))
	order := make([]string, 0, len(frag.Nodes))
	adj := make(map[string][]domain.Edge)

	for _, n := range frag.Nodes {
		if _, dup := nodes[n.ID]; dup {
			continue
		}
		n.Parent = ""
		nodes[n.ID] = n
		order = append(order, n.ID)
	}
	for _, e := range frag.Edges {
		if _, ok := nodes[e.Source]; !ok {
			continue
		}
		if _, ok := nodes[e.Target]; !ok {
			continue
		}
		adj[e.Source] = append(adj[e.Source], e)
		adj[e.Target] = append(adj[e.Target], e)
	}

	f.mu.Lock()
	f.nodes, f.order, f.adj = nodes, order, adj
	f.mu.Unlock()
}

// Neighbors walks the stored graph from the seed. Organization units reach
// their subnets, subnets their addresses. An address reaches everything
// connected to it up to the next address, subnet or organization unit.
func (f *FixtureSource) Neighbors(ctx context.Context, seedID string, kind domain.NodeKind) (*domain.GraphFragment, error) {
	if !kind.Expandable() {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotExpandable, kind)
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	frag := domain.NewGraphFragment()
	seed, ok := f.nodes[seedID]
	if !ok {
		return frag, nil
	}
	frag.AddNode(seed)

	switch kind {
	case domain.KindOrganizationUnit:
		f.adjacent(frag, seedID, domain.KindSubnet)
	case domain.KindSubnet:
		f.adjacent(frag, seedID, domain.KindIP)
	case domain.KindIP:
		f.chain(ctx, frag, seedID)
	}
	return frag, nil
}

func (f *FixtureSource) adjacent(frag *domain.GraphFragment, seedID string, want domain.NodeKind) {
	for _, e := range f.adj[seedID] {
		other := e.Target
		if other == seedID {
			other = e.Source
		}
		if n := f.nodes[other]; n.Kind == want {
			frag.AddNode(n)
			frag.AddEdge(e)
		}
	}
}

func (f *FixtureSource) chain(ctx context.Context, frag *domain.GraphFragment, seedID string) {
	visited := map[string]bool{seedID: true}
	queue := []string{seedID}

	for len(queue) > 0 && ctx.Err() == nil {
		cur := queue[0]
		queue = queue[1:]

		for _, e := range f.adj[cur] {
			other := e.Target
			if other == cur {
				other = e.Source
			}
			n := f.nodes[other]
			switch n.Kind {
			case domain.KindIP, domain.KindSubnet, domain.KindOrganizationUnit, domain.KindCompound:
				continue
			}
			frag.AddEdge(e)
			if visited[other] {
				continue
			}
			visited[other] = true
			frag.AddNode(n)
			queue = append(queue, other)
		}
	}
}

// Initial returns the organization units. Units without host lists get
// them derived from the subnets and addresses below them; the vulnerable
// hosts are the addresses whose chain reaches a vulnerability.
func (f *FixtureSource) Initial(ctx context.Context) (*domain.GraphFragment, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	frag := domain.NewGraphFragment()
	for _, id := range f.order {
		n := f.nodes[id]
		if n.Kind != domain.KindOrganizationUnit {
			continue
		}
		n = n.Clone()
		if len(n.Hosts) == 0 {
			n.Hosts, n.Vulns = f.derivedHosts(ctx, id)
		}
		frag.AddNode(n)
	}
	return frag, nil
}

func (f *FixtureSource) derivedHosts(ctx context.Context, orgID string) (hosts, vulns []string) {
	var prefixes, vulnerable []netip.Prefix

	add := func(list *[]netip.Prefix, p netip.Prefix) {
		if !slices.Contains(*list, p) {
			*list = append(*list, p)
		}
	}

	for _, e := range f.adj[orgID] {
		subnet := f.nodes[otherEnd(e, orgID)]
		if subnet.Kind != domain.KindSubnet {
			continue
		}
		if p, err := netaddr.Parse(subnet.Label); err == nil {
			add(&prefixes, p)
		}
		for _, se := range f.adj[subnet.ID] {
			ip := f.nodes[otherEnd(se, subnet.ID)]
			if ip.Kind != domain.KindIP {
				continue
			}
			p, err := netaddr.Parse(ip.Label)
			if err != nil {
				continue
			}
			add(&prefixes, p)

			chain := domain.NewGraphFragment()
			f.chain(ctx, chain, ip.ID)
			if chain.HasKind(domain.KindVulnerability) {
				add(&vulnerable, p)
			}
		}
	}

	slices.SortFunc(prefixes, netaddr.Compare)
	slices.SortFunc(vulnerable, netaddr.Compare)
	for _, p := range prefixes {
		hosts = append(hosts, p.String())
	}
	for _, p := range vulnerable {
		vulns = append(vulns, p.String())
	}
	return hosts, vulns
}

func otherEnd(e domain.Edge, id string) string {
	if e.Source == id {
		return e.Target
	}
	return e.Source
}
