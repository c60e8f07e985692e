package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"virtnet/internal/domain"
	"virtnet/internal/netaddr"
)

const (
	orgUnitNeighborsQuery = `MATCH (o:OrganizationUnit) WHERE id(o) = $nodeId WITH o ` +
		`MATCH (o)-[r]-(s:Subnet) RETURN o, r, s`

	subnetNeighborsQuery = `MATCH (s:Subnet)-[r]-(ip:IP) WHERE id(s) = $nodeId RETURN s, r, ip`

	ipNeighborsQuery = `MATCH (i:IP)-[r]-(d:DomainName), (i)-[r1]-(n:Node), (n)-[r2]-(h:Host), ` +
		`(h)-[r3]-(sv:SoftwareVersion) WHERE id(i) = $nodeId WITH i, r, d, r1, n, r2, h, r3, sv ` +
		`LIMIT 1 ` +
		`OPTIONAL MATCH (sv)-[sR1]-(ns:NetworkService) ` +
		`OPTIONAL MATCH (sv)-[sR2]-(v:Vulnerability) ` +
		`OPTIONAL MATCH (v)-[vulnR]-(c:CVE) ` +
		`RETURN i, r, d, r1, n, r2, h, r3, sv, sR1, ns, sR2, v, vulnR, c ` +
		`LIMIT 1`

	initialQuery = `MATCH (o:OrganizationUnit)-[r]-(s:Subnet), (s)-[r2]-(i:IP) ` +
		`WHERE o.name IN $orgUnits RETURN o, r, s, i`

	vulnerableHostsQuery = `MATCH (i:IP)-[r]-(n:Node), (n)-[r2]-(h:Host), ` +
		`(h)-[r3]-(sv:SoftwareVersion), (sv)-[r4]-(v:Vulnerability) ` +
		`WHERE any(p IN $prefixes WHERE i.address STARTS WITH p) ` +
		`RETURN i, count(v) AS vulns`
)

// Neo4jConfig holds connection and scoping settings for the graph database
type Neo4jConfig struct {
	URI      string
	Username string
	Password string
	Database string
	// OrgUnits are the organization unit names loaded by Initial
	OrgUnits []string
	// AddressSpace restricts subnets and hosts to these ranges
	AddressSpace []string
	// QueriesPerSecond limits query throughput; zero disables the limit
	QueriesPerSecond float64
	Burst            int
}

type cypherRunner interface {
	run(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error)
}

type driverRunner struct {
	driver   neo4j.DriverWithContext
	database string
}

func (d *driverRunner) run(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error) {
	session := d.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: d.database,
		AccessMode:   neo4j.AccessModeRead,
	})
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	records, _ := out.([]*neo4j.Record)
	return records, nil
}

// Neo4jSource expands the virtual network from the topology graph database
type Neo4jSource struct {
	cfg     Neo4jConfig
	space   []netip.Prefix
	limiter *rate.Limiter
	logger  *zap.Logger

	mu     sync.RWMutex
	driver neo4j.DriverWithContext
	runner cypherRunner
}

// NewNeo4jSource validates cfg and creates an unconnected source
func NewNeo4jSource(cfg Neo4jConfig, logger *zap.Logger) (*Neo4jSource, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	space := make([]netip.Prefix, 0, len(cfg.AddressSpace))
	for _, s := range cfg.AddressSpace {
		p, err := netaddr.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("address space: %w", err)
		}
		space = append(space, p)
	}

	limit := rate.Inf
	if cfg.QueriesPerSecond > 0 {
		limit = rate.Limit(cfg.QueriesPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Neo4jSource{
		cfg:     cfg,
		space:   space,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger.Named("neo4j"),
	}, nil
}

// Name returns the source identifier
func (s *Neo4jSource) Name() string {
	return string(SourceNeo4j)
}

// Start connects to the database and verifies connectivity
func (s *Neo4jSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.URI == "" {
		return errors.New("neo4j uri is required")
	}
	auth := neo4j.NoAuth()
	if s.cfg.Username != "" || s.cfg.Password != "" {
		auth = neo4j.BasicAuth(s.cfg.Username, s.cfg.Password, "")
	}
	driver, err := neo4j.NewDriverWithContext(s.cfg.URI, auth)
	if err != nil {
		return fmt.Errorf("create driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return fmt.Errorf("verify connectivity: %w", err)
	}

	s.driver = driver
	s.runner = &driverRunner{driver: driver, database: s.cfg.Database}
	s.logger.Info("connected", zap.String("uri", s.cfg.URI), zap.String("database", s.cfg.Database))
	return nil
}

// Stop closes the driver
func (s *Neo4jSource) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runner = nil
	if s.driver == nil {
		return nil
	}
	err := s.driver.Close(ctx)
	s.driver = nil
	return err
}

// Neighbors runs the relation pattern of the seed kind
func (s *Neo4jSource) Neighbors(ctx context.Context, seedID string, kind domain.NodeKind) (*domain.GraphFragment, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(seedID), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a database id", domain.ErrInvalidSeed, seedID)
	}

	var query string
	keep := func(domain.Node) bool { return true }
	switch kind {
	case domain.KindOrganizationUnit:
		query = orgUnitNeighborsQuery
		keep = func(n domain.Node) bool {
			return n.Kind != domain.KindSubnet || s.inSpace(n.Label)
		}
	case domain.KindSubnet:
		query = subnetNeighborsQuery
	case domain.KindIP:
		query = ipNeighborsQuery
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrNotExpandable, kind)
	}

	records, err := s.query(ctx, query, map[string]any{"nodeId": id})
	if err != nil {
		return nil, err
	}
	return fragmentFromRecords(records, keep), nil
}

// Initial builds one organization unit node per configured unit, carrying
// the subnet ranges and host addresses in the address space and the hosts
// with known vulnerabilities.
func (s *Neo4jSource) Initial(ctx context.Context) (*domain.GraphFragment, error) {
	var hostRecords, vulnRecords []*neo4j.Record

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		recs, err := s.query(gctx, initialQuery, map[string]any{"orgUnits": s.cfg.OrgUnits})
		hostRecords = recs
		return err
	})
	g.Go(func() error {
		recs, err := s.query(gctx, vulnerableHostsQuery, map[string]any{"prefixes": s.prefixes()})
		vulnRecords = recs
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	vulnerable := make(map[string]bool)
	for _, rec := range vulnRecords {
		var addr string
		var count int64
		for _, v := range rec.Values {
			switch val := v.(type) {
			case neo4j.Node:
				addr = propString(val.Props, "address")
			case int64:
				count = val
			}
		}
		if addr != "" && count > 0 && s.inSpace(addr) {
			vulnerable[addr+"/32"] = true
		}
	}

	type org struct {
		node  domain.Node
		hosts map[string]bool
	}
	var order []int64
	orgs := make(map[int64]*org)

	for _, rec := range hostRecords {
		var cur *org
		for _, v := range rec.Values {
			n, ok := v.(neo4j.Node)
			if !ok || !slices.Contains(n.Labels, "OrganizationUnit") {
				continue
			}
			if cur = orgs[n.Id]; cur == nil {
				cur = &org{
					node:  domain.NewNode(strconv.FormatInt(n.Id, 10), domain.KindOrganizationUnit, propString(n.Props, "name")),
					hosts: make(map[string]bool),
				}
				orgs[n.Id] = cur
				order = append(order, n.Id)
			}
		}
		if cur == nil {
			continue
		}
		for _, v := range rec.Values {
			n, ok := v.(neo4j.Node)
			if !ok {
				continue
			}
			switch {
			case slices.Contains(n.Labels, "Subnet"):
				if r := propString(n.Props, "range"); s.inSpace(r) {
					cur.hosts[r] = true
				}
			case slices.Contains(n.Labels, "IP"):
				if a := propString(n.Props, "address"); a != "" && s.inSpace(a) {
					cur.hosts[a+"/32"] = true
				}
			}
		}
	}

	frag := domain.NewGraphFragment()
	for _, id := range order {
		o := orgs[id]
		o.node.Hosts = sortedCIDRs(o.hosts)
		for _, h := range o.node.Hosts {
			if vulnerable[h] {
				o.node.Vulns = append(o.node.Vulns, h)
			}
		}
		if len(s.cfg.AddressSpace) > 0 {
			o.node.Details = domain.StringDetails(strings.Join(s.cfg.AddressSpace, ", "))
		}
		frag.AddNode(o.node)
	}

	s.logger.Info("loaded organization units",
		zap.Int("units", len(frag.Nodes)),
		zap.Int("vulnerable_hosts", len(vulnerable)))
	return frag, nil
}

func (s *Neo4jSource) query(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error) {
	s.mu.RLock()
	runner := s.runner
	s.mu.RUnlock()
	if runner == nil {
		return nil, errors.New("neo4j source is not started")
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	records, err := runner.run(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("run query: %w", err)
	}
	return records, nil
}

// inSpace reports whether a CIDR or address lies in the configured space.
func (s *Neo4jSource) inSpace(cidr string) bool {
	p, err := netaddr.Parse(cidr)
	if err != nil {
		return false
	}
	if len(s.space) == 0 {
		return true
	}
	for _, sp := range s.space {
		if netaddr.Contains(p, sp) {
			return true
		}
	}
	return false
}

// prefixes returns the dotted prefixes fixed by each address space mask,
// used to narrow the vulnerability query before the exact check.
func (s *Neo4jSource) prefixes() []string {
	if len(s.space) == 0 {
		return []string{""}
	}
	out := make([]string, 0, len(s.space))
	for _, p := range s.space {
		out = append(out, dottedPrefix(p))
	}
	return out
}

func dottedPrefix(p netip.Prefix) string {
	octets := strings.Split(p.Addr().String(), ".")
	fixed := p.Bits() / 8
	if fixed == 0 {
		return ""
	}
	return strings.Join(octets[:fixed], ".") + "."
}

func sortedCIDRs(set map[string]bool) []string {
	prefixes := make([]netip.Prefix, 0, len(set))
	for c := range set {
		if p, err := netaddr.Parse(c); err == nil {
			prefixes = append(prefixes, p)
		}
	}
	slices.SortFunc(prefixes, netaddr.Compare)
	out := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		out = append(out, p.String())
	}
	return out
}
