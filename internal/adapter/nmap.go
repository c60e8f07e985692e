package adapter

import (
	"context"
	"fmt"
	"net/netip"
	"os/exec"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	nmap "github.com/Ullaakut/nmap/v3"
	"go.uber.org/zap"

	"virtnet/internal/domain"
	"virtnet/internal/netaddr"
)

// NmapOrgID is the single organization unit the nmap source presents
const NmapOrgID = "org-nmap"

var wellKnownPorts = map[int]string{
	21:   "ftp",
	22:   "ssh",
	23:   "telnet",
	25:   "smtp",
	53:   "dns",
	80:   "http",
	110:  "pop3",
	143:  "imap",
	443:  "https",
	445:  "smb",
	993:  "imaps",
	995:  "pop3s",
	3306: "mysql",
	3389: "rdp",
	5432: "postgres",
	5900: "vnc",
	6443: "k8s-api",
	8080: "http-alt",
	8443: "https-alt",
	9090: "prometheus",
	9100: "node-exporter",
}

type scanFunc func(ctx context.Context, opts ...nmap.Option) (*nmap.Run, error)

// NmapSource builds neighborhoods from live scans. The configured targets
// are the subnets of one organization unit; expanding a subnet ping scans
// it and expanding an address runs a service scan against it.
type NmapSource struct {
	targets           []netip.Prefix
	timeout           time.Duration
	portRange         string
	serviceDetection  bool
	osDetection       bool
	skipHostDiscovery bool
	scan              scanFunc
	logger            *zap.Logger

	mu      sync.Mutex
	running bool
}

// NewNmapSource creates a new nmap-based source. Targets are CIDR ranges
// or single addresses.
func NewNmapSource(targets []string, logger *zap.Logger, opts ...NmapOption) (*NmapSource, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	parsed, err := expandTargets(targets)
	if err != nil {
		return nil, err
	}

	n := &NmapSource{
		targets:          parsed,
		timeout:          10 * time.Minute,
		portRange:        "22,25,53,80,443,445,3389,5432,5900,6443,8080,8443,9090,9100",
		serviceDetection: true,
		scan:             runNmap,
		logger:           logger.Named("nmap"),
	}

	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Name returns the source identifier
func (n *NmapSource) Name() string {
	return string(SourceNmap)
}

// Start checks that the nmap binary is available
func (n *NmapSource) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, err := exec.LookPath("nmap"); err != nil {
		return fmt.Errorf("nmap binary not found in PATH")
	}

	n.running = true
	n.logger.Info("nmap source started",
		zap.Int("targets", len(n.targets)),
		zap.String("port_range", n.portRange),
		zap.Bool("service_detection", n.serviceDetection),
		zap.Bool("os_detection", n.osDetection))
	return nil
}

// Stop shuts down the source
func (n *NmapSource) Stop(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.running = false
	return nil
}

// Initial presents the targets as the hosts of one organization unit
func (n *NmapSource) Initial(ctx context.Context) (*domain.GraphFragment, error) {
	frag := domain.NewGraphFragment()
	frag.AddNode(n.orgNode())
	return frag, nil
}

// Neighbors scans according to the seed kind
func (n *NmapSource) Neighbors(ctx context.Context, seedID string, kind domain.NodeKind) (*domain.GraphFragment, error) {
	switch kind {
	case domain.KindOrganizationUnit:
		if seedID != NmapOrgID {
			return domain.NewGraphFragment(), nil
		}
		return n.subnets(), nil

	case domain.KindSubnet:
		prefix, ok := parseSubnetID(seedID)
		if !ok {
			return nil, fmt.Errorf("%w: %q is not a subnet id", domain.ErrInvalidSeed, seedID)
		}
		opts := []nmap.Option{nmap.WithTargets(prefix.String()), nmap.WithPingScan()}
		result, err := n.run(ctx, prefix.String(), opts)
		if err != nil {
			return nil, err
		}
		return processPingResults(prefix, result), nil

	case domain.KindIP:
		addr, ok := parseIPID(seedID)
		if !ok {
			return nil, fmt.Errorf("%w: %q is not an address id", domain.ErrInvalidSeed, seedID)
		}
		result, err := n.run(ctx, addr.String(), n.serviceOptions(addr.String()))
		if err != nil {
			return nil, err
		}
		return processServiceResults(addr, result), nil
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrNotExpandable, kind)
}

func (n *NmapSource) orgNode() domain.Node {
	org := domain.NewNode(NmapOrgID, domain.KindOrganizationUnit, "nmap")
	for _, t := range n.targets {
		org.Hosts = append(org.Hosts, t.String())
	}
	org.Details = domain.StringDetails(fmt.Sprintf("%d targets", len(n.targets)))
	return org
}

func (n *NmapSource) subnets() *domain.GraphFragment {
	frag := domain.NewGraphFragment()
	frag.AddNode(n.orgNode())
	for _, t := range n.targets {
		sub := domain.NewNode(subnetID(t), domain.KindSubnet, t.String())
		sub.Details = domain.StringDetails("N/A")
		frag.AddNode(sub)
		frag.AddEdge(domain.NewEdge(NmapOrgID, sub.ID, "HAS_SUBNET"))
	}
	return frag
}

func (n *NmapSource) serviceOptions(target string) []nmap.Option {
	opts := []nmap.Option{
		nmap.WithTargets(target),
		nmap.WithPorts(n.portRange),
	}
	if n.serviceDetection {
		opts = append(opts, nmap.WithServiceInfo())
	}
	// OS detection requires root
	if n.osDetection {
		opts = append(opts, nmap.WithOSDetection())
	}
	if n.skipHostDiscovery {
		opts = append(opts, nmap.WithSkipHostDiscovery())
	}
	return opts
}

func (n *NmapSource) run(ctx context.Context, target string, opts []nmap.Option) (*nmap.Run, error) {
	n.mu.Lock()
	running := n.running
	n.mu.Unlock()
	if !running {
		return nil, fmt.Errorf("nmap source not running")
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	n.logger.Debug("scanning", zap.String("target", target))
	result, err := n.scan(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", target, err)
	}
	return result, nil
}

func runNmap(ctx context.Context, opts ...nmap.Option) (*nmap.Run, error) {
	scanner, err := nmap.NewScanner(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create scanner: %w", err)
	}
	result, warnings, err := scanner.Run()
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	if warnings != nil && len(*warnings) > 0 {
		zap.L().Named("nmap").Warn("scan warnings", zap.Strings("warnings", *warnings))
	}
	return result, nil
}

// processPingResults turns the live hosts of a ping scan into the
// addresses of the subnet.
func processPingResults(subnet netip.Prefix, result *nmap.Run) *domain.GraphFragment {
	frag := domain.NewGraphFragment()
	sub := domain.NewNode(subnetID(subnet), domain.KindSubnet, subnet.String())
	sub.Details = domain.StringDetails("N/A")
	frag.AddNode(sub)
	if result == nil {
		return frag
	}

	var addrs []netip.Addr
	for _, host := range result.Hosts {
		if host.Status.State != "up" {
			continue
		}
		addr, ok := hostAddr(host)
		if !ok || !subnet.Contains(addr) {
			continue
		}
		addrs = append(addrs, addr)
	}
	slices.SortFunc(addrs, func(a, b netip.Addr) int { return a.Compare(b) })

	for _, addr := range slices.Compact(addrs) {
		ip := domain.NewNode(ipID(addr), domain.KindIP, addr.String())
		frag.AddNode(ip)
		frag.AddEdge(domain.NewEdge(sub.ID, ip.ID, "CONTAINS"))
	}
	return frag
}

// processResults converts a service scan of one address into its chain:
// the address resolves to a host, which runs network services backed by
// software versions. Reverse DNS names become domain names.
func processServiceResults(addr netip.Addr, result *nmap.Run) *domain.GraphFragment {
	frag := domain.NewGraphFragment()
	ipNode := domain.NewNode(ipID(addr), domain.KindIP, addr.String())
	frag.AddNode(ipNode)
	if result == nil {
		return frag
	}

	for _, host := range result.Hosts {
		if host.Status.State != "up" {
			continue
		}
		if a, ok := hostAddr(host); !ok || a != addr {
			continue
		}

		base := sanitizeIP(addr.String())
		hostNode := domain.NewNode("host-"+base, domain.KindHost, "Host")
		if mac, vendor := hostMAC(host); mac != "" {
			hostNode.Details = domain.StringDetails(strings.TrimSpace(mac + " " + vendor))
		}
		frag.AddNode(hostNode)
		frag.AddEdge(domain.NewEdge(ipNode.ID, hostNode.ID, "ASSIGNED_TO"))

		for _, hn := range host.Hostnames {
			if hn.Name == "" {
				continue
			}
			dn := domain.NewNode("dns-"+hn.Name, domain.KindDomainName, hn.Name)
			if hn.Type != "" {
				dn.Details = domain.StringDetails(hn.Type)
			}
			frag.AddNode(dn)
			frag.AddEdge(domain.NewEdge(ipNode.ID, dn.ID, "RESOLVES_TO"))
		}

		for _, port := range host.Ports {
			if port.State.State != "open" {
				continue
			}
			svcID := fmt.Sprintf("svc-%s-%d-%s", base, port.ID, port.Protocol)
			svc := domain.NewNode(svcID, domain.KindNetworkService, port.Protocol)
			svc.Details = domain.StringDetails(serviceName(port))
			frag.AddNode(svc)
			frag.AddEdge(domain.NewEdge(hostNode.ID, svcID, "PROVIDES"))

			if port.Service.Product == "" {
				continue
			}
			swID := fmt.Sprintf("sw-%s-%d-%s", base, port.ID, port.Protocol)
			sw := domain.NewNode(swID, domain.KindSoftwareVersion, strings.TrimSpace(port.Service.Product+" "+port.Service.Version))
			if port.Service.ExtraInfo != "" {
				sw.Details = domain.StringDetails(port.Service.ExtraInfo)
			}
			frag.AddNode(sw)
			frag.AddEdge(domain.NewEdge(svcID, swID, "RUNS"))
		}

		if len(host.OS.Matches) > 0 {
			match := host.OS.Matches[0]
			osNode := domain.NewNode("os-"+base, domain.KindSoftwareVersion, match.Name)
			osNode.Details = domain.StringDetails(fmt.Sprintf("os %d%%", match.Accuracy))
			frag.AddNode(osNode)
			frag.AddEdge(domain.NewEdge(hostNode.ID, osNode.ID, "RUNS"))
		}
	}
	return frag
}

func serviceName(port nmap.Port) string {
	if port.Service.Name != "" {
		return port.Service.Name
	}
	if name := wellKnownPorts[int(port.ID)]; name != "" {
		return name
	}
	return fmt.Sprintf("unknown-%d", port.ID)
}

// hostAddr picks the IPv4 address of a scanned host
func hostAddr(host nmap.Host) (netip.Addr, bool) {
	for _, a := range host.Addresses {
		if a.AddrType != "ipv4" {
			continue
		}
		if addr, err := netip.ParseAddr(a.Addr); err == nil {
			return addr, true
		}
	}
	return netip.Addr{}, false
}

func hostMAC(host nmap.Host) (mac, vendor string) {
	for _, a := range host.Addresses {
		if a.AddrType == "mac" {
			return strings.ToUpper(a.Addr), a.Vendor
		}
	}
	return "", ""
}

func subnetID(p netip.Prefix) string {
	return "subnet-" + sanitizeIP(p.Addr().String()) + "-" + strconv.Itoa(p.Bits())
}

func parseSubnetID(id string) (netip.Prefix, bool) {
	rest, ok := strings.CutPrefix(id, "subnet-")
	if !ok {
		return netip.Prefix{}, false
	}
	i := strings.LastIndex(rest, "-")
	if i < 0 {
		return netip.Prefix{}, false
	}
	p, err := netaddr.Parse(strings.ReplaceAll(rest[:i], "-", ".") + "/" + rest[i+1:])
	return p, err == nil
}

func ipID(addr netip.Addr) string {
	return "ip-" + sanitizeIP(addr.String())
}

func parseIPID(id string) (netip.Addr, bool) {
	rest, ok := strings.CutPrefix(id, "ip-")
	if !ok {
		return netip.Addr{}, false
	}
	addr, err := netip.ParseAddr(strings.ReplaceAll(rest, "-", "."))
	return addr, err == nil && addr.Is4()
}

// sanitizeIP converts an IP address to a valid node ID
func sanitizeIP(ip string) string {
	if parsed, err := netip.ParseAddr(ip); err == nil {
		ip = parsed.String()
	}
	return strings.ReplaceAll(ip, ".", "-")
}

// expandTargets normalizes CIDR and single address targets
func expandTargets(targets []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(targets))
	for _, target := range targets {
		p, err := netaddr.Parse(target)
		if err != nil {
			return nil, fmt.Errorf("invalid target %s: %w", target, err)
		}
		if !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, netaddr.Compare)
	return out, nil
}

// parsePorts validates a port range string in nmap format
func parsePorts(portRange string) (string, error) {
	// Supported: "80,443,8080" or "1-1000" or "22,80-443,8080"
	parts := strings.Split(portRange, ",")
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if strings.Contains(part, "-") {
			rangeParts := strings.Split(part, "-")
			if len(rangeParts) != 2 {
				return "", fmt.Errorf("invalid port range: %s", part)
			}
			start, err := strconv.Atoi(strings.TrimSpace(rangeParts[0]))
			if err != nil || start < 1 || start > 65535 {
				return "", fmt.Errorf("invalid port number: %s", rangeParts[0])
			}
			end, err := strconv.Atoi(strings.TrimSpace(rangeParts[1]))
			if err != nil || end < 1 || end > 65535 || end < start {
				return "", fmt.Errorf("invalid port number: %s", rangeParts[1])
			}
		} else {
			port, err := strconv.Atoi(part)
			if err != nil || port < 1 || port > 65535 {
				return "", fmt.Errorf("invalid port number: %s", part)
			}
		}
	}
	return portRange, nil
}
