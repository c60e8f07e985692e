package adapter

import (
	"context"
	"errors"
	"net/netip"
	"testing"
	"time"

	nmap "github.com/Ullaakut/nmap/v3"

	"virtnet/internal/domain"
)

func newTestNmapSource(t *testing.T, result *nmap.Run, scanErr error, opts ...NmapOption) *NmapSource {
	t.Helper()
	src, err := NewNmapSource([]string{"192.168.1.0/24", "10.0.0.5"}, nil, opts...)
	if err != nil {
		t.Fatalf("NewNmapSource failed: %v", err)
	}
	src.scan = func(ctx context.Context, opts ...nmap.Option) (*nmap.Run, error) {
		return result, scanErr
	}
	src.running = true
	return src
}

func TestNmapSource_Options(t *testing.T) {
	tests := []struct {
		name        string
		opts        []NmapOption
		wantPorts   string
		wantService bool
		wantTimeout time.Duration
	}{
		{
			name:        "defaults",
			wantPorts:   "22,25,53,80,443,445,3389,5432,5900,6443,8080,8443,9090,9100",
			wantService: true,
			wantTimeout: 10 * time.Minute,
		},
		{
			name:        "custom port range",
			opts:        []NmapOption{WithPortRange("80,443,8080")},
			wantPorts:   "80,443,8080",
			wantService: true,
			wantTimeout: 10 * time.Minute,
		},
		{
			name:        "invalid port range is ignored",
			opts:        []NmapOption{WithPortRange("0-99999")},
			wantPorts:   "22,25,53,80,443,445,3389,5432,5900,6443,8080,8443,9090,9100",
			wantService: true,
			wantTimeout: 10 * time.Minute,
		},
		{
			name:        "fast scan",
			opts:        []NmapOption{WithFastScan()},
			wantPorts:   "22,80,443",
			wantService: false,
			wantTimeout: 5 * time.Minute,
		},
		{
			name:        "top ports with timeout",
			opts:        []NmapOption{WithTopPorts(10), WithTimeout(time.Minute)},
			wantPorts:   "21,22,23,25,80,110,139,443,445,3389",
			wantService: true,
			wantTimeout: time.Minute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := NewNmapSource([]string{"192.168.1.1"}, nil, tt.opts...)
			if err != nil {
				t.Fatalf("NewNmapSource failed: %v", err)
			}
			if src.portRange != tt.wantPorts {
				t.Errorf("expected ports %q, got %q", tt.wantPorts, src.portRange)
			}
			if src.serviceDetection != tt.wantService {
				t.Errorf("expected service detection %v, got %v", tt.wantService, src.serviceDetection)
			}
			if src.timeout != tt.wantTimeout {
				t.Errorf("expected timeout %v, got %v", tt.wantTimeout, src.timeout)
			}
		})
	}

	src, _ := NewNmapSource(nil, nil, WithAggressiveScan(), WithSkipHostDiscovery(true))
	if !src.osDetection || !src.skipHostDiscovery || src.portRange != "1-65535" {
		t.Errorf("aggressive scan not applied: %+v", src)
	}
	if got := len(src.serviceOptions("10.0.0.1")); got != 5 {
		t.Errorf("expected 5 scan options, got %d", got)
	}
}

func TestNmapSource_InvalidTarget(t *testing.T) {
	if _, err := NewNmapSource([]string{"not-a-cidr"}, nil); err == nil {
		t.Error("expected error for invalid target")
	}
}

func TestNmapSource_InitialAndOrgUnit(t *testing.T) {
	src := newTestNmapSource(t, nil, nil)

	frag, err := src.Initial(context.Background())
	if err != nil {
		t.Fatalf("Initial failed: %v", err)
	}
	if len(frag.Nodes) != 1 || frag.Nodes[0].ID != NmapOrgID {
		t.Fatalf("expected the nmap org unit, got %+v", frag.Nodes)
	}
	want := []string{"192.168.1.0/24", "10.0.0.5/32"}
	if got := frag.Nodes[0].Hosts; len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("expected hosts %v, got %v", want, got)
	}

	frag, err = src.Neighbors(context.Background(), NmapOrgID, domain.KindOrganizationUnit)
	if err != nil {
		t.Fatalf("Neighbors failed: %v", err)
	}
	if len(frag.Nodes) != 3 || len(frag.Edges) != 2 {
		t.Fatalf("expected org plus two subnets, got %d nodes %d edges", len(frag.Nodes), len(frag.Edges))
	}
	if frag.Nodes[1].ID != "subnet-192-168-1-0-24" {
		t.Errorf("unexpected subnet id %s", frag.Nodes[1].ID)
	}
}

func TestNmapSource_PingScan(t *testing.T) {
	result := &nmap.Run{
		Hosts: []nmap.Host{
			{Addresses: []nmap.Address{{Addr: "192.168.1.20", AddrType: "ipv4"}}, Status: nmap.Status{State: "up"}},
			{Addresses: []nmap.Address{{Addr: "192.168.1.3", AddrType: "ipv4"}}, Status: nmap.Status{State: "up"}},
			{Addresses: []nmap.Address{{Addr: "192.168.1.4", AddrType: "ipv4"}}, Status: nmap.Status{State: "down"}},
			{Addresses: []nmap.Address{{Addr: "172.16.0.1", AddrType: "ipv4"}}, Status: nmap.Status{State: "up"}},
		},
	}
	src := newTestNmapSource(t, result, nil)

	frag, err := src.Neighbors(context.Background(), "subnet-192-168-1-0-24", domain.KindSubnet)
	if err != nil {
		t.Fatalf("Neighbors failed: %v", err)
	}
	if len(frag.Nodes) != 3 {
		t.Fatalf("expected subnet plus two live hosts, got %d", len(frag.Nodes))
	}
	if frag.Nodes[1].Label != "192.168.1.3" || frag.Nodes[2].Label != "192.168.1.20" {
		t.Errorf("addresses not in numeric order: %s, %s", frag.Nodes[1].Label, frag.Nodes[2].Label)
	}
	if frag.Edges[0].Source != "subnet-192-168-1-0-24" || frag.Edges[0].Target != "ip-192-168-1-3" {
		t.Errorf("unexpected edge %+v", frag.Edges[0])
	}

	if _, err := src.Neighbors(context.Background(), "10.0.0.0/24", domain.KindSubnet); !errors.Is(err, domain.ErrInvalidSeed) {
		t.Errorf("expected ErrInvalidSeed, got %v", err)
	}
}

func TestNmapSource_ServiceScan(t *testing.T) {
	result := &nmap.Run{
		Hosts: []nmap.Host{
			{
				Addresses: []nmap.Address{
					{Addr: "192.168.1.100", AddrType: "ipv4"},
					{Addr: "aa:bb:cc:dd:ee:ff", AddrType: "mac", Vendor: "Test Vendor"},
				},
				Hostnames: []nmap.Hostname{{Name: "testhost.local", Type: "PTR"}},
				Status:    nmap.Status{State: "up"},
				Ports: []nmap.Port{
					{
						ID:       22,
						Protocol: "tcp",
						State:    nmap.State{State: "open"},
						Service:  nmap.Service{Name: "ssh", Product: "OpenSSH", Version: "8.9p1"},
					},
					{
						ID:       9100,
						Protocol: "tcp",
						State:    nmap.State{State: "open"},
					},
					{
						ID:       443,
						Protocol: "tcp",
						State:    nmap.State{State: "closed"},
					},
				},
				OS: nmap.OS{Matches: []nmap.OSMatch{{Name: "Linux 5.4", Accuracy: 95}}},
			},
		},
	}
	src := newTestNmapSource(t, result, nil)

	frag, err := src.Neighbors(context.Background(), "ip-192-168-1-100", domain.KindIP)
	if err != nil {
		t.Fatalf("Neighbors failed: %v", err)
	}

	byID := make(map[string]domain.Node)
	for _, n := range frag.Nodes {
		byID[n.ID] = n
	}

	expected := map[string]domain.NodeKind{
		"ip-192-168-1-100":           domain.KindIP,
		"host-192-168-1-100":         domain.KindHost,
		"dns-testhost.local":         domain.KindDomainName,
		"svc-192-168-1-100-22-tcp":   domain.KindNetworkService,
		"sw-192-168-1-100-22-tcp":    domain.KindSoftwareVersion,
		"svc-192-168-1-100-9100-tcp": domain.KindNetworkService,
		"os-192-168-1-100":           domain.KindSoftwareVersion,
	}
	if len(byID) != len(expected) {
		t.Errorf("expected %d nodes, got %d", len(expected), len(byID))
	}
	for id, kind := range expected {
		n, ok := byID[id]
		if !ok {
			t.Errorf("missing node %s", id)
			continue
		}
		if n.Kind != kind {
			t.Errorf("node %s: expected kind %s, got %s", id, kind, n.Kind)
		}
	}

	if got := byID["svc-192-168-1-100-9100-tcp"].Details.String(); got != "node-exporter" {
		t.Errorf("expected well-known service name, got %q", got)
	}
	if got := byID["sw-192-168-1-100-22-tcp"].Label; got != "OpenSSH 8.9p1" {
		t.Errorf("expected software label, got %q", got)
	}
	if got := byID["host-192-168-1-100"].Details.String(); got != "AA:BB:CC:DD:EE:FF Test Vendor" {
		t.Errorf("expected mac details, got %q", got)
	}
	if got := byID["os-192-168-1-100"].Details.String(); got != "os 95%" {
		t.Errorf("expected os accuracy, got %q", got)
	}
}

func TestNmapSource_ScanFailure(t *testing.T) {
	src := newTestNmapSource(t, nil, errors.New("exit status 1"))
	if _, err := src.Neighbors(context.Background(), "ip-10-0-0-5", domain.KindIP); err == nil {
		t.Error("expected scan error")
	}

	src.running = false
	if _, err := src.Neighbors(context.Background(), "subnet-10-0-0-5-32", domain.KindSubnet); err == nil {
		t.Error("expected error when not running")
	}

	if _, err := src.Neighbors(context.Background(), "x", domain.KindCVE); !errors.Is(err, domain.ErrNotExpandable) {
		t.Errorf("expected ErrNotExpandable, got %v", err)
	}
}

func TestParsePorts(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"80", false},
		{"80,443,8080", false},
		{"1-1000", false},
		{"22,80-443,8080", false},
		{"0", true},
		{"65536", true},
		{"100-50", true},
		{"1-2-3", true},
		{"http", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := parsePorts(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("parsePorts(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestNodeIDs(t *testing.T) {
	p := netip.MustParsePrefix("10.1.2.0/24")
	if got, ok := parseSubnetID(subnetID(p)); !ok || got != p {
		t.Errorf("subnet id did not round trip: %v %v", got, ok)
	}
	a := netip.MustParseAddr("10.1.2.3")
	if got, ok := parseIPID(ipID(a)); !ok || got != a {
		t.Errorf("ip id did not round trip: %v %v", got, ok)
	}
	if _, ok := parseIPID("host-10-1-2-3"); ok {
		t.Error("expected host id to be rejected")
	}
	if got := sanitizeIP("192.168.001.1"); got != "192-168-001-1" {
		t.Errorf("unexpected sanitized value %q", got)
	}
}
