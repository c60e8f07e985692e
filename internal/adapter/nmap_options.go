package adapter

import "time"

// NmapOption is a functional option for configuring NmapSource
type NmapOption func(*NmapSource)

// WithTimeout bounds a single scan
func WithTimeout(d time.Duration) NmapOption {
	return func(n *NmapSource) {
		if d > 0 {
			n.timeout = d
		}
	}
}

// WithPortRange sets the ports to scan
// Format: "80,443,8080" or "1-1000" or "22,80-443,8080"
func WithPortRange(ports string) NmapOption {
	return func(n *NmapSource) {
		if validated, err := parsePorts(ports); err == nil {
			n.portRange = validated
		}
	}
}

// WithServiceDetection enables or disables service version detection (-sV)
func WithServiceDetection(enabled bool) NmapOption {
	return func(n *NmapSource) {
		n.serviceDetection = enabled
	}
}

// WithOSDetection enables or disables OS detection (-O)
// Note: OS detection requires root privileges
func WithOSDetection(enabled bool) NmapOption {
	return func(n *NmapSource) {
		n.osDetection = enabled
	}
}

// WithSkipHostDiscovery sets whether to skip ping and treat all hosts as online (-Pn)
func WithSkipHostDiscovery(skip bool) NmapOption {
	return func(n *NmapSource) {
		n.skipHostDiscovery = skip
	}
}

// WithTopPorts configures scanning of the N most common ports
func WithTopPorts(count int) NmapOption {
	return func(n *NmapSource) {
		switch {
		case count <= 10:
			n.portRange = "21,22,23,25,80,110,139,443,445,3389"
		case count <= 100:
			n.portRange = "21-23,25,53,80,110,111,135,139,143,443,445,993,995,1723,3306,3389,5900,8080"
		default:
			n.portRange = "1-1024"
		}
	}
}

// WithFastScan enables fast scan mode (fewer ports, quicker results)
func WithFastScan() NmapOption {
	return func(n *NmapSource) {
		n.portRange = "22,80,443"
		n.serviceDetection = false
		n.timeout = 5 * time.Minute
	}
}

// WithAggressiveScan scans every port with service and OS detection
func WithAggressiveScan() NmapOption {
	return func(n *NmapSource) {
		n.portRange = "1-65535"
		n.serviceDetection = true
		n.osDetection = true
		n.timeout = 30 * time.Minute
	}
}
