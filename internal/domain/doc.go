// Package domain defines the core types of the virtual network mirror.
//
// This package contains the entities exchanged between the graph database
// adapters, the mirror that holds the locally expanded subset of the topology,
// and the HTTP wire format rendered by the browser client.
//
// # Core Types
//
// Node is a vertex of the topology graph. Its Kind is a closed enumeration
// (organization unit, subnet, IP, domain name, network node, host, software
// version, network service, vulnerability, CVE and the synthetic compound).
// Optional attributes are explicit: Details is nil when absent and Parent is
// only set on nodes grouped under a compound.
//
// Edge is a typed relation between two nodes. Its ID is derived from its
// endpoints as "source-target".
//
// Element is the wire envelope {"data": {...}} carrying either a node or an
// edge. Identifiers in incoming elements may be JSON strings or numbers.
//
// # Expansion Bookkeeping
//
// ExpansionRecord lists the element references added when a seed node was
// expanded, together with the seed's previous severity value. Snapshot bundles
// nodes, edges and the outstanding records in expansion order.
//
// # Severity
//
// SeverityFor buckets a CVE score into NONE, LOW, MEDIUM, HIGH or CRITICAL.
// Scores outside [0, 10] are unclassified.
package domain
