// Package adapter implements the neighbor sources the virtual network is
// expanded from.
//
// # Sources
//
// Neo4jSource queries the topology graph database. The relation pattern of
// an expansion depends on the seed kind: organization units reach their
// subnets, subnets reach their addresses, and an address reaches the
// domain name, node, host, software, service and vulnerability chain
// behind it.
//
// FixtureSource serves the same traversal over a YAML or JSON graph file.
// It is used for demos and tests, and is reloaded when the file changes.
//
// NmapSource answers expansions with live scans: a ping scan for a subnet
// and a service scan for an address.
//
// # Registry
//
// Registry holds the configured sources, starts and stops them, and
// forwards Neighbors and Initial to the active one.
package adapter
