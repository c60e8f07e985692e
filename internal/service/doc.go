// Package service implements the expand and collapse engines of the virtual
// network.
//
// NetworkService owns the mirror and the expansion tracker. It queries a
// NeighborSource for the neighborhood of a seed node, groups the new
// neighbors of IP seeds under compound nodes, attaches the CVE severity to
// the seed and records everything it added so a later collapse can remove
// it again.
//
// # Collapse Policy
//
// Expansions form a stack. Collapsing the most recent seed removes only its
// own elements. Collapsing any other seed first tears down every outstanding
// seed found among its elements, innermost first, using an explicit work
// list.
//
// # Event System
//
// Every operation publishes an Event on the EventBus. Handlers run
// synchronously while the mutation lock is held; PersistOnChange saves the
// snapshot carried by mutating events and the metrics package counts them.
package service
