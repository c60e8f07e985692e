// Package treemap builds the CIDR containment hierarchy rendered as an
// address-space treemap.
//
// # Algorithm
//
// The universe of subnets between the supernet suffix and /31 is generated and
// merged with the caller's entries; anything the caller did not supply is
// labelled reserved. Entries are sorted by prefix length then address and each
// one is inserted under the most specific existing node that contains it.
// Finally, unused address space is padded with Free placeholders so every row
// of the rendering is populated.
//
// Build is pure and safe for concurrent use.
package treemap

import (
	"fmt"
	"net/netip"
	"slices"
	"strconv"

	"virtnet/internal/netaddr"
)

const (
	// MinSupernetBits is the widest supernet accepted. A /16 already yields
	// roughly 65k universe candidates.
	MinSupernetBits = 16
	// LeafBits is the finest prefix generated for the universe. Hosts (/32)
	// only appear when supplied by the caller.
	LeafBits = 31
)

// Node is one range in the hierarchy.
type Node struct {
	CIDR       string  `json:"cidr" yaml:"cidr"`
	Label      Label   `json:"label" yaml:"label"`
	Vulnerable bool    `json:"vulnerable" yaml:"vulnerable"`
	Free       bool    `json:"free,omitempty" yaml:"free,omitempty"`
	Children   []*Node `json:"children" yaml:"children,omitempty"`

	prefix netip.Prefix
}

// Prefix returns the parsed range of the node.
func (n *Node) Prefix() netip.Prefix {
	return n.prefix
}

// Result is the builder output: the tree and its row headings.
type Result struct {
	Treemap      *Node    `json:"treemap" yaml:"treemap"`
	CIDRSuffixes []string `json:"cidrSuffixes" yaml:"cidrSuffixes"`
}

type candidate struct {
	prefix     netip.Prefix
	label      Label
	vulnerable bool
}

// Build constructs the hierarchy rooted at supernet.
func Build(supernet string, entries map[string]Entry) (*Result, error) {
	root, err := netaddr.Parse(supernet)
	if err != nil {
		return nil, fmt.Errorf("supernet: %w", err)
	}
	if root.Bits() < MinSupernetBits {
		return nil, fmt.Errorf("%w: supernet %s is wider than /%d", netaddr.ErrInvalidCIDR, root, MinSupernetBits)
	}

	set := make(map[netip.Prefix]candidate, len(entries))
	for key, e := range entries {
		raw := e.Value
		if raw == "" {
			raw = key
		}
		p, err := netaddr.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", key, err)
		}
		if !netaddr.Contains(p, root) {
			continue
		}
		merge(set, candidate{prefix: p, label: e.Label, vulnerable: e.Vulnerable})
	}

	suffixes := make([]string, 0, netaddr.HostBits-root.Bits())
	for bits := root.Bits(); bits <= LeafBits; bits++ {
		subs, err := netaddr.Subnets(root, bits)
		if err != nil {
			return nil, err
		}
		for _, p := range subs {
			if _, ok := set[p]; !ok {
				set[p] = candidate{prefix: p, label: LabelReserved}
			}
		}
		suffixes = append(suffixes, strconv.Itoa(bits))
	}

	top := newNode(root, LabelReserved, false)
	if c, ok := set[root]; ok {
		top.Label = c.label
		top.Vulnerable = c.vulnerable
		delete(set, root)
	}

	sorted := make([]candidate, 0, len(set))
	for _, c := range set {
		sorted = append(sorted, c)
	}
	slices.SortFunc(sorted, func(a, b candidate) int {
		return netaddr.Compare(a.prefix, b.prefix)
	})

	for _, c := range sorted {
		insert(top, newNode(c.prefix, c.label, c.vulnerable))
	}

	fillHalves(top)
	pad(top)
	sortChildren(top)

	return &Result{Treemap: top, CIDRSuffixes: suffixes}, nil
}

func newNode(p netip.Prefix, label Label, vulnerable bool) *Node {
	return &Node{
		CIDR:       p.String(),
		Label:      label,
		Vulnerable: vulnerable,
		Children:   []*Node{},
		prefix:     p,
	}
}

func newFree(p netip.Prefix) *Node {
	n := newNode(p, LabelReserved, false)
	n.Free = true
	return n
}

// merge folds duplicate prefixes: existing beats reserved, vulnerability is sticky.
func merge(set map[netip.Prefix]candidate, c candidate) {
	prev, ok := set[c.prefix]
	if !ok {
		set[c.prefix] = c
		return
	}
	if prev.label == LabelExisting {
		c.label = LabelExisting
	}
	c.vulnerable = c.vulnerable || prev.vulnerable
	set[c.prefix] = c
}

// insert descends from root to the most specific containing node. Among
// containing siblings the longest prefix wins, then the lowest address.
func insert(root, child *Node) {
	cur := root
	for {
		var best *Node
		for _, c := range cur.Children {
			if !netaddr.StrictlyContains(child.prefix, c.prefix) {
				continue
			}
			if best == nil ||
				c.prefix.Bits() > best.prefix.Bits() ||
				(c.prefix.Bits() == best.prefix.Bits() && netaddr.Compare(c.prefix, best.prefix) < 0) {
				best = c
			}
		}
		if best == nil {
			cur.Children = append(cur.Children, child)
			return
		}
		cur = best
	}
}

// fillHalves completes nodes whose children are direct halves but only one
// half was supplied, e.g. a /31 holding a single /32 host.
func fillHalves(root *Node) {
	stack := []*Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		stack = append(stack, n.Children...)

		if len(n.Children) != 1 || n.Children[0].prefix.Bits() != n.prefix.Bits()+1 {
			continue
		}
		lo, hi, ok := netaddr.Halves(n.prefix)
		if !ok {
			continue
		}
		missing := lo
		if n.Children[0].prefix == lo {
			missing = hi
		}
		n.Children = append(n.Children, newFree(missing))
	}
}

type frame struct {
	node  *Node
	depth int
}

// Depth returns the number of levels below n.
func Depth(n *Node) int {
	deepest := 0
	stack := []frame{{n, 0}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.depth > deepest {
			deepest = f.depth
		}
		for _, c := range f.node.Children {
			stack = append(stack, frame{c, f.depth + 1})
		}
	}
	return deepest
}

// pad gives every leaf shallower than the deepest one a chain of Free
// placeholders down to the maximum depth.
func pad(root *Node) {
	maxDepth := Depth(root)
	stack := []frame{{root, 0}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if len(f.node.Children) > 0 {
			for _, c := range f.node.Children {
				stack = append(stack, frame{c, f.depth + 1})
			}
			continue
		}

		cur := f.node
		for depth := f.depth; depth < maxDepth; depth++ {
			lo, _, ok := netaddr.Halves(cur.prefix)
			if !ok {
				break
			}
			free := newFree(lo)
			cur.Children = append(cur.Children, free)
			cur = free
		}
	}
}

func sortChildren(root *Node) {
	stack := []*Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		slices.SortFunc(n.Children, func(a, b *Node) int {
			return netaddr.Compare(a.prefix, b.prefix)
		})
		stack = append(stack, n.Children...)
	}
}

// Walk visits every node depth-first with its parent (nil for the root).
func Walk(root *Node, fn func(n, parent *Node)) {
	type item struct{ n, parent *Node }
	stack := []item{{root, nil}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		fn(it.n, it.parent)
		for i := len(it.n.Children) - 1; i >= 0; i-- {
			stack = append(stack, item{it.n.Children[i], it.n})
		}
	}
}
