package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"virtnet/internal/domain"
)

// CollapseResult summarizes a collapse
type CollapseResult struct {
	Seed      string `json:"seed,omitempty"`
	Recursive bool   `json:"recursive"`
	// Collapsed lists the torn down seeds, innermost first.
	Collapsed []string         `json:"collapsed"`
	Removed   []domain.Element `json:"removed"`
	NotFound  bool             `json:"notFound,omitempty"`
}

// Message renders the result for the HTTP response
func (r *CollapseResult) Message() string {
	switch {
	case r.NotFound && r.Seed != "":
		return fmt.Sprintf("Node %s is not expanded", r.Seed)
	case r.Seed == "":
		return fmt.Sprintf("Removed %d elements", len(r.Removed))
	case r.Recursive:
		return fmt.Sprintf("Collapsed %s and %d nested expansions", r.Seed, len(r.Collapsed)-1)
	}
	return fmt.Sprintf("Collapsed %s", r.Seed)
}

// Collapse removes everything recorded under seedID. When seedID is not the
// most recent expansion, outstanding seeds among its elements are collapsed
// first, innermost first. Collapsing a seed that is not outstanding is a
// no-op.
func (s *NetworkService) Collapse(ctx context.Context, seedID string) (*CollapseResult, error) {
	seedID = strings.TrimSpace(seedID)
	if seedID == "" {
		return nil, fmt.Errorf("%w: empty id", domain.ErrInvalidSeed)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.stateMu.Lock()
	res := s.collapseLocked(seedID)
	current := s.snapshotLocked()
	s.stateMu.Unlock()

	if res.NotFound {
		return res, nil
	}
	s.publishCollapse(res, &current)
	return res, nil
}

// CollapseElements collapses using element descriptors sent by the client.
// The seed is taken from a compound descriptor, then from a descriptor naming
// an outstanding seed itself, else from the outstanding record sharing the
// most elements with the descriptors. With no match the described elements
// are removed directly.
func (s *NetworkService) CollapseElements(ctx context.Context, elems []domain.Element) (*CollapseResult, error) {
	if len(elems) == 0 {
		return nil, fmt.Errorf("%w: no elements to collapse", domain.ErrInvalidSeed)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.stateMu.Lock()
	var res *CollapseResult
	if seed, ok := s.resolveSeed(elems); ok {
		res = s.collapseLocked(seed)
	} else {
		res = s.removeDirect(elems)
	}
	current := s.snapshotLocked()
	s.stateMu.Unlock()

	if len(res.Removed) == 0 && res.NotFound {
		return res, nil
	}
	s.publishCollapse(res, &current)
	return res, nil
}

func (s *NetworkService) publishCollapse(res *CollapseResult, snap *domain.Snapshot) {
	s.logger.Info("collapsed",
		zap.String("seed", res.Seed),
		zap.Bool("recursive", res.Recursive),
		zap.Strings("seeds", res.Collapsed),
		zap.Int("removed", len(res.Removed)))

	s.eventBus.Publish(Event{
		Type:     EventCollapsed,
		Seed:     res.Seed,
		Elements: res.Removed,
		Snapshot: snap,
	})
}

// collapseLocked runs the collapse policy. Caller holds stateMu.
func (s *NetworkService) collapseLocked(seedID string) *CollapseResult {
	res := &CollapseResult{Seed: seedID, Collapsed: []string{}, Removed: []domain.Element{}}
	if !s.tracker.IsOutstanding(seedID) {
		res.NotFound = true
		return res
	}

	top, _ := s.tracker.Top()
	res.Recursive = top != seedID

	order := []string{seedID}
	if res.Recursive {
		order = s.teardownOrder(seedID)
	}

	for _, seed := range order {
		res.Removed = append(res.Removed, s.removeRecord(seed)...)
		res.Collapsed = append(res.Collapsed, seed)
	}
	return res
}

// teardownOrder walks the records under root depth first with an explicit
// stack and returns the outstanding seeds in post order, so every nested
// expansion is torn down before the seed that contains it.
func (s *NetworkService) teardownOrder(root string) []string {
	type frame struct {
		seed string
		done bool
	}

	var order []string
	visited := map[string]bool{}
	stack := []frame{{seed: root}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.done {
			order = append(order, f.seed)
			continue
		}
		if visited[f.seed] {
			continue
		}
		visited[f.seed] = true
		stack = append(stack, frame{seed: f.seed, done: true})

		refs := s.tracker.Refs(f.seed)
		for i := len(refs) - 1; i >= 0; i-- {
			r := refs[i]
			if r.IsEdge() || r.ID == f.seed || visited[r.ID] {
				continue
			}
			if s.tracker.IsOutstanding(r.ID) {
				stack = append(stack, frame{seed: r.ID})
			}
		}
	}
	return order
}

// removeRecord deletes the elements of one record, newest first, along
// with both compounds of the seed, and restores the seed's prior value.
func (s *NetworkService) removeRecord(seed string) []domain.Element {
	rec, ok := s.tracker.Remove(seed)
	if !ok {
		return nil
	}

	var removed []domain.Element
	removeNode := func(id string) {
		n, edges, ok := s.mirror.RemoveNode(id)
		if !ok {
			return
		}
		removed = append(removed, domain.NodeElement(n))
		for _, e := range edges {
			removed = append(removed, domain.EdgeElement(e))
		}
	}

	refs := rec.Elements
	for i := len(refs) - 1; i >= 0; i-- {
		r := refs[i]
		if r.IsEdge() {
			if e, ok := s.mirror.RemoveEdge(r.Source, r.Target); ok {
				removed = append(removed, domain.EdgeElement(e))
			}
			continue
		}
		removeNode(r.ID)
	}
	removeNode(domain.VulnerabilityCompoundID(seed))
	removeNode(domain.CompoundID(seed))

	if s.mirror.HasNode(seed) {
		s.mirror.SetNodeValue(seed, rec.PriorValue)
	}
	return removed
}

// resolveSeed maps collapse descriptors onto an outstanding seed.
func (s *NetworkService) resolveSeed(elems []domain.Element) (string, bool) {
	for _, el := range elems {
		if el.Node == nil {
			continue
		}
		id := el.Node.ID
		for _, prefix := range []string{"vulnerability-compound-", "compound-"} {
			if seed, ok := strings.CutPrefix(id, prefix); ok && s.tracker.IsOutstanding(seed) {
				return seed, true
			}
		}
	}

	// The oldest named seed wins; nested seeds go with it.
	seeds := s.tracker.Seeds()
	for _, seed := range seeds {
		for _, el := range elems {
			if el.Node != nil && el.Node.ID == seed {
				return seed, true
			}
		}
	}

	best, bestScore := "", 0
	slices.Reverse(seeds)
	for _, seed := range seeds {
		score := 0
		for _, el := range elems {
			if s.tracker.Contains(seed, el.Ref()) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = seed, score
		}
	}
	return best, bestScore > 0
}

// removeDirect deletes the described elements. A described node that is
// still an outstanding seed is collapsed before it is removed.
func (s *NetworkService) removeDirect(elems []domain.Element) *CollapseResult {
	res := &CollapseResult{Collapsed: []string{}, Removed: []domain.Element{}}
	for _, el := range elems {
		if el.Node == nil || !s.tracker.IsOutstanding(el.Node.ID) {
			continue
		}
		sub := s.collapseLocked(el.Node.ID)
		res.Collapsed = append(res.Collapsed, sub.Collapsed...)
		res.Removed = append(res.Removed, sub.Removed...)
	}
	for _, el := range elems {
		if el.Edge != nil {
			if e, ok := s.mirror.RemoveEdge(el.Edge.Source, el.Edge.Target); ok {
				res.Removed = append(res.Removed, domain.EdgeElement(e))
			}
		}
	}
	for _, el := range elems {
		if el.Node == nil {
			continue
		}
		n, edges, ok := s.mirror.RemoveNode(el.Node.ID)
		if !ok {
			continue
		}
		res.Removed = append(res.Removed, domain.NodeElement(n))
		for _, e := range edges {
			res.Removed = append(res.Removed, domain.EdgeElement(e))
		}
	}
	res.NotFound = len(res.Removed) == 0
	return res
}
