package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"virtnet/internal/domain"
)

// ExpandResult summarizes an expansion
type ExpandResult struct {
	Seed            string          `json:"seed"`
	Kind            domain.NodeKind `json:"kind"`
	Nodes           int             `json:"nodes"`
	Edges           int             `json:"edges"`
	Dropped         int             `json:"dropped,omitempty"`
	Value           domain.Severity `json:"value,omitempty"`
	AlreadyExpanded bool            `json:"alreadyExpanded,omitempty"`
}

// Message renders the result for the HTTP response
func (r *ExpandResult) Message() string {
	if r.AlreadyExpanded {
		return fmt.Sprintf("Node %s is already expanded", r.Seed)
	}
	return fmt.Sprintf("Expanded %s %s: %d nodes and %d edges added", r.Kind, r.Seed, r.Nodes, r.Edges)
}

// Expand fetches the neighborhood of a seed and merges what is new into the
// mirror. On a source failure nothing is changed. Expanding an outstanding
// seed is a no-op.
func (s *NetworkService) Expand(ctx context.Context, seedID string, kind domain.NodeKind) (*ExpandResult, error) {
	seedID = strings.TrimSpace(seedID)
	if seedID == "" {
		return nil, fmt.Errorf("%w: empty id", domain.ErrInvalidSeed)
	}
	if !kind.Expandable() {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotExpandable, kind)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.stateMu.RLock()
	outstanding := s.tracker.IsOutstanding(seedID)
	s.stateMu.RUnlock()
	if outstanding {
		return &ExpandResult{Seed: seedID, Kind: kind, AlreadyExpanded: true}, nil
	}

	frag, err := s.query(ctx, "expand", func(ctx context.Context) (*domain.GraphFragment, error) {
		return s.source.Neighbors(ctx, seedID, kind)
	})
	if err != nil {
		s.eventBus.Publish(Event{Type: EventAdapterFailed, Seed: seedID, Kind: string(kind), Err: err})
		return nil, err
	}

	s.stateMu.Lock()
	res, added := s.applyExpansion(seedID, kind, frag)
	current := s.snapshotLocked()
	s.stateMu.Unlock()

	s.logger.Info("expanded node",
		zap.String("seed", seedID),
		zap.String("kind", string(kind)),
		zap.Int("nodes", res.Nodes),
		zap.Int("edges", res.Edges),
		zap.String("value", string(res.Value)))

	s.eventBus.Publish(Event{
		Type:     EventExpanded,
		Seed:     seedID,
		Kind:     string(kind),
		Elements: added,
		Dropped:  res.Dropped,
		Snapshot: &current,
	})
	return res, nil
}

// applyExpansion merges frag for seed and records the result. Caller holds
// stateMu.
func (s *NetworkService) applyExpansion(seedID string, kind domain.NodeKind, frag *domain.GraphFragment) (*ExpandResult, []domain.Element) {
	res := &ExpandResult{Seed: seedID, Kind: kind}

	var fresh []domain.Node
	for _, n := range frag.Nodes {
		if n.ID != seedID && !s.mirror.HasNode(n.ID) {
			fresh = append(fresh, n)
		}
	}

	batch := &domain.GraphFragment{Edges: frag.Edges}
	var parentOf func(domain.Node) string

	if kind == domain.KindIP {
		primary := domain.CompoundID(seedID)
		batch.Nodes = append(batch.Nodes, domain.NewCompound(primary, "Compound Node for "+seedID, ""))

		vuln := ""
		if hasKind(fresh, domain.KindVulnerability) && hasKind(fresh, domain.KindCVE) {
			vuln = domain.VulnerabilityCompoundID(seedID)
			batch.Nodes = append(batch.Nodes, domain.NewCompound(vuln, "Vulnerability Compound for "+seedID, primary))
		}

		parentOf = func(n domain.Node) string {
			switch {
			case n.ID == seedID || n.IsCompound():
				return n.Parent
			case vuln != "" && n.Kind.VulnerabilityRelated():
				return vuln
			}
			return primary
		}
	}

	value, scored := maxSeverity(frag.Nodes)
	var prior domain.Severity
	if seed, ok := s.mirror.Node(seedID); ok {
		prior = seed.Value
		if scored {
			s.mirror.SetNodeValue(seedID, value)
		}
	}

	for _, n := range frag.Nodes {
		if n.ID == seedID && scored {
			n.Value = value
		}
		batch.Nodes = append(batch.Nodes, n)
	}

	added, dropped := s.merge(batch, parentOf)

	refs := make([]domain.ElementRef, 0, len(added))
	for _, el := range added {
		refs = append(refs, el.Ref())
		if el.IsEdge() {
			res.Edges++
		} else {
			res.Nodes++
		}
	}
	s.tracker.Push(seedID, refs, prior)

	res.Dropped = dropped
	if scored {
		res.Value = value
	}
	return res, added
}

func hasKind(nodes []domain.Node, kind domain.NodeKind) bool {
	for _, n := range nodes {
		if n.Kind == kind {
			return true
		}
	}
	return false
}

// maxSeverity buckets the highest numeric CVE score among nodes.
func maxSeverity(nodes []domain.Node) (domain.Severity, bool) {
	best, found := 0.0, false
	for _, n := range nodes {
		if n.Kind != domain.KindCVE {
			continue
		}
		score, ok := n.Score()
		if !ok {
			continue
		}
		if !found || score > best {
			best, found = score, true
		}
	}
	if !found {
		return "", false
	}
	return domain.SeverityFor(best)
}
