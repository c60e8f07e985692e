package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"virtnet/internal/domain"
	"virtnet/internal/mirror"
)

// DefaultSourceTimeout bounds a single neighbor source call
const DefaultSourceTimeout = 30 * time.Second

// NeighborSource is an external graph the mirror is expanded from.
type NeighborSource interface {
	Name() string
	// Neighbors returns the neighborhood of a seed, including the seed.
	Neighbors(ctx context.Context, seedID string, kind domain.NodeKind) (*domain.GraphFragment, error)
	// Initial returns the elements shown before anything is expanded.
	Initial(ctx context.Context) (*domain.GraphFragment, error)
}

// NetworkService owns the mirror and its expansion bookkeeping.
//
// Mutations (expand, collapse, populate, restore, reset) are serialized by
// writeMu, which is held across the source call. stateMu guards the mirror
// and tracker; writers take it only while applying a change so reads can
// proceed while a source query is in flight.
type NetworkService struct {
	writeMu sync.Mutex
	stateMu sync.RWMutex

	mirror  *mirror.Mirror
	tracker *Tracker

	source   NeighborSource
	eventBus *EventBus
	timeout  time.Duration
	logger   *zap.Logger
}

// NewNetworkService creates a network service around an empty mirror
func NewNetworkService(source NeighborSource, eventBus *EventBus, logger *zap.Logger) *NetworkService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NetworkService{
		mirror:   mirror.New(),
		tracker:  NewTracker(),
		source:   source,
		eventBus: eventBus,
		timeout:  DefaultSourceTimeout,
		logger:   logger.Named("network"),
	}
}

// SetTimeout changes the bound applied to source calls
func (s *NetworkService) SetTimeout(d time.Duration) {
	if d > 0 {
		s.timeout = d
	}
}

// SetSource swaps the neighbor source used by later operations
func (s *NetworkService) SetSource(source NeighborSource) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.source = source
}

// Elements returns the mirror in wire form
func (s *NetworkService) Elements() []domain.Element {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.mirror.Elements()
}

// Snapshot returns a copy of the mirror and outstanding expansion records
func (s *NetworkService) Snapshot() domain.Snapshot {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.snapshotLocked()
}

func (s *NetworkService) snapshotLocked() domain.Snapshot {
	snap := s.mirror.Snapshot()
	snap.Expansions = s.tracker.Records()
	return snap
}

// Expansions returns the outstanding expansion records, oldest first
func (s *NetworkService) Expansions() []domain.ExpansionRecord {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.tracker.Records()
}

// Stats returns the node count, edge count and outstanding seed count
func (s *NetworkService) Stats() (nodes, edges, seeds int) {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	nodes, edges = s.mirror.Len()
	return nodes, edges, s.tracker.Len()
}

// Restore loads a persisted snapshot. Records whose seed is missing from
// the snapshot are dropped along with edges naming unknown nodes.
func (s *NetworkService) Restore(snap *domain.Snapshot) {
	if snap == nil {
		return
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.stateMu.Lock()
	skipped := s.mirror.Restore(*snap)
	records := make([]domain.ExpansionRecord, 0, len(snap.Expansions))
	for _, r := range snap.Expansions {
		if !s.mirror.HasNode(r.Seed) {
			s.logger.Warn("dropping expansion record of unknown seed", zap.String("seed", r.Seed))
			continue
		}
		records = append(records, r)
	}
	s.tracker.Restore(records)
	current := s.snapshotLocked()
	nodes, edges := s.mirror.Len()
	s.stateMu.Unlock()

	for _, e := range skipped {
		s.logger.Warn("skipping dangling edge in snapshot",
			zap.String("source", e.Source), zap.String("target", e.Target))
	}
	s.logger.Info("restored virtual network",
		zap.Int("nodes", nodes), zap.Int("edges", edges), zap.Int("expansions", len(records)))

	s.eventBus.Publish(Event{Type: EventRestored, Dropped: len(skipped), Snapshot: &current})
}

// Reset empties the mirror and forgets every expansion
func (s *NetworkService) Reset() {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.stateMu.Lock()
	s.mirror.Clear()
	s.tracker.Clear()
	s.stateMu.Unlock()

	s.logger.Info("virtual network reset")
	s.eventBus.Publish(Event{Type: EventReset, Snapshot: &domain.Snapshot{}})
}

// PopulateResult summarizes an initial population
type PopulateResult struct {
	Nodes   int `json:"nodes"`
	Edges   int `json:"edges"`
	Dropped int `json:"dropped,omitempty"`
}

// Populate merges the source's initial elements into the mirror. They are
// not recorded under any seed.
func (s *NetworkService) Populate(ctx context.Context) (*PopulateResult, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	frag, err := s.query(ctx, "initial", func(ctx context.Context) (*domain.GraphFragment, error) {
		return s.source.Initial(ctx)
	})
	if err != nil {
		s.eventBus.Publish(Event{Type: EventAdapterFailed, Kind: "initial", Err: err})
		return nil, err
	}

	s.stateMu.Lock()
	added, dropped := s.merge(frag, nil)
	current := s.snapshotLocked()
	s.stateMu.Unlock()

	res := &PopulateResult{Dropped: dropped}
	for _, el := range added {
		if el.IsEdge() {
			res.Edges++
		} else {
			res.Nodes++
		}
	}
	s.logger.Info("populated virtual network",
		zap.Int("nodes", res.Nodes), zap.Int("edges", res.Edges), zap.Int("dropped", dropped))

	s.eventBus.Publish(Event{
		Type:     EventPopulated,
		Elements: added,
		Dropped:  dropped,
		Snapshot: &current,
	})
	return res, nil
}

// query runs fn under the source timeout and wraps failures.
func (s *NetworkService) query(ctx context.Context, op string, fn func(context.Context) (*domain.GraphFragment, error)) (*domain.GraphFragment, error) {
	if s.source == nil {
		return nil, domain.NewAdapterError("none", op, fmt.Errorf("no neighbor source configured"))
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	frag, err := fn(ctx)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		s.logger.Warn("neighbor source failed",
			zap.String("source", s.source.Name()),
			zap.String("op", op),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, domain.NewAdapterError(s.source.Name(), op, err)
	}
	if frag == nil {
		frag = domain.NewGraphFragment()
	}
	s.logger.Debug("neighbor source answered",
		zap.String("source", s.source.Name()),
		zap.String("op", op),
		zap.Int("nodes", len(frag.Nodes)),
		zap.Int("edges", len(frag.Edges)),
		zap.Duration("elapsed", time.Since(start)))
	return frag, nil
}

// merge applies the nodes of frag that are not yet in the mirror, then the
// edges whose endpoints are present. parentOf, when set, assigns a compound
// parent to new nodes. Caller holds stateMu.
func (s *NetworkService) merge(frag *domain.GraphFragment, parentOf func(domain.Node) string) (added []domain.Element, dropped int) {
	for _, n := range frag.Nodes {
		if n.ID == "" || s.mirror.HasNode(n.ID) {
			continue
		}
		if parentOf != nil {
			n.Parent = parentOf(n)
		}
		s.mirror.UpsertNode(n)
		added = append(added, domain.NodeElement(n))
	}
	for _, e := range frag.Edges {
		if s.mirror.HasEdge(e.Source, e.Target) {
			continue
		}
		if err := s.mirror.UpsertEdge(e); err != nil {
			dropped++
			s.logger.Warn("dropping edge", zap.Error(err))
			continue
		}
		e.Normalize()
		added = append(added, domain.EdgeElement(e))
	}
	return added, dropped
}
