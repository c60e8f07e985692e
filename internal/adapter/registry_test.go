package adapter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"virtnet/internal/domain"
	"virtnet/internal/service"
)

var _ service.NeighborSource = (*Registry)(nil)

type stubSource struct {
	name     string
	startErr error
	started  bool
	stopped  bool
	reloads  int
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Start(ctx context.Context) error {
	if s.startErr != nil {
		return s.startErr
	}
	s.started = true
	return nil
}

func (s *stubSource) Stop(ctx context.Context) error {
	s.stopped = true
	return nil
}

func (s *stubSource) Neighbors(ctx context.Context, seedID string, kind domain.NodeKind) (*domain.GraphFragment, error) {
	frag := domain.NewGraphFragment()
	frag.AddNode(domain.NewNode(seedID, kind, s.name))
	return frag, nil
}

func (s *stubSource) Initial(ctx context.Context) (*domain.GraphFragment, error) {
	frag := domain.NewGraphFragment()
	frag.AddNode(domain.NewNode("org-"+s.name, domain.KindOrganizationUnit, s.name))
	return frag, nil
}

func (s *stubSource) Reload() error {
	s.reloads++
	return nil
}

func TestRegistryDelegatesToActive(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(nil)
	first := &stubSource{name: "first"}
	second := &stubSource{name: "second"}

	require.NoError(t, reg.Register(first))
	require.NoError(t, reg.Register(second))
	assert.Error(t, reg.Register(&stubSource{name: "first"}))
	assert.Equal(t, []string{"first", "second"}, reg.Names())
	assert.Equal(t, "first", reg.Name())

	_, err := reg.Initial(ctx)
	assert.Error(t, err, "sources are not started yet")

	require.NoError(t, reg.Start(ctx))
	assert.True(t, first.started)
	assert.True(t, second.started)

	frag, err := reg.Neighbors(ctx, "7", domain.KindIP)
	require.NoError(t, err)
	assert.Equal(t, "first", frag.Nodes[0].Label)

	require.NoError(t, reg.Use("second"))
	frag, err = reg.Initial(ctx)
	require.NoError(t, err)
	assert.Equal(t, "org-second", frag.Nodes[0].ID)
	assert.Error(t, reg.Use("missing"))

	require.NoError(t, reg.Reload())
	assert.Equal(t, 1, second.reloads)

	src, ok := reg.Get("first")
	require.True(t, ok)
	assert.Same(t, first, src)

	require.NoError(t, reg.Stop(ctx))
	assert.True(t, first.stopped)
	assert.True(t, second.stopped)
}

func TestRegistryStartFailures(t *testing.T) {
	ctx := context.Background()

	reg := NewRegistry(nil)
	require.NoError(t, reg.Register(&stubSource{name: "active"}))
	require.NoError(t, reg.Register(&stubSource{name: "broken", startErr: errors.New("refused")}))
	assert.NoError(t, reg.Start(ctx), "only the active source must start")

	reg = NewRegistry(nil)
	require.NoError(t, reg.Register(&stubSource{name: "broken", startErr: errors.New("refused")}))
	err := reg.Start(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refused")

	_, err = NewRegistry(nil).Neighbors(ctx, "1", domain.KindIP)
	assert.Error(t, err)
}
