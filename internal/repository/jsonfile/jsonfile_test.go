package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"virtnet/internal/domain"
	"virtnet/internal/repository"
)

var _ repository.SnapshotStore = (*Store)(nil)

func sampleSnapshot() *domain.Snapshot {
	ip := domain.NewNode("10", domain.KindIP, "10.0.0.1")
	ip.Value = domain.SeverityHigh
	cve := domain.NewNode("23", domain.KindCVE, "RCE")
	cve.Details = domain.NumberDetails(7.5)
	cve.Parent = domain.VulnerabilityCompoundID("10")
	return &domain.Snapshot{
		Nodes: []domain.Node{ip, domain.NewCompound(domain.CompoundID("10"), "10.0.0.1", ""), cve},
		Edges: []domain.Edge{domain.NewEdge("10", "23", "HAS")},
		Expansions: []domain.ExpansionRecord{{
			Seed:     "10",
			Elements: []domain.ElementRef{domain.NodeRef("23"), domain.EdgeRef(domain.NewEdge("10", "23", "HAS"))},
		}},
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "snapshot.json")
	store := New(path)

	snap, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap, "missing file loads as nothing")

	want := sampleSnapshot()
	require.NoError(t, store.Save(ctx, want))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files are left behind")

	require.NoError(t, store.Delete(ctx))
	require.NoError(t, store.Delete(ctx))
	snap, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestStoreEmptyAndCorruptFiles(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snapshot.json")
	store := New(path)

	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o644))
	snap, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap)

	require.NoError(t, os.WriteFile(path, []byte("{nodes"), 0o644))
	_, err = store.Load(ctx)
	assert.Error(t, err)
}

func TestStoreSaveHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := New(filepath.Join(t.TempDir(), "snapshot.json"))
	assert.ErrorIs(t, store.Save(ctx, sampleSnapshot()), context.Canceled)
}
