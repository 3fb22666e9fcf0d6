package vft

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshfs/meshfs/internal/clock"
	"github.com/meshfs/meshfs/internal/provider"
	"github.com/meshfs/meshfs/internal/provider/fakeprovider"
)

const testProviderID provider.ID = "fake"

func newTestSystem(t *testing.T) (*Tree, *Hydrator, *fakeprovider.Provider, *clock.SimulatedClock) {
	t.Helper()
	clk := clock.NewSimulatedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	tree := NewTree([]provider.ID{testProviderID}, clk)
	fp := fakeprovider.New()
	registry := provider.NewRegistry()
	registry.Register(testProviderID, fp)
	return tree, NewHydrator(tree, registry), fp, clk
}

func TestHydratorColdLoad(t *testing.T) {
	tree, hydrator, fp, _ := newTestSystem(t)
	root, _ := tree.LookupName(tree.Root().Inode, string(testProviderID))

	_, err := fp.Create(context.Background(), provider.Root(), "a.txt", false)
	require.NoError(t, err)
	_, err = fp.Create(context.Background(), provider.Root(), "sub", true)
	require.NoError(t, err)

	children, err := hydrator.GetChildren(context.Background(), root)
	require.NoError(t, err)
	assert.Len(t, children, 2)

	state, _ := root.ContentState()
	assert.Equal(t, DeepReady, state)
	assert.Equal(t, 1, fp.ReadDirectoryCallCount())
}

func TestHydratorServesCacheWithinTTL(t *testing.T) {
	tree, hydrator, fp, _ := newTestSystem(t)
	root, _ := tree.LookupName(tree.Root().Inode, string(testProviderID))

	_, err := fp.Create(context.Background(), provider.Root(), "a.txt", false)
	require.NoError(t, err)

	_, err = hydrator.GetChildren(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 1, fp.ReadDirectoryCallCount())

	_, err = hydrator.GetChildren(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 1, fp.ReadDirectoryCallCount(), "a DeepReady, unexpired directory must not re-hit the provider")
}

func TestHydratorRefreshesAfterTTLExpiry(t *testing.T) {
	tree, hydrator, fp, clk := newTestSystem(t)
	root, _ := tree.LookupName(tree.Root().Inode, string(testProviderID))

	_, err := fp.Create(context.Background(), provider.Root(), "a.txt", false)
	require.NoError(t, err)

	_, err = hydrator.GetChildren(context.Background(), root)
	require.NoError(t, err)
	require.Equal(t, 1, fp.ReadDirectoryCallCount())

	clk.AdvanceTime(ChildTTL + time.Millisecond)

	_, err = fp.Create(context.Background(), provider.Root(), "b.txt", false)
	require.NoError(t, err)

	children, err := hydrator.GetChildren(context.Background(), root)
	require.NoError(t, err)
	assert.Len(t, children, 2)
	assert.Equal(t, 2, fp.ReadDirectoryCallCount())
}

func TestHydratorRefreshEvictsRemovedEntries(t *testing.T) {
	tree, hydrator, fp, clk := newTestSystem(t)
	root, _ := tree.LookupName(tree.Root().Inode, string(testProviderID))

	id, err := fp.Create(context.Background(), provider.Root(), "gone.txt", false)
	require.NoError(t, err)

	children, err := hydrator.GetChildren(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, children, 1)

	clk.AdvanceTime(ChildTTL + time.Millisecond)
	require.NoError(t, fp.Delete(context.Background(), id))

	children, err = hydrator.GetChildren(context.Background(), root)
	require.NoError(t, err)
	assert.Len(t, children, 0)

	_, ok := tree.LookupName(root.Inode, "gone.txt")
	assert.False(t, ok, "an evicted child must be gone from the tree indices too")
}

func TestHydratorRefreshRetainsUnchangedNodeIdentity(t *testing.T) {
	tree, hydrator, fp, clk := newTestSystem(t)
	root, _ := tree.LookupName(tree.Root().Inode, string(testProviderID))

	_, err := fp.Create(context.Background(), provider.Root(), "stable.txt", false)
	require.NoError(t, err)

	before, err := hydrator.GetChildren(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, before, 1)

	clk.AdvanceTime(ChildTTL + time.Millisecond)

	after, err := hydrator.GetChildren(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, before[0].Inode, after[0].Inode, "refresh must keep the same inode for an entry the provider still returns")
}

func TestHydratorConcurrentGetChildrenSingleFlights(t *testing.T) {
	tree, hydrator, fp, _ := newTestSystem(t)
	root, _ := tree.LookupName(tree.Root().Inode, string(testProviderID))
	fp.ReadDirectoryDelay = 50 * time.Millisecond

	_, err := fp.Create(context.Background(), provider.Root(), "a.txt", false)
	require.NoError(t, err)

	const goroutines = 8
	var wg sync.WaitGroup
	errs := make([]error, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = hydrator.GetChildren(context.Background(), root)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, fp.ReadDirectoryCallCount(), "concurrent callers on a cold directory must coalesce into one provider call")
}
