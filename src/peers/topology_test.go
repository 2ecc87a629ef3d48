package peers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseStrategy(t *testing.T) {
	for _, s := range []string{"harness", "mesh", "tree"} {
		strategy, err := ParseStrategy(s)
		require.NoError(t, err)
		require.Equal(t, Strategy(s), strategy)
	}

	strategy, err := ParseStrategy("")
	require.NoError(t, err)
	require.Equal(t, StrategyHarness, strategy)

	_, err = ParseStrategy("grid")
	require.Error(t, err)
}

func TestTopologyInitMesh(t *testing.T) {
	topo := NewTopology(StrategyHarness, 4)
	topo.Init("n1", []string{"n1", "n2", "n3"})

	require.Equal(t, "n1", topo.Self())
	require.Equal(t, []string{"n2", "n3"}, topo.Members().IDs())
	require.Equal(t, []string{"n2", "n3"}, topo.Neighbors().IDs())
	require.False(t, topo.IsNeighbor("n1"))
}

func TestTopologySingleNode(t *testing.T) {
	topo := NewTopology(StrategyHarness, 4)
	topo.Init("n1", []string{"n1"})

	require.Equal(t, 0, topo.Neighbors().Len())
}

func TestTopologySetAdjacency(t *testing.T) {
	topo := NewTopology(StrategyHarness, 4)
	topo.Init("n1", []string{"n1", "n2", "n3", "n4"})

	added, removed := topo.SetAdjacency(map[string][]string{
		"n1": {"n2", "n1"},
		"n2": {"n1", "n3"},
	})
	require.Empty(t, added)
	require.Equal(t, []string{"n3", "n4"}, removed)
	require.Equal(t, []string{"n2"}, topo.Neighbors().IDs())

	added, removed = topo.SetAdjacency(map[string][]string{"n1": {"n2", "n4"}})
	require.Equal(t, []string{"n4"}, added)
	require.Empty(t, removed)

	// a map without an entry for self keeps the previous neighbors
	added, removed = topo.SetAdjacency(map[string][]string{"n2": {"n3"}})
	require.Empty(t, added)
	require.Empty(t, removed)
	require.Equal(t, []string{"n2", "n4"}, topo.Neighbors().IDs())
}

func TestTopologyMeshIgnoresAdjacency(t *testing.T) {
	topo := NewTopology(StrategyMesh, 4)
	topo.Init("n1", []string{"n1", "n2", "n3"})

	added, removed := topo.SetAdjacency(map[string][]string{"n1": {"n2"}})
	require.Empty(t, added)
	require.Empty(t, removed)
	require.Equal(t, []string{"n2", "n3"}, topo.Neighbors().IDs())
}

func TestTopologyTree(t *testing.T) {
	ids := []string{"n0", "n1", "n2", "n3", "n4", "n5", "n6"}

	root := NewTopology(StrategyTree, 2)
	root.Init("n0", ids)
	require.Equal(t, []string{"n1", "n2"}, root.Neighbors().IDs())

	inner := NewTopology(StrategyTree, 2)
	inner.Init("n2", ids)
	require.Equal(t, []string{"n0", "n5", "n6"}, inner.Neighbors().IDs())

	leaf := NewTopology(StrategyTree, 2)
	leaf.Init("n6", ids)
	require.Equal(t, []string{"n2"}, leaf.Neighbors().IDs())
	require.Equal(t, 6, leaf.Members().Len())
}
