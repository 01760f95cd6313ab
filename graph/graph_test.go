package graph

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func l2(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return 1.0 / (1.0 + math.Sqrt(sum))
}

// lineGraph builds nodes at positions 0..n-1 on a line, each pointing at its
// k nearest positions. Fully deterministic.
func lineGraph(n, k int) *Graph[[]float64] {
	g := New(l2)
	for i := 0; i < n; i++ {
		nl := NewNeighborList(k)
		for j := 0; j < n && nl.Len() < k; j++ {
			dist := i - j
			if dist < 0 {
				dist = -dist
			}
			if j == i || dist > k/2+1 {
				continue
			}
			nl.Add(Neighbor{
				ID:         NodeID(fmt.Sprintf("p-%d", j)),
				Similarity: l2([]float64{float64(i)}, []float64{float64(j)}),
			})
		}
		g.Put(NewNode(NodeID(fmt.Sprintf("p-%d", i)), []float64{float64(i)}), nl)
	}
	return g
}

func TestGraphPutGet(t *testing.T) {
	g := New(l2)
	nl := NewNeighborList(2)
	nl.Add(Neighbor{ID: "other", Similarity: 0.5})
	g.Put(NewNode(NodeID("a"), []float64{1}), nl)

	assert.Equal(t, 1, g.Len())
	assert.Same(t, nl, g.Get("a"))
	assert.Nil(t, g.Get("missing"))

	node, ok := g.Node("a")
	require.True(t, ok)
	assert.Equal(t, NodeID("a"), node.ID)
}

func TestGraphSearchFindsNearest(t *testing.T) {
	g := lineGraph(50, 4)
	rng := rand.New(rand.NewSource(42))

	// Generous budget: the walk should land on the true neighborhood of the
	// query point 25.5.
	nl := g.Search([]float64{25.5}, 5, func(o *SearchOptions) {
		o.MaxSimilarities = 500
		o.Expansion = 8
		o.Rand = rng
	})

	require.Equal(t, 5, nl.Len())
	top := nl.At(0)
	assert.Contains(t, []NodeID{"p-25", "p-26"}, top.ID)
}

func TestGraphSearchBudget(t *testing.T) {
	g := lineGraph(50, 4)
	rng := rand.New(rand.NewSource(1))

	nl := g.Search([]float64{10}, 5, func(o *SearchOptions) {
		o.MaxSimilarities = 3
		o.Rand = rng
	})
	// At most budget-many candidates were ever scored.
	assert.LessOrEqual(t, nl.Len(), 3)

	empty := g.Search([]float64{10}, 5, func(o *SearchOptions) {
		o.MaxSimilarities = 0
		o.Rand = rng
	})
	assert.Equal(t, 0, empty.Len())
}

func TestGraphSearchEmptyGraph(t *testing.T) {
	g := New(l2)
	nl := g.Search([]float64{1}, 5, func(o *SearchOptions) {
		o.MaxSimilarities = 100
	})
	assert.Equal(t, 0, nl.Len())
}

func TestGraphSearchSkipsForeignNeighbors(t *testing.T) {
	// One node whose entire neighbor list lives in another partition.
	g := New(l2)
	nl := NewNeighborList(2)
	nl.Add(Neighbor{ID: "elsewhere-1", Similarity: 0.9})
	nl.Add(Neighbor{ID: "elsewhere-2", Similarity: 0.8})
	g.Put(NewNode(NodeID("local"), []float64{0}), nl)

	result := g.Search([]float64{0}, 3, func(o *SearchOptions) {
		o.MaxSimilarities = 100
	})

	// Only the local node can be scored; foreign IDs are skipped, not errors.
	require.Equal(t, 1, result.Len())
	assert.Equal(t, NodeID("local"), result.At(0).ID)
}

func TestFindNeighbors(t *testing.T) {
	// a -> b -> c -> d chain.
	g := New(l2)
	ids := []NodeID{"a", "b", "c", "d"}
	for i, id := range ids {
		nl := NewNeighborList(1)
		if i+1 < len(ids) {
			nl.Add(Neighbor{ID: ids[i+1], Similarity: 0.5})
		}
		g.Put(NewNode(id, []float64{float64(i)}), nl)
	}

	found := g.FindNeighbors([]NodeID{"a"}, 2)
	assert.ElementsMatch(t, []NodeID{"b", "c"}, found)

	// Starts are excluded, even when reachable from another start.
	found = g.FindNeighbors([]NodeID{"a", "b"}, 3)
	assert.ElementsMatch(t, []NodeID{"c", "d"}, found)

	// Unknown starts contribute nothing.
	assert.Empty(t, g.FindNeighbors([]NodeID{"zz"}, 3))
}

func TestGraphRemove(t *testing.T) {
	g := lineGraph(5, 2)
	require.True(t, g.Remove("p-3"))
	assert.False(t, g.Remove("p-3"))
	assert.Equal(t, 4, g.Len())
	assert.NotContains(t, g.IDs(), NodeID("p-3"))
}
