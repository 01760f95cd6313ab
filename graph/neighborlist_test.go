package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNeighborListAdd(t *testing.T) {
	nl := NewNeighborList(3)

	assert.True(t, nl.Add(Neighbor{ID: "a", Similarity: 0.5}))
	assert.True(t, nl.Add(Neighbor{ID: "b", Similarity: 0.9}))
	assert.True(t, nl.Add(Neighbor{ID: "c", Similarity: 0.1}))
	assert.Equal(t, 3, nl.Len())

	// Full: weaker and equal-to-weakest candidates are rejected.
	assert.False(t, nl.Add(Neighbor{ID: "d", Similarity: 0.05}))
	assert.False(t, nl.Add(Neighbor{ID: "e", Similarity: 0.1}))

	// Stronger candidate evicts the weakest.
	assert.True(t, nl.Add(Neighbor{ID: "f", Similarity: 0.7}))
	assert.Equal(t, 3, nl.Len())
	assert.False(t, nl.Contains("c"))
	assert.True(t, nl.Contains("f"))
}

func TestNeighborListDedupe(t *testing.T) {
	nl := NewNeighborList(5)

	assert.True(t, nl.Add(Neighbor{ID: "a", Similarity: 0.4}))

	// Same node again: max similarity wins, no duplicate entry.
	assert.False(t, nl.Add(Neighbor{ID: "a", Similarity: 0.2}))
	assert.True(t, nl.Add(Neighbor{ID: "a", Similarity: 0.6}))
	assert.Equal(t, 1, nl.Len())
	assert.Equal(t, 0.6, nl.At(0).Similarity)
}

func TestNeighborListOrdering(t *testing.T) {
	nl := NewNeighborList(4)
	nl.Add(Neighbor{ID: "c", Similarity: 0.5})
	nl.Add(Neighbor{ID: "a", Similarity: 0.5})
	nl.Add(Neighbor{ID: "b", Similarity: 0.9})
	nl.Add(Neighbor{ID: "d", Similarity: 0.1})

	// Descending similarity, ties broken by ID ascending.
	var ids []NodeID
	for n := range nl.All() {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []NodeID{"b", "a", "c", "d"}, ids)
}

func TestNeighborListTieEviction(t *testing.T) {
	nl := NewNeighborList(2)
	nl.Add(Neighbor{ID: "a", Similarity: 0.5})
	nl.Add(Neighbor{ID: "b", Similarity: 0.5})

	// Among equal similarities, the greatest ID is the weakest entry.
	assert.True(t, nl.Add(Neighbor{ID: "c", Similarity: 0.8}))
	assert.True(t, nl.Contains("a"))
	assert.False(t, nl.Contains("b"))
}

func TestNeighborListAddAll(t *testing.T) {
	a := NewNeighborList(3)
	a.Add(Neighbor{ID: "x", Similarity: 0.3})

	b := NewNeighborList(3)
	b.Add(Neighbor{ID: "x", Similarity: 0.5})
	b.Add(Neighbor{ID: "y", Similarity: 0.8})

	assert.Equal(t, 2, a.AddAll(b))
	assert.Equal(t, 2, a.Len())
	assert.Equal(t, 0.5, a.At(1).Similarity)

	// Idempotent under the same input.
	assert.Equal(t, 0, a.AddAll(b))
}

func TestNeighborListRemove(t *testing.T) {
	nl := NewNeighborList(3)
	nl.Add(Neighbor{ID: "a", Similarity: 0.5})
	nl.Add(Neighbor{ID: "b", Similarity: 0.7})

	assert.True(t, nl.Remove("a"))
	assert.False(t, nl.Remove("a"))
	assert.Equal(t, 1, nl.Len())
	assert.False(t, nl.Contains("a"))
}

func TestNeighborListGobRoundTrip(t *testing.T) {
	nl := NewNeighborList(3)
	nl.Add(Neighbor{ID: "a", Similarity: 0.5})
	nl.Add(Neighbor{ID: "b", Similarity: 0.7})

	data, err := nl.GobEncode()
	require.NoError(t, err)

	decoded := &NeighborList{}
	require.NoError(t, decoded.GobDecode(data))
	assert.True(t, nl.Equal(decoded))

	// The decoded list keeps its capacity semantics.
	decoded.Add(Neighbor{ID: "c", Similarity: 0.9})
	decoded.Add(Neighbor{ID: "d", Similarity: 0.8})
	assert.Equal(t, 3, decoded.Len())
}
