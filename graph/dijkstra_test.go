package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDijkstraChain(t *testing.T) {
	g := directed(map[NodeID][]NodeID{
		"a": {"b"},
		"b": {"c"},
		"c": {"d"},
		"d": {},
	})

	d := NewDijkstra(g, "a")

	dist, ok := d.Distance("d")
	require.True(t, ok)
	assert.Equal(t, 3, dist)
	assert.Equal(t, 3, d.LargestDistance())

	dist, ok = d.Distance("a")
	require.True(t, ok)
	assert.Equal(t, 0, dist)
}

func TestDijkstraUnreachable(t *testing.T) {
	g := directed(map[NodeID][]NodeID{
		"a": {"b"},
		"b": {},
		"c": {"a"},
	})

	d := NewDijkstra(g, "a")
	_, ok := d.Distance("c")
	assert.False(t, ok)
	assert.Equal(t, 1, d.LargestDistance())
}

func TestDijkstraIsolated(t *testing.T) {
	g := directed(map[NodeID][]NodeID{
		"a": {},
		"b": {},
	})

	d := NewDijkstra(g, "a")
	assert.Equal(t, 0, d.LargestDistance())
}

func TestDijkstraMissingSource(t *testing.T) {
	g := directed(map[NodeID][]NodeID{"a": {}})

	d := NewDijkstra(g, "zz")
	assert.Equal(t, 0, d.LargestDistance())
	_, ok := d.Distance("a")
	assert.False(t, ok)
}

func TestDijkstraEccentricityCenter(t *testing.T) {
	// Ring of 5: every node has eccentricity 4 when edges point one way.
	g := directed(map[NodeID][]NodeID{
		"a": {"b"},
		"b": {"c"},
		"c": {"d"},
		"d": {"e"},
		"e": {"a"},
	})

	for _, id := range g.IDs() {
		assert.Equal(t, 4, NewDijkstra(g, id).LargestDistance())
	}
}
