package dataset

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hypergraphs/knng/graph"
	"github.com/hypergraphs/knng/similarity"
)

func TestBuilderValidation(t *testing.T) {
	_, err := NewBuilder(0, 3).Build()
	assert.Error(t, err)

	_, err = NewBuilder(3, 0).Build()
	assert.Error(t, err)

	_, err = NewBuilder(3, 3).Size(-1).Build()
	assert.Error(t, err)
}

func TestBuilderShape(t *testing.T) {
	nodes, err := NewBuilder(10, 13).Overlap(OverlapHigh).Size(500).Seed(7).Build()
	require.NoError(t, err)
	require.Len(t, nodes, 500)

	ids := make(map[graph.NodeID]bool, len(nodes))
	for _, n := range nodes {
		assert.Len(t, n.Value, 13)
		assert.Equal(t, graph.PartitionUnset, n.Partition)
		assert.False(t, ids[n.ID], "duplicate id %s", n.ID)
		ids[n.ID] = true
	}
}

func TestBuilderSeedReproducesValues(t *testing.T) {
	a, err := NewBuilder(5, 4).Size(50).Seed(11).Build()
	require.NoError(t, err)
	b, err := NewBuilder(5, 4).Size(50).Seed(11).Build()
	require.NoError(t, err)

	require.Len(t, b, len(a))
	for i := range a {
		assert.Equal(t, a[i].Value, b[i].Value)
	}
}

func TestBuilderOverlapControlsSpread(t *testing.T) {
	low, err := NewBuilder(4, 3).Overlap(OverlapLow).Size(400).Seed(3).Build()
	require.NoError(t, err)
	high, err := NewBuilder(4, 3).Overlap(OverlapHigh).Size(400).Seed(3).Build()
	require.NoError(t, err)

	// With low overlap, a point's nearest other point is much more similar
	// on average than with high overlap.
	avgNearest := func(nodes []graph.Node[[]float64]) float64 {
		var sum float64
		for i, n := range nodes {
			best := 0.0
			for j, m := range nodes {
				if i == j {
					continue
				}
				if s := similarity.L2(n.Value, m.Value); s > best {
					best = s
				}
			}
			sum += best
		}
		return sum / float64(len(nodes))
	}

	assert.Greater(t, avgNearest(low), avgNearest(high))
}

func TestReadLines(t *testing.T) {
	input := "buy cheap watches\n\nurgent business proposal\nfinal notice\n"
	nodes, err := ReadLines(strings.NewReader(input))
	require.NoError(t, err)

	require.Len(t, nodes, 4)
	assert.Equal(t, graph.NodeID("0"), nodes[0].ID)
	assert.Equal(t, "buy cheap watches", nodes[0].Value)
	assert.Equal(t, "", nodes[1].Value, "empty lines keep numbering aligned")
	assert.Equal(t, graph.NodeID("3"), nodes[3].ID)
}

func TestReadLinesFileMissing(t *testing.T) {
	_, err := ReadLinesFile("does-not-exist.txt")
	assert.Error(t, err)
}
