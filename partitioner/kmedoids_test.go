package partitioner

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hypergraphs/knng/builder"
	"github.com/hypergraphs/knng/distgraph"
	"github.com/hypergraphs/knng/graph"
	"github.com/hypergraphs/knng/pcoll"
	"github.com/hypergraphs/knng/similarity"
	"github.com/hypergraphs/knng/testutil"
)

func gaussianEdgeTable(t *testing.T, ctx context.Context, pctx *pcoll.Context, n, k, parts int, seed int64) *pcoll.Collection[distgraph.Tuple[[]float64]] {
	t.Helper()

	nodes := testutil.NewRNG(seed).VectorNodes(n, 3)
	brute, err := builder.NewBrute(k, similarity.L2)
	require.NoError(t, err)
	edge, err := brute.ComputeGraph(ctx, pcoll.FromSlice(pctx, nodes, parts))
	require.NoError(t, err)
	return edge
}

func TestNewValidation(t *testing.T) {
	sim := similarity.Func[[]float64](similarity.L2)

	_, err := New(0, sim)
	assert.ErrorIs(t, err, ErrInvalidPartitions)

	_, err = New(2, sim, func(o *Options) { o.Iterations = 0 })
	assert.ErrorIs(t, err, ErrInvalidIterations)

	_, err = New(2, sim, func(o *Options) { o.Imbalance = 0.9 })
	assert.ErrorIs(t, err, ErrInvalidImbalance)

	_, err = New[[]float64](2, nil)
	assert.ErrorIs(t, err, ErrNilSimilarity)
}

func TestPartitionStampsAndShards(t *testing.T) {
	ctx := context.Background()
	pctx := pcoll.NewContext()
	edge := gaussianEdgeTable(t, ctx, pctx, 200, 5, 4, 1)

	p, err := New(4, similarity.L2, func(o *Options) {
		o.Iterations = 2
		o.Rand = rand.New(rand.NewSource(11))
	})
	require.NoError(t, err)

	partitioned, err := p.Partition(ctx, edge)
	require.NoError(t, err)
	require.Equal(t, 4, partitioned.NumPartitions())

	count, err := partitioned.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 200, count)

	// Every node's partition attribute is in [0, P) and matches its shard.
	checks := pcoll.MapPartitions(partitioned, func(shard int, tuples []distgraph.Tuple[[]float64]) ([]error, error) {
		for _, tuple := range tuples {
			if tuple.Node.Partition != shard {
				return nil, fmt.Errorf("node %s: partition %d in shard %d", tuple.Node.ID, tuple.Node.Partition, shard)
			}
		}
		return nil, nil
	})
	_, err = checks.Collect(ctx)
	require.NoError(t, err)

	assert.Len(t, p.Medoids(), 4)
}

func TestAssignmentCapacity(t *testing.T) {
	// One shard of n tuples: after one assignment pass no partition may
	// exceed ceil(alpha * n / P).
	const (
		n     = 120
		parts = 4
		alpha = 1.05
	)

	nodes := testutil.NewRNG(3).VectorNodes(n, 3)
	tuples := make([]distgraph.Tuple[[]float64], n)
	for i, node := range nodes {
		tuples[i] = distgraph.Tuple[[]float64]{Node: node, Neighbors: graph.NewNeighborList(1)}
	}
	medoids := []graph.Node[[]float64]{nodes[0], nodes[1], nodes[2], nodes[3]}

	assigned := assignShard(tuples, medoids, similarity.L2, alpha, parts, rand.New(rand.NewSource(5)))
	require.Len(t, assigned, n)

	counts := make([]int, parts)
	for _, np := range assigned {
		require.GreaterOrEqual(t, np.Partition, 0)
		require.Less(t, np.Partition, parts)
		counts[np.Partition]++
	}

	bound := int(math.Ceil(alpha * float64(n) / float64(parts)))
	for p, c := range counts {
		assert.LessOrEqualf(t, c, bound, "partition %d over capacity", p)
	}
}

func TestAssignmentConstantSimilarityDegeneratesToCapacity(t *testing.T) {
	// All payloads identical: scoring is capacity-only, so the assignment
	// still spreads nodes across partitions instead of collapsing into one.
	const n, parts = 100, 4

	tuples := make([]distgraph.Tuple[[]float64], n)
	for i := range tuples {
		node := graph.NewNode(graph.NodeID(fmt.Sprintf("same-%d", i)), []float64{1, 1})
		tuples[i] = distgraph.Tuple[[]float64]{Node: node, Neighbors: graph.NewNeighborList(1)}
	}
	medoids := []graph.Node[[]float64]{tuples[0].Node, tuples[1].Node, tuples[2].Node, tuples[3].Node}

	assigned := assignShard(tuples, medoids, similarity.L2, 1.05, parts, rand.New(rand.NewSource(9)))

	counts := make([]int, parts)
	for _, np := range assigned {
		counts[np.Partition]++
	}
	bound := int(math.Ceil(1.05 * float64(n) / float64(parts)))
	for _, c := range counts {
		assert.LessOrEqual(t, c, bound)
		assert.Greater(t, c, 0)
	}
}

func TestPartitionDeterministicWithSeed(t *testing.T) {
	ctx := context.Background()

	run := func() map[graph.NodeID]int {
		pctx := pcoll.NewContext()
		edge := gaussianEdgeTable(t, ctx, pctx, 150, 5, 3, 2)
		p, err := New(3, similarity.L2, func(o *Options) {
			o.Iterations = 2
			o.Rand = rand.New(rand.NewSource(77))
		})
		require.NoError(t, err)

		partitioned, err := p.Partition(ctx, edge)
		require.NoError(t, err)
		tuples, err := partitioned.Collect(ctx)
		require.NoError(t, err)

		out := make(map[graph.NodeID]int, len(tuples))
		for _, tuple := range tuples {
			out[tuple.Node.ID] = tuple.Node.Partition
		}
		return out
	}

	assert.Equal(t, run(), run())
}

func TestSinglePartitionDegenerate(t *testing.T) {
	ctx := context.Background()
	pctx := pcoll.NewContext()
	edge := gaussianEdgeTable(t, ctx, pctx, 60, 4, 1, 4)

	p, err := New(1, similarity.L2, func(o *Options) {
		o.Rand = rand.New(rand.NewSource(8))
	})
	require.NoError(t, err)

	partitioned, err := p.Partition(ctx, edge)
	require.NoError(t, err)
	require.Equal(t, 1, partitioned.NumPartitions())

	tuples, err := partitioned.Collect(ctx)
	require.NoError(t, err)
	require.Len(t, tuples, 60)
	for _, tuple := range tuples {
		assert.Equal(t, 0, tuple.Node.Partition)
	}
	assert.Len(t, p.Medoids(), 1)
}

func TestComputeNewMedoidsKeepsPreviousOnEmpty(t *testing.T) {
	ctx := context.Background()
	pctx := pcoll.NewContext()

	p, err := New(2, similarity.L2, func(o *Options) {
		o.Rand = rand.New(rand.NewSource(6))
	})
	require.NoError(t, err)

	previous := graph.NewNode(graph.NodeID("medoid-keep"), []float64{1, 2, 3})
	p.medoids = []graph.Node[[]float64]{previous, previous}

	// Shard 0 has a small cycle, shard 1 is empty.
	g := graph.New(similarity.Func[[]float64](similarity.L2))
	a := graph.NewNode(graph.NodeID("a"), []float64{0, 0, 0})
	b := graph.NewNode(graph.NodeID("b"), []float64{0, 0, 1})
	nlA := graph.NewNeighborList(1)
	nlA.Add(graph.Neighbor{ID: "b", Similarity: 0.5})
	nlB := graph.NewNeighborList(1)
	nlB.Add(graph.Neighbor{ID: "a", Similarity: 0.5})
	g.Put(a, nlA)
	g.Put(b, nlB)

	subgraphs := pcoll.FromSlices(pctx, [][]*graph.Graph[[]float64]{
		{g},
		{graph.New(similarity.Func[[]float64](similarity.L2))},
	})

	require.NoError(t, p.ComputeNewMedoids(ctx, subgraphs))

	medoids := p.Medoids()
	assert.Contains(t, []graph.NodeID{"a", "b"}, medoids[0].ID)
	assert.Equal(t, graph.NodeID("medoid-keep"), medoids[1].ID)
}

func TestMedoidOfPicksCenter(t *testing.T) {
	// Path-ish cycle a<->b<->c: b has eccentricity 1, a and c have 2.
	g := graph.New(similarity.Func[[]float64](similarity.L2))
	put := func(id graph.NodeID, neighbors ...graph.NodeID) {
		nl := graph.NewNeighborList(2)
		for _, nb := range neighbors {
			nl.Add(graph.Neighbor{ID: nb, Similarity: 0.5})
		}
		g.Put(graph.NewNode(id, []float64{0}), nl)
	}
	put("a", "b")
	put("b", "a", "c")
	put("c", "b")

	medoid, ok := medoidOf(g)
	require.True(t, ok)
	assert.Equal(t, graph.NodeID("b"), medoid.ID)
}

func TestMedoidOfEmptyGraph(t *testing.T) {
	_, ok := medoidOf(graph.New(similarity.Func[[]float64](similarity.L2)))
	assert.False(t, ok)
}

func TestAssignRespectsCapacityPressure(t *testing.T) {
	p, err := New(2, similarity.L2, func(o *Options) {
		o.Rand = rand.New(rand.NewSource(2))
	})
	require.NoError(t, err)

	m0 := graph.NewNode(graph.NodeID("m0"), []float64{0, 0})
	m1 := graph.NewNode(graph.NodeID("m1"), []float64{10, 10})
	p.medoids = []graph.Node[[]float64]{m0, m1}

	// The node sits on m0, but m0 is far over capacity: the penalty term
	// must redirect it to m1.
	node := graph.NewNode(graph.NodeID("x"), []float64{0, 0})
	p.Assign(&node, []int64{100, 0})
	assert.Equal(t, 1, node.Partition)

	// With balanced sizes the similar medoid wins.
	node2 := graph.NewNode(graph.NodeID("y"), []float64{0, 0})
	p.Assign(&node2, []int64{10, 10})
	assert.Equal(t, 0, node2.Partition)
}
