// Package builder constructs distributed k-NN graphs from plain node
// collections. Brute is the exact O(N^2) baseline; the online graph keeps a
// built graph current under insertions and removals.
package builder

import (
	"context"
	"errors"

	"github.com/hypergraphs/knng/distgraph"
	"github.com/hypergraphs/knng/graph"
	"github.com/hypergraphs/knng/pcoll"
	"github.com/hypergraphs/knng/similarity"
)

// Configuration errors, reported at construction time.
var (
	ErrInvalidK      = errors.New("builder: k must be positive")
	ErrNilSimilarity = errors.New("builder: similarity must not be nil")
)

// Brute builds the exact k-NN graph by scoring every pair of nodes. Each
// shard scores its own nodes against the full node set, so the work is
// O(N^2 / P) per shard and trivially parallel.
type Brute[T any] struct {
	k   int
	sim similarity.Func[T]
}

// NewBrute creates a brute-force graph builder.
func NewBrute[T any](k int, sim similarity.Func[T]) (*Brute[T], error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}
	if sim == nil {
		return nil, ErrNilSimilarity
	}
	return &Brute[T]{k: k, sim: sim}, nil
}

// ComputeGraph builds the edge table: one (node, neighbor list) tuple per
// input node, where the list holds the k most similar other nodes. A node is
// never its own neighbor. With fewer than k+1 nodes, lists come out short.
func (b *Brute[T]) ComputeGraph(ctx context.Context, nodes *pcoll.Collection[graph.Node[T]]) (*pcoll.Collection[distgraph.Tuple[T]], error) {
	all, err := nodes.Collect(ctx)
	if err != nil {
		return nil, err
	}

	edge := pcoll.MapPartitions(nodes, func(_ int, part []graph.Node[T]) ([]distgraph.Tuple[T], error) {
		tuples := make([]distgraph.Tuple[T], len(part))
		for i, node := range part {
			nl := graph.NewNeighborList(b.k)
			for _, other := range all {
				if other.ID == node.ID {
					continue
				}
				nl.Add(graph.Neighbor{ID: other.ID, Similarity: b.sim(node.Value, other.Value)})
			}
			tuples[i] = distgraph.Tuple[T]{Node: node, Neighbors: nl}
		}
		return tuples, nil
	})

	if err := edge.Cache(ctx); err != nil {
		return nil, err
	}
	return edge, nil
}
