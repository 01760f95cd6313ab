// Package distgraph defines how a k-NN graph lives on the partitioned
// substrate: as an edge table (a collection of (node, neighbor list) tuples)
// or as one local subgraph per shard, with transforms between the two views
// and snapshot persistence of the edge table.
package distgraph

import (
	"context"
	"encoding/gob"
	"io"

	"github.com/hypergraphs/knng/graph"
	"github.com/hypergraphs/knng/pcoll"
	"github.com/hypergraphs/knng/persistence"
	"github.com/hypergraphs/knng/similarity"
)

// Tuple is one row of the edge-table view.
type Tuple[T any] struct {
	Node      graph.Node[T]
	Neighbors *graph.NeighborList
}

// ToSubgraphs converts the edge table into one local graph per shard, bound
// to the given similarity. After the partitioner has run, shard p holds
// exactly the nodes whose partition attribute is p.
func ToSubgraphs[T any](edge *pcoll.Collection[Tuple[T]], sim similarity.Func[T]) *pcoll.Collection[*graph.Graph[T]] {
	return pcoll.MapPartitions(edge, func(_ int, tuples []Tuple[T]) ([]*graph.Graph[T], error) {
		g := graph.New(sim)
		for _, t := range tuples {
			g.Put(t.Node, t.Neighbors)
		}
		return []*graph.Graph[T]{g}, nil
	})
}

// ToEdgeTable flattens per-shard subgraphs back into the edge-table view.
// The two transforms are inverses up to ordering within a partition.
func ToEdgeTable[T any](subgraphs *pcoll.Collection[*graph.Graph[T]]) *pcoll.Collection[Tuple[T]] {
	return pcoll.FlatMap(subgraphs, func(g *graph.Graph[T]) []Tuple[T] {
		tuples := make([]Tuple[T], 0, g.Len())
		for node, nl := range g.Entries() {
			tuples = append(tuples, Tuple[T]{Node: node, Neighbors: nl})
		}
		return tuples
	})
}

// PartitionSizes counts the nodes held by each shard of the subgraph view.
func PartitionSizes[T any](ctx context.Context, subgraphs *pcoll.Collection[*graph.Graph[T]]) ([]int64, error) {
	counts := pcoll.MapPartitions(subgraphs, func(_ int, gs []*graph.Graph[T]) ([]int64, error) {
		var n int64
		for _, g := range gs {
			n += int64(g.Len())
		}
		return []int64{n}, nil
	})
	return counts.Collect(ctx)
}

// Save writes the edge table as a snapshot: partition count, then each
// partition's tuples, behind the persistence framing.
func Save[T any](ctx context.Context, edge *pcoll.Collection[Tuple[T]], w io.Writer, compression persistence.Compression) error {
	// Snapshot writing is a driver-side barrier, so collecting per-partition
	// slices here is the normal collect cost.
	parts := make([][]Tuple[T], edge.NumPartitions())
	collected := pcoll.MapPartitions(edge, func(p int, tuples []Tuple[T]) ([]int, error) {
		parts[p] = tuples
		return nil, nil
	})
	if _, err := collected.Collect(ctx); err != nil {
		return err
	}

	return persistence.Write(w, compression, func(pw io.Writer) error {
		return gob.NewEncoder(pw).Encode(parts)
	})
}

// Load reads a snapshot written by Save into a new edge-table collection on
// the given substrate context.
func Load[T any](pctx *pcoll.Context, r io.Reader) (*pcoll.Collection[Tuple[T]], error) {
	var parts [][]Tuple[T]
	if err := persistence.Read(r, func(pr io.Reader) error {
		return gob.NewDecoder(pr).Decode(&parts)
	}); err != nil {
		return nil, err
	}
	return pcoll.FromSlices(pctx, parts), nil
}
