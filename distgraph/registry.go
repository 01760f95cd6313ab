package distgraph

import (
	"context"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hypergraphs/knng/graph"
	"github.com/hypergraphs/knng/pcoll"
)

// Registry is a driver-side index of every node in the distributed graph. It
// resolves payloads for nodes referenced across partition boundaries, where a
// shard only knows the neighbor's ID. Partition membership is tracked as
// Roaring bitmaps over interned ordinals.
type Registry[T any] struct {
	nodes      map[graph.NodeID]graph.Node[T]
	ords       map[graph.NodeID]uint32
	ids        []graph.NodeID
	partitions map[int]*roaring.Bitmap
}

// BuildRegistry collects the edge table and indexes every node.
func BuildRegistry[T any](ctx context.Context, edge *pcoll.Collection[Tuple[T]]) (*Registry[T], error) {
	tuples, err := edge.Collect(ctx)
	if err != nil {
		return nil, err
	}

	r := &Registry[T]{
		nodes:      make(map[graph.NodeID]graph.Node[T], len(tuples)),
		ords:       make(map[graph.NodeID]uint32, len(tuples)),
		partitions: make(map[int]*roaring.Bitmap),
	}
	for _, t := range tuples {
		r.add(t.Node)
	}
	return r, nil
}

func (r *Registry[T]) add(node graph.Node[T]) {
	ord, ok := r.ords[node.ID]
	if !ok {
		ord = uint32(len(r.ids))
		r.ords[node.ID] = ord
		r.ids = append(r.ids, node.ID)
	}
	r.nodes[node.ID] = node

	if node.Partition != graph.PartitionUnset {
		bm, ok := r.partitions[node.Partition]
		if !ok {
			bm = roaring.New()
			r.partitions[node.Partition] = bm
		}
		bm.Add(ord)
	}
}

// Resolve returns the node stored under id.
func (r *Registry[T]) Resolve(id graph.NodeID) (graph.Node[T], bool) {
	n, ok := r.nodes[id]
	return n, ok
}

// Len returns the number of registered nodes.
func (r *Registry[T]) Len() int { return len(r.nodes) }

// PartitionCount returns the number of nodes assigned to partition p.
func (r *Registry[T]) PartitionCount(p int) int {
	bm, ok := r.partitions[p]
	if !ok {
		return 0
	}
	return int(bm.GetCardinality())
}
