package graph

import (
	"iter"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hypergraphs/knng/similarity"
)

type entry[T any] struct {
	node Node[T]
	nl   *NeighborList
	ord  uint32
}

// Graph is one partition of the distributed k-NN graph: a map from node ID to
// (node, neighbor list) plus the similarity used to score edges.
//
// Every node gets a small ordinal when it is first put into the graph.
// Traversals use Roaring bitmaps over these ordinals as visited sets instead
// of allocating a map per walk.
type Graph[T any] struct {
	sim     similarity.Func[T]
	entries map[NodeID]*entry[T]
	order   []NodeID // insertion order, used for deterministic sampling
	nextOrd uint32
}

// New creates an empty graph bound to the given similarity.
func New[T any](sim similarity.Func[T]) *Graph[T] {
	return &Graph[T]{
		sim:     sim,
		entries: make(map[NodeID]*entry[T]),
	}
}

// Similarity returns the similarity the graph was built with.
func (g *Graph[T]) Similarity() similarity.Func[T] { return g.sim }

// Len returns the number of nodes in this graph.
func (g *Graph[T]) Len() int { return len(g.entries) }

// Put inserts or replaces the neighbor list of a node.
func (g *Graph[T]) Put(node Node[T], nl *NeighborList) {
	if e, ok := g.entries[node.ID]; ok {
		e.node = node
		e.nl = nl
		return
	}
	g.entries[node.ID] = &entry[T]{node: node, nl: nl, ord: g.nextOrd}
	g.order = append(g.order, node.ID)
	g.nextOrd++
}

// Get returns the neighbor list of a node, or nil when the node is not part
// of this graph (it may live in another partition).
func (g *Graph[T]) Get(id NodeID) *NeighborList {
	e, ok := g.entries[id]
	if !ok {
		return nil
	}
	return e.nl
}

// Node returns the node stored under id.
func (g *Graph[T]) Node(id NodeID) (Node[T], bool) {
	e, ok := g.entries[id]
	if !ok {
		var zero Node[T]
		return zero, false
	}
	return e.node, true
}

// Contains reports whether the node is part of this graph.
func (g *Graph[T]) Contains(id NodeID) bool {
	_, ok := g.entries[id]
	return ok
}

// Remove deletes a node entry. Edges pointing at the removed node are left in
// place; callers repair them (see the online remove path).
func (g *Graph[T]) Remove(id NodeID) bool {
	if _, ok := g.entries[id]; !ok {
		return false
	}
	delete(g.entries, id)
	return true
}

// Nodes iterates all nodes of the graph in unspecified order.
func (g *Graph[T]) Nodes() iter.Seq[Node[T]] {
	return func(yield func(Node[T]) bool) {
		for _, e := range g.entries {
			if !yield(e.node) {
				return
			}
		}
	}
}

// Entries iterates all (node, neighbor list) pairs in unspecified order.
func (g *Graph[T]) Entries() iter.Seq2[Node[T], *NeighborList] {
	return func(yield func(Node[T], *NeighborList) bool) {
		for _, e := range g.entries {
			if !yield(e.node, e.nl) {
				return
			}
		}
	}
}

// IDs returns the node IDs in insertion order. The order is deterministic,
// which sampling and medoid selection rely on.
func (g *Graph[T]) IDs() []NodeID {
	ids := make([]NodeID, 0, len(g.entries))
	for _, id := range g.order {
		if _, ok := g.entries[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// FindNeighbors expands a BFS frontier from the starting nodes and returns
// every node reached within depth edges, excluding the starts themselves.
// Starts that do not belong to this graph contribute nothing; neighbor IDs
// pointing outside the graph are skipped.
func (g *Graph[T]) FindNeighbors(starts []NodeID, depth int) []NodeID {
	visited := roaring.New()
	var found []NodeID

	frontier := make([]*entry[T], 0, len(starts))
	for _, id := range starts {
		if e, ok := g.entries[id]; ok && !visited.Contains(e.ord) {
			visited.Add(e.ord)
			frontier = append(frontier, e)
		}
	}

	for d := 0; d < depth && len(frontier) > 0; d++ {
		var next []*entry[T]
		for _, e := range frontier {
			for nb := range e.nl.All() {
				t, ok := g.entries[nb.ID]
				if !ok || visited.Contains(t.ord) {
					continue
				}
				visited.Add(t.ord)
				found = append(found, t.node.ID)
				next = append(next, t)
			}
		}
		frontier = next
	}
	return found
}
