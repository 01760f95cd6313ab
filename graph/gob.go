package graph

import (
	"bytes"
	"encoding/gob"
)

type graphWire[T any] struct {
	Nodes     []Node[T]
	Neighbors []*NeighborList
}

// GobEncode serializes the graph as its (node, neighbor list) entries in
// insertion order. The similarity function does not travel; callers rebind it
// after decoding with BindSimilarity.
func (g *Graph[T]) GobEncode() ([]byte, error) {
	wire := graphWire[T]{
		Nodes:     make([]Node[T], 0, len(g.entries)),
		Neighbors: make([]*NeighborList, 0, len(g.entries)),
	}
	for _, id := range g.order {
		e, ok := g.entries[id]
		if !ok {
			continue
		}
		wire.Nodes = append(wire.Nodes, e.node)
		wire.Neighbors = append(wire.Neighbors, e.nl)
	}

	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(wire)
	return buf.Bytes(), err
}

// GobDecode rebuilds the graph entries. The similarity function is nil until
// rebound.
func (g *Graph[T]) GobDecode(data []byte) error {
	var wire graphWire[T]
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&wire); err != nil {
		return err
	}

	g.entries = make(map[NodeID]*entry[T], len(wire.Nodes))
	g.order = nil
	g.nextOrd = 0
	for i, node := range wire.Nodes {
		g.Put(node, wire.Neighbors[i])
	}
	return nil
}

// BindSimilarity sets the similarity after deserialization.
func (g *Graph[T]) BindSimilarity(sim func(a, b T) float64) {
	g.sim = sim
}
