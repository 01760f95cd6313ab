package graph

import (
	"bytes"
	"encoding/gob"
	"iter"
	"slices"
)

// Neighbor is one edge of the k-NN graph: the target node and the similarity
// between the owner of the list and that node.
type Neighbor struct {
	ID         NodeID
	Similarity float64
}

// compareNeighbors orders by similarity descending, ties by ID ascending so
// that iteration order is deterministic under reshuffles.
func compareNeighbors(a, b Neighbor) int {
	switch {
	case a.Similarity > b.Similarity:
		return -1
	case a.Similarity < b.Similarity:
		return 1
	default:
		return bytes.Compare([]byte(a.ID), []byte(b.ID))
	}
}

// NeighborList is a bounded top-k list of neighbors, unique by node ID and
// sorted by descending similarity. The backing array never grows beyond k.
type NeighborList struct {
	k     int
	items []Neighbor
}

// NewNeighborList creates an empty list with capacity k. k must be positive.
func NewNeighborList(k int) *NeighborList {
	if k <= 0 {
		panic("graph: neighbor list capacity must be positive")
	}
	return &NeighborList{k: k, items: make([]Neighbor, 0, k)}
}

// K returns the capacity of the list.
func (nl *NeighborList) K() int { return nl.k }

// Len returns the number of neighbors currently in the list.
func (nl *NeighborList) Len() int { return len(nl.items) }

// At returns the i-th neighbor in descending similarity order.
func (nl *NeighborList) At(i int) Neighbor { return nl.items[i] }

// Contains reports whether the list holds a neighbor with the given ID.
func (nl *NeighborList) Contains(id NodeID) bool {
	return nl.indexOf(id) >= 0
}

func (nl *NeighborList) indexOf(id NodeID) int {
	for i, n := range nl.items {
		if n.ID == id {
			return i
		}
	}
	return -1
}

// Add inserts a neighbor. If a neighbor with the same ID is already present,
// the higher similarity wins. If the list is full, the insertion succeeds only
// when the new similarity strictly exceeds the weakest entry, which is then
// evicted. Returns true when the list was modified.
func (nl *NeighborList) Add(n Neighbor) bool {
	if i := nl.indexOf(n.ID); i >= 0 {
		if n.Similarity <= nl.items[i].Similarity {
			return false
		}
		nl.items = slices.Delete(nl.items, i, i+1)
		nl.insert(n)
		return true
	}

	if len(nl.items) < nl.k {
		nl.insert(n)
		return true
	}

	// Full: strict > against the weakest entry, otherwise reject.
	if n.Similarity <= nl.items[len(nl.items)-1].Similarity {
		return false
	}
	nl.items = nl.items[:len(nl.items)-1]
	nl.insert(n)
	return true
}

func (nl *NeighborList) insert(n Neighbor) {
	i, _ := slices.BinarySearchFunc(nl.items, n, compareNeighbors)
	nl.items = slices.Insert(nl.items, i, n)
}

// AddAll merges every neighbor of other into this list under the Add rule.
// Returns the number of successful insertions.
func (nl *NeighborList) AddAll(other *NeighborList) int {
	if other == nil {
		return 0
	}
	added := 0
	for _, n := range other.items {
		if nl.Add(n) {
			added++
		}
	}
	return added
}

// Remove deletes the neighbor with the given ID, if present.
func (nl *NeighborList) Remove(id NodeID) bool {
	i := nl.indexOf(id)
	if i < 0 {
		return false
	}
	nl.items = slices.Delete(nl.items, i, i+1)
	return true
}

// All iterates the neighbors in descending similarity order.
func (nl *NeighborList) All() iter.Seq[Neighbor] {
	return func(yield func(Neighbor) bool) {
		for _, n := range nl.items {
			if !yield(n) {
				return
			}
		}
	}
}

// Neighbors returns a copy of the list in descending similarity order.
func (nl *NeighborList) Neighbors() []Neighbor {
	return slices.Clone(nl.items)
}

// Equal reports whether both lists hold the same neighbors in the same order.
func (nl *NeighborList) Equal(other *NeighborList) bool {
	if other == nil || nl.k != other.k {
		return false
	}
	return slices.Equal(nl.items, other.items)
}

// Clone returns a deep copy of the list.
func (nl *NeighborList) Clone() *NeighborList {
	return &NeighborList{k: nl.k, items: slices.Clone(nl.items)}
}

type neighborListWire struct {
	K     int
	Items []Neighbor
}

// GobEncode implements gob.GobEncoder so neighbor lists survive snapshot and
// checkpoint serialization.
func (nl *NeighborList) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(neighborListWire{K: nl.k, Items: nl.items})
	return buf.Bytes(), err
}

// GobDecode implements gob.GobDecoder.
func (nl *NeighborList) GobDecode(data []byte) error {
	var wire neighborListWire
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&wire); err != nil {
		return err
	}
	nl.k = wire.K
	nl.items = wire.Items
	if nl.items == nil {
		nl.items = make([]Neighbor, 0, nl.k)
	}
	return nil
}
