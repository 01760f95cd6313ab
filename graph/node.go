// Package graph provides the in-memory k-NN graph primitives: nodes, bounded
// neighbor lists, and the local graph with greedy search, strongly connected
// component decomposition, hop-distance computation and bounded neighbor
// expansion.
//
// Neighbor lists reference nodes by ID only. A neighbor ID may point to a node
// that is not present in the local graph: that node lives in another
// partition. All traversal primitives silently skip such edges.
package graph

// NodeID is the stable identity of a node. Two nodes with the same ID are the
// same node, regardless of payload.
type NodeID string

// PartitionUnset marks a node that has not been assigned to a partition yet.
const PartitionUnset = -1

// Node carries a payload value and the partition it was assigned to.
// Equality is by ID only.
type Node[T any] struct {
	ID        NodeID
	Value     T
	Partition int
}

// NewNode creates a node with an unset partition.
func NewNode[T any](id NodeID, value T) Node[T] {
	return Node[T]{ID: id, Value: value, Partition: PartitionUnset}
}
