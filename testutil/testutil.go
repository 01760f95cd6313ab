// Package testutil provides deterministic helpers shared by the test suites:
// a thread-safe seedable RNG and small node/graph fixtures.
package testutil

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/hypergraphs/knng/graph"
)

// RNG encapsulates a seedable random number generator. It is thread-safe.
type RNG struct {
	mu   sync.Mutex
	rand *rand.Rand
	seed int64
}

// NewRNG creates an RNG with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)), //nolint:gosec
		seed: seed,
	}
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 { return r.seed }

// Rand returns an unsynchronized source derived from this RNG, for APIs that
// take *rand.Rand directly.
func (r *RNG) Rand() *rand.Rand {
	r.mu.Lock()
	defer r.mu.Unlock()
	return rand.New(rand.NewSource(r.rand.Int63())) //nolint:gosec
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// UniformVectors generates num random vectors with values in [0, 1).
func (r *RNG) UniformVectors(num, dimensions int) [][]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	vectors := make([][]float64, num)
	for i := range vectors {
		vec := make([]float64, dimensions)
		for j := range vec {
			vec[j] = r.rand.Float64()
		}
		vectors[i] = vec
	}
	return vectors
}

// VectorNodes wraps uniform random vectors into nodes with sequential IDs
// ("n-0", "n-1", ...).
func (r *RNG) VectorNodes(num, dimensions int) []graph.Node[[]float64] {
	vectors := r.UniformVectors(num, dimensions)
	nodes := make([]graph.Node[[]float64], num)
	for i, v := range vectors {
		nodes[i] = graph.NewNode(graph.NodeID(fmt.Sprintf("n-%d", i)), v)
	}
	return nodes
}

// Ring builds a graph of n string nodes where node i points at the next k
// nodes around a ring. Deterministic, strongly connected, handy for testing
// traversal primitives.
func Ring(n, k int) *graph.Graph[string] {
	g := graph.New[string](func(a, b string) float64 {
		if a == b {
			return 1
		}
		return 0
	})
	for i := 0; i < n; i++ {
		nl := graph.NewNeighborList(k)
		for j := 1; j <= k; j++ {
			target := (i + j) % n
			nl.Add(graph.Neighbor{
				ID:         graph.NodeID(fmt.Sprintf("r-%d", target)),
				Similarity: 1.0 / float64(j),
			})
		}
		g.Put(graph.NewNode(graph.NodeID(fmt.Sprintf("r-%d", i)), fmt.Sprintf("value-%d", i)), nl)
	}
	return g
}
